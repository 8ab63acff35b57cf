// Package photo prepares uploaded item photos for storage.
package photo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension bounds the stored photo's width and height.
	MaxDimension = 1024
	// ThumbSize is the edge length of the square thumbnail.
	ThumbSize = 192
	// JPEGQuality is used for both encodings.
	JPEGQuality = 82
	// MaxUploadBytes caps the accepted upload size.
	MaxUploadBytes = 5 << 20
)

// ErrUnsupported is returned for anything that is not a JPEG or PNG.
var ErrUnsupported = errors.New("unsupported image format")

var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a normalized photo and its thumbnail, both JPEG.
type Photo struct {
	Full  []byte
	Thumb []byte
	MIME  string
}

// Normalize sniffs the upload, downscales it to fit MaxDimension and derives
// a centre-cropped square thumbnail. The client's Content-Type is ignored.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("photo larger than %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	if !accepted[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	full, err := encode(fit(img, MaxDimension))
	if err != nil {
		return nil, err
	}
	thumb, err := encode(square(img, ThumbSize))
	if err != nil {
		return nil, err
	}

	return &Photo{Full: full, Thumb: thumb, MIME: "image/jpeg"}, nil
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so neither side exceeds maxDim, keeping the aspect
// ratio. Smaller images are returned as is.
func fit(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// square crops the centre of img to a square and scales it to size.
func square(img image.Image, size int) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}
