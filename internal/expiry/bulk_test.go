package expiry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/shramba/internal/model"
)

func TestIsBulk(t *testing.T) {
	tests := []struct {
		quantity float64
		unit     model.Unit
		want     bool
	}{
		{1.99, model.UnitKilogram, false},
		{2, model.UnitKilogram, true},
		{5, model.UnitKilogram, true},
		{1.5, model.UnitLitre, false},
		{2, model.UnitLitre, true},
		{2, model.UnitPackage, false},
		{3, model.UnitPackage, true},
		{2000, model.UnitGram, false},
		{5000, model.UnitMillilitre, false},
		{12, model.UnitPiece, false},
		{10, model.Unit("lb"), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBulk(tt.quantity, tt.unit), "IsBulk(%v, %q)", tt.quantity, tt.unit)
	}
}
