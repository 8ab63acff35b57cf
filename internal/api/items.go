package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/shramba/internal/events"
	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/photo"
	"github.com/erazemk/shramba/internal/recipes"
	"github.com/erazemk/shramba/internal/store"
)

// ItemsHandler handles item CRUD endpoints. Every item it returns carries a
// status computed for the server's current date.
type ItemsHandler struct {
	DB     *sql.DB
	Finder recipes.Finder
	Events *events.Emitter
	Now    func() time.Time
}

type createItemRequest struct {
	Name          string         `json:"name"`
	Quantity      float64        `json:"quantity"`
	Unit          model.Unit     `json:"unit"`
	Category      model.Category `json:"category"`
	ExpiryDate    model.Date     `json:"expiry_date"`
	ReminderDays  int            `json:"reminder_days"`
	ReminderEmail string         `json:"reminder_email"`
	ReminderPhone string         `json:"reminder_phone"`
}

type openItemRequest struct {
	OpenedDate model.Date `json:"opened_date"`
}

type openItemResponse struct {
	Item    model.Item `json:"item"`
	Changed bool       `json:"changed"`
}

func (h *ItemsHandler) today() model.Date {
	return today(h.Now)
}

func today(now func() time.Time) model.Date {
	if now == nil {
		now = time.Now
	}
	return expiry.Today(now())
}

func withStatus(item *model.Item, today model.Date) model.Item {
	it := *item
	it.Status = expiry.Evaluate(it, today)
	return it
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListItems(r.Context(), h.DB, ownerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	items = expiry.Annotate(items, h.today())
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := &model.Item{
		OwnerID:       ownerID(r),
		Name:          strings.TrimSpace(req.Name),
		Quantity:      req.Quantity,
		Unit:          req.Unit,
		Category:      req.Category,
		ExpiryDate:    req.ExpiryDate,
		ReminderDays:  req.ReminderDays,
		ReminderEmail: strings.TrimSpace(req.ReminderEmail),
		ReminderPhone: strings.TrimSpace(req.ReminderPhone),
	}
	if err := item.Validate(); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := store.CreateItem(r.Context(), h.DB, item)
	if err != nil {
		slog.Error("creating item", "owner_id", item.OwnerID, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	jsonResponse(w, http.StatusCreated, withStatus(created, h.today()))
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, withStatus(item, h.today()))
}

// Update handles PUT /api/items/{id}. Only the fields present in the body
// change; id, owner and the opened state cannot be set this way.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Empty() {
		jsonError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	item, err := store.PatchItem(r.Context(), h.DB, ownerID(r), id, patch)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case errors.Is(err, store.ErrInvalidItem):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("updating item", "item_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	jsonResponse(w, http.StatusOK, withStatus(item, h.today()))
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	deleted, err := store.DeleteItem(r.Context(), h.DB, ownerID(r), id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// Open handles POST /api/items/{id}/open. The opened date defaults to today.
// Opening an already opened item changes nothing.
func (h *ItemsHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req openItemRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	today := h.today()
	openedDate := req.OpenedDate
	if openedDate.IsZero() {
		openedDate = today
	}

	owner := ownerID(r)
	item, changed, err := store.OpenItem(r.Context(), h.DB, owner, id, openedDate)
	switch {
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		slog.Error("opening item", "item_id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to open item")
		return
	}

	if changed {
		slog.Info("item opened", "item_id", id, "owner_id", owner, "expiry_date", item.ExpiryDate.String())
		h.Events.Emit(r.Context(), events.ItemOpened, events.ItemOpenedData{
			OwnerID:    owner,
			ItemID:     id,
			Category:   string(item.Category),
			OpenedDate: openedDate.String(),
			ExpiryDate: item.ExpiryDate.String(),
		})
	}

	jsonResponse(w, http.StatusOK, openItemResponse{Item: withStatus(item, today), Changed: changed})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(photo.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	owner := ownerID(r)
	item, err := store.GetItem(r.Context(), h.DB, owner, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	p, err := photo.Normalize(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, owner, id, p.Full, p.Thumb, p.MIME); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/items/{id}/image. ?thumb=1 returns the thumbnail.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	thumb := r.URL.Query().Get("thumb") != ""
	data, mime, err := store.GetItemImage(r.Context(), h.DB, ownerID(r), id, thumb)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Recipes handles GET /api/items/{id}/recipes. Lookup failures yield an
// empty list.
func (h *ItemsHandler) Recipes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	owner := ownerID(r)
	items, err := store.ListItems(r.Context(), h.DB, owner)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	var target *model.Item
	var others []string
	for i := range items {
		if items[i].ID == id {
			target = &items[i]
			continue
		}
		others = append(others, items[i].Name)
	}
	if target == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	found := []model.Recipe{}
	if h.Finder != nil {
		res, err := h.Finder.Find(r.Context(), target.Name, others)
		if err != nil {
			slog.Warn("recipe lookup failed", "item_id", id, "error", err)
		} else if res != nil {
			found = res
		}
	}

	jsonResponse(w, http.StatusOK, found)
}
