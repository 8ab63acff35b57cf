package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/reminder"
	"github.com/erazemk/shramba/internal/store"
)

// Providers reports which outbound integrations are configured.
type Providers struct {
	Email     bool `json:"email"`
	Messaging bool `json:"messaging"`
	Recipes   bool `json:"recipes"`
}

type categoryInfo struct {
	Name model.Category `json:"name"`
	expiry.CategoryRule
}

type healthResponse struct {
	Status    string          `json:"status"`
	Database  string          `json:"database"`
	Providers Providers       `json:"providers"`
	Reminders *reminder.Stats `json:"reminders,omitempty"`
	LastPass  *time.Time      `json:"last_pass,omitempty"`
}

// MetaHandler serves the category table and the health check.
type MetaHandler struct {
	DB        *sql.DB
	Providers Providers
	Scheduler *reminder.Scheduler
}

// Categories handles GET /api/categories.
func (h *MetaHandler) Categories(w http.ResponseWriter, r *http.Request) {
	rules := expiry.Rules()
	out := make([]categoryInfo, 0, len(model.Categories))
	for _, c := range model.Categories {
		out = append(out, categoryInfo{Name: c, CategoryRule: rules[c]})
	}
	jsonResponse(w, http.StatusOK, out)
}

// Health handles GET /api/health. It never reports credentials, only
// whether each provider has them.
func (h *MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Database:  "ok",
		Providers: h.Providers,
	}
	status := http.StatusOK

	if err := h.DB.PingContext(r.Context()); err != nil {
		slog.Error("database ping", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	} else if last, err := store.LastReminderPass(r.Context(), h.DB); err != nil {
		slog.Warn("reading last reminder pass", "error", err)
	} else if !last.IsZero() {
		resp.LastPass = &last
	}

	if h.Scheduler != nil {
		stats := h.Scheduler.Stats()
		resp.Reminders = &stats
	}

	jsonResponse(w, status, resp)
}
