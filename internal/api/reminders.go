package api

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/notify"
	"github.com/erazemk/shramba/internal/reminder"
	"github.com/erazemk/shramba/internal/store"
)

const (
	defaultFeedDays = 7
	maxFeedDays     = 365
	soonDays        = 3
)

// TestMailer sends a sample reminder email.
type TestMailer interface {
	SendTestEmail(ctx context.Context, to string, today model.Date) error
}

// RemindersHandler serves the reminder feed and the manual triggers.
type RemindersHandler struct {
	DB        *sql.DB
	Scheduler *reminder.Scheduler
	Mailer    TestMailer
	Now       func() time.Time
}

type feedEntry struct {
	model.Item
	DaysLeft int `json:"days_left"`
}

type reminderFeed struct {
	Date     model.Date  `json:"date"`
	Days     int         `json:"days"`
	Expired  []feedEntry `json:"expired"`
	DueToday []feedEntry `json:"today"`
	Soon     []feedEntry `json:"soon"`
	Later    []feedEntry `json:"later"`
}

type testEmailRequest struct {
	To string `json:"to"`
}

// Feed handles GET /api/reminders?days=N. Items expiring within N days are
// grouped by urgency, most urgent first.
func (h *RemindersHandler) Feed(w http.ResponseWriter, r *http.Request) {
	days := defaultFeedDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > maxFeedDays {
			jsonError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	items, err := store.ListItems(r.Context(), h.DB, ownerID(r))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	today := today(h.Now)
	feed := buildFeed(expiry.Annotate(items, today), today, days)
	jsonResponse(w, http.StatusOK, feed)
}

func buildFeed(items []model.Item, today model.Date, days int) reminderFeed {
	feed := reminderFeed{
		Date:     today,
		Days:     days,
		Expired:  []feedEntry{},
		DueToday: []feedEntry{},
		Soon:     []feedEntry{},
		Later:    []feedEntry{},
	}
	for _, item := range items {
		left := expiry.DaysUntil(item.ExpiryDate, today)
		entry := feedEntry{Item: item, DaysLeft: left}
		switch {
		case left < 0:
			feed.Expired = append(feed.Expired, entry)
		case left == 0:
			feed.DueToday = append(feed.DueToday, entry)
		case left <= soonDays && left <= days:
			feed.Soon = append(feed.Soon, entry)
		case left <= days:
			feed.Later = append(feed.Later, entry)
		}
	}
	return feed
}

// Run handles POST /api/reminders/run: a reminder pass over the caller's
// own items.
func (h *RemindersHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		jsonError(w, http.StatusServiceUnavailable, "reminders are disabled")
		return
	}

	owner := ownerID(r)
	report, err := h.Scheduler.RunOwner(r.Context(), owner, today(h.Now))
	if err != nil {
		slog.Error("manual reminder pass", "owner_id", owner, "error", err)
		jsonError(w, http.StatusInternalServerError, "reminder pass failed")
		return
	}
	report.Items = nil

	jsonResponse(w, http.StatusOK, report)
}

// TestEmail handles POST /api/reminders/test-email.
func (h *RemindersHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.To); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if h.Mailer == nil {
		jsonError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}

	err := h.Mailer.SendTestEmail(r.Context(), req.To, today(h.Now))
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		jsonError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	case err != nil:
		slog.Warn("test email failed", "error", err)
		jsonError(w, http.StatusBadGateway, "failed to send test email")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "test email sent"})
}
