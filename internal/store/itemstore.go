package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

// ItemStore exposes the item functions as a handle that can be injected into
// long-lived components such as the reminder scheduler.
type ItemStore struct {
	DB *sql.DB
}

// NewItemStore wraps an open database.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{DB: db}
}

// ListOwners returns all owners that hold items.
func (s *ItemStore) ListOwners(ctx context.Context) ([]int64, error) {
	return ListItemOwners(ctx, s.DB)
}

// ListItems returns the owner's items.
func (s *ItemStore) ListItems(ctx context.Context, ownerID int64) ([]model.Item, error) {
	return ListItems(ctx, s.DB, ownerID)
}

// MarkReminderSent consumes the reminder for expiryDate.
func (s *ItemStore) MarkReminderSent(ctx context.Context, ownerID, id int64, expiryDate model.Date) (bool, error) {
	return MarkReminderSent(ctx, s.DB, ownerID, id, expiryDate)
}

// RecordReminderPass stores the completion time of a reminder pass.
func (s *ItemStore) RecordReminderPass(ctx context.Context, at time.Time) error {
	return RecordReminderPass(ctx, s.DB, at)
}
