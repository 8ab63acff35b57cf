package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
)

var (
	// ErrNotFound is returned when an item does not exist for the owner.
	ErrNotFound = errors.New("not found")

	// ErrInvalidItem wraps validation failures of a mutated item.
	ErrInvalidItem = errors.New("invalid item")
)

const itemColumns = `id, owner_id, name, quantity, unit, category, expiry_date, is_opened, opened_date,
	reminder_days, reminder_email, reminder_phone, reminder_sent, image_mime, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var opened model.Date
	var imageMime sql.NullString
	err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.Quantity, &item.Unit, &item.Category,
		&item.ExpiryDate, &item.IsOpened, &opened, &item.ReminderDays, &item.ReminderEmail,
		&item.ReminderPhone, &item.ReminderSent, &imageMime, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !opened.IsZero() {
		item.OpenedDate = &opened
	}
	item.ImageMime = imageMime.String
	return item, nil
}

// CreateItem inserts a new sealed item for item.OwnerID. The reminder flag
// always starts cleared.
func CreateItem(ctx context.Context, db *sql.DB, item *model.Item) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (owner_id, name, quantity, unit, category, expiry_date,
		                    reminder_days, reminder_email, reminder_phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.OwnerID, item.Name, item.Quantity, item.Unit, item.Category, item.ExpiryDate,
		item.ReminderDays, item.ReminderEmail, item.ReminderPhone,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, item.OwnerID, id)
}

// GetItem returns an owner's item by ID, or nil if there is none.
func GetItem(ctx context.Context, db *sql.DB, ownerID, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items of an owner, soonest expiry first.
func ListItems(ctx context.Context, db *sql.DB, ownerID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? ORDER BY expiry_date, name`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ListItemOwners returns the IDs of all users that own at least one item.
func ListItemOwners(ctx context.Context, db *sql.DB) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM items ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("listing item owners: %w", err)
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning owner id: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

// mutateItem loads an item inside a transaction, lets fn change it, validates
// and writes back every mutable column. fn returning false skips the write.
func mutateItem(ctx context.Context, db *sql.DB, ownerID, id int64, fn func(*model.Item) bool) (*model.Item, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if err == sql.ErrNoRows {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading item: %w", err)
	}

	if !fn(item) {
		return item, false, nil
	}
	if err := item.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET name = ?, quantity = ?, unit = ?, category = ?, expiry_date = ?,
		        is_opened = ?, opened_date = ?, reminder_days = ?, reminder_email = ?,
		        reminder_phone = ?, reminder_sent = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		item.Name, item.Quantity, item.Unit, item.Category, item.ExpiryDate,
		item.IsOpened, item.OpenedDate, item.ReminderDays, item.ReminderEmail,
		item.ReminderPhone, item.ReminderSent, id, ownerID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("committing item update: %w", err)
	}

	updated, err := GetItem(ctx, db, ownerID, id)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// PatchItem applies a partial update. Changing the expiry date releases the
// reminder flag.
func PatchItem(ctx context.Context, db *sql.DB, ownerID, id int64, patch model.ItemPatch) (*model.Item, error) {
	item, _, err := mutateItem(ctx, db, ownerID, id, func(it *model.Item) bool {
		it.Apply(patch)
		return true
	})
	return item, err
}

// OpenItem runs the opened transition. The bool result is false if the item
// was already opened, in which case nothing is written.
func OpenItem(ctx context.Context, db *sql.DB, ownerID, id int64, openedDate model.Date) (*model.Item, bool, error) {
	return mutateItem(ctx, db, ownerID, id, func(it *model.Item) bool {
		return expiry.ApplyOpened(it, openedDate)
	})
}

// MarkReminderSent consumes the reminder for the given expiry date. If the
// date changed since the item was read, the new boundary is left alone and
// false is returned.
func MarkReminderSent(ctx context.Context, db *sql.DB, ownerID, id int64, expiryDate model.Date) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET reminder_sent = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ? AND expiry_date = ?`,
		id, ownerID, expiryDate,
	)
	if err != nil {
		return false, fmt.Errorf("marking reminder sent: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking reminder sent: %w", err)
	}
	return n > 0, nil
}

// DeleteItem removes an item. It reports whether anything was deleted.
func DeleteItem(ctx context.Context, db *sql.DB, ownerID, id int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n > 0, nil
}

// SetItemImage stores an item's photo and its thumbnail.
func SetItemImage(ctx context.Context, db *sql.DB, ownerID, id int64, image, thumb []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_thumb = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND owner_id = ?`,
		image, thumb, mime, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's photo (or its thumbnail) and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, ownerID, id int64, thumb bool) ([]byte, string, error) {
	column := "image"
	if thumb {
		column = "image_thumb"
	}

	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT `+column+`, image_mime FROM items WHERE id = ? AND owner_id = ?`, id, ownerID,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
