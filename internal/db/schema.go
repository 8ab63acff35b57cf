package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username
    ON users(username);

CREATE TABLE IF NOT EXISTS items (
    id             INTEGER PRIMARY KEY,
    owner_id       INTEGER NOT NULL REFERENCES users(id),
    name           TEXT NOT NULL,
    quantity       REAL NOT NULL CHECK (quantity > 0),
    unit           TEXT NOT NULL CHECK (unit IN ('kg', 'g', 'l', 'ml', 'pkg', 'pcs')),
    category       TEXT NOT NULL CHECK (category IN ('Dairy', 'Grain', 'Vegetable', 'Meat', 'Other')),
    expiry_date    TEXT NOT NULL,
    is_opened      INTEGER NOT NULL DEFAULT 0,
    opened_date    TEXT,
    reminder_days  INTEGER NOT NULL DEFAULT 0 CHECK (reminder_days >= 0),
    reminder_email TEXT NOT NULL DEFAULT '',
    reminder_phone TEXT NOT NULL DEFAULT '',
    reminder_sent  INTEGER NOT NULL DEFAULT 0,
    image          BLOB,
    image_thumb    BLOB,
    image_mime     TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_owner
    ON items(owner_id, expiry_date);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: partial index for the reminder scan, so a pass only walks
	// items that asked for a reminder and have not consumed it.
	`CREATE INDEX IF NOT EXISTS idx_items_reminder_pending
	     ON items(owner_id) WHERE reminder_days > 0 AND reminder_sent = 0`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Migrate ensures the schema and then applies migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
