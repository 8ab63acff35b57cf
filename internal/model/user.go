package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// User is a household account. Every item belongs to exactly one user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the length policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// ValidateUsername checks a new username.
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username required")
	}
	if utf8.RuneCountInString(username) > 64 {
		return errors.New("username too long")
	}
	return nil
}
