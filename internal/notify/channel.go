// Package notify delivers expiry reminders over email and WhatsApp.
package notify

import (
	"context"
	"errors"

	"github.com/erazemk/shramba/internal/model"
)

// ErrNotConfigured is returned by a channel that lacks credentials.
var ErrNotConfigured = errors.New("channel not configured")

// MaxRecipes is the number of recipe suggestions embedded in a reminder.
const MaxRecipes = 3

// Reminder is everything a channel needs to render one notification.
type Reminder struct {
	Item     model.Item
	DaysLeft int
	Recipes  []model.Recipe
}

// EmailChannel sends reminders by email.
type EmailChannel interface {
	SendReminderEmail(ctx context.Context, to string, r Reminder) error
	Configured() bool
}

// MessageChannel sends reminders as chat messages and returns the
// provider's message ID.
type MessageChannel interface {
	SendReminderMessage(ctx context.Context, phone string, r Reminder) (string, error)
	Configured() bool
}

// RecipeFinder suggests recipes for an item given the rest of the inventory.
type RecipeFinder interface {
	Find(ctx context.Context, name string, others []string) ([]model.Recipe, error)
}
