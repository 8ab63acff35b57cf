package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/shramba/internal/expiry"
	"github.com/erazemk/shramba/internal/model"
)

// Result records which channels accepted a reminder.
type Result struct {
	EmailSent   bool   `json:"email_sent"`
	MessageSent bool   `json:"message_sent"`
	MessageID   string `json:"message_id,omitempty"`
}

// Delivered reports whether at least one channel succeeded.
func (r Result) Delivered() bool {
	return r.EmailSent || r.MessageSent
}

// Dispatcher fans a reminder out to every channel the item has an address
// for. Channel failures are logged and reported as false, never returned.
type Dispatcher struct {
	email   EmailChannel
	message MessageChannel
	recipes RecipeFinder
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. Any of the collaborators may be nil.
func NewDispatcher(email EmailChannel, message MessageChannel, recipes RecipeFinder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		email:   email,
		message: message,
		recipes: recipes,
		logger:  logger,
		now:     time.Now,
	}
}

// EmailConfigured reports whether the email channel can send.
func (d *Dispatcher) EmailConfigured() bool {
	return d.email != nil && d.email.Configured()
}

// MessageConfigured reports whether the message channel can send.
func (d *Dispatcher) MessageConfigured() bool {
	return d.message != nil && d.message.Configured()
}

// Dispatch sends the reminder for item, counting days from the local date.
func (d *Dispatcher) Dispatch(ctx context.Context, item model.Item, others []string) Result {
	return d.DispatchOn(ctx, item, others, expiry.Today(d.now()))
}

// DispatchOn sends the reminder for item as of today. The email and message
// channels run concurrently and independently.
func (d *Dispatcher) DispatchOn(ctx context.Context, item model.Item, others []string, today model.Date) Result {
	r := Reminder{
		Item:     item,
		DaysLeft: expiry.DaysUntil(item.ExpiryDate, today),
		Recipes:  d.findRecipes(ctx, item, others),
	}

	var result Result
	var wg sync.WaitGroup

	if item.ReminderEmail != "" && d.EmailConfigured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := guard(func() error {
				return d.email.SendReminderEmail(ctx, item.ReminderEmail, r)
			})
			if err != nil {
				d.logger.Warn("email reminder failed", "item_id", item.ID, "owner_id", item.OwnerID, "error", err)
				return
			}
			result.EmailSent = true
		}()
	}

	if item.ReminderPhone != "" && d.MessageConfigured() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var id string
			err := guard(func() error {
				var err error
				id, err = d.message.SendReminderMessage(ctx, item.ReminderPhone, r)
				return err
			})
			if err != nil {
				d.logger.Warn("whatsapp reminder failed", "item_id", item.ID, "owner_id", item.OwnerID, "error", err)
				return
			}
			result.MessageSent = true
			result.MessageID = id
		}()
	}

	wg.Wait()
	return result
}

// SendTestEmail sends a sample reminder to an address.
func (d *Dispatcher) SendTestEmail(ctx context.Context, to string, today model.Date) error {
	if !d.EmailConfigured() {
		return ErrNotConfigured
	}
	item := model.Item{
		Name:       "Chicken",
		Quantity:   1,
		Unit:       model.UnitKilogram,
		Category:   model.CategoryMeat,
		ExpiryDate: today.AddDays(3),
	}
	r := Reminder{
		Item:     item,
		DaysLeft: 3,
		Recipes:  d.findRecipes(ctx, item, nil),
	}
	return guard(func() error {
		return d.email.SendReminderEmail(ctx, to, r)
	})
}

func (d *Dispatcher) findRecipes(ctx context.Context, item model.Item, others []string) []model.Recipe {
	if d.recipes == nil {
		return nil
	}
	var found []model.Recipe
	err := guard(func() error {
		var err error
		found, err = d.recipes.Find(ctx, item.Name, others)
		return err
	})
	if err != nil {
		d.logger.Warn("recipe lookup failed", "item_id", item.ID, "error", err)
		return nil
	}
	if len(found) > MaxRecipes {
		found = found[:MaxRecipes]
	}
	return found
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}
