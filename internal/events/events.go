// Package events publishes reminder lifecycle events for other services.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Routing keys.
const (
	ReminderDispatched = "reminder.dispatched"
	ReminderFailed     = "reminder.failed"
	PassCompleted      = "reminder.pass.completed"
	ItemOpened         = "item.opened"
)

// Publisher sends a raw payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Event is the envelope every published message shares.
type Event struct {
	EventID    string    `json:"event_id"`
	RoutingKey string    `json:"routing_key"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// ReminderData describes one dispatch attempt.
type ReminderData struct {
	PassID      string `json:"pass_id,omitempty"`
	OwnerID     int64  `json:"owner_id"`
	ItemID      int64  `json:"item_id"`
	ItemName    string `json:"item_name"`
	ExpiryDate  string `json:"expiry_date"`
	DaysLeft    int    `json:"days_left"`
	EmailSent   bool   `json:"email_sent"`
	MessageSent bool   `json:"message_sent"`
	MessageID   string `json:"message_id,omitempty"`
}

// PassData summarises a finished scheduler pass.
type PassData struct {
	PassID     string `json:"pass_id"`
	Today      string `json:"today"`
	Owners     int    `json:"owners"`
	Evaluated  int    `json:"evaluated"`
	Due        int    `json:"due"`
	Delivered  int    `json:"delivered"`
	Failed     int    `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

// ItemOpenedData records an opened transition.
type ItemOpenedData struct {
	OwnerID    int64  `json:"owner_id"`
	ItemID     int64  `json:"item_id"`
	Category   string `json:"category"`
	OpenedDate string `json:"opened_date"`
	ExpiryDate string `json:"expiry_date"`
}

// Emitter wraps events in an envelope and publishes them. Publishing is
// best effort: failures are logged and never returned to the caller.
type Emitter struct {
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewEmitter creates an emitter. A nil publisher discards every event.
func NewEmitter(publisher Publisher, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = NewNoopPublisher(logger)
	}
	return &Emitter{publisher: publisher, logger: logger, now: time.Now}
}

// Emit publishes data under routingKey.
func (e *Emitter) Emit(ctx context.Context, routingKey string, data any) {
	if e == nil {
		return
	}
	payload, err := json.Marshal(Event{
		EventID:    uuid.NewString(),
		RoutingKey: routingKey,
		OccurredAt: e.now().UTC(),
		Data:       data,
	})
	if err != nil {
		e.logger.Error("encoding event", "routing_key", routingKey, "error", err)
		return
	}
	if err := e.publisher.Publish(ctx, routingKey, payload); err != nil {
		e.logger.Warn("publishing event", "routing_key", routingKey, "error", err)
	}
}

// Close closes the underlying publisher.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	return e.publisher.Close()
}
