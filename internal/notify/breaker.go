package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the per-channel circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          time.Minute,
		MaxRequests:      1,
	}
}

func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[string] {
	if cfg.FailureThreshold == 0 {
		cfg = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Missing credentials are not a provider outage.
			return err == nil || errors.Is(err, ErrNotConfigured)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"channel", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
}

func breakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s channel unavailable: %w", name, err)
	}
	return err
}

// BreakerEmail wraps an EmailChannel in a circuit breaker.
type BreakerEmail struct {
	next    EmailChannel
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerEmail wraps next.
func NewBreakerEmail(next EmailChannel, cfg BreakerConfig, logger *slog.Logger) *BreakerEmail {
	return &BreakerEmail{next: next, breaker: newBreaker("email", cfg, logger)}
}

// Configured reports whether the wrapped channel is configured.
func (b *BreakerEmail) Configured() bool { return b.next.Configured() }

// State returns the breaker state name.
func (b *BreakerEmail) State() string { return b.breaker.State().String() }

// SendReminderEmail sends through the breaker.
func (b *BreakerEmail) SendReminderEmail(ctx context.Context, to string, r Reminder) error {
	_, err := b.breaker.Execute(func() (string, error) {
		return "", b.next.SendReminderEmail(ctx, to, r)
	})
	return breakerError("email", err)
}

// BreakerMessage wraps a MessageChannel in a circuit breaker.
type BreakerMessage struct {
	next    MessageChannel
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerMessage wraps next.
func NewBreakerMessage(next MessageChannel, cfg BreakerConfig, logger *slog.Logger) *BreakerMessage {
	return &BreakerMessage{next: next, breaker: newBreaker("whatsapp", cfg, logger)}
}

// Configured reports whether the wrapped channel is configured.
func (b *BreakerMessage) Configured() bool { return b.next.Configured() }

// State returns the breaker state name.
func (b *BreakerMessage) State() string { return b.breaker.State().String() }

// SendReminderMessage sends through the breaker.
func (b *BreakerMessage) SendReminderMessage(ctx context.Context, phone string, r Reminder) (string, error) {
	id, err := b.breaker.Execute(func() (string, error) {
		return b.next.SendReminderMessage(ctx, phone, r)
	})
	return id, breakerError("whatsapp", err)
}
