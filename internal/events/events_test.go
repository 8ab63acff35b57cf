package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys     []string
	payloads [][]byte
	err      error
	closed   bool
}

func (p *recordingPublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmitWrapsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEmitter(pub, quietLogger())
	e.now = func() time.Time { return time.Date(2026, time.March, 28, 9, 0, 0, 0, time.UTC) }

	e.Emit(context.Background(), ReminderDispatched, ReminderData{OwnerID: 1, ItemID: 2, ItemName: "Milk", EmailSent: true})

	require.Equal(t, []string{ReminderDispatched}, pub.keys)

	var got struct {
		EventID    string       `json:"event_id"`
		RoutingKey string       `json:"routing_key"`
		OccurredAt time.Time    `json:"occurred_at"`
		Data       ReminderData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))

	_, err := uuid.Parse(got.EventID)
	assert.NoError(t, err)
	assert.Equal(t, ReminderDispatched, got.RoutingKey)
	assert.True(t, got.OccurredAt.Equal(e.now()))
	assert.Equal(t, "Milk", got.Data.ItemName)
	assert.True(t, got.Data.EmailSent)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e := NewEmitter(pub, quietLogger())

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), PassCompleted, PassData{PassID: "p"})
	})
	assert.Len(t, pub.keys, 1)
}

func TestNilEmitter(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() { e.Emit(context.Background(), ItemOpened, nil) })
	assert.NoError(t, e.Close())
}

func TestEmitterDefaultsToNoop(t *testing.T) {
	e := NewEmitter(nil, quietLogger())
	e.Emit(context.Background(), ItemOpened, ItemOpenedData{ItemID: 1})
	assert.NoError(t, e.Close())
}

func TestNewRabbitMQPublisherBadURL(t *testing.T) {
	_, err := NewRabbitMQPublisher("http://not-amqp", quietLogger())
	assert.Error(t, err)
}
