package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/model"
)

var today = model.NewDate(2026, time.March, 28)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reminderItem() model.Item {
	return model.Item{
		ID:            7,
		OwnerID:       1,
		Name:          "Yogurt",
		Quantity:      1,
		Unit:          model.UnitPiece,
		Category:      model.CategoryDairy,
		ExpiryDate:    today.AddDays(2),
		ReminderDays:  3,
		ReminderEmail: "cook@example.com",
		ReminderPhone: "98765 43210",
	}
}

func TestDispatchBothChannels(t *testing.T) {
	email := &fakeEmail{configured: true}
	msg := &fakeMessage{configured: true, id: "SM123"}
	d := NewDispatcher(email, msg, nil, quietLogger())

	res := d.DispatchOn(context.Background(), reminderItem(), nil, today)

	assert.True(t, res.EmailSent)
	assert.True(t, res.MessageSent)
	assert.Equal(t, "SM123", res.MessageID)
	assert.True(t, res.Delivered())
	require.Len(t, email.sent, 1)
	assert.Equal(t, 2, email.sent[0].DaysLeft)
	assert.Equal(t, []string{"cook@example.com"}, email.to)
	assert.Equal(t, []string{"98765 43210"}, msg.phones)
}

func TestDispatchEmailFailsMessageSucceeds(t *testing.T) {
	email := &fakeEmail{configured: true, err: errProvider}
	msg := &fakeMessage{configured: true, id: "SM1"}
	d := NewDispatcher(email, msg, nil, quietLogger())

	res := d.DispatchOn(context.Background(), reminderItem(), nil, today)

	assert.False(t, res.EmailSent)
	assert.True(t, res.MessageSent)
	assert.True(t, res.Delivered())
}

func TestDispatchAllChannelsFail(t *testing.T) {
	email := &fakeEmail{configured: true, err: errProvider}
	msg := &fakeMessage{configured: true, err: errProvider}
	d := NewDispatcher(email, msg, nil, quietLogger())

	res := d.DispatchOn(context.Background(), reminderItem(), nil, today)

	assert.False(t, res.Delivered())
	assert.Empty(t, res.MessageID)
}

func TestDispatchSkipsMissingAddressAndUnconfigured(t *testing.T) {
	email := &fakeEmail{configured: true}
	msg := &fakeMessage{configured: false}
	d := NewDispatcher(email, msg, nil, quietLogger())

	item := reminderItem()
	item.ReminderEmail = ""

	res := d.DispatchOn(context.Background(), item, nil, today)

	assert.False(t, res.Delivered())
	assert.Empty(t, email.sent)
	assert.Empty(t, msg.phones)
}

func TestDispatchNilChannels(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	res := d.DispatchOn(context.Background(), reminderItem(), nil, today)
	assert.False(t, res.Delivered())
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	email := &fakeEmail{configured: true, panicMsg: "boom"}
	msg := &fakeMessage{configured: true, id: "SM9"}
	d := NewDispatcher(email, msg, nil, quietLogger())

	var res Result
	require.NotPanics(t, func() {
		res = d.DispatchOn(context.Background(), reminderItem(), nil, today)
	})
	assert.False(t, res.EmailSent)
	assert.True(t, res.MessageSent)
}

func TestDispatchRecipes(t *testing.T) {
	finder := &fakeFinder{recipes: []model.Recipe{
		{ID: "1", Name: "Tzatziki"},
		{ID: "2", Name: "Smoothie"},
		{ID: "3", Name: "Parfait"},
		{ID: "4", Name: "Raita"},
	}}
	email := &fakeEmail{configured: true}
	d := NewDispatcher(email, nil, finder, quietLogger())

	d.DispatchOn(context.Background(), reminderItem(), []string{"Cucumber", "Honey"}, today)

	assert.Equal(t, "Yogurt", finder.name)
	assert.Equal(t, []string{"Cucumber", "Honey"}, finder.others)
	require.Len(t, email.sent, 1)
	assert.Len(t, email.sent[0].Recipes, MaxRecipes)
}

func TestDispatchRecipeFailureStillSends(t *testing.T) {
	finder := &fakeFinder{err: errProvider}
	email := &fakeEmail{configured: true}
	d := NewDispatcher(email, nil, finder, quietLogger())

	res := d.DispatchOn(context.Background(), reminderItem(), nil, today)

	assert.True(t, res.EmailSent)
	require.Len(t, email.sent, 1)
	assert.Empty(t, email.sent[0].Recipes)
}

func TestDispatchUsesClock(t *testing.T) {
	email := &fakeEmail{configured: true}
	d := NewDispatcher(email, nil, nil, quietLogger())
	d.now = func() time.Time { return time.Date(2026, time.March, 28, 18, 30, 0, 0, time.Local) }

	d.Dispatch(context.Background(), reminderItem(), nil)

	require.Len(t, email.sent, 1)
	assert.Equal(t, 2, email.sent[0].DaysLeft)
}

func TestSendTestEmail(t *testing.T) {
	email := &fakeEmail{configured: true}
	d := NewDispatcher(email, nil, nil, quietLogger())

	require.NoError(t, d.SendTestEmail(context.Background(), "me@example.com", today))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "Chicken", email.sent[0].Item.Name)
	assert.Equal(t, 3, email.sent[0].DaysLeft)

	unconfigured := NewDispatcher(&fakeEmail{}, nil, nil, quietLogger())
	assert.ErrorIs(t, unconfigured.SendTestEmail(context.Background(), "me@example.com", today), ErrNotConfigured)
}
