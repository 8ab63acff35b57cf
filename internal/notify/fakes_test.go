package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/erazemk/shramba/internal/model"
)

type fakeEmail struct {
	mu         sync.Mutex
	configured bool
	err        error
	panicMsg   string
	sent       []Reminder
	to         []string
}

func (f *fakeEmail) Configured() bool { return f.configured }

func (f *fakeEmail) SendReminderEmail(_ context.Context, to string, r Reminder) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.sent = append(f.sent, r)
	return f.err
}

type fakeMessage struct {
	mu         sync.Mutex
	configured bool
	err        error
	id         string
	phones     []string
}

func (f *fakeMessage) Configured() bool { return f.configured }

func (f *fakeMessage) SendReminderMessage(_ context.Context, phone string, _ Reminder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phones = append(f.phones, phone)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

type fakeFinder struct {
	recipes []model.Recipe
	err     error
	name    string
	others  []string
}

func (f *fakeFinder) Find(_ context.Context, name string, others []string) ([]model.Recipe, error) {
	f.name = name
	f.others = others
	return f.recipes, f.err
}

var errProvider = errors.New("provider down")
