// Package events delivers registry notifications to subscribers.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"aishi/internal/chain"
)

const (
	// NameTransfer is emitted on mint (From is the zero address) and on transfer.
	NameTransfer = "Transfer"

	// NameTokenUnlocked is emitted once per token, when it is unlocked.
	NameTokenUnlocked = "TokenUnlocked"
)

// Event is one registry notification.
type Event struct {
	ID      uuid.UUID     `json:"id"`
	Name    string        `json:"name"`
	TokenID uint64        `json:"token_id"`
	From    chain.Address `json:"from"`
	To      chain.Address `json:"to"`
	Owner   chain.Address `json:"owner"`
	At      time.Time     `json:"at"`
}

// NewTransfer builds a Transfer event.
func NewTransfer(tokenID uint64, from, to chain.Address, at time.Time) Event {
	return Event{
		ID:      uuid.New(),
		Name:    NameTransfer,
		TokenID: tokenID,
		From:    from,
		To:      to,
		Owner:   to,
		At:      at,
	}
}

// NewTokenUnlocked builds a TokenUnlocked event carrying the owner at unlock time.
func NewTokenUnlocked(tokenID uint64, owner chain.Address, at time.Time) Event {
	return Event{
		ID:      uuid.New(),
		Name:    NameTokenUnlocked,
		TokenID: tokenID,
		Owner:   owner,
		At:      at,
	}
}

// Sink receives events after the registry has committed them.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every sink, continuing past failures.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Named returns recorded events with the given name.
func (r *Recorder) Named(name string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
