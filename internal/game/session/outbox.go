// Package session tracks the characters active in the running game and routes
// engine events to whoever is watching them.
package session

import (
	"fmt"
	"sync"

	"github.com/S3OPS/ACOTAR-sub002/internal/game/event"
)

// Outbox buffers engine events for one watcher of a character.
type Outbox struct {
	owner  string
	events chan event.Event
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox labelled owner.
//
// Postcondition: Returns an Outbox with an open events channel of at least one slot.
func NewOutbox(owner string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		owner:  owner,
		events: make(chan event.Event, bufferSize),
	}
}

// Push enqueues e without blocking.
//
// Postcondition: e is enqueued, or an error is returned if the outbox is closed or full.
func (o *Outbox) Push(e event.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.owner)
	}
	select {
	case o.events <- e:
		return nil
	default:
		return fmt.Errorf("outbox %s event buffer full", o.owner)
	}
}

// Events returns the read-only events channel. It is closed by Close.
func (o *Outbox) Events() <-chan event.Event {
	return o.events
}

// Close marks the outbox as closed and closes the events channel. It is idempotent.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
