package main

import (
	"fmt"
	"sync"
)

// Availability is the binary status shown on the page, the OLED and the LED.
// The zero value is Free, which is also the status after every boot.
type Availability uint8

const (
	Free Availability = iota
	DoNotDisturb
)

// Label returns the human readable form used on the page and the display.
func (a Availability) Label() string {
	if a == DoNotDisturb {
		return "Do Not Disturb"
	}
	return "Free"
}

// Code returns the short wire form used by the /status endpoint.
func (a Availability) Code() string {
	if a == DoNotDisturb {
		return "dnd"
	}
	return "free"
}

func (a Availability) String() string { return a.Label() }

// Other returns the opposite status.
func (a Availability) Other() Availability {
	if a == DoNotDisturb {
		return Free
	}
	return DoNotDisturb
}

// ParseAvailability accepts the wire codes "free" and "dnd".
func ParseAvailability(code string) (Availability, error) {
	switch code {
	case "free":
		return Free, nil
	case "dnd":
		return DoNotDisturb, nil
	default:
		return Free, fmt.Errorf("unknown status %q", code)
	}
}

// Snapshot is a copy of the store taken under its lock.  Two snapshots
// taken by different readers are not guaranteed to be the same pair.
type Snapshot struct {
	Availability Availability
	Requests     uint32
}

// ChangeHandler is notified after the status store has been mutated, once
// per request and in counter order.  The store lock is not held while
// handlers run, so they may perform I/O.  If
// an error is returned the store logs it and continues.
type ChangeHandler interface {
	Name() string
	Changed(s Snapshot) error
}

// Status owns the availability and the request counter.  It is shared by
// reference between the HTTP handlers, the button watcher and the display
// renderer.
type Status struct {
	mu       sync.RWMutex
	current  Availability
	requests uint32

	notifyMu     sync.Mutex
	handlers     []ChangeHandler
	lastNotified uint32
	pending      map[uint32]Snapshot
	onError      func(h ChangeHandler, err error)
}

// NewStatus returns a store at Free with a zero counter.
func NewStatus() *Status {
	return &Status{}
}

// OnChange registers a handler.  Handlers should be registered before the
// store is shared with other goroutines.
func (s *Status) OnChange(h ChangeHandler) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// OnHandlerError sets the callback used to report handler failures.
func (s *Status) OnHandlerError(fn func(h ChangeHandler, err error)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onError = fn
}

// Read returns the current availability and counter.
func (s *Status) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Availability: s.current, Requests: s.requests}
}

// Toggle flips the availability and counts the request.
func (s *Status) Toggle() Snapshot {
	s.mu.Lock()
	s.current = s.current.Other()
	s.requests++
	snap := Snapshot{Availability: s.current, Requests: s.requests}
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

// Set stores the given availability and counts the request, even when the
// status does not change.
func (s *Status) Set(a Availability) Snapshot {
	s.mu.Lock()
	s.current = a
	s.requests++
	snap := Snapshot{Availability: s.current, Requests: s.requests}
	s.mu.Unlock()

	s.notify(snap)
	return snap
}

// notify delivers every snapshot to every handler in counter order.  A
// snapshot that arrives ahead of its predecessor is parked and delivered by
// whichever caller fills the gap, so Toggle may return before its own
// snapshot has reached the handlers.
func (s *Status) notify(snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if s.pending == nil {
		s.pending = make(map[uint32]Snapshot)
	}
	s.pending[snap.Requests] = snap
	for {
		next, ok := s.pending[s.lastNotified+1]
		if !ok {
			return
		}
		delete(s.pending, next.Requests)
		s.lastNotified = next.Requests
		for _, h := range s.handlers {
			if err := h.Changed(next); err != nil && s.onError != nil {
				s.onError(h, err)
			}
		}
	}
}
