// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handler processes a delivered notification.
type Handler func(n Notification)

// subscription is one registered handler and the kinds it accepts.
type subscription struct {
	id      string
	handler Handler
	kinds   []Kind
}

// Emitter fans notifications out to subscribers and keeps a bounded history.
//
// Thread Safety: Emitter is safe for concurrent use.
type Emitter struct {
	mu sync.RWMutex
	// subscriptions is kept in subscription order; handlers run in it.
	subscriptions []*subscription
	history       []Notification
	historySize   int
	now           func() time.Time
	logger        *slog.Logger
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithHistorySize sets how many notifications are retained. Default: 100.
func WithHistorySize(size int) EmitterOption {
	return func(e *Emitter) {
		if size > 0 {
			e.historySize = size
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter(opts ...EmitterOption) *Emitter {
	e := &Emitter{
		historySize:   100,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history = make([]Notification, 0, e.historySize)
	return e
}

// Subscribe registers a handler.
//
// Inputs:
//
//	handler - Called for each matching notification.
//	kinds - Kinds to receive (none = all kinds).
//
// Outputs:
//
//	string - Subscription ID for Unsubscribe.
func (e *Emitter) Subscribe(handler Handler, kinds ...Kind) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &subscription{id: uuid.NewString(), handler: handler, kinds: kinds}
	e.subscriptions = append(e.subscriptions, sub)
	return sub.id
}

// Unsubscribe removes a subscription and reports whether it existed.
func (e *Emitter) Unsubscribe(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, sub := range e.subscriptions {
		if sub.id == id {
			e.subscriptions = append(e.subscriptions[:i:i], e.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// Notify stamps, records and delivers a notification.
//
// Description:
//
//	Missing ID, Timestamp and DurationMs are filled in. The notification is
//	appended to the history (dropping the oldest when full) and then passed
//	to each matching handler outside the lock, in subscription order. A
//	panicking handler is logged and skipped; remaining handlers still run.
//
// Thread Safety: This method is safe for concurrent use.
func (e *Emitter) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp == 0 {
		n.Timestamp = e.now().UnixMilli()
	}
	if n.DurationMs == 0 {
		n.DurationMs = DefaultDuration.Milliseconds()
	}

	e.mu.Lock()
	if len(e.history) >= e.historySize {
		e.history = e.history[1:]
	}
	e.history = append(e.history, n)
	// Unsubscribe never writes into a shared backing array, so this view
	// stays stable after the lock is released.
	subs := e.subscriptions
	e.mu.Unlock()

	for _, sub := range subs {
		if accepts(sub, n.Kind) {
			e.deliver(sub.handler, n)
		}
	}
}

func (e *Emitter) deliver(handler Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("notification handler panicked",
				"notification_id", n.ID,
				"kind", n.Kind,
				"panic", r,
			)
		}
	}()
	handler(n)
}

func accepts(sub *subscription, k Kind) bool {
	if len(sub.kinds) == 0 {
		return true
	}
	for _, want := range sub.kinds {
		if want == k {
			return true
		}
	}
	return false
}

// History returns a copy of retained notifications, oldest first.
func (e *Emitter) History() []Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Notification, len(e.history))
	copy(out, e.history)
	return out
}

// HistoryByKind returns retained notifications of one kind.
func (e *Emitter) HistoryByKind(k Kind) []Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Notification
	for _, n := range e.history {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// ClearHistory drops all retained notifications.
func (e *Emitter) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = make([]Notification, 0, e.historySize)
}

// SubscriptionCount returns the number of active subscriptions.
func (e *Emitter) SubscriptionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscriptions)
}
