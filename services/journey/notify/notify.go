// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify carries user-facing notifications out of the journey engine.
//
// The engine only ever calls Sink.Notify. Delivery is best-effort: a sink that
// fails or panics never changes engine state.
package notify

import (
	"time"
)

// Kind is the visual category of a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultDuration is how long a notification stays visible when the sender
// does not choose.
const DefaultDuration = 5 * time.Second

// Notification is one message for the user.
type Notification struct {
	ID         string `json:"id"`
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	DurationMs int64  `json:"durationMs"`
	// Timestamp is Unix milliseconds UTC.
	Timestamp int64 `json:"timestamp"`
}

// Sink receives notifications.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notification) { f(n) }

// Nop discards every notification.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(Notification) {}
