// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists journey state in a key-value store.
//
// # Description
//
// Store is the minimal key-value contract the engine needs. Three
// implementations are provided: MemoryStore for tests and throwaway
// sessions, CachedStore which puts an LRU read cache in front of another
// store, and the BadgerDB store in the badger subpackage. JourneyRepository
// maps a JourneyState onto one key per field under a profile prefix.
//
// # Thread Safety
//
// All Store implementations in this package are safe for concurrent use.
package storage

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a store operation receives an empty key.
var ErrEmptyKey = errors.New("storage key must not be empty")

// Store is a byte-oriented key-value store.
type Store interface {
	// Get returns the value for key and whether it exists. A missing key is
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
