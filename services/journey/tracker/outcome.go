// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tracker

import "errors"

// Outcome reports what a mutation did to the journey.
type Outcome int

const (
	// Unchanged means the request was valid but the journey already
	// reflected it.
	Unchanged Outcome = iota
	// Applied means the journey changed and a save was attempted.
	Applied
	// NotFound means the id named no known gap, tool or step. The journey
	// is untouched.
	NotFound
)

// String returns the lowercase outcome name used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	// ErrNilRepository is returned by New without a repository.
	ErrNilRepository = errors.New("journey repository must not be nil")

	// ErrInvalidResults wraps assessment payload validation failures.
	ErrInvalidResults = errors.New("invalid assessment results")

	// ErrPersistence wraps store failures after an in-memory change was
	// committed. The change is kept in memory.
	ErrPersistence = errors.New("journey not saved")
)
