// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxImportBytes bounds the size of an import document (4MB).
const MaxImportBytes = 4 * 1024 * 1024

var envelopeValidate = validator.New()

// Envelope is the serialized export format.
type Envelope struct {
	Version    string        `json:"version" validate:"required"`
	ExportedAt int64         `json:"exportedAt" validate:"gt=0"`
	Journey    *JourneyState `json:"journey" validate:"required"`
}

// ImportErrorKind classifies why an import was rejected.
type ImportErrorKind string

const (
	ImportMalformed       ImportErrorKind = "malformed"
	ImportInvalidEnvelope ImportErrorKind = "invalid_envelope"
	ImportUnrecoverable   ImportErrorKind = "unrecoverable"
)

// ImportError is the structured rejection returned by Import. A rejected
// import never yields a partially applied snapshot.
type ImportError struct {
	Kind       ImportErrorKind
	Message    string
	Validation *ValidationResult
	Err        error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("import %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("import %s: %s", e.Kind, e.Message)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ImportResult is the outcome of a successful import.
type ImportResult struct {
	// State is the imported snapshot, repaired when Recovered is true.
	State JourneyState
	// Validation is the result for the snapshot as it arrived.
	Validation ValidationResult
	// Recovered reports whether Recover was applied.
	Recovered bool
}

// Export wraps a snapshot in a versioned envelope.
//
// Outputs:
//
//	[]byte - Indented JSON of {version, exportedAt, journey}.
//	error - Non-nil only if encoding fails.
func Export(s JourneyState, nowMillis int64) ([]byte, error) {
	snap := s.Clone()
	env := Envelope{
		Version:    SchemaVersion,
		ExportedAt: nowMillis,
		Journey:    &snap,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export envelope: %w", err)
	}
	return data, nil
}

// Import parses, validates and if necessary repairs an exported envelope.
//
// Description:
//
//	The envelope must decode as JSON and carry a version, a positive export
//	timestamp and a journey. The journey is then validated; a snapshot with
//	any error or warning is passed through Recover when recovery is allowed,
//	otherwise the import is rejected. A clean snapshot is returned unchanged,
//	so Import(Export(s)) reproduces s.
//
// Inputs:
//
//	data - The envelope bytes.
//	opts - Validation reference time and rules. NowMillis also stamps recovery.
//
// Outputs:
//
//	ImportResult - The accepted snapshot.
//	error - *ImportError on rejection.
func Import(data []byte, opts ValidateOptions) (ImportResult, error) {
	opts = opts.withDefaults()

	if len(data) > MaxImportBytes {
		return ImportResult{}, &ImportError{
			Kind:    ImportMalformed,
			Message: fmt.Sprintf("document exceeds %d bytes", MaxImportBytes),
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ImportResult{}, &ImportError{Kind: ImportMalformed, Message: "invalid JSON", Err: err}
	}

	if err := envelopeValidate.Struct(&env); err != nil {
		msg := "envelope failed validation"
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg = fmt.Sprintf("envelope field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return ImportResult{}, &ImportError{Kind: ImportInvalidEnvelope, Message: msg, Err: err}
	}

	snap := *env.Journey
	v := Validate(snap, opts)
	if !v.CanRecover {
		return ImportResult{}, &ImportError{
			Kind:       ImportUnrecoverable,
			Message:    fmt.Sprintf("%d blocking error(s)", len(v.Errors)),
			Validation: &v,
		}
	}
	if v.Clean() {
		return ImportResult{State: snap.Clone(), Validation: v}, nil
	}
	return ImportResult{State: Recover(snap, opts.NowMillis), Validation: v, Recovered: true}, nil
}
