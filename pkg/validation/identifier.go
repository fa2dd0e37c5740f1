// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided identifiers before they are used
// to look up journey records or build storage keys.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is wrapped by every identifier validation failure.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// identifierPattern matches tool, gap and step ids.
// Allows: lowercase letters, digits, hyphens; must start with a letter or digit.
// Max length: 64 characters
var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// ValidateIdentifier validates a journey identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Lowercase letters a-z
//   - Digits 0-9
//   - Hyphens (-), not leading
//
// Example:
//
//	if err := validation.ValidateIdentifier(toolID); err != nil {
//	    return fmt.Errorf("tool: %w", err)
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("%w: identifier cannot be empty", ErrInvalidIdentifier)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (must be 1-64 lowercase alphanumeric chars or hyphens)", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateIdentifiers validates several identifiers and names every invalid one.
func ValidateIdentifiers(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, invalid)
	}
	return nil
}

// SanitizeIdentifier trims and lowercases id, then validates it.
//
//	safeID, err := validation.SanitizeIdentifier(args[0])
//	if err != nil {
//	    return err
//	}
func SanitizeIdentifier(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateIdentifier(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
