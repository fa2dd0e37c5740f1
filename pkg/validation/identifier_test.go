// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		// Valid identifiers
		{"tool id", "dpia-wizard", false},
		{"gap id", "gap-protect", false},
		{"step key", "assess", false},
		{"single char", "a", false},
		{"leading digit", "9-lives", false},
		{"max length", strings.Repeat("a", 64), false},

		// Invalid identifiers
		{"empty", "", true},
		{"uppercase", "DPIA-Wizard", true},
		{"key separator", "journey:default:state", true},
		{"path traversal", "../state", true},
		{"newline", "gap-protect\n", true},
		{"spaces", "gap protect", true},
		{"leading hyphen", "-gap", true},
		{"too long", strings.Repeat("a", 65), true},
		{"unicode", "gäp", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("ValidateIdentifier(%q) error %v does not wrap ErrInvalidIdentifier", tt.id, err)
			}
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{"all valid", []string{"data-mapping", "data-inventory"}, false},
		{"one invalid", []string{"data-mapping", "bad!", "dpia-wizard"}, true},
		{"empty slice", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifiers(tt.ids)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifiers(%v) error = %v, wantErr %v", tt.ids, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{"passthrough", "gap-govern", "gap-govern", false},
		{"uppercase normalized", "GAP-Govern", "gap-govern", false},
		{"spaces trimmed", "  act  ", "act", false},
		{"invalid rejected", "gap;drop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("SanitizeIdentifier(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
