// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import "strings"

// Domain identifies one of the five fixed compliance areas.
//
// Domain values are used as map keys throughout the journey engine and as the
// suffix of gap identifiers ("gap-<domain>").
type Domain string

const (
	DomainGovern      Domain = "govern"
	DomainIdentify    Domain = "identify"
	DomainControl     Domain = "control"
	DomainCommunicate Domain = "communicate"
	DomainProtect     Domain = "protect"
)

// allDomains is the canonical domain order.
var allDomains = []Domain{
	DomainGovern,
	DomainIdentify,
	DomainControl,
	DomainCommunicate,
	DomainProtect,
}

// Domains returns all domains in canonical order.
//
// The returned slice is a copy; callers may modify it.
func Domains() []Domain {
	out := make([]Domain, len(allDomains))
	copy(out, allDomains)
	return out
}

// ParseDomain maps a section title or key to a Domain.
//
// Description:
//
//	Matching is case-insensitive and ignores surrounding whitespace, so
//	"Govern", " GOVERN " and "govern" all resolve to DomainGovern.
//
// Outputs:
//
//	Domain - The matched domain, or "" when unknown.
//	bool - False if the input does not name a known domain.
func ParseDomain(s string) (Domain, bool) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if d.Valid() {
		return d, true
	}
	return "", false
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainGovern, DomainIdentify, DomainControl, DomainCommunicate, DomainProtect:
		return true
	}
	return false
}

// Title returns the display name of the domain. The catalog may carry a
// longer title; this one is fixed.
func (d Domain) Title() string {
	switch d {
	case DomainGovern:
		return "Govern"
	case DomainIdentify:
		return "Identify"
	case DomainControl:
		return "Control"
	case DomainCommunicate:
		return "Communicate"
	case DomainProtect:
		return "Protect"
	}
	return string(d)
}

// GapID returns the deterministic gap identifier for the domain.
func (d Domain) GapID() string {
	return "gap-" + string(d)
}

// DomainFromGapID extracts the domain from a "gap-<domain>" identifier.
func DomainFromGapID(id string) (Domain, bool) {
	rest, ok := strings.CutPrefix(id, "gap-")
	if !ok {
		return "", false
	}
	d := Domain(rest)
	return d, d.Valid()
}

// Severity is the banding derived from a gap's score.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityModerate, SeverityLow:
		return true
	}
	return false
}
