// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gaps derives prioritized compliance gaps from assessment scores.
//
// # Description
//
// The engine turns section scores into IdentifiedGap values, bands them by
// severity, ranks them by ascending score and computes tool-based completion
// percentages. Every function is pure: inputs are never modified and outputs
// share no memory with them.
//
// # Thread Safety
//
// Engine is immutable after construction and safe for concurrent use.
package gaps

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
)

// Thresholds controls severity banding and the in-progress heuristic.
type Thresholds struct {
	// GapCeiling is the score at or above which no gap is generated. Default: 80.
	GapCeiling int
	// HighCeiling is the exclusive upper bound of the "high" band. Default: 70.
	HighCeiling int
	// CriticalCeiling is the exclusive upper bound of the "critical" band. Default: 60.
	CriticalCeiling int
	// ModerateCeiling is the exclusive upper bound of the "moderate" band.
	// Scores in [ModerateCeiling, GapCeiling) are "low". Default: 80.
	ModerateCeiling int
	// InProgressPercent is the tool completion percentage at which a gap is
	// considered underway. Default: 50.
	InProgressPercent int
}

// DefaultThresholds returns the standard banding: <60 critical, <70 high,
// <80 moderate, no gap at 80 or above.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GapCeiling:        80,
		HighCeiling:       70,
		CriticalCeiling:   60,
		ModerateCeiling:   80,
		InProgressPercent: 50,
	}
}

// ErrInvalidThresholds is returned when the bands are not ascending.
var ErrInvalidThresholds = errors.New("invalid gap thresholds")

// Validate checks that the bands are ordered and within 0..100.
func (t Thresholds) Validate() error {
	if !(0 < t.CriticalCeiling && t.CriticalCeiling <= t.HighCeiling &&
		t.HighCeiling <= t.ModerateCeiling && t.GapCeiling <= 100) {
		return fmt.Errorf("%w: critical=%d high=%d moderate=%d gap=%d",
			ErrInvalidThresholds, t.CriticalCeiling, t.HighCeiling, t.ModerateCeiling, t.GapCeiling)
	}
	if t.InProgressPercent < 0 || t.InProgressPercent > 100 {
		return fmt.Errorf("%w: in_progress_percent=%d", ErrInvalidThresholds, t.InProgressPercent)
	}
	return nil
}

// Engine derives gaps and completion figures against a catalog.
type Engine struct {
	catalog    *catalog.Catalog
	thresholds Thresholds
}

// NewEngine creates a gap engine.
//
// Inputs:
//
//	cat - The reference catalog. Must not be nil.
//	thresholds - Severity bands. Must pass Validate.
//
// Outputs:
//
//	*Engine - Ready-to-use engine.
//	error - Non-nil if cat is nil or the thresholds are invalid.
func NewEngine(cat *catalog.Catalog, thresholds Thresholds) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("catalog must not be nil")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Engine{catalog: cat, thresholds: thresholds}, nil
}

// Catalog returns the engine's reference catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Thresholds returns the engine's severity bands.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Severity bands a score.
func (e *Engine) Severity(score float64) catalog.Severity {
	switch {
	case score < float64(e.thresholds.CriticalCeiling):
		return catalog.SeverityCritical
	case score < float64(e.thresholds.HighCeiling):
		return catalog.SeverityHigh
	case score < float64(e.thresholds.ModerateCeiling):
		return catalog.SeverityModerate
	default:
		return catalog.SeverityLow
	}
}

// GenerateGapsFromAssessment derives the gap list for a set of section scores.
//
// Description:
//
//	Every section scoring below the gap ceiling whose title names a known
//	domain produces one gap. Unknown titles are skipped, and when a domain
//	appears twice only its first section counts. Gaps are ranked by ascending
//	score with a stable sort, so ties keep encounter order, and receive dense
//	priorities 1..N. New gaps start in StatusNotStarted. Scores are stored
//	floored to whole percentages.
//
// Inputs:
//
//	scores - Assessment section scores in encounter order.
//
// Outputs:
//
//	[]IdentifiedGap - Gaps sorted by priority. Never nil.
func (e *Engine) GenerateGapsFromAssessment(scores []SectionScore) []IdentifiedGap {
	type candidate struct {
		domain catalog.Domain
		score  float64
	}

	seen := make(map[catalog.Domain]bool, len(scores))
	candidates := make([]candidate, 0, len(scores))
	for _, s := range scores {
		d, ok := catalog.ParseDomain(s.Title)
		if !ok || seen[d] {
			continue
		}
		seen[d] = true
		if s.Percentage >= float64(e.thresholds.GapCeiling) {
			continue
		}
		candidates = append(candidates, candidate{domain: d, score: s.Percentage})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	out := make([]IdentifiedGap, 0, len(candidates))
	for i, c := range candidates {
		info, _ := e.catalog.DomainInfo(c.domain)
		sev := e.Severity(c.score)
		labels := e.catalog.SeverityLabels(sev)
		out = append(out, IdentifiedGap{
			ID:               c.domain.GapID(),
			Domain:           c.domain,
			DomainTitle:      info.Title,
			Score:            clampScore(c.score),
			Severity:         sev,
			Priority:         i + 1,
			Timeline:         labels.Timeline,
			EstimatedEffort:  labels.EstimatedEffort,
			Impact:           labels.Impact,
			RecommendedTools: e.catalog.ToolsForDomain(c.domain),
			Description:      info.Description,
			Status:           StatusNotStarted,
		})
	}
	return out
}

// CalculateGapCompletionFromTools returns the rounded percentage of the
// domain's catalog tools present in completedToolIDs. A domain without tools
// reports 0.
func (e *Engine) CalculateGapCompletionFromTools(domain catalog.Domain, completedToolIDs []string) int {
	return ToolListCompletion(e.catalog.ToolsForDomain(domain), completedToolIDs)
}

// ShouldMarkGapCompleted reports whether the domain-wide tool completion has
// reached the in-progress threshold (50% by default). It is a coarse signal;
// gap closure is decided against the gap's own tool list.
func (e *Engine) ShouldMarkGapCompleted(domain catalog.Domain, completedToolIDs []string) bool {
	return e.CalculateGapCompletionFromTools(domain, completedToolIDs) >= e.thresholds.InProgressPercent
}

// ToolListCompletion returns the rounded percentage of tools present in
// completedToolIDs. An empty tool list reports 0.
func ToolListCompletion(tools, completedToolIDs []string) int {
	if len(tools) == 0 {
		return 0
	}
	done := make(map[string]bool, len(completedToolIDs))
	for _, id := range completedToolIDs {
		done[id] = true
	}
	n := 0
	for _, id := range tools {
		if done[id] {
			n++
		}
	}
	return int(math.Round(float64(n) * 100 / float64(len(tools))))
}

// CarryForwardStatus copies each prior gap's status onto the regenerated gap
// for the same domain. Gaps for domains without a prior gap keep their
// generated status. The input slices are not modified.
func CarryForwardStatus(regenerated, prior []IdentifiedGap) []IdentifiedGap {
	previous := make(map[catalog.Domain]Status, len(prior))
	for _, g := range prior {
		previous[g.Domain] = g.Status
	}
	out := make([]IdentifiedGap, len(regenerated))
	for i, g := range regenerated {
		g = g.Clone()
		if st, ok := previous[g.Domain]; ok && st.Valid() {
			g.Status = st
		}
		out[i] = g
	}
	return out
}

// ComputeProgress summarizes gap closure.
//
// Description:
//
//	A gap counts as completed when its status is completed or its id is in
//	completedGapIDs. The overall percentage is completed over total, rounded;
//	with no gaps it is 0.
func ComputeProgress(gapList []IdentifiedGap, completedGapIDs []string) Progress {
	done := make(map[string]bool, len(completedGapIDs))
	for _, id := range completedGapIDs {
		done[id] = true
	}

	p := Progress{TotalGaps: len(gapList)}
	for _, g := range gapList {
		switch {
		case g.Status == StatusCompleted || done[g.ID]:
			p.CompletedGaps++
		case g.Status == StatusInProgress:
			p.InProgressGaps++
			if g.Severity == catalog.SeverityCritical {
				p.CriticalGapsRemaining++
			}
		default:
			if g.Severity == catalog.SeverityCritical {
				p.CriticalGapsRemaining++
			}
		}
	}
	if p.TotalGaps > 0 {
		p.OverallCompletionPercentage = int(math.Round(float64(p.CompletedGaps) * 100 / float64(p.TotalGaps)))
	}
	if next, ok := NextPriorityGap(gapList); ok {
		p.NextRecommendedGap = &next
	}
	return p
}

// NextPriorityGap returns the open gap with the lowest priority number.
// Ties fall back to list order.
func NextPriorityGap(gapList []IdentifiedGap) (IdentifiedGap, bool) {
	best := -1
	for i, g := range gapList {
		if g.Status == StatusCompleted {
			continue
		}
		if best < 0 || g.Priority < gapList[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return IdentifiedGap{}, false
	}
	return gapList[best].Clone(), true
}

func clampScore(score float64) int {
	s := int(math.Floor(score))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
