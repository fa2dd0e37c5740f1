// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state defines the journey snapshot and its structural checks.
//
// # Description
//
// JourneyState is the full persisted snapshot of a user's compliance journey.
// This package validates snapshots, repairs them on a best-effort basis and
// wraps them in a versioned export envelope. Every function here is pure:
// snapshots passed in are never modified.
//
// # Thread Safety
//
// All functions are safe for concurrent use. JourneyState values are not
// synchronized; share them only as clones.
package state

import (
	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
)

// SchemaVersion is the snapshot schema written by this build.
const SchemaVersion = "2.0.0"

// StepKey names one of the four journey phases.
type StepKey string

const (
	StepAssess   StepKey = "assess"
	StepDiscover StepKey = "discover"
	StepAct      StepKey = "act"
	StepMaintain StepKey = "maintain"
)

var stepOrder = []StepKey{StepAssess, StepDiscover, StepAct, StepMaintain}

// StepCount is the number of journey phases.
const StepCount = 4

// MaxStepIndex is the index of the final phase.
const MaxStepIndex = StepCount - 1

// Steps returns the journey phases in order.
func Steps() []StepKey {
	return append([]StepKey(nil), stepOrder...)
}

// Index returns the position of k in the journey, or -1 if k is unknown.
func (k StepKey) Index() int {
	for i, s := range stepOrder {
		if s == k {
			return i
		}
	}
	return -1
}

// Valid reports whether k is a known step key.
func (k StepKey) Valid() bool { return k.Index() >= 0 }

// Title returns the display name of the step.
func (k StepKey) Title() string {
	switch k {
	case StepAssess:
		return "Assess"
	case StepDiscover:
		return "Discover"
	case StepAct:
		return "Act"
	case StepMaintain:
		return "Maintain"
	}
	return string(k)
}

// StepAt returns the step key at index i.
func StepAt(i int) (StepKey, bool) {
	if i < 0 || i >= len(stepOrder) {
		return "", false
	}
	return stepOrder[i], true
}

// ToolUsage records when a remediation tool was first started and completed.
// Timestamps are Unix milliseconds UTC; CompletedAt is set once, on first
// completion.
type ToolUsage struct {
	ToolID      string `json:"toolId"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt *int64 `json:"completedAt,omitempty"`
	Domain      string `json:"domain,omitempty"`
}

// JourneyState is the full snapshot of a journey.
//
// Invariants (see Validate):
//   - 0 <= CurrentStepIndex <= MaxStepIndex
//   - CompletedSteps holds only known step keys
//   - StepAssess in CompletedSteps implies HasCompletedAssessment
//   - every CompletedGapIDs entry names a gap in IdentifiedGaps
type JourneyState struct {
	CurrentStepIndex       int                  `json:"currentStepIndex"`
	CompletedSteps         []StepKey            `json:"completedSteps"`
	IdentifiedGaps         []gaps.IdentifiedGap `json:"identifiedGaps"`
	CompletedGapIDs        []string             `json:"completedGapIds"`
	CompletedToolIDs       []string             `json:"completedToolIds"`
	ToolUsage              []ToolUsage          `json:"toolUsage,omitempty"`
	HasCompletedAssessment bool                 `json:"hasCompletedAssessment"`
	Version                string               `json:"version"`
	StartedAt              int64                `json:"startedAt"`
	LastUpdatedAt          int64                `json:"lastUpdatedAt"`
}

// New returns a fresh journey started at nowMillis.
func New(nowMillis int64) JourneyState {
	return JourneyState{
		CompletedSteps:   []StepKey{},
		IdentifiedGaps:   []gaps.IdentifiedGap{},
		CompletedGapIDs:  []string{},
		CompletedToolIDs: []string{},
		ToolUsage:        []ToolUsage{},
		Version:          SchemaVersion,
		StartedAt:        nowMillis,
		LastUpdatedAt:    nowMillis,
	}
}

// Clone returns a deep copy of s.
func (s JourneyState) Clone() JourneyState {
	out := s
	out.CompletedSteps = append([]StepKey{}, s.CompletedSteps...)
	out.CompletedGapIDs = append([]string{}, s.CompletedGapIDs...)
	out.CompletedToolIDs = append([]string{}, s.CompletedToolIDs...)
	out.IdentifiedGaps = make([]gaps.IdentifiedGap, len(s.IdentifiedGaps))
	for i, g := range s.IdentifiedGaps {
		out.IdentifiedGaps[i] = g.Clone()
	}
	out.ToolUsage = make([]ToolUsage, len(s.ToolUsage))
	for i, u := range s.ToolUsage {
		if u.CompletedAt != nil {
			at := *u.CompletedAt
			u.CompletedAt = &at
		}
		out.ToolUsage[i] = u
	}
	return out
}

// CurrentStep returns the key of the current step.
func (s JourneyState) CurrentStep() StepKey {
	k, ok := StepAt(s.CurrentStepIndex)
	if !ok {
		return ""
	}
	return k
}

// HasCompletedStep reports whether k is in CompletedSteps.
func (s JourneyState) HasCompletedStep(k StepKey) bool {
	for _, c := range s.CompletedSteps {
		if c == k {
			return true
		}
	}
	return false
}

// HasCompletedGap reports whether id is in CompletedGapIDs.
func (s JourneyState) HasCompletedGap(id string) bool {
	return containsString(s.CompletedGapIDs, id)
}

// HasCompletedTool reports whether id is in CompletedToolIDs.
func (s JourneyState) HasCompletedTool(id string) bool {
	return containsString(s.CompletedToolIDs, id)
}

// GapIndex returns the position of the gap with the given id, or -1.
func (s JourneyState) GapIndex(id string) int {
	for i, g := range s.IdentifiedGaps {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// ToolUsageIndex returns the position of the usage record for toolID, or -1.
func (s JourneyState) ToolUsageIndex(toolID string) int {
	for i, u := range s.ToolUsage {
		if u.ToolID == toolID {
			return i
		}
	}
	return -1
}

// GapCompletionRatio returns completed gaps over total gaps, counting only
// completed ids that reference an existing gap. It is 0 when there are no gaps.
func (s JourneyState) GapCompletionRatio() float64 {
	if len(s.IdentifiedGaps) == 0 {
		return 0
	}
	n := 0
	for _, g := range s.IdentifiedGaps {
		if s.HasCompletedGap(g.ID) {
			n++
		}
	}
	return float64(n) / float64(len(s.IdentifiedGaps))
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
