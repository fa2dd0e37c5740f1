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
	"fmt"
	"time"

	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
)

// DefaultStaleAfter is how long a journey may go without updates before
// validation warns that it is stale.
const DefaultStaleAfter = 90 * 24 * time.Hour

// IssueSeverity classifies a validation issue.
type IssueSeverity string

const (
	// SeverityCritical blocks recovery. No built-in rule emits it; it exists
	// so future rules can mark snapshots that must be rejected outright.
	SeverityCritical IssueSeverity = "critical"
	SeverityError    IssueSeverity = "error"
	SeverityWarning  IssueSeverity = "warning"
)

// IssueCode identifies the rule that produced an issue.
type IssueCode string

const (
	CodeStepOutOfRange     IssueCode = "step_out_of_range"
	CodeAssessmentMismatch IssueCode = "assessment_flag_mismatch"
	CodeUnknownStep        IssueCode = "unknown_step"
	CodeOrphanGapID        IssueCode = "orphan_completed_gap"
	CodeDuplicateGap       IssueCode = "duplicate_gap"
	CodeInvalidGapStatus   IssueCode = "invalid_gap_status"
	CodeStale              IssueCode = "stale_data"
	CodeVersionMismatch    IssueCode = "version_mismatch"
)

// Issue is one finding of Validate.
type Issue struct {
	Code     IssueCode     `json:"code"`
	Field    string        `json:"field"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ValidationResult reports the structural health of a snapshot.
//
// Errors hold blocking issues (severity error or critical) and Warnings hold
// non-blocking ones. Valid is true when there are no errors. CanRecover is
// true when no error is critical.
type ValidationResult struct {
	Valid      bool    `json:"valid"`
	Errors     []Issue `json:"errors"`
	Warnings   []Issue `json:"warnings"`
	CanRecover bool    `json:"canRecover"`
}

// Clean reports whether the snapshot produced neither errors nor warnings.
func (r ValidationResult) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}

// ValidateOptions parameterizes time- and version-dependent rules.
type ValidateOptions struct {
	// NowMillis is the reference time in Unix milliseconds. Zero uses time.Now().
	NowMillis int64
	// StaleAfter is the staleness window. Zero uses DefaultStaleAfter.
	StaleAfter time.Duration
	// ExpectedVersion is the schema version considered current. Empty uses SchemaVersion.
	ExpectedVersion string
}

func (o ValidateOptions) withDefaults() ValidateOptions {
	if o.NowMillis == 0 {
		o.NowMillis = time.Now().UnixMilli()
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.ExpectedVersion == "" {
		o.ExpectedVersion = SchemaVersion
	}
	return o
}

// Validate checks a snapshot against the journey invariants.
//
// Description:
//
//	Errors: step index outside 0..3; "assess" completed without the
//	assessment flag, or the flag set without "assess" completed.
//	Warnings: unknown step keys; completed gap ids with no matching gap;
//	duplicate gap ids; unknown gap statuses; no update within the staleness
//	window; a schema version other than the expected one.
//
// Inputs:
//
//	s - The snapshot to check. Not modified.
//	opts - Reference time, staleness window and expected version.
//
// Outputs:
//
//	ValidationResult - Every issue found. Errors and Warnings are never nil.
func Validate(s JourneyState, opts ValidateOptions) ValidationResult {
	opts = opts.withDefaults()
	res := ValidationResult{Errors: []Issue{}, Warnings: []Issue{}}

	add := func(code IssueCode, sev IssueSeverity, field, format string, args ...any) {
		issue := Issue{Code: code, Field: field, Message: fmt.Sprintf(format, args...), Severity: sev}
		if sev == SeverityWarning {
			res.Warnings = append(res.Warnings, issue)
		} else {
			res.Errors = append(res.Errors, issue)
		}
	}

	if s.CurrentStepIndex < 0 || s.CurrentStepIndex > MaxStepIndex {
		add(CodeStepOutOfRange, SeverityError, "currentStepIndex",
			"current step index %d outside 0..%d", s.CurrentStepIndex, MaxStepIndex)
	}

	assessDone := s.HasCompletedStep(StepAssess)
	if assessDone != s.HasCompletedAssessment {
		add(CodeAssessmentMismatch, SeverityError, "hasCompletedAssessment",
			"assess step completed=%t but assessment flag=%t", assessDone, s.HasCompletedAssessment)
	}

	for _, k := range s.CompletedSteps {
		if !k.Valid() {
			add(CodeUnknownStep, SeverityWarning, "completedSteps", "unknown step key %q", k)
		}
	}

	gapIDs := make(map[string]bool, len(s.IdentifiedGaps))
	for _, g := range s.IdentifiedGaps {
		if gapIDs[g.ID] {
			add(CodeDuplicateGap, SeverityWarning, "identifiedGaps", "duplicate gap id %q", g.ID)
		}
		gapIDs[g.ID] = true
		if !g.Status.Valid() {
			add(CodeInvalidGapStatus, SeverityWarning, "identifiedGaps",
				"gap %q has unknown status %q", g.ID, g.Status)
		}
	}
	for _, id := range s.CompletedGapIDs {
		if !gapIDs[id] {
			add(CodeOrphanGapID, SeverityWarning, "completedGapIds",
				"completed gap %q has no matching identified gap", id)
		}
	}

	if age := time.Duration(opts.NowMillis-s.LastUpdatedAt) * time.Millisecond; age > opts.StaleAfter {
		add(CodeStale, SeverityWarning, "lastUpdatedAt",
			"journey not updated for %d days", int(age.Hours()/24))
	}

	if s.Version != opts.ExpectedVersion {
		add(CodeVersionMismatch, SeverityWarning, "version",
			"snapshot version %q, expected %q", s.Version, opts.ExpectedVersion)
	}

	res.Valid = len(res.Errors) == 0
	res.CanRecover = true
	for _, e := range res.Errors {
		if e.Severity == SeverityCritical {
			res.CanRecover = false
			break
		}
	}
	return res
}

// Recover returns a repaired copy of s.
//
// Description:
//
//	Repairs only by clamping or removing: the step index is clamped into
//	0..3; completed steps are filtered to known keys, de-duplicated and put
//	in journey order; the assessment flag is forced true when "assess" is
//	completed, and "assess" is added when the flag is already set; duplicate
//	gaps keep their first occurrence; unknown gap statuses reset to
//	not_started (or completed when the gap id is listed as completed);
//	orphaned and repeated completed-gap ids are dropped. The version and
//	LastUpdatedAt are stamped fresh. Missing data such as gaps is never
//	invented.
//
//	Recover is idempotent for a fixed nowMillis, and its output passes
//	Validate with no errors or warnings at that same reference time.
//
// Inputs:
//
//	s - The snapshot to repair. Not modified.
//	nowMillis - Timestamp stamped into LastUpdatedAt.
//
// Outputs:
//
//	JourneyState - The repaired snapshot.
func Recover(s JourneyState, nowMillis int64) JourneyState {
	out := s.Clone()

	switch {
	case out.CurrentStepIndex < 0:
		out.CurrentStepIndex = 0
	case out.CurrentStepIndex > MaxStepIndex:
		out.CurrentStepIndex = MaxStepIndex
	}

	present := make(map[StepKey]bool, len(out.CompletedSteps))
	for _, k := range out.CompletedSteps {
		if k.Valid() {
			present[k] = true
		}
	}
	if out.HasCompletedAssessment {
		present[StepAssess] = true
	}
	out.CompletedSteps = make([]StepKey, 0, len(present))
	for _, k := range stepOrder {
		if present[k] {
			out.CompletedSteps = append(out.CompletedSteps, k)
		}
	}
	if present[StepAssess] {
		out.HasCompletedAssessment = true
	}

	completed := make(map[string]bool, len(out.CompletedGapIDs))
	for _, id := range out.CompletedGapIDs {
		completed[id] = true
	}
	seenGap := make(map[string]bool, len(out.IdentifiedGaps))
	kept := make([]gaps.IdentifiedGap, 0, len(out.IdentifiedGaps))
	for _, g := range out.IdentifiedGaps {
		if seenGap[g.ID] {
			continue
		}
		seenGap[g.ID] = true
		if !g.Status.Valid() {
			g.Status = gaps.StatusNotStarted
			if completed[g.ID] {
				g.Status = gaps.StatusCompleted
			}
		}
		kept = append(kept, g)
	}
	out.IdentifiedGaps = kept

	ids := make([]string, 0, len(out.CompletedGapIDs))
	emitted := make(map[string]bool, len(out.CompletedGapIDs))
	for _, id := range out.CompletedGapIDs {
		if seenGap[id] && !emitted[id] {
			emitted[id] = true
			ids = append(ids, id)
		}
	}
	out.CompletedGapIDs = ids

	out.Version = SchemaVersion
	out.LastUpdatedAt = nowMillis
	return out
}
