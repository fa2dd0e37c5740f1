// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tracker owns the live journey and applies every state transition.
//
// A Tracker is an explicit value: construct one per journey with New and pass
// it to whatever needs it. Every mutation clones the current snapshot, edits
// the clone, commits it and then saves it through the repository.
// Notifications, analytics and metrics are dispatched after the commit,
// outside the lock, so subscribers may call back into the tracker.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ComplianceJourney/services/journey/analytics"
	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/notify"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
	"github.com/AleutianAI/ComplianceJourney/services/journey/storage"
	"github.com/AleutianAI/ComplianceJourney/services/journey/telemetry"
)

var tracer = otel.Tracer("journey.tracker")

// Tracker is the journey state machine.
//
// Thread Safety: All methods are safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	state state.JourneyState

	repo      *storage.JourneyRepository
	catalog   *catalog.Catalog
	engine    *gaps.Engine
	settings  Settings
	sink      notify.Sink
	analytics *analytics.Recorder
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New loads the persisted journey and returns a tracker for it.
//
// Description:
//
//	A missing journey starts fresh. A loaded journey is validated; any issue
//	(or any key that failed to decode) triggers recovery, and the repaired
//	snapshot is saved back. A journey with unrecoverable errors is replaced
//	by a fresh one and a warning notification is emitted.
//
// Inputs:
//
//	ctx - Context for the load. Must not be nil.
//	repo - Where the journey lives. Must not be nil.
//	opts - Optional catalog, settings, notifier, analytics, metrics, logger, clock.
//
// Outputs:
//
//	*Tracker - Ready to use.
//	error - Non-nil on store read failure or invalid settings.
func New(ctx context.Context, repo *storage.JourneyRepository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	t := &Tracker{
		repo:     repo,
		settings: DefaultSettings(),
		sink:     notify.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("load gap catalog: %w", err)
		}
		t.catalog = cat
	}
	engine, err := gaps.NewEngine(t.catalog, t.settings.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("create gap engine: %w", err)
	}
	t.engine = engine

	ctx, span := tracer.Start(ctx, "tracker.load")
	defer span.End()

	res, err := repo.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, fmt.Errorf("load journey: %w", err)
	}

	now := t.nowMillis()
	if !res.Found {
		t.state = state.New(now)
		t.logger.Info("starting new journey", slog.String("prefix", repo.Prefix()))
		return t, nil
	}

	v := state.Validate(res.State, t.validateOptions(now))
	span.SetAttributes(
		attribute.Int("journey.validation_errors", len(v.Errors)),
		attribute.Int("journey.validation_warnings", len(v.Warnings)),
		attribute.Int("journey.malformed_keys", len(res.Malformed)),
	)
	switch {
	case !v.CanRecover:
		t.logger.Warn("persisted journey is unrecoverable, starting fresh",
			slog.Int("errors", len(v.Errors)),
		)
		t.state = state.New(now)
		t.notify(notify.KindWarning, "Journey reset",
			"Saved journey data could not be repaired. A new journey was started.")
	case v.Clean() && len(res.Malformed) == 0:
		t.state = res.State
	default:
		recovered := state.Recover(res.State, now)
		if recovered.StartedAt == 0 {
			recovered.StartedAt = now
		}
		t.state = recovered
		t.logger.Info("recovered persisted journey",
			slog.Int("errors", len(v.Errors)),
			slog.Int("warnings", len(v.Warnings)),
			slog.Any("malformed_keys", res.Malformed),
		)
		if err := repo.Save(ctx, recovered); err != nil {
			t.logger.Warn("failed to save recovered journey", slog.String("error", err.Error()))
		}
	}
	return t, nil
}

// =============================================================================
// Mutations
// =============================================================================

// SetAssessmentResults replaces the gap list from a finished assessment.
//
// Description:
//
//	Gaps are regenerated from the section scores. With preserveProgress the
//	prior status of each domain's gap carries over and completed ids are kept
//	for gaps that are still present and completed; otherwise every gap starts
//	over and the completed ids are cleared. The "assess" step is completed,
//	which advances the journey when it is on step 0.
//
// Outputs:
//
//	Outcome - Applied, or Unchanged when the results are invalid.
//	error - Wraps ErrInvalidResults or ErrPersistence.
func (t *Tracker) SetAssessmentResults(ctx context.Context, results gaps.AssessmentResults, preserveProgress bool) (Outcome, error) {
	if err := results.Validate(); err != nil {
		return Unchanged, fmt.Errorf("%w: %w", ErrInvalidResults, err)
	}
	return t.mutate(ctx, "set_assessment_results", func(s *state.JourneyState, fx *effects) Outcome {
		generated := t.engine.GenerateGapsFromAssessment(results.SectionScores)
		if preserveProgress {
			generated = gaps.CarryForwardStatus(generated, s.IdentifiedGaps)
			kept := make([]string, 0, len(s.CompletedGapIDs))
			for _, g := range generated {
				if g.Status == gaps.StatusCompleted && s.HasCompletedGap(g.ID) {
					kept = append(kept, g.ID)
				}
			}
			s.CompletedGapIDs = kept
		} else {
			s.CompletedGapIDs = []string{}
		}
		s.IdentifiedGaps = generated

		t.completeStepLocked(s, fx, state.StepAssess)
		t.checkProgressionLocked(s, fx)
		fx.note(notify.KindInfo, "Assessment processed",
			fmt.Sprintf("%d compliance gap(s) identified.", len(generated)))
		return Applied
	})
}

// CompleteStep marks a journey step done.
//
// Description:
//
//	Completing a step twice does nothing. The current index advances only
//	when key is the current step and a later step exists. Completing
//	"assess" also sets the assessment flag.
//
// Outputs:
//
//	Outcome - NotFound for an unknown key.
func (t *Tracker) CompleteStep(ctx context.Context, key state.StepKey) (Outcome, error) {
	if !key.Valid() {
		return t.reject(ctx, "complete_step", key)
	}
	return t.mutate(ctx, "complete_step", func(s *state.JourneyState, fx *effects) Outcome {
		if !t.completeStepLocked(s, fx, key) {
			return Unchanged
		}
		t.checkProgressionLocked(s, fx)
		return Applied
	})
}

// MarkGapStarted moves a not-started gap to in progress.
func (t *Tracker) MarkGapStarted(ctx context.Context, gapID string) (Outcome, error) {
	return t.mutate(ctx, "mark_gap_started", func(s *state.JourneyState, fx *effects) Outcome {
		i := s.GapIndex(gapID)
		if i < 0 {
			return NotFound
		}
		if s.IdentifiedGaps[i].Status != gaps.StatusNotStarted {
			return Unchanged
		}
		s.IdentifiedGaps[i].Status = gaps.StatusInProgress
		return Applied
	})
}

// MarkGapCompleted closes a gap. Its id is recorded once.
func (t *Tracker) MarkGapCompleted(ctx context.Context, gapID string) (Outcome, error) {
	return t.mutate(ctx, "mark_gap_completed", func(s *state.JourneyState, fx *effects) Outcome {
		i := s.GapIndex(gapID)
		if i < 0 {
			return NotFound
		}
		if !t.closeGapLocked(s, fx, i) {
			return Unchanged
		}
		t.checkProgressionLocked(s, fx)
		return Applied
	})
}

// MarkToolStarted records the first start of a remediation tool.
//
// Description:
//
//	One usage record is kept per tool; later starts do not move its
//	timestamp. Not-started gaps in any domain the tool serves move to in
//	progress.
//
// Outputs:
//
//	Outcome - NotFound when the tool is not in the catalog.
func (t *Tracker) MarkToolStarted(ctx context.Context, toolID string) (Outcome, error) {
	domains := t.catalog.DomainsForTool(toolID)
	if len(domains) == 0 {
		return t.reject(ctx, "mark_tool_started", toolID)
	}
	return t.mutate(ctx, "mark_tool_started", func(s *state.JourneyState, fx *effects) Outcome {
		changed := false
		if s.ToolUsageIndex(toolID) < 0 {
			s.ToolUsage = append(s.ToolUsage, state.ToolUsage{
				ToolID:    toolID,
				StartedAt: t.nowMillis(),
				Domain:    string(domains[0]),
			})
			fx.toolsStarted = append(fx.toolsStarted, toolStart{id: toolID, domains: domains})
			changed = true
		}
		for _, d := range domains {
			i := s.GapIndex(d.GapID())
			if i >= 0 && s.IdentifiedGaps[i].Status == gaps.StatusNotStarted {
				s.IdentifiedGaps[i].Status = gaps.StatusInProgress
				changed = true
			}
		}
		if !changed {
			return Unchanged
		}
		return Applied
	})
}

// MarkToolCompleted records a finished remediation tool and re-evaluates
// the gaps it serves.
//
// Description:
//
//	The tool joins the completed set once and its usage record is stamped
//	once, created if the tool was never started. Each gap recommending the
//	tool is measured against its own tool list: at 100% it is closed, at the
//	in-progress threshold a not-started gap moves to in progress. The
//	domain-wide check then applies the same in-progress rule using every
//	catalog tool of the domain. The first completed tool completes
//	"discover", and a completed-gap ratio at the act threshold completes
//	"act".
//
// Outputs:
//
//	Outcome - NotFound when the tool is not in the catalog; Unchanged when
//	          nothing moved.
func (t *Tracker) MarkToolCompleted(ctx context.Context, toolID string) (Outcome, error) {
	domains := t.catalog.DomainsForTool(toolID)
	if len(domains) == 0 {
		return t.reject(ctx, "mark_tool_completed", toolID)
	}
	return t.mutate(ctx, "mark_tool_completed", func(s *state.JourneyState, fx *effects) Outcome {
		now := t.nowMillis()
		changed := false

		if !s.HasCompletedTool(toolID) {
			s.CompletedToolIDs = append(s.CompletedToolIDs, toolID)
			fx.toolsCompleted = append(fx.toolsCompleted, toolID)
			changed = true
		}
		switch i := s.ToolUsageIndex(toolID); {
		case i < 0:
			at := now
			s.ToolUsage = append(s.ToolUsage, state.ToolUsage{
				ToolID:      toolID,
				StartedAt:   now,
				CompletedAt: &at,
				Domain:      string(domains[0]),
			})
			changed = true
		case s.ToolUsage[i].CompletedAt == nil:
			at := now
			u := &s.ToolUsage[i]
			u.CompletedAt = &at
			if d, ok := catalog.ParseDomain(u.Domain); ok && u.StartedAt > 0 {
				fx.domainTime = append(fx.domainTime, domainSpan{
					domain: d,
					d:      time.Duration(now-u.StartedAt) * time.Millisecond,
				})
			}
			changed = true
		}

		inProgressAt := t.engine.Thresholds().InProgressPercent
		for i := range s.IdentifiedGaps {
			g := s.IdentifiedGaps[i]
			if !g.HasTool(toolID) {
				continue
			}
			pct := gaps.ToolListCompletion(g.RecommendedTools, s.CompletedToolIDs)
			switch {
			case pct == 100:
				if t.closeGapLocked(s, fx, i) {
					changed = true
				}
			case pct >= inProgressAt && g.Status == gaps.StatusNotStarted:
				s.IdentifiedGaps[i].Status = gaps.StatusInProgress
				changed = true
			}
		}

		for _, d := range domains {
			i := s.GapIndex(d.GapID())
			if i < 0 || s.IdentifiedGaps[i].Status != gaps.StatusNotStarted {
				continue
			}
			if t.engine.ShouldMarkGapCompleted(d, s.CompletedToolIDs) {
				s.IdentifiedGaps[i].Status = gaps.StatusInProgress
				changed = true
			}
		}

		if len(s.CompletedToolIDs) > 0 && t.completeStepLocked(s, fx, state.StepDiscover) {
			changed = true
		}
		if t.checkProgressionLocked(s, fx) {
			changed = true
		}
		if !changed {
			return Unchanged
		}
		return Applied
	})
}

// ResetJourney discards the journey and its persisted keys, including
// analytics, and starts a fresh journey on step 0.
//
// Outputs:
//
//	error - Wraps ErrPersistence when any key could not be removed. The
//	        in-memory journey is reset regardless.
func (t *Tracker) ResetJourney(ctx context.Context) error {
	start := t.now()
	ctx, span := tracer.Start(ctx, "tracker.reset_journey")
	defer span.End()

	t.mu.Lock()
	t.state = state.New(t.nowMillis())
	err := t.repo.Clear(ctx)
	t.mu.Unlock()

	if t.analytics != nil {
		t.analytics.Reset()
	}
	if err != nil {
		err = t.persistenceFailed(ctx, span, "reset_journey", err)
	} else {
		t.notify(notify.KindInfo, "Journey reset", "All journey progress was cleared.")
	}
	t.finish(ctx, span, "reset_journey", Applied, err, start)
	return err
}

// Import replaces the journey with an exported envelope.
//
// Description:
//
//	The envelope is validated and repaired when needed (see state.Import).
//	A rejected document leaves the journey untouched and emits an error
//	notification.
//
// Outputs:
//
//	state.ImportResult - The accepted snapshot and its validation report.
//	error - *state.ImportError on rejection, or wraps ErrPersistence when the
//	        imported journey was committed but not saved.
func (t *Tracker) Import(ctx context.Context, data []byte) (state.ImportResult, error) {
	var res state.ImportResult
	_, err := t.mutate(ctx, "import", func(s *state.JourneyState, fx *effects) Outcome {
		imported, err := state.Import(data, t.validateOptions(t.nowMillis()))
		if err != nil {
			fx.importErr = err
			return Unchanged
		}
		res = imported
		*s = imported.State.Clone()
		if imported.Recovered {
			fx.note(notify.KindWarning, "Journey imported with repairs",
				fmt.Sprintf("%d issue(s) were corrected during import.",
					len(imported.Validation.Errors)+len(imported.Validation.Warnings)))
		} else {
			fx.note(notify.KindSuccess, "Journey imported", "Journey progress was restored.")
		}
		return Applied
	})
	return res, err
}

// =============================================================================
// Queries
// =============================================================================

// Snapshot returns a deep copy of the journey.
func (t *Tracker) Snapshot() state.JourneyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// CurrentStep returns the key of the current step.
func (t *Tracker) CurrentStep() state.StepKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.CurrentStep()
}

// Progress returns completed steps over all steps as a rounded percentage.
func (t *Tracker) Progress() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, k := range state.Steps() {
		if t.state.HasCompletedStep(k) {
			n++
		}
	}
	return int(math.Round(float64(n) * 100 / float64(state.StepCount)))
}

// GapProgress summarizes gap closure.
func (t *Tracker) GapProgress() gaps.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gaps.ComputeProgress(t.state.IdentifiedGaps, t.state.CompletedGapIDs)
}

// NextPriorityGap returns the open gap with the best priority.
func (t *Tracker) NextPriorityGap() (gaps.IdentifiedGap, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gaps.NextPriorityGap(t.state.IdentifiedGaps)
}

// GapCompletionPercentage returns how many of the domain's catalog tools are
// completed, as a rounded percentage.
func (t *Tracker) GapCompletionPercentage(domain catalog.Domain) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.CalculateGapCompletionFromTools(domain, t.state.CompletedToolIDs)
}

// Validate checks the live journey against the state invariants.
func (t *Tracker) Validate() state.ValidationResult {
	snap := t.Snapshot()
	return state.Validate(snap, t.validateOptions(t.nowMillis()))
}

// Export returns the journey wrapped in a versioned envelope.
func (t *Tracker) Export(ctx context.Context) ([]byte, error) {
	_, span := tracer.Start(ctx, "tracker.export")
	defer span.End()
	data, err := state.Export(t.Snapshot(), t.nowMillis())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		return nil, fmt.Errorf("export journey: %w", err)
	}
	return data, nil
}

// Catalog returns the gap catalog in use.
func (t *Tracker) Catalog() *catalog.Catalog { return t.catalog }

// =============================================================================
// Internals
// =============================================================================

type toolStart struct {
	id      string
	domains []catalog.Domain
}

// domainSpan is time spent on a tool, credited to its primary domain.
type domainSpan struct {
	domain catalog.Domain
	d      time.Duration
}

// effects collects side effects of a mutation for dispatch after commit.
type effects struct {
	notes          []notify.Notification
	stepsCompleted []state.StepKey
	stepEntered    state.StepKey
	toolsStarted   []toolStart
	toolsCompleted []string
	gapsClosed     []catalog.Domain
	domainTime     []domainSpan
	importErr      error
}

func (fx *effects) note(kind notify.Kind, title, message string) {
	fx.notes = append(fx.notes, notify.Notification{Kind: kind, Title: title, Message: message})
}

// mutate runs fn against a clone of the journey and commits the clone when
// fn reports Applied.
func (t *Tracker) mutate(ctx context.Context, op string, fn func(s *state.JourneyState, fx *effects) Outcome) (Outcome, error) {
	start := t.now()
	ctx, span := tracer.Start(ctx, "tracker."+op)
	defer span.End()

	fx := &effects{}
	t.mu.Lock()
	next := t.state.Clone()
	out := fn(&next, fx)
	if out != Applied {
		t.mu.Unlock()
		var err error
		if fx.importErr != nil {
			err = fx.importErr
			t.logger.Warn("journey import rejected", slog.String("error", err.Error()))
			t.notify(notify.KindError, "Import failed", err.Error())
		}
		t.finish(ctx, span, op, out, err, start)
		return out, err
	}
	next.LastUpdatedAt = t.nowMillis()
	t.state = next
	saveErr := t.repo.Save(ctx, next)
	t.mu.Unlock()

	t.dispatch(ctx, fx)

	var err error
	if saveErr != nil {
		err = t.persistenceFailed(ctx, span, op, saveErr)
	}
	t.finish(ctx, span, op, out, err, start)
	return out, err
}

// reject finishes an operation whose id is unknown.
func (t *Tracker) reject(ctx context.Context, op string, id any) (Outcome, error) {
	start := t.now()
	ctx, span := tracer.Start(ctx, "tracker."+op)
	defer span.End()
	t.logger.Debug("ignoring unknown id",
		slog.String("operation", op),
		slog.Any("id", id),
	)
	t.finish(ctx, span, op, NotFound, nil, start)
	return NotFound, nil
}

func (t *Tracker) finish(ctx context.Context, span trace.Span, op string, out Outcome, err error, start time.Time) {
	span.SetAttributes(attribute.String("journey.outcome", out.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
	}
	t.metrics.RecordOperation(ctx, op, out.String(), t.now().Sub(start))
}

func (t *Tracker) persistenceFailed(ctx context.Context, span trace.Span, op string, cause error) error {
	t.metrics.RecordPersistenceFailure(ctx, op)
	t.logger.Error("failed to persist journey",
		slog.String("operation", op),
		slog.String("error", cause.Error()),
	)
	t.notify(notify.KindError, "Progress not saved",
		"Your latest change is kept for this session but could not be saved.")
	return fmt.Errorf("%w: %w", ErrPersistence, cause)
}

// dispatch delivers collected side effects. Analytics failures are logged
// and never fail the mutation.
func (t *Tracker) dispatch(ctx context.Context, fx *effects) {
	for _, k := range fx.stepsCompleted {
		t.metrics.RecordStepCompleted(ctx, string(k))
		t.logger.Info("journey step completed", slog.String("step", string(k)))
	}
	if t.analytics != nil {
		t.track("step_changed", func() error {
			if fx.stepEntered == "" {
				return nil
			}
			return t.analytics.StepChanged(ctx, fx.stepEntered)
		})
		for _, ts := range fx.toolsStarted {
			t.track("tool_started", func() error { return t.analytics.ToolStarted(ctx, ts.id, ts.domains) })
		}
		for _, id := range fx.toolsCompleted {
			t.track("tool_completed", func() error { return t.analytics.ToolCompleted(ctx, id) })
		}
		for _, d := range fx.gapsClosed {
			t.track("gap_closed", func() error { return t.analytics.GapClosed(ctx, d) })
		}
		for _, span := range fx.domainTime {
			t.track("domain_time", func() error { return t.analytics.DomainTime(ctx, span.domain, span.d) })
		}
	}
	for _, n := range fx.notes {
		t.emit(n)
	}
}

func (t *Tracker) track(event string, fn func() error) {
	if err := fn(); err != nil {
		t.logger.Warn("analytics update failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (t *Tracker) notify(kind notify.Kind, title, message string) {
	t.emit(notify.Notification{Kind: kind, Title: title, Message: message})
}

// emit hands n to the sink. A panicking sink is logged and ignored.
func (t *Tracker) emit(n notify.Notification) {
	if n.Timestamp == 0 {
		n.Timestamp = t.nowMillis()
	}
	if n.DurationMs == 0 {
		n.DurationMs = notify.DefaultDuration.Milliseconds()
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("notification sink panicked",
				slog.String("title", n.Title),
				slog.String("kind", string(n.Kind)),
				slog.Any("panic", r),
			)
		}
	}()
	t.sink.Notify(n)
}

// completeStepLocked records key as completed and advances the index when
// key is the current step. A step already completed only repairs the
// assessment flag; the index never moves on a repeat. It reports whether
// anything changed.
func (t *Tracker) completeStepLocked(s *state.JourneyState, fx *effects, key state.StepKey) bool {
	changed := false
	if key == state.StepAssess && !s.HasCompletedAssessment {
		s.HasCompletedAssessment = true
		changed = true
	}
	if s.HasCompletedStep(key) {
		return changed
	}
	s.CompletedSteps = append(s.CompletedSteps, key)
	fx.stepsCompleted = append(fx.stepsCompleted, key)
	changed = true
	if key.Index() == s.CurrentStepIndex && s.CurrentStepIndex < state.MaxStepIndex {
		s.CurrentStepIndex++
		fx.stepEntered = s.CurrentStep()
		changed = true
	}
	return changed
}

// closeGapLocked marks gap i completed and records its id once. The gap
// closed effects fire only on the status transition.
func (t *Tracker) closeGapLocked(s *state.JourneyState, fx *effects, i int) bool {
	g := &s.IdentifiedGaps[i]
	changed := false
	if !s.HasCompletedGap(g.ID) {
		s.CompletedGapIDs = append(s.CompletedGapIDs, g.ID)
		changed = true
	}
	if g.Status != gaps.StatusCompleted {
		g.Status = gaps.StatusCompleted
		fx.gapsClosed = append(fx.gapsClosed, g.Domain)
		fx.note(notify.KindSuccess, "Gap closed",
			fmt.Sprintf("%s compliance gap is complete.", g.Domain.Title()))
		changed = true
	}
	return changed
}

// checkProgressionLocked applies the gap-ratio driven step rules: "act" at
// the act threshold, and "maintain" once the whole journey qualifies.
func (t *Tracker) checkProgressionLocked(s *state.JourneyState, fx *effects) bool {
	changed := false
	ratio := s.GapCompletionRatio()
	if len(s.IdentifiedGaps) > 0 && ratio >= t.settings.ActThreshold {
		if t.completeStepLocked(s, fx, state.StepAct) {
			changed = true
		}
	}
	if s.HasCompletedStep(state.StepMaintain) {
		return changed
	}
	if s.HasCompletedAssessment &&
		len(s.IdentifiedGaps) > 0 &&
		ratio >= t.settings.MaintainThreshold &&
		len(s.CompletedToolIDs) >= t.settings.MinToolsForMaintain {
		t.completeStepLocked(s, fx, state.StepMaintain)
		fx.note(notify.KindSuccess, "Compliance journey complete",
			"Every step is done. Keep your programme current with regular reviews.")
		changed = true
	}
	return changed
}

func (t *Tracker) validateOptions(nowMillis int64) state.ValidateOptions {
	return state.ValidateOptions{NowMillis: nowMillis, StaleAfter: t.settings.StaleAfter}
}

func (t *Tracker) nowMillis() int64 { return t.now().UnixMilli() }
