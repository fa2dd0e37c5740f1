// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analytics accumulates per-profile journey usage figures.
//
// # Description
//
// A Recorder keeps monotonic totals: time per step, session count and
// duration, gaps closed, tools started and completed, and time per domain.
// Sessions are explicit (StartSession/EndSession); there is no idle
// detection. The totals and the open session are persisted under their own
// keys and, when a Prometheus registerer is supplied, mirrored into
// journey_analytics_* collectors.
//
// # Thread Safety
//
// Recorder is safe for concurrent use.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
	"github.com/AleutianAI/ComplianceJourney/services/journey/storage"
)

// Persister stores JSON documents under key suffixes.
// *storage.JourneyRepository satisfies it.
type Persister interface {
	GetJSON(ctx context.Context, suffix string, v any) (bool, error)
	PutJSON(ctx context.Context, suffix string, v any) error
	Delete(ctx context.Context, suffix string) error
}

// ErrNilPersister is returned by New for a nil persister.
var ErrNilPersister = errors.New("analytics persister must not be nil")

// Record is the persisted set of totals. Durations are milliseconds.
type Record struct {
	TotalTimeMs        int64                    `json:"totalTimeMs"`
	TimePerStepMs      map[state.StepKey]int64  `json:"timePerStepMs"`
	SessionCount       int                      `json:"sessionCount"`
	TotalSessionMs     int64                    `json:"totalSessionMs"`
	GapsClosedByDomain map[catalog.Domain]int   `json:"gapsClosedByDomain"`
	ToolsUsedByDomain  map[catalog.Domain]int   `json:"toolsUsedByDomain"`
	TimeByDomainMs     map[catalog.Domain]int64 `json:"timeByDomainMs"`
	ToolAttempts       int                      `json:"toolAttempts"`
	ToolCompletions    int                      `json:"toolCompletions"`
	UpdatedAt          int64                    `json:"updatedAt"`
}

func newRecord() Record {
	return Record{
		TimePerStepMs:      map[state.StepKey]int64{},
		GapsClosedByDomain: map[catalog.Domain]int{},
		ToolsUsedByDomain:  map[catalog.Domain]int{},
		TimeByDomainMs:     map[catalog.Domain]int64{},
	}
}

func (r Record) clone() Record {
	out := r
	out.TimePerStepMs = make(map[state.StepKey]int64, len(r.TimePerStepMs))
	for k, v := range r.TimePerStepMs {
		out.TimePerStepMs[k] = v
	}
	out.GapsClosedByDomain = make(map[catalog.Domain]int, len(r.GapsClosedByDomain))
	for k, v := range r.GapsClosedByDomain {
		out.GapsClosedByDomain[k] = v
	}
	out.ToolsUsedByDomain = make(map[catalog.Domain]int, len(r.ToolsUsedByDomain))
	for k, v := range r.ToolsUsedByDomain {
		out.ToolsUsedByDomain[k] = v
	}
	out.TimeByDomainMs = make(map[catalog.Domain]int64, len(r.TimeByDomainMs))
	for k, v := range r.TimeByDomainMs {
		out.TimeByDomainMs[k] = v
	}
	return out
}

// Session is the open session record.
type Session struct {
	ID            string        `json:"id"`
	StartedAt     int64         `json:"startedAt"`
	Step          state.StepKey `json:"step"`
	StepEnteredAt int64         `json:"stepEnteredAt"`
}

// Summary holds figures derived from a Record.
type Summary struct {
	SessionCount       int     `json:"sessionCount"`
	AverageSessionMs   int64   `json:"averageSessionMs"`
	TotalTimeMs        int64   `json:"totalTimeMs"`
	TotalGapsClosed    int     `json:"totalGapsClosed"`
	ToolAttempts       int     `json:"toolAttempts"`
	ToolCompletions    int     `json:"toolCompletions"`
	ToolCompletionRate float64 `json:"toolCompletionRate"`
	// BusiestDomain is the domain with the most recorded time, empty if none.
	BusiestDomain catalog.Domain `json:"busiestDomain,omitempty"`
}

// Recorder accumulates analytics for one profile.
type Recorder struct {
	mu      sync.Mutex
	store   Persister
	now     func() time.Time
	logger  *slog.Logger
	record  Record
	session *Session
	prom    *promCollectors
}

// Option configures a Recorder.
type Option func(*Recorder) error

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// WithRegisterer mirrors the totals into Prometheus collectors registered
// on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Recorder) error {
		if reg == nil {
			return nil
		}
		pc, err := newPromCollectors(reg)
		if err != nil {
			return err
		}
		r.prom = pc
		return nil
	}
}

// New loads the persisted totals and returns a Recorder.
//
// Description:
//
//	A missing analytics key starts from zero. A leftover session record from
//	a process that never called EndSession is discarded without counting its
//	duration, since its end time is unknown.
//
// Inputs:
//
//	ctx - Context for the store reads.
//	store - Where totals and the session record live. Must not be nil.
//	opts - Optional clock, logger and Prometheus registerer.
//
// Outputs:
//
//	*Recorder - Ready to use.
//	error - Non-nil on store failure or collector registration failure.
func New(ctx context.Context, store Persister, opts ...Option) (*Recorder, error) {
	if store == nil {
		return nil, ErrNilPersister
	}
	r := &Recorder{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
		record: newRecord(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("configure analytics: %w", err)
		}
	}

	loaded := newRecord()
	found, err := store.GetJSON(ctx, storage.KeyAnalytics, &loaded)
	switch {
	case err != nil && found:
		r.logger.Warn("discarding unreadable analytics record", slog.String("error", err.Error()))
	case err != nil:
		return nil, fmt.Errorf("load analytics: %w", err)
	case found:
		r.record = normalize(loaded)
	}

	var stale Session
	if ok, err := store.GetJSON(ctx, storage.KeySession, &stale); ok || err != nil {
		r.logger.Info("discarding unfinished analytics session",
			slog.String("session_id", stale.ID),
		)
		if err := store.Delete(ctx, storage.KeySession); err != nil {
			return nil, fmt.Errorf("clear stale session: %w", err)
		}
	}
	return r, nil
}

func normalize(r Record) Record {
	base := newRecord()
	if r.TimePerStepMs == nil {
		r.TimePerStepMs = base.TimePerStepMs
	}
	if r.GapsClosedByDomain == nil {
		r.GapsClosedByDomain = base.GapsClosedByDomain
	}
	if r.ToolsUsedByDomain == nil {
		r.ToolsUsedByDomain = base.ToolsUsedByDomain
	}
	if r.TimeByDomainMs == nil {
		r.TimeByDomainMs = base.TimeByDomainMs
	}
	return r
}

// =============================================================================
// Sessions
// =============================================================================

// StartSession opens a session on step. An already open session is ended
// first.
func (r *Recorder) StartSession(ctx context.Context, step state.StepKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UnixMilli()
	if r.session != nil {
		r.closeSessionLocked(now)
	}
	r.session = &Session{
		ID:            uuid.NewString(),
		StartedAt:     now,
		Step:          step,
		StepEnteredAt: now,
	}
	r.record.SessionCount++
	r.prom.sessionStarted()
	return r.persistLocked(ctx, now, true)
}

// EndSession closes the open session, if any, adding its duration to the
// totals and removing the session record.
func (r *Recorder) EndSession(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	now := r.now().UnixMilli()
	r.closeSessionLocked(now)
	if err := r.store.Delete(ctx, storage.KeySession); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return r.persistLocked(ctx, now, false)
}

func (r *Recorder) closeSessionLocked(now int64) {
	s := r.session
	r.accrueStepLocked(now)
	d := nonNegative(now - s.StartedAt)
	r.record.TotalSessionMs += d
	r.record.TotalTimeMs += d
	r.prom.sessionEnded(d)
	r.session = nil
}

// accrueStepLocked adds the time since the current step was entered.
func (r *Recorder) accrueStepLocked(now int64) {
	s := r.session
	d := nonNegative(now - s.StepEnteredAt)
	r.record.TimePerStepMs[s.Step] += d
	r.prom.stepTime(s.Step, d)
	s.StepEnteredAt = now
}

// CurrentSession returns a copy of the open session.
func (r *Recorder) CurrentSession() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return Session{}, false
	}
	return *r.session, true
}

// =============================================================================
// Events
// =============================================================================

// StepChanged attributes elapsed time to the previous step and starts timing
// step. Without an open session it does nothing.
func (r *Recorder) StepChanged(ctx context.Context, step state.StepKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil || r.session.Step == step {
		return nil
	}
	now := r.now().UnixMilli()
	r.accrueStepLocked(now)
	r.session.Step = step
	return r.persistLocked(ctx, now, true)
}

// ToolStarted counts a tool attempt against each of its domains.
func (r *Recorder) ToolStarted(ctx context.Context, toolID string, domains []catalog.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record.ToolAttempts++
	for _, d := range domains {
		r.record.ToolsUsedByDomain[d]++
	}
	r.prom.toolStarted(domains)
	r.logger.Debug("analytics tool started", slog.String("tool_id", toolID))
	return r.persistLocked(ctx, r.now().UnixMilli(), false)
}

// ToolCompleted counts a tool completion.
func (r *Recorder) ToolCompleted(ctx context.Context, toolID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record.ToolCompletions++
	r.prom.toolCompleted()
	r.logger.Debug("analytics tool completed", slog.String("tool_id", toolID))
	return r.persistLocked(ctx, r.now().UnixMilli(), false)
}

// GapClosed counts a closed gap for domain.
func (r *Recorder) GapClosed(ctx context.Context, domain catalog.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record.GapsClosedByDomain[domain]++
	r.prom.gapClosed(domain)
	return r.persistLocked(ctx, r.now().UnixMilli(), false)
}

// DomainTime adds d to the time spent on domain. Negative durations are ignored.
func (r *Recorder) DomainTime(ctx context.Context, domain catalog.Domain, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ms := d.Milliseconds()
	r.record.TimeByDomainMs[domain] += ms
	r.prom.domainTime(domain, ms)
	return r.persistLocked(ctx, r.now().UnixMilli(), false)
}

// Reset zeroes the in-memory totals and forgets the open session. Persisted
// keys are removed by the journey repository's Clear.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record = newRecord()
	r.session = nil
}

// =============================================================================
// Queries
// =============================================================================

// Snapshot returns a copy of the totals.
func (r *Recorder) Snapshot() Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record.clone()
}

// Summary derives the headline figures.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Summarize(r.record)
}

// Summarize derives the headline figures from a record.
func Summarize(rec Record) Summary {
	s := Summary{
		SessionCount:    rec.SessionCount,
		TotalTimeMs:     rec.TotalTimeMs,
		ToolAttempts:    rec.ToolAttempts,
		ToolCompletions: rec.ToolCompletions,
	}
	if rec.SessionCount > 0 {
		s.AverageSessionMs = rec.TotalSessionMs / int64(rec.SessionCount)
	}
	if rec.ToolAttempts > 0 {
		s.ToolCompletionRate = float64(rec.ToolCompletions) / float64(rec.ToolAttempts)
	}
	for _, n := range rec.GapsClosedByDomain {
		s.TotalGapsClosed += n
	}
	var best int64
	for _, d := range catalog.Domains() {
		if ms := rec.TimeByDomainMs[d]; ms > best {
			best = ms
			s.BusiestDomain = d
		}
	}
	return s
}

func (r *Recorder) persistLocked(ctx context.Context, now int64, withSession bool) error {
	r.record.UpdatedAt = now
	if err := r.store.PutJSON(ctx, storage.KeyAnalytics, r.record); err != nil {
		return fmt.Errorf("save analytics: %w", err)
	}
	if withSession && r.session != nil {
		if err := r.store.PutJSON(ctx, storage.KeySession, r.session); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}

func nonNegative(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
