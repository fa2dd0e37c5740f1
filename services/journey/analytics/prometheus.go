// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analytics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
)

const (
	metricsNamespace = "journey"
	metricsSubsystem = "analytics"
)

// promCollectors mirrors Recorder totals. A nil *promCollectors is valid and
// records nothing.
type promCollectors struct {
	sessionsTotal   prometheus.Counter
	sessionDuration prometheus.Histogram
	stepSeconds     *prometheus.CounterVec
	gapsClosed      *prometheus.CounterVec
	toolAttempts    *prometheus.CounterVec
	toolCompletions prometheus.Counter
	domainSeconds   *prometheus.CounterVec
}

func newPromCollectors(reg prometheus.Registerer) (pc *promCollectors, err error) {
	// promauto panics on duplicate registration; surface it as an error.
	defer func() {
		if r := recover(); r != nil {
			pc, err = nil, fmt.Errorf("register analytics collectors: %v", r)
		}
	}()

	f := promauto.With(reg)
	return &promCollectors{
		sessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "sessions_total",
			Help:      "Journey sessions started",
		}),
		sessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "session_duration_seconds",
			Help:      "Length of finished journey sessions",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		}),
		stepSeconds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "step_seconds_total",
			Help:      "Time spent per journey step",
		}, []string{"step"}),
		gapsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "gaps_closed_total",
			Help:      "Gaps closed per domain",
		}, []string{"domain"}),
		toolAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tool_attempts_total",
			Help:      "Remediation tools started, per domain served",
		}, []string{"domain"}),
		toolCompletions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tool_completions_total",
			Help:      "Remediation tools completed",
		}),
		domainSeconds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "domain_seconds_total",
			Help:      "Time spent per compliance domain",
		}, []string{"domain"}),
	}, nil
}

func (p *promCollectors) sessionStarted() {
	if p == nil {
		return
	}
	p.sessionsTotal.Inc()
}

func (p *promCollectors) sessionEnded(ms int64) {
	if p == nil {
		return
	}
	p.sessionDuration.Observe(float64(ms) / 1000)
}

func (p *promCollectors) stepTime(step state.StepKey, ms int64) {
	if p == nil || ms == 0 {
		return
	}
	p.stepSeconds.WithLabelValues(string(step)).Add(float64(ms) / 1000)
}

func (p *promCollectors) gapClosed(d catalog.Domain) {
	if p == nil {
		return
	}
	p.gapsClosed.WithLabelValues(string(d)).Inc()
}

func (p *promCollectors) toolStarted(domains []catalog.Domain) {
	if p == nil {
		return
	}
	for _, d := range domains {
		p.toolAttempts.WithLabelValues(string(d)).Inc()
	}
}

func (p *promCollectors) toolCompleted() {
	if p == nil {
		return
	}
	p.toolCompletions.Inc()
}

func (p *promCollectors) domainTime(d catalog.Domain, ms int64) {
	if p == nil {
		return
	}
	p.domainSeconds.WithLabelValues(string(d)).Add(float64(ms) / 1000)
}
