// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tracker

import (
	"log/slog"
	"time"

	"github.com/AleutianAI/ComplianceJourney/services/journey/analytics"
	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
	"github.com/AleutianAI/ComplianceJourney/services/journey/config"
	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/notify"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
	"github.com/AleutianAI/ComplianceJourney/services/journey/telemetry"
)

// Settings are the progression thresholds.
type Settings struct {
	// ActThreshold is the completed-gap ratio that completes "act". Default: 0.7.
	ActThreshold float64
	// MaintainThreshold is the completed-gap ratio required for "maintain". Default: 0.7.
	MaintainThreshold float64
	// MinToolsForMaintain is the completed tool count required for "maintain". Default: 5.
	MinToolsForMaintain int
	// StaleAfter is the validation staleness window. Default: 90 days.
	StaleAfter time.Duration
	// Thresholds are the gap severity bands.
	Thresholds gaps.Thresholds
}

// DefaultSettings returns the standard thresholds.
func DefaultSettings() Settings {
	return Settings{
		ActThreshold:        0.7,
		MaintainThreshold:   0.7,
		MinToolsForMaintain: 5,
		StaleAfter:          state.DefaultStaleAfter,
		Thresholds:          gaps.DefaultThresholds(),
	}
}

// SettingsFromConfig extracts tracker settings from the engine configuration.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		ActThreshold:        cfg.Journey.ActThreshold,
		MaintainThreshold:   cfg.Journey.MaintainThreshold,
		MinToolsForMaintain: cfg.Journey.MinToolsForMaintain,
		StaleAfter:          cfg.Journey.StaleAfter,
		Thresholds:          cfg.Thresholds(),
	}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSettings replaces the progression thresholds.
func WithSettings(s Settings) Option {
	return func(t *Tracker) { t.settings = s }
}

// WithCatalog sets the gap catalog. Default: catalog.Default().
func WithCatalog(cat *catalog.Catalog) Option {
	return func(t *Tracker) { t.catalog = cat }
}

// WithNotifier sets where user notifications go. Default: notify.Nop.
func WithNotifier(sink notify.Sink) Option {
	return func(t *Tracker) {
		if sink != nil {
			t.sink = sink
		}
	}
}

// WithAnalytics attaches an analytics recorder.
func WithAnalytics(rec *analytics.Recorder) Option {
	return func(t *Tracker) { t.analytics = rec }
}

// WithMetrics attaches operation metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}
