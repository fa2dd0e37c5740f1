// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/ComplianceJourney/pkg/logging"
	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
	"github.com/AleutianAI/ComplianceJourney/services/journey/analytics"
	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
	"github.com/AleutianAI/ComplianceJourney/services/journey/config"
	"github.com/AleutianAI/ComplianceJourney/services/journey/notify"
	"github.com/AleutianAI/ComplianceJourney/services/journey/storage"
	badgerstore "github.com/AleutianAI/ComplianceJourney/services/journey/storage/badger"
	"github.com/AleutianAI/ComplianceJourney/services/journey/telemetry"
	"github.com/AleutianAI/ComplianceJourney/services/journey/tracker"
)

// appOptions are the global flag values.
type appOptions struct {
	ConfigPath string
	Profile    string
	InMemory   bool
	LogLevel   string
}

// app holds everything one invocation needs. Build it with newApp and
// always call close.
type app struct {
	cfg      config.Config
	logger   *logging.Logger
	store    *badgerstore.Store
	repo     *storage.JourneyRepository
	events   *notify.Emitter
	registry *prometheus.Registry
	recorder *analytics.Recorder
	tracker  *tracker.Tracker
	shutdown func(context.Context) error
}

// defaultConfigPath returns ~/.journey/journey.yaml.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "journey.yaml"
	}
	return filepath.Join(home, ".journey", "journey.yaml")
}

// newApp resolves configuration and opens the journey.
//
// Description:
//
//	Creates the config file on first run, then overlays flags. Opens the
//	BadgerDB store (in memory with --in-memory), wraps it in the LRU cache,
//	starts telemetry, loads analytics and the tracker, and opens the
//	analytics session for this invocation.
func newApp(ctx context.Context, opts appOptions) (a *app, err error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath()
	}
	if created, err := config.EnsureFile(opts.ConfigPath); err != nil {
		return nil, err
	} else if created {
		ux.Info(fmt.Sprintf("Created default configuration at %s", opts.ConfigPath))
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Profile != "" {
		cfg.Storage.Profile = opts.Profile
	}
	if opts.InMemory {
		cfg.Storage.InMemory = true
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a = &app{
		cfg: cfg,
		logger: logging.New(logging.Config{
			Level:   level,
			LogDir:  cfg.Logging.Dir,
			Service: "journey",
			JSON:    cfg.Logging.JSON,
		}),
		events:   notify.NewEmitter(),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
			a = nil
		}
	}()
	log := a.logger.With("profile", cfg.Storage.Profile).Slog()

	a.shutdown, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: "2.0.0",
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   true,
		Registry:       a.registry,
	})
	if err != nil {
		return a, err
	}
	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider().Meter("journey.tracker"))
	if err != nil {
		return a, err
	}

	storeCfg := badgerstore.InMemoryConfig()
	if !cfg.Storage.InMemory {
		dir, err := cfg.DataDir()
		if err != nil {
			return a, err
		}
		storeCfg = badgerstore.DefaultConfig(dir)
		storeCfg.GCInterval = cfg.Storage.GCInterval
	}
	storeCfg.Logger = log
	a.store, err = badgerstore.Open(storeCfg)
	if err != nil {
		return a, err
	}
	var kv storage.Store = a.store
	if cfg.Storage.CacheSize > 0 {
		kv, err = storage.NewCachedStore(a.store, cfg.Storage.CacheSize,
			storage.WithCacheRegisterer(a.registry))
		if err != nil {
			return a, err
		}
	}
	if a.repo, err = storage.NewJourneyRepository(kv, cfg.KeyPrefix(), log); err != nil {
		return a, err
	}

	cat, err := catalog.LoadFile(cfg.Journey.CatalogFile, log, a.registry)
	if err != nil {
		return a, err
	}

	a.recorder, err = analytics.New(ctx, a.repo,
		analytics.WithLogger(log),
		analytics.WithRegisterer(a.registry),
	)
	if err != nil {
		return a, err
	}

	a.tracker, err = tracker.New(ctx, a.repo,
		tracker.WithCatalog(cat),
		tracker.WithSettings(tracker.SettingsFromConfig(cfg)),
		tracker.WithNotifier(a.events),
		tracker.WithAnalytics(a.recorder),
		tracker.WithMetrics(metrics),
		tracker.WithLogger(log),
	)
	if err != nil {
		return a, err
	}

	if err := a.recorder.StartSession(ctx, a.tracker.CurrentStep()); err != nil {
		log.Warn("could not start analytics session", "error", err.Error())
	}
	return a, nil
}

// close ends the analytics session, flushes telemetry and closes the store
// and log file. Every step runs; errors are joined.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.recorder != nil {
		if err := a.recorder.EndSession(ctx); err != nil {
			errs = append(errs, fmt.Errorf("end analytics session: %w", err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
