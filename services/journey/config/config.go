// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the tunable settings of the journey engine.
//
// # Description
//
// Settings resolve in three layers: built-in defaults, an optional YAML file,
// then JOURNEY_* environment variables. The result is checked with struct tag
// validation plus the cross-field rules of the gap severity bands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
)

// Config is the complete engine configuration.
type Config struct {
	Journey   JourneyConfig   `yaml:"journey"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// JourneyConfig holds the progression thresholds.
type JourneyConfig struct {
	// ActThreshold is the completed-gap ratio that completes the Act step.
	ActThreshold float64 `yaml:"act_threshold" env:"JOURNEY_ACT_THRESHOLD" validate:"gt=0,lte=1"`
	// MaintainThreshold is the completed-gap ratio required for Maintain.
	MaintainThreshold float64 `yaml:"maintain_threshold" env:"JOURNEY_MAINTAIN_THRESHOLD" validate:"gt=0,lte=1"`
	// MinToolsForMaintain is the completed tool count required for Maintain.
	MinToolsForMaintain int `yaml:"min_tools_for_maintain" env:"JOURNEY_MIN_TOOLS_FOR_MAINTAIN" validate:"gte=0"`

	GapCeiling        int `yaml:"gap_ceiling" env:"JOURNEY_GAP_CEILING" validate:"gt=0,lte=100"`
	HighCeiling       int `yaml:"high_ceiling" env:"JOURNEY_HIGH_CEILING" validate:"gt=0,lte=100"`
	CriticalCeiling   int `yaml:"critical_ceiling" env:"JOURNEY_CRITICAL_CEILING" validate:"gt=0,lte=100"`
	ModerateCeiling   int `yaml:"moderate_ceiling" env:"JOURNEY_MODERATE_CEILING" validate:"gt=0,lte=100"`
	InProgressPercent int `yaml:"in_progress_percent" env:"JOURNEY_IN_PROGRESS_PERCENT" validate:"gte=0,lte=100"`

	// StaleAfter is how long without updates before validation warns.
	StaleAfter time.Duration `yaml:"stale_after" env:"JOURNEY_STALE_AFTER" validate:"gt=0"`

	// CatalogFile optionally replaces the embedded gap catalog.
	CatalogFile string `yaml:"catalog_file,omitempty" env:"JOURNEY_CATALOG_FILE"`
}

// StorageConfig selects and tunes the key-value store.
type StorageConfig struct {
	// Dir is the BadgerDB directory. Empty means ~/.journey/data.
	Dir string `yaml:"dir,omitempty" env:"JOURNEY_DATA_DIR"`
	// InMemory keeps state only for the life of the process.
	InMemory bool `yaml:"in_memory" env:"JOURNEY_IN_MEMORY"`
	// CacheSize is the LRU read cache size in keys. Zero disables the cache.
	CacheSize int `yaml:"cache_size" env:"JOURNEY_CACHE_SIZE" validate:"gte=0,lte=1000000"`
	// Profile isolates one user's keys from another's.
	Profile string `yaml:"profile" env:"JOURNEY_PROFILE" validate:"required,max=64,excludes=:"`
	// GCInterval is the value log GC period for on-disk stores.
	GCInterval time.Duration `yaml:"gc_interval" env:"JOURNEY_GC_INTERVAL" validate:"gte=0"`
}

// LoggingConfig controls pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"JOURNEY_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty" env:"JOURNEY_LOG_DIR"`
	JSON  bool   `yaml:"json" env:"JOURNEY_LOG_JSON"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"JOURNEY_SERVICE_NAME" validate:"required"`
	TraceExporter  string `yaml:"trace_exporter" env:"JOURNEY_TRACE_EXPORTER" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" env:"JOURNEY_METRIC_EXPORTER" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty" env:"JOURNEY_OTLP_ENDPOINT" validate:"required_if=TraceExporter otlp"`
}

var configValidate = validator.New()

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid journey config")

// Default returns the built-in configuration.
func Default() Config {
	th := gaps.DefaultThresholds()
	return Config{
		Journey: JourneyConfig{
			ActThreshold:        0.7,
			MaintainThreshold:   0.7,
			MinToolsForMaintain: 5,
			GapCeiling:          th.GapCeiling,
			HighCeiling:         th.HighCeiling,
			CriticalCeiling:     th.CriticalCeiling,
			ModerateCeiling:     th.ModerateCeiling,
			InProgressPercent:   th.InProgressPercent,
			StaleAfter:          state.DefaultStaleAfter,
		},
		Storage: StorageConfig{
			CacheSize:  1024,
			Profile:    "default",
			GCInterval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "compliance-journey",
			TraceExporter:  "none",
			MetricExporter: "none",
		},
	}
}

// Load resolves the configuration.
//
// Description:
//
//	Starts from Default, overlays the YAML file at path when path is not
//	empty, then applies JOURNEY_* environment variables and validates.
//	A missing file is an error; use EnsureFile to create one first.
//
// Inputs:
//
//	path - YAML file path. Empty skips the file layer.
//
// Outputs:
//
//	Config - The resolved configuration.
//	error - Read, parse, env or validation failure.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// EnsureFile writes the default configuration to path if nothing exists
// there yet. It reports whether a file was created.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, fmt.Errorf("write config %s: %w", path, err)
	}
	return true, nil
}

// Validate applies tag rules and the severity band ordering.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Journey.GapCeiling < c.Journey.CriticalCeiling {
		return fmt.Errorf("%w: gap ceiling %d below critical ceiling %d",
			ErrInvalidConfig, c.Journey.GapCeiling, c.Journey.CriticalCeiling)
	}
	return nil
}

// Thresholds returns the gap engine bands.
func (c Config) Thresholds() gaps.Thresholds {
	return gaps.Thresholds{
		GapCeiling:        c.Journey.GapCeiling,
		HighCeiling:       c.Journey.HighCeiling,
		CriticalCeiling:   c.Journey.CriticalCeiling,
		ModerateCeiling:   c.Journey.ModerateCeiling,
		InProgressPercent: c.Journey.InProgressPercent,
	}
}

// KeyPrefix returns the storage key prefix for the configured profile.
func (c Config) KeyPrefix() string {
	return "journey:" + c.Storage.Profile + ":"
}

// DataDir returns the store directory, defaulting to ~/.journey/data.
func (c Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".journey", "data"), nil
}
