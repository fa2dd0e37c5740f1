// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
)

var repoTracer = otel.Tracer("journey.storage")

// -----------------------------------------------------------------------------
// Key layout
// -----------------------------------------------------------------------------

// Key suffixes under the repository prefix. Each JourneyState field is stored
// under its own key as JSON.
const (
	KeyCurrentStep         = "current_step"
	KeyCompletedSteps      = "completed_steps"
	KeyIdentifiedGaps      = "identified_gaps"
	KeyCompletedGapIDs     = "completed_gap_ids"
	KeyCompletedToolIDs    = "completed_tool_ids"
	KeyToolUsage           = "tool_usage"
	KeyAssessmentCompleted = "assessment_completed"
	KeyVersion             = "version"
	KeyStartedAt           = "started_at"
	KeyLastUpdated         = "last_updated"
	KeyAnalytics           = "analytics"
	KeySession             = "session"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "journey:default:"

// stateKeys lists the keys that together form a JourneyState.
var stateKeys = []string{
	KeyCurrentStep,
	KeyCompletedSteps,
	KeyIdentifiedGaps,
	KeyCompletedGapIDs,
	KeyCompletedToolIDs,
	KeyToolUsage,
	KeyAssessmentCompleted,
	KeyVersion,
	KeyStartedAt,
	KeyLastUpdated,
}

// ErrNilStore is returned by NewJourneyRepository for a nil store.
var ErrNilStore = errors.New("store must not be nil")

// LoadResult is what Load found in the store.
type LoadResult struct {
	// State holds every field that decoded. Missing or malformed fields keep
	// the zero value of a fresh journey.
	State state.JourneyState
	// Found is true when at least one state key was present.
	Found bool
	// Malformed lists keys whose stored value could not be decoded.
	Malformed []string
}

// JourneyRepository reads and writes one profile's journey as a set of keys.
//
// Thread Safety: Safe for concurrent use if the underlying Store is.
type JourneyRepository struct {
	store  Store
	prefix string
	logger *slog.Logger
}

// NewJourneyRepository creates a repository.
//
// Inputs:
//
//	store - Backing key-value store. Must not be nil.
//	prefix - Key prefix isolating this profile. Empty uses DefaultPrefix.
//	logger - Logger for decode problems. Nil uses slog.Default().
//
// Outputs:
//
//	*JourneyRepository - Ready to use.
//	error - ErrNilStore if store is nil.
func NewJourneyRepository(store Store, prefix string, logger *slog.Logger) (*JourneyRepository, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JourneyRepository{store: store, prefix: prefix, logger: logger}, nil
}

// Key returns the full store key for a suffix.
func (r *JourneyRepository) Key(suffix string) string {
	return r.prefix + suffix
}

// Prefix returns the repository key prefix.
func (r *JourneyRepository) Prefix() string {
	return r.prefix
}

// Load reads every state key.
//
// Description:
//
//	Missing keys are tolerated and leave the corresponding field at its
//	fresh-journey default. Keys that exist but fail to decode are reported in
//	LoadResult.Malformed and logged; they do not fail the load. Only a store
//	read failure returns an error.
//
// Outputs:
//
//	LoadResult - Decoded fields, whether anything was found, malformed keys.
//	error - Non-nil on store failure.
func (r *JourneyRepository) Load(ctx context.Context) (LoadResult, error) {
	ctx, span := repoTracer.Start(ctx, "storage.JourneyRepository.Load",
		trace.WithAttributes(attribute.String("prefix", r.prefix)),
	)
	defer span.End()

	res := LoadResult{State: state.New(0)}
	res.State.Version = ""
	s := &res.State

	decoders := map[string]func([]byte) error{
		KeyCurrentStep:         func(b []byte) error { return decodeField(b, &s.CurrentStepIndex) },
		KeyCompletedSteps:      func(b []byte) error { return decodeField(b, &s.CompletedSteps) },
		KeyIdentifiedGaps:      func(b []byte) error { return decodeField(b, &s.IdentifiedGaps) },
		KeyCompletedGapIDs:     func(b []byte) error { return decodeField(b, &s.CompletedGapIDs) },
		KeyCompletedToolIDs:    func(b []byte) error { return decodeField(b, &s.CompletedToolIDs) },
		KeyToolUsage:           func(b []byte) error { return decodeField(b, &s.ToolUsage) },
		KeyAssessmentCompleted: func(b []byte) error { return decodeField(b, &s.HasCompletedAssessment) },
		KeyVersion:             func(b []byte) error { return decodeField(b, &s.Version) },
		KeyStartedAt:           func(b []byte) error { return decodeField(b, &s.StartedAt) },
		KeyLastUpdated:         func(b []byte) error { return decodeField(b, &s.LastUpdatedAt) },
	}

	for _, suffix := range stateKeys {
		data, ok, err := r.store.Get(ctx, r.Key(suffix))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "read failed")
			return LoadResult{}, fmt.Errorf("load %s: %w", suffix, err)
		}
		if !ok {
			continue
		}
		res.Found = true
		if err := decoders[suffix](data); err != nil {
			res.Malformed = append(res.Malformed, suffix)
			r.logger.Warn("malformed journey key",
				slog.String("key", r.Key(suffix)),
				slog.String("error", err.Error()),
			)
		}
	}

	normalizeLoaded(s)

	span.SetAttributes(
		attribute.Bool("found", res.Found),
		attribute.Int("malformed_keys", len(res.Malformed)),
	)
	return res, nil
}

// decodeField unmarshals into a scratch value so a failed decode leaves dst
// untouched.
func decodeField[T any](data []byte, dst *T) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// normalizeLoaded replaces JSON nulls with empty slices.
func normalizeLoaded(s *state.JourneyState) {
	if s.CompletedSteps == nil {
		s.CompletedSteps = []state.StepKey{}
	}
	if s.IdentifiedGaps == nil {
		s.IdentifiedGaps = []gaps.IdentifiedGap{}
	}
	if s.CompletedGapIDs == nil {
		s.CompletedGapIDs = []string{}
	}
	if s.CompletedToolIDs == nil {
		s.CompletedToolIDs = []string{}
	}
	if s.ToolUsage == nil {
		s.ToolUsage = []state.ToolUsage{}
	}
}

// Save writes every state key.
//
// Description:
//
//	Keys are written in a fixed order. The first failure aborts the save and
//	is returned; keys already written keep their new values.
func (r *JourneyRepository) Save(ctx context.Context, s state.JourneyState) error {
	ctx, span := repoTracer.Start(ctx, "storage.JourneyRepository.Save",
		trace.WithAttributes(
			attribute.String("prefix", r.prefix),
			attribute.Int("gaps", len(s.IdentifiedGaps)),
		),
	)
	defer span.End()

	values := map[string]any{
		KeyCurrentStep:         s.CurrentStepIndex,
		KeyCompletedSteps:      nonNil(s.CompletedSteps),
		KeyIdentifiedGaps:      nonNil(s.IdentifiedGaps),
		KeyCompletedGapIDs:     nonNil(s.CompletedGapIDs),
		KeyCompletedToolIDs:    nonNil(s.CompletedToolIDs),
		KeyToolUsage:           nonNil(s.ToolUsage),
		KeyAssessmentCompleted: s.HasCompletedAssessment,
		KeyVersion:             s.Version,
		KeyStartedAt:           s.StartedAt,
		KeyLastUpdated:         s.LastUpdatedAt,
	}

	for _, suffix := range stateKeys {
		if err := r.PutJSON(ctx, suffix, values[suffix]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "write failed")
			return err
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Clear removes every key owned by the repository, including analytics and
// the session record. All keys are attempted; the joined errors are returned.
func (r *JourneyRepository) Clear(ctx context.Context) error {
	ctx, span := repoTracer.Start(ctx, "storage.JourneyRepository.Clear",
		trace.WithAttributes(attribute.String("prefix", r.prefix)),
	)
	defer span.End()

	var errs []error
	for _, suffix := range AllKeys() {
		if err := r.store.Remove(ctx, r.Key(suffix)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", suffix, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		return err
	}
	return nil
}

// AllKeys returns every key suffix the repository owns.
func AllKeys() []string {
	return append(append([]string{}, stateKeys...), KeyAnalytics, KeySession)
}

// GetJSON decodes the value under suffix into v.
//
// Outputs:
//
//	bool - False if the key is missing; v is left untouched.
//	error - Non-nil on store failure or decode failure.
func (r *JourneyRepository) GetJSON(ctx context.Context, suffix string, v any) (bool, error) {
	data, ok, err := r.store.Get(ctx, r.Key(suffix))
	if err != nil {
		return false, fmt.Errorf("load %s: %w", suffix, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", suffix, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under suffix.
func (r *JourneyRepository) PutJSON(ctx context.Context, suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", suffix, err)
	}
	if err := r.store.Set(ctx, r.Key(suffix), data); err != nil {
		return fmt.Errorf("save %s: %w", suffix, err)
	}
	return nil
}

// Delete removes the value under suffix.
func (r *JourneyRepository) Delete(ctx context.Context, suffix string) error {
	if err := r.store.Remove(ctx, r.Key(suffix)); err != nil {
		return fmt.Errorf("remove %s: %w", suffix, err)
	}
	return nil
}
