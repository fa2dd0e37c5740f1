// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the engine-level instruments.
//
// All methods accept a nil receiver and do nothing, so components can hold
// an optional *Metrics without guarding every call.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// OperationsTotal counts tracker operations by operation and outcome.
	OperationsTotal metric.Int64Counter

	// OperationDuration records tracker operation latency in seconds.
	OperationDuration metric.Float64Histogram

	// PersistenceFailuresTotal counts saves that the store rejected.
	PersistenceFailuresTotal metric.Int64Counter

	// StepsCompletedTotal counts journey steps completed, by step.
	StepsCompletedTotal metric.Int64Counter
}

// NewMetrics registers the instruments on meter.
//
// Example:
//
//	m, err := telemetry.NewMetrics(otel.Meter("journey"))
//	if err != nil {
//	    return fmt.Errorf("create metrics: %w", err)
//	}
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.OperationsTotal, err = meter.Int64Counter(
		"journey_operations_total",
		metric.WithDescription("Journey tracker operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create operations_total: %w", err)
	}

	m.OperationDuration, err = meter.Float64Histogram(
		"journey_operation_duration_seconds",
		metric.WithDescription("Journey tracker operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create operation_duration: %w", err)
	}

	m.PersistenceFailuresTotal, err = meter.Int64Counter(
		"journey_persistence_failures_total",
		metric.WithDescription("Journey saves rejected by the store"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create persistence_failures_total: %w", err)
	}

	m.StepsCompletedTotal, err = meter.Int64Counter(
		"journey_steps_completed_total",
		metric.WithDescription("Journey steps completed"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create steps_completed_total: %w", err)
	}

	return m, nil
}

// RecordOperation counts one operation and its latency.
func (m *Metrics) RecordOperation(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.OperationsTotal.Add(ctx, 1, attrs)
	m.OperationDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordPersistenceFailure counts one rejected save.
func (m *Metrics) RecordPersistenceFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PersistenceFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordStepCompleted counts one completed step.
func (m *Metrics) RecordStepCompleted(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.StepsCompletedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}
