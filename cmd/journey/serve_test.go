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
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	ux.SetOutput(io.Discard)
	t.Cleanup(func() { ux.SetOutput(nil) })

	ctx := context.Background()
	a, err := newApp(ctx, appOptions{
		ConfigPath: filepath.Join(t.TempDir(), "journey.yaml"),
		InMemory:   true,
		LogLevel:   "error",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(ctx) })
	return a
}

func TestMetricsMux_ServesRegistry(t *testing.T) {
	a := newTestApp(t)
	_, err := a.tracker.MarkToolCompleted(context.Background(), "data-mapping")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metricsMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "journey_analytics_sessions_total 1")
	assert.Contains(t, body, "journey_analytics_tool_completions_total 1")
	assert.Contains(t, body, "journey_storage_cache_misses_total")
	assert.Contains(t, body, "journey_storage_cache_hits_total")
	assert.Contains(t, body, "journey_catalog_load_errors_total")
}

func TestMetricsMux_Health(t *testing.T) {
	a := newTestApp(t)
	rec := httptest.NewRecorder()
	metricsMux(a).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServeMetrics_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := serveMetrics(ctx, "127.0.0.1:0", http.NewServeMux(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
}
