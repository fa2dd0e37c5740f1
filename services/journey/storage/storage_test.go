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
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
)

// countingStore records backing reads and can be made to fail writes.
type countingStore struct {
	*MemoryStore
	gets    int
	failSet error
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.gets++
	return c.MemoryStore.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	if c.failSet != nil {
		return c.failSet
	}
	return c.MemoryStore.Set(ctx, key, value)
}

func TestMemoryStore_Basics(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	in := []byte("value")
	require.NoError(t, m.Set(ctx, "a", in))
	in[0] = 'X'

	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", string(got), "stored value must be a copy")

	require.NoError(t, m.Remove(ctx, "a"))
	require.NoError(t, m.Remove(ctx, "a"))
	assert.Equal(t, 0, m.Len())

	assert.ErrorIs(t, m.Set(ctx, "", nil), ErrEmptyKey)
}

func TestCachedStore_ServesRepeatReadsFromCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	c, err := NewCachedStore(backing, 8)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	for i := 0; i < 3; i++ {
		got, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v", string(got))
	}
	assert.Equal(t, 0, backing.gets)

	c.Purge()
	_, _, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, backing.gets)
	assert.Equal(t, 1, c.Len())
}

func TestCachedStore_FailedWriteDoesNotCache(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: NewMemoryStore()}
	c, err := NewCachedStore(backing, 8)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte("old")))
	backing.failSet = errors.New("disk full")
	require.Error(t, c.Set(ctx, "k", []byte("new")))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "old", string(got))
}

func TestCachedStore_Remove(t *testing.T) {
	ctx := context.Background()
	c, err := NewCachedStore(NewMemoryStore(), 0)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	require.NoError(t, c.Remove(ctx, "k"))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewCachedStore(nil, 1)
	assert.Error(t, err)
}

func TestCachedStore_CountersOnRegistry(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c, err := NewCachedStore(NewMemoryStore(), 8, WithCacheRegisterer(reg))
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", []byte("v")))
	_, _, err = c.Get(ctx, "k")
	require.NoError(t, err)
	_, _, err = c.Get(ctx, "k")
	require.NoError(t, err)
	_, _, err = c.Get(ctx, "absent")
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.misses))

	n, err := testutil.GatherAndCount(reg,
		"journey_storage_cache_hits_total", "journey_storage_cache_misses_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second cache cannot claim the same series on one registry.
	_, err = NewCachedStore(NewMemoryStore(), 8, WithCacheRegisterer(reg))
	assert.Error(t, err)
}

func sampleJourney() state.JourneyState {
	s := state.New(1000)
	s.CurrentStepIndex = 1
	s.CompletedSteps = []state.StepKey{state.StepAssess}
	s.HasCompletedAssessment = true
	s.IdentifiedGaps = []gaps.IdentifiedGap{{
		ID: "gap-govern", Domain: "govern", Score: 55, Severity: "critical", Priority: 1,
		RecommendedTools: []string{"policy-generator"}, Status: gaps.StatusInProgress,
	}}
	s.CompletedToolIDs = []string{"policy-generator"}
	done := int64(1500)
	s.ToolUsage = []state.ToolUsage{{ToolID: "policy-generator", StartedAt: 1200, CompletedAt: &done, Domain: "govern"}}
	s.LastUpdatedAt = 2000
	return s
}

func TestJourneyRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo, err := NewJourneyRepository(store, "journey:alice:", nil)
	require.NoError(t, err)

	res, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.False(t, res.Found)

	s := sampleJourney()
	require.NoError(t, repo.Save(ctx, s))
	assert.Contains(t, store.Keys(), "journey:alice:current_step")
	assert.Contains(t, store.Keys(), "journey:alice:tool_usage")

	res, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Empty(t, res.Malformed)
	assert.Equal(t, s, res.State)
}

func TestJourneyRepository_MalformedAndMissingKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo, err := NewJourneyRepository(store, "", nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, repo.Key(KeyCurrentStep), []byte("2")))
	require.NoError(t, store.Set(ctx, repo.Key(KeyIdentifiedGaps), []byte("{not json")))
	require.NoError(t, store.Set(ctx, repo.Key(KeyCompletedSteps), []byte("null")))

	res, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, []string{KeyIdentifiedGaps}, res.Malformed)
	assert.Equal(t, 2, res.State.CurrentStepIndex)
	assert.NotNil(t, res.State.IdentifiedGaps)
	assert.Empty(t, res.State.IdentifiedGaps)
	assert.NotNil(t, res.State.CompletedSteps)
	assert.Equal(t, "", res.State.Version)
}

func TestJourneyRepository_ClearRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	repo, err := NewJourneyRepository(store, "p:", nil)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, sampleJourney()))
	require.NoError(t, repo.PutJSON(ctx, KeyAnalytics, map[string]int{"sessions": 1}))
	require.NoError(t, repo.PutJSON(ctx, KeySession, map[string]int{"startedAt": 1}))
	require.NoError(t, store.Set(ctx, "other:key", []byte("1")))

	require.NoError(t, repo.Clear(ctx))
	assert.Equal(t, []string{"other:key"}, store.Keys())
}

func TestJourneyRepository_SaveFailure(t *testing.T) {
	ctx := context.Background()
	backing := &countingStore{MemoryStore: NewMemoryStore(), failSet: errors.New("quota exceeded")}
	repo, err := NewJourneyRepository(backing, "", nil)
	require.NoError(t, err)

	err = repo.Save(ctx, sampleJourney())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestJourneyRepository_JSONHelpers(t *testing.T) {
	ctx := context.Background()
	repo, err := NewJourneyRepository(NewMemoryStore(), "", nil)
	require.NoError(t, err)

	var v map[string]int
	ok, err := repo.GetJSON(ctx, KeyAnalytics, &v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.PutJSON(ctx, KeyAnalytics, map[string]int{"a": 1}))
	ok, err = repo.GetJSON(ctx, KeyAnalytics, &v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v["a"])

	require.NoError(t, repo.Delete(ctx, KeyAnalytics))
	ok, err = repo.GetJSON(ctx, KeyAnalytics, &v)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewJourneyRepository(nil, "", nil)
	assert.ErrorIs(t, err, ErrNilStore)
}
