// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
	"github.com/AleutianAI/ComplianceJourney/services/journey/storage"
)

var _ storage.Store = (*Store)(nil)

func TestStore_InMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "journey:a:version", []byte(`"2.0.0"`)))
	got, ok, err := s.Get(ctx, "journey:a:version")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"2.0.0"`, string(got))

	require.NoError(t, s.Remove(ctx, "journey:a:version"))
	require.NoError(t, s.Remove(ctx, "journey:a:version"))
	_, ok, err = s.Get(ctx, "journey:a:version")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestStore_PersistsAcrossReopen writes a journey through the repository,
// reopens the directory and reads it back.
func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir, err := TempDir("journey-store-")
	require.NoError(t, err)
	defer RemoveDir(dir)

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	repo, err := storage.NewJourneyRepository(s, "journey:bob:", nil)
	require.NoError(t, err)

	js := state.New(1000)
	js.CompletedSteps = []state.StepKey{state.StepAssess}
	js.HasCompletedAssessment = true
	js.CurrentStepIndex = 1
	require.NoError(t, repo.Save(ctx, js))
	require.NoError(t, s.Close())

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()
	repo2, err := storage.NewJourneyRepository(s2, "journey:bob:", nil)
	require.NoError(t, err)

	res, err := repo2.Load(ctx)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, js, res.State)

	keys, err := s2.KeysWithPrefix(ctx, "journey:bob:")
	require.NoError(t, err)
	assert.Len(t, keys, len(storage.AllKeys())-2)

	require.NoError(t, repo2.Clear(ctx))
	keys, err = s2.KeysWithPrefix(ctx, "journey:bob:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_RequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestStore_RejectsBadGCRatio(t *testing.T) {
	dir, err := TempDir("journey-store-gc-")
	require.NoError(t, err)
	defer RemoveDir(dir)

	cfg := DefaultConfig(dir)
	cfg.GCDiscardRatio = 1.5
	_, err = Open(cfg)
	assert.Error(t, err)
}

func TestStore_GCLoopStopsOnClose(t *testing.T) {
	dir, err := TempDir("journey-store-gc-")
	require.NoError(t, err)
	defer RemoveDir(dir)

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 10 * time.Millisecond
	cfg.SyncWrites = false
	s, err := Open(cfg)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestStore_ClosedAndCancelled(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Set(ctx, "k", []byte("v")))

	require.NoError(t, s.Close())
	err = s.Set(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, ErrClosed)
}
