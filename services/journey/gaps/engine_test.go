// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gaps

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	e, err := NewEngine(cat, DefaultThresholds())
	require.NoError(t, err)
	return e
}

// TestGenerateGaps_MixedScores covers the five-section scenario: only the
// three domains below 80 produce gaps, ranked by ascending score.
func TestGenerateGaps_MixedScores(t *testing.T) {
	e := newTestEngine(t)

	got := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "Govern", Percentage: 55},
		{Title: "Identify", Percentage: 90},
		{Title: "Control", Percentage: 65},
		{Title: "Communicate", Percentage: 82},
		{Title: "Protect", Percentage: 40},
	})

	require.Len(t, got, 3)

	assert.Equal(t, "gap-protect", got[0].ID)
	assert.Equal(t, 1, got[0].Priority)
	assert.Equal(t, catalog.SeverityCritical, got[0].Severity)

	assert.Equal(t, "gap-govern", got[1].ID)
	assert.Equal(t, 2, got[1].Priority)
	assert.Equal(t, catalog.SeverityCritical, got[1].Severity)

	assert.Equal(t, "gap-control", got[2].ID)
	assert.Equal(t, 3, got[2].Priority)
	assert.Equal(t, catalog.SeverityHigh, got[2].Severity)

	for _, g := range got {
		assert.Equal(t, StatusNotStarted, g.Status)
		assert.Equal(t, e.Catalog().ToolsForDomain(g.Domain), g.RecommendedTools)
		assert.NotEmpty(t, g.DomainTitle)
		assert.NotEmpty(t, g.Timeline)
	}
}

func TestSeverityBands(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		score float64
		want  catalog.Severity
	}{
		{0, catalog.SeverityCritical},
		{59.9, catalog.SeverityCritical},
		{60, catalog.SeverityHigh},
		{69.99, catalog.SeverityHigh},
		{70, catalog.SeverityModerate},
		{79.5, catalog.SeverityModerate},
		{80, catalog.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Severity(tt.score), "score %v", tt.score)
	}
}

// TestGenerateGaps_LowSeverityWhenRetuned verifies the "low" band becomes
// reachable once the gap ceiling is raised above the moderate band.
func TestGenerateGaps_LowSeverityWhenRetuned(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	th := DefaultThresholds()
	th.GapCeiling = 90
	e, err := NewEngine(cat, th)
	require.NoError(t, err)

	got := e.GenerateGapsFromAssessment([]SectionScore{{Title: "identify", Percentage: 85}})
	require.Len(t, got, 1)
	assert.Equal(t, catalog.SeverityLow, got[0].Severity)
}

func TestGenerateGaps_SkipsUnknownAndDuplicateTitles(t *testing.T) {
	e := newTestEngine(t)

	got := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "Data Ethics", Percentage: 10},
		{Title: "GOVERN", Percentage: 50},
		{Title: "govern", Percentage: 5},
	})
	require.Len(t, got, 1)
	assert.Equal(t, "gap-govern", got[0].ID)
	assert.Equal(t, 50, got[0].Score)
}

func TestGenerateGaps_TiesKeepEncounterOrder(t *testing.T) {
	e := newTestEngine(t)

	got := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "communicate", Percentage: 50},
		{Title: "control", Percentage: 50},
		{Title: "govern", Percentage: 30},
	})
	require.Len(t, got, 3)
	assert.Equal(t, []string{"gap-govern", "gap-communicate", "gap-control"},
		[]string{got[0].ID, got[1].ID, got[2].ID})
}

func TestGenerateGaps_EmptyInput(t *testing.T) {
	e := newTestEngine(t)
	got := e.GenerateGapsFromAssessment(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestGenerateGaps_Properties checks, over random inputs, that every gap
// scores below the ceiling and priorities are a dense 1..N by ascending score.
func TestGenerateGaps_Properties(t *testing.T) {
	e := newTestEngine(t)
	rng := rand.New(rand.NewSource(42))
	domains := catalog.Domains()

	for iter := 0; iter < 200; iter++ {
		var scores []SectionScore
		for _, d := range domains {
			scores = append(scores, SectionScore{Title: string(d), Percentage: float64(rng.Intn(10001)) / 100})
		}
		rng.Shuffle(len(scores), func(i, j int) { scores[i], scores[j] = scores[j], scores[i] })

		got := e.GenerateGapsFromAssessment(scores)

		qualifying := 0
		for _, s := range scores {
			if s.Percentage < 80 {
				qualifying++
			}
		}
		require.Len(t, got, qualifying)

		for i, g := range got {
			assert.Less(t, g.Score, 80)
			assert.Equal(t, i+1, g.Priority)
			if i > 0 {
				assert.LessOrEqual(t, got[i-1].Score, g.Score)
			}
		}
	}
}

func TestCalculateGapCompletionFromTools(t *testing.T) {
	e := newTestEngine(t)
	tools := e.Catalog().ToolsForDomain(catalog.DomainGovern)
	require.Len(t, tools, 3)

	assert.Equal(t, 0, e.CalculateGapCompletionFromTools(catalog.DomainGovern, nil))
	assert.Equal(t, 33, e.CalculateGapCompletionFromTools(catalog.DomainGovern, tools[:1]))
	assert.Equal(t, 67, e.CalculateGapCompletionFromTools(catalog.DomainGovern, tools[:2]))
	assert.Equal(t, 100, e.CalculateGapCompletionFromTools(catalog.DomainGovern, append(tools, "unrelated")))
	assert.Equal(t, 0, e.CalculateGapCompletionFromTools(catalog.Domain("unknown"), tools))

	assert.False(t, e.ShouldMarkGapCompleted(catalog.DomainGovern, tools[:1]))
	assert.True(t, e.ShouldMarkGapCompleted(catalog.DomainGovern, tools[:2]))
}

func TestToolListCompletion(t *testing.T) {
	assert.Equal(t, 0, ToolListCompletion(nil, []string{"a"}))
	assert.Equal(t, 50, ToolListCompletion([]string{"a", "b"}, []string{"b"}))
	assert.Equal(t, 25, ToolListCompletion([]string{"a", "b", "c", "d"}, []string{"a", "a"}))
}

func TestCarryForwardStatus(t *testing.T) {
	e := newTestEngine(t)
	prior := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "govern", Percentage: 50},
		{Title: "control", Percentage: 60},
	})
	prior[0].Status = StatusCompleted
	prior[1].Status = StatusInProgress

	regenerated := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "govern", Percentage: 70},
		{Title: "protect", Percentage: 20},
	})

	got := CarryForwardStatus(regenerated, prior)
	require.Len(t, got, 2)
	byID := map[string]IdentifiedGap{}
	for _, g := range got {
		byID[g.ID] = g
	}
	assert.Equal(t, StatusCompleted, byID["gap-govern"].Status)
	assert.Equal(t, StatusNotStarted, byID["gap-protect"].Status)
	assert.Equal(t, StatusNotStarted, regenerated[0].Status, "input must not be modified")
}

func TestComputeProgress(t *testing.T) {
	e := newTestEngine(t)
	list := e.GenerateGapsFromAssessment([]SectionScore{
		{Title: "protect", Percentage: 40},
		{Title: "govern", Percentage: 55},
		{Title: "control", Percentage: 65},
	})
	list[0].Status = StatusCompleted
	list[1].Status = StatusInProgress

	p := ComputeProgress(list, []string{"gap-protect"})
	assert.Equal(t, 3, p.TotalGaps)
	assert.Equal(t, 1, p.CompletedGaps)
	assert.Equal(t, 1, p.InProgressGaps)
	assert.Equal(t, 1, p.CriticalGapsRemaining)
	assert.Equal(t, 33, p.OverallCompletionPercentage)
	require.NotNil(t, p.NextRecommendedGap)
	assert.Equal(t, "gap-govern", p.NextRecommendedGap.ID)

	empty := ComputeProgress(nil, nil)
	assert.Equal(t, 0, empty.OverallCompletionPercentage)
	assert.Nil(t, empty.NextRecommendedGap)
}

func TestNewEngine_RejectsBadInput(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	_, err = NewEngine(nil, DefaultThresholds())
	assert.Error(t, err)

	th := DefaultThresholds()
	th.CriticalCeiling = 75
	_, err = NewEngine(cat, th)
	assert.ErrorIs(t, err, ErrInvalidThresholds)
}

func TestAssessmentResults_Validate(t *testing.T) {
	ok := AssessmentResults{SectionScores: []SectionScore{{Title: "govern", Percentage: 50}}}
	assert.NoError(t, ok.Validate())

	bad := AssessmentResults{SectionScores: []SectionScore{{Title: "govern", Percentage: 150}}}
	assert.Error(t, bad.Validate())

	empty := AssessmentResults{}
	assert.Error(t, empty.Validate())
}
