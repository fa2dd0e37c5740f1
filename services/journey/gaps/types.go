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
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/ComplianceJourney/services/journey/catalog"
)

// Status is the lifecycle state of an identified gap.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known gap status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// IdentifiedGap is a domain whose assessment score fell below the gap ceiling.
//
// ID is always "gap-<domain>", so a gap list holds at most one gap per domain.
// Priority is a dense rank (1 = highest) assigned by ascending score when the
// list was generated.
type IdentifiedGap struct {
	ID               string           `json:"id"`
	Domain           catalog.Domain   `json:"domain"`
	DomainTitle      string           `json:"domainTitle"`
	Score            int              `json:"score"`
	Severity         catalog.Severity `json:"severity"`
	Priority         int              `json:"priority"`
	Timeline         string           `json:"timeline"`
	EstimatedEffort  string           `json:"estimatedEffort"`
	Impact           string           `json:"impact"`
	RecommendedTools []string         `json:"recommendedTools"`
	Description      string           `json:"description"`
	Status           Status           `json:"status"`
}

// Clone returns a deep copy of the gap.
func (g IdentifiedGap) Clone() IdentifiedGap {
	g.RecommendedTools = append([]string(nil), g.RecommendedTools...)
	return g
}

// HasTool reports whether toolID is one of the gap's recommended tools.
func (g IdentifiedGap) HasTool(toolID string) bool {
	for _, id := range g.RecommendedTools {
		if id == toolID {
			return true
		}
	}
	return false
}

// SectionScore is one scored section of a completed assessment.
type SectionScore struct {
	Title      string  `json:"title" yaml:"title" validate:"required"`
	Percentage float64 `json:"percentage" yaml:"percentage" validate:"gte=0,lte=100"`
	Completed  bool    `json:"completed" yaml:"completed"`
}

// AssessmentResults is the payload submitted when an assessment completes.
type AssessmentResults struct {
	SectionScores  []SectionScore `json:"sectionScores" yaml:"sectionScores" validate:"required,min=1,dive"`
	OverallScore   *float64       `json:"overallScore,omitempty" yaml:"overallScore,omitempty" validate:"omitempty,gte=0,lte=100"`
	AssessmentType string         `json:"assessmentType,omitempty" yaml:"assessmentType,omitempty"`
	FrameworkName  string         `json:"frameworkName,omitempty" yaml:"frameworkName,omitempty"`
	CompletedDate  string         `json:"completedDate,omitempty" yaml:"completedDate,omitempty"`
}

var resultsValidate = validator.New()

// Validate checks the structural rules of the results payload.
//
// Outputs:
//
//	error - validator.ValidationErrors naming the offending fields, or nil.
func (r *AssessmentResults) Validate() error {
	return resultsValidate.Struct(r)
}

// Progress is the derived summary of gap closure. It is recomputed from the
// gap list on demand and never persisted.
type Progress struct {
	TotalGaps                   int            `json:"totalGaps"`
	CompletedGaps               int            `json:"completedGaps"`
	InProgressGaps              int            `json:"inProgressGaps"`
	CriticalGapsRemaining       int            `json:"criticalGapsRemaining"`
	OverallCompletionPercentage int            `json:"overallCompletionPercentage"`
	NextRecommendedGap          *IdentifiedGap `json:"nextRecommendedGap,omitempty"`
}
