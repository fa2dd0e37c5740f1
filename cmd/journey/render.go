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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/notify"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
)

// subscribeNotifications prints tracker notifications as they are emitted
// and returns a function that stops printing.
func subscribeNotifications(a *app) func() {
	id := a.events.Subscribe(func(n notify.Notification) {
		text := n.Title
		if n.Message != "" {
			text += ": " + n.Message
		}
		switch n.Kind {
		case notify.KindSuccess:
			ux.Success(text)
		case notify.KindWarning:
			ux.Warning(text)
		case notify.KindError:
			ux.Error(text)
		default:
			ux.Info(text)
		}
	})
	return func() { a.events.Unsubscribe(id) }
}

// outputJSON writes v as indented JSON to the command output.
func outputJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = ux.Output().Write(append(data, '\n'))
	return err
}

// =============================================================================
// Gaps
// =============================================================================

func gapRows(s state.JourneyState) []ux.GapRow {
	rows := make([]ux.GapRow, 0, len(s.IdentifiedGaps))
	for _, g := range s.IdentifiedGaps {
		done := 0
		for _, tool := range g.RecommendedTools {
			if s.HasCompletedTool(tool) {
				done++
			}
		}
		rows = append(rows, ux.GapRow{
			ID:        g.ID,
			Title:     g.DomainTitle,
			Score:     g.Score,
			Severity:  string(g.Severity),
			Priority:  g.Priority,
			Status:    string(g.Status),
			Tools:     len(g.RecommendedTools),
			ToolsDone: done,
		})
	}
	return rows
}

func renderGaps(a *app) {
	ux.Title("Compliance gaps")
	ux.GapTable(gapRows(a.tracker.Snapshot()))
}

// =============================================================================
// Status
// =============================================================================

type statusJSON struct {
	Profile     string             `json:"profile"`
	CurrentStep state.StepKey      `json:"currentStep"`
	Progress    int                `json:"progress"`
	Gaps        gaps.Progress      `json:"gaps"`
	Journey     state.JourneyState `json:"journey"`
}

func statusView(a *app) any {
	return statusJSON{
		Profile:     a.cfg.Storage.Profile,
		CurrentStep: a.tracker.CurrentStep(),
		Progress:    a.tracker.Progress(),
		Gaps:        a.tracker.GapProgress(),
		Journey:     a.tracker.Snapshot(),
	}
}

func renderStatus(a *app) {
	s := a.tracker.Snapshot()
	current := s.CurrentStep()

	ux.Title("Compliance journey")
	ux.KeyValue("profile", a.cfg.Storage.Profile)
	ux.KeyValue("steps", ux.ProgressBar(len(s.CompletedSteps), len(state.Steps()), 20))

	views := make([]ux.StepView, 0, len(state.Steps()))
	for _, k := range state.Steps() {
		views = append(views, ux.StepView{
			Key:       string(k),
			Title:     k.Title(),
			Completed: s.HasCompletedStep(k),
			Current:   k == current,
		})
	}
	ux.StepTrack(views)

	if !s.HasCompletedAssessment {
		ux.Info("No assessment loaded. Run \"journey assess <results-file>\" to begin.")
		return
	}
	p := a.tracker.GapProgress()
	ux.KeyValue("gaps", ux.ProgressBar(p.CompletedGaps, p.TotalGaps, 20))
	ux.KeyValue("critical open", fmt.Sprintf("%d", p.CriticalGapsRemaining))
	ux.GapTable(gapRows(s))
}

// renderNext shows the next gap to work on and its tools.
func renderNext(a *app) {
	g, ok := a.tracker.NextPriorityGap()
	if !ok {
		if a.tracker.Snapshot().HasCompletedAssessment {
			ux.Success("Every compliance gap is closed.")
		} else {
			ux.Info("No assessment loaded yet.")
		}
		return
	}
	s := a.tracker.Snapshot()
	cat := a.tracker.Catalog()

	var b strings.Builder
	fmt.Fprintf(&b, "%s severity, score %d%%\n", g.Severity, g.Score)
	fmt.Fprintf(&b, "Timeline: %s\nEffort: %s\n", g.Timeline, g.EstimatedEffort)
	for _, id := range g.RecommendedTools {
		mark := "[ ]"
		if s.HasCompletedTool(id) {
			mark = "[x]"
		}
		name := id
		if tool, ok := cat.Tool(id); ok {
			name = tool.Name
		}
		fmt.Fprintf(&b, "\n%s %s (%s)", mark, name, id)
	}

	if ux.GetPersonality() == ux.PersonalityMachine {
		ux.KeyValue("next", g.ID)
		for _, id := range g.RecommendedTools {
			ux.KeyValue("tool", fmt.Sprintf("%s\t%t", id, s.HasCompletedTool(id)))
		}
		return
	}
	ux.Box(fmt.Sprintf("Next: %s (%d%% complete)", g.DomainTitle, a.tracker.GapCompletionPercentage(g.Domain)), b.String())
}

func renderTools(a *app) {
	s := a.tracker.Snapshot()
	cat := a.tracker.Catalog()
	ux.Title("Remediation tools")
	for _, id := range cat.Tools() {
		tool, _ := cat.Tool(id)
		domains := make([]string, 0, len(tool.Domains))
		for _, d := range tool.Domains {
			domains = append(domains, string(d))
		}
		status := "pending"
		switch {
		case s.HasCompletedTool(id):
			status = "completed"
		case s.ToolUsageIndex(id) >= 0:
			status = "started"
		}
		if ux.GetPersonality() == ux.PersonalityMachine {
			ux.KeyValue("tool", fmt.Sprintf("%s\t%s\t%s", id, status, strings.Join(domains, ",")))
			continue
		}
		ux.KeyValue(tool.Name, fmt.Sprintf("%-9s %s", status, strings.Join(domains, ", ")))
	}
}

// =============================================================================
// Validation / Analytics
// =============================================================================

func renderValidation(res state.ValidationResult) {
	if res.Clean() {
		ux.Success("Journey state is consistent.")
		return
	}
	for _, issue := range res.Errors {
		ux.Error(fmt.Sprintf("%s (%s): %s", issue.Field, issue.Code, issue.Message))
	}
	for _, issue := range res.Warnings {
		ux.Warning(fmt.Sprintf("%s (%s): %s", issue.Field, issue.Code, issue.Message))
	}
	if !res.Valid && res.CanRecover {
		ux.Info("Issues are recoverable; the journey is repaired on next load.")
	}
}

func renderAnalytics(a *app) {
	sum := a.recorder.Summary()
	ux.Title("Journey analytics")
	ux.KeyValue("sessions", fmt.Sprintf("%d", sum.SessionCount))
	ux.KeyValue("average session", durationText(sum.AverageSessionMs))
	ux.KeyValue("total time", durationText(sum.TotalTimeMs))
	ux.KeyValue("gaps closed", fmt.Sprintf("%d", sum.TotalGapsClosed))
	ux.KeyValue("tool completions", fmt.Sprintf("%d/%d", sum.ToolCompletions, sum.ToolAttempts))
	ux.KeyValue("completion rate", fmt.Sprintf("%.0f%%", sum.ToolCompletionRate*100))
	if sum.BusiestDomain != "" {
		ux.KeyValue("busiest domain", sum.BusiestDomain.Title())
	}
}

func durationText(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}
