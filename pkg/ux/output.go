// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders journey CLI output. Every helper honors the active
// PersonalityLevel so the same command prints styled text on a terminal and
// stable tab-separated lines when piped.
package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette
// =============================================================================

var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles holds the shared lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess  Icon = "✓"
	IconWarning  Icon = "⚠"
	IconError    Icon = "✗"
	IconPending  Icon = "○"
	IconProgress Icon = "◐"
	IconArrow    Icon = "→"
)

// Render returns the icon colored for its meaning.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning, IconProgress:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Messages
// =============================================================================

// Title prints a heading. Machine output omits it.
func Title(text string) {
	if GetPersonality() == PersonalityMachine {
		return
	}
	fmt.Fprintln(out(), Styles.Title.Render(text))
}

// Success prints a success line.
func Success(text string) { message(IconSuccess, "OK", Styles.Success, text) }

// Warning prints a warning line.
func Warning(text string) { message(IconWarning, "WARN", Styles.Warning, text) }

// Error prints an error line.
func Error(text string) { message(IconError, "ERROR", Styles.Error, text) }

// Info prints a neutral line.
func Info(text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintln(out(), text)
	default:
		fmt.Fprintf(out(), "%s %s\n", Styles.Muted.Render("│"), text)
	}
}

func message(icon Icon, tag string, style lipgloss.Style, text string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(out(), "%s: %s\n", tag, text)
	case PersonalityMinimal:
		fmt.Fprintf(out(), "%s %s\n", icon, text)
	default:
		fmt.Fprintf(out(), "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Box prints content in a bordered box under a title.
func Box(title, content string) {
	if GetPersonality() != PersonalityFull {
		fmt.Fprintf(out(), "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(out(), Styles.Box.Width(64).Render(Styles.Title.Render(title)+"\n"+content))
}

// WarningBox prints content in a warning-colored box.
func WarningBox(title, content string) {
	if GetPersonality() != PersonalityFull {
		fmt.Fprintf(out(), "WARN %s: %s\n", title, content)
		return
	}
	fmt.Fprintln(out(), Styles.WarningBox.Width(64).Render(Styles.Warning.Bold(true).Render(title)+"\n"+content))
}

// KeyValue prints an aligned label and value.
func KeyValue(key, value string) {
	switch GetPersonality() {
	case PersonalityMachine:
		fmt.Fprintf(out(), "%s\t%s\n", key, value)
	default:
		fmt.Fprintf(out(), "  %-18s %s\n", Styles.Muted.Render(key), value)
	}
}

// =============================================================================
// Journey views
// =============================================================================

// StepView is one row of a step track.
type StepView struct {
	Key       string
	Title     string
	Completed bool
	Current   bool
}

// StepTrack prints the journey steps in order.
func StepTrack(steps []StepView) {
	for i, s := range steps {
		if GetPersonality() == PersonalityMachine {
			fmt.Fprintf(out(), "step\t%d\t%s\t%t\t%t\n", i, s.Key, s.Completed, s.Current)
			continue
		}
		icon := IconPending
		switch {
		case s.Completed:
			icon = IconSuccess
		case s.Current:
			icon = IconProgress
		}
		label := s.Title
		if s.Current {
			label = Styles.Bold.Render(label) + " " + Styles.Muted.Render("(current)")
		}
		fmt.Fprintf(out(), "  %s %d. %s\n", icon.Render(), i+1, label)
	}
}

// GapRow is one row of a gap table.
type GapRow struct {
	ID        string
	Title     string
	Score     int
	Severity  string
	Priority  int
	Status    string
	Tools     int
	ToolsDone int
}

// GapTable prints gaps in priority order as given.
func GapTable(rows []GapRow) {
	if len(rows) == 0 {
		Info("No compliance gaps identified.")
		return
	}
	for _, r := range rows {
		if GetPersonality() == PersonalityMachine {
			fmt.Fprintf(out(), "gap\t%s\t%d\t%s\t%d\t%s\t%d/%d\n",
				r.ID, r.Score, r.Severity, r.Priority, r.Status, r.ToolsDone, r.Tools)
			continue
		}
		icon := IconPending
		switch r.Status {
		case "completed":
			icon = IconSuccess
		case "in_progress":
			icon = IconProgress
		}
		fmt.Fprintf(out(), "  %s #%d %-12s %3d%%  %-8s  tools %s\n",
			icon.Render(), r.Priority, r.Title, r.Score,
			severityStyle(r.Severity).Render(r.Severity),
			ProgressBar(r.ToolsDone, r.Tools, 10))
	}
}

func severityStyle(sev string) lipgloss.Style {
	switch sev {
	case "critical":
		return Styles.Error
	case "high", "moderate":
		return Styles.Warning
	default:
		return Styles.Muted
	}
}

// ProgressBar renders current/total as a bar of the given width. Machine
// output is "current/total".
func ProgressBar(current, total int, width int) string {
	if GetPersonality() == PersonalityMachine {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total)
	}
	filled := int(pct * float64(width))
	bar := Styles.Success.Render(strings.Repeat("█", max(filled, 0))) +
		Styles.Muted.Render(strings.Repeat("░", max(width-filled, 0)))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
