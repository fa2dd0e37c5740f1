// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// PersonalityLevel defines the richness of CLI output.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons, boxes and progress bars.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityMinimal uses icons without colors or boxes.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs plain tab-separated text for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// PersonalityEnv overrides terminal detection when set.
const PersonalityEnv = "JOURNEY_PERSONALITY"

var (
	personalityMu sync.RWMutex
	currentLevel  = PersonalityFull
	output        io.Writer
)

func init() { output = os.Stdout }

// GetPersonality returns the active output level.
func GetPersonality() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentLevel
}

// SetPersonality sets the output level.
func SetPersonality(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentLevel = level
}

// SetOutput redirects rendered output. Passing nil restores os.Stdout.
func SetOutput(w io.Writer) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	output = w
}

// Output returns the writer rendered output goes to.
func Output() io.Writer { return out() }

func out() io.Writer {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return output
}

// ParsePersonality converts a flag or environment value to a level.
// Unknown values select PersonalityFull.
func ParsePersonality(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "plain", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityFull
	}
}

// InitPersonality picks the level from the flag value, then the
// JOURNEY_PERSONALITY variable, then terminal detection: piped stdout gets
// machine output.
func InitPersonality(flagValue string) {
	switch {
	case flagValue != "":
		SetPersonality(ParsePersonality(flagValue))
	case os.Getenv(PersonalityEnv) != "":
		SetPersonality(ParsePersonality(os.Getenv(PersonalityEnv)))
	case !IsTerminal(os.Stdout):
		SetPersonality(PersonalityMachine)
	default:
		SetPersonality(PersonalityFull)
	}
}

// IsTerminal reports whether f is an interactive terminal, including
// Cygwin and MSYS terminals on Windows.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
