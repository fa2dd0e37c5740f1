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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
)

// cliHarness runs the CLI against an on-disk store in a temp directory so
// state survives between invocations.
type cliHarness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "journey.yaml")
	body := "storage:\n" +
		"  dir: " + filepath.Join(dir, "data") + "\n" +
		"  profile: cli\n" +
		"  cache_size: 16\n" +
		"  gc_interval: 0s\n" +
		"logging:\n" +
		"  level: error\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0600))
	t.Cleanup(func() {
		ux.SetOutput(nil)
		ux.SetPersonality(ux.PersonalityFull)
	})
	return &cliHarness{t: t, dir: dir, config: config}
}

func (h *cliHarness) run(args ...string) (int, string) {
	h.t.Helper()
	var buf bytes.Buffer
	ux.SetOutput(&buf)
	full := append([]string{"--config", h.config, "--output", "machine"}, args...)
	code := run(full)
	return code, buf.String()
}

func (h *cliHarness) writeFile(name, body string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(body), 0600))
	return path
}

const resultsYAML = `sectionScores:
  - title: Govern
    percentage: 55
    completed: true
  - title: Identify
    percentage: 90
    completed: true
  - title: Control
    percentage: 65
    completed: true
  - title: Communicate
    percentage: 85
    completed: true
  - title: Protect
    percentage: 40
    completed: true
frameworkName: NIST Privacy Framework
`

var protectTools = []string{
	"security-controls-checklist",
	"vendor-risk-assessment",
	"incident-response-plan",
	"dpia-wizard",
}

func TestCLI_AssessListsGaps(t *testing.T) {
	h := newHarness(t)
	code, out := h.run("assess", h.writeFile("results.yaml", resultsYAML))
	require.Equal(t, CLIExitSuccess, code, out)

	assert.Contains(t, out, "gap\tgap-protect\t40\t")
	assert.Contains(t, out, "gap\tgap-govern\t55\t")
	assert.Contains(t, out, "gap\tgap-control\t65\t")
	assert.NotContains(t, out, "gap-identify")
	assert.Contains(t, out, "Assessment processed")
}

func TestCLI_AssessAcceptsJSON(t *testing.T) {
	h := newHarness(t)
	body := `{"sectionScores":[{"title":"Protect","percentage":30,"completed":true}]}`
	code, out := h.run("assess", h.writeFile("results.json", body))
	require.Equal(t, CLIExitSuccess, code, out)
	assert.Contains(t, out, "gap\tgap-protect\t30\t")
}

func TestCLI_AssessRejectsInvalidResults(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("assess", h.writeFile("empty.yaml", "sectionScores: []\n"))
	assert.Equal(t, CLIExitError, code)

	code, _ = h.run("assess", filepath.Join(h.dir, "missing.yaml"))
	assert.Equal(t, CLIExitError, code)
}

func TestCLI_ProgressPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("assess", h.writeFile("results.yaml", resultsYAML))
	require.Equal(t, CLIExitSuccess, code)

	for i, tool := range protectTools {
		code, out := h.run("tool", "complete", tool)
		require.Equal(t, CLIExitSuccess, code, out)
		if i == len(protectTools)-1 {
			assert.Contains(t, out, "Gap closed")
		}
	}

	code, out := h.run("status")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "step\t0\tassess\ttrue\t")
	assert.Contains(t, out, "step\t1\tdiscover\ttrue\t")
	assert.Contains(t, out, "gap\tgap-protect\t40\t")
	assert.Contains(t, out, "\tcompleted\t4/4")

	code, out = h.run("next")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "next\tgap-govern")
}

func TestCLI_RepeatCompletionIsUnchanged(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("tool", "complete", "data-mapping")
	require.Equal(t, CLIExitSuccess, code)

	code, out := h.run("tool", "complete", "data-mapping")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "already completed")
}

func TestCLI_UnknownIDsAreFindings(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("tool", "complete", "no-such-tool")
	assert.Equal(t, CLIExitFindings, code)

	code, _ = h.run("gap", "complete", "gap-nowhere")
	assert.Equal(t, CLIExitFindings, code)

	code, _ = h.run("step", "complete", "celebrate")
	assert.Equal(t, CLIExitFindings, code)

	code, _ = h.run("tool", "complete", "journey:cli:state")
	assert.Equal(t, CLIExitFindings, code)
}

func TestCLI_IDsAreNormalized(t *testing.T) {
	h := newHarness(t)
	code, out := h.run("tool", "complete", " Data-Mapping ")
	require.Equal(t, CLIExitSuccess, code, out)
	assert.Contains(t, out, "tool data-mapping completed")

	code, out = h.run("step", "complete", "ASSESS")
	require.Equal(t, CLIExitSuccess, code, out)
}

func TestCLI_StatusJSON(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("assess", h.writeFile("results.yaml", resultsYAML))
	require.Equal(t, CLIExitSuccess, code)

	code, out := h.run("status", "--json")
	require.Equal(t, CLIExitSuccess, code)

	var view struct {
		Profile     string `json:"profile"`
		CurrentStep string `json:"currentStep"`
		Progress    int    `json:"progress"`
		Gaps        struct {
			TotalGaps int `json:"totalGaps"`
		} `json:"gaps"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.Equal(t, "cli", view.Profile)
	assert.Equal(t, "discover", view.CurrentStep)
	assert.Equal(t, 25, view.Progress)
	assert.Equal(t, 3, view.Gaps.TotalGaps)
}

func TestCLI_ExportResetImport(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("assess", h.writeFile("results.yaml", resultsYAML))
	require.Equal(t, CLIExitSuccess, code)
	code, _ = h.run("tool", "complete", "policy-generator")
	require.Equal(t, CLIExitSuccess, code)

	exported := filepath.Join(h.dir, "export.json")
	code, out := h.run("export", "-o", exported)
	require.Equal(t, CLIExitSuccess, code, out)

	code, _ = h.run("reset")
	assert.Equal(t, CLIExitFindings, code, "reset without --yes must refuse")

	code, out = h.run("reset", "--yes")
	require.Equal(t, CLIExitSuccess, code, out)
	code, out = h.run("status")
	require.Equal(t, CLIExitSuccess, code)
	assert.NotContains(t, out, "gap-protect")

	code, out = h.run("import", exported)
	require.Equal(t, CLIExitSuccess, code, out)
	assert.Contains(t, out, "Journey imported")

	code, out = h.run("status")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "gap-protect")

	code, out = h.run("tools")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "tool\tpolicy-generator\tcompleted\tgovern")
}

func TestCLI_ImportRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	code, out := h.run("import", h.writeFile("bad.json", "not json"))
	assert.Equal(t, CLIExitFindings, code)
	assert.Contains(t, out, "Import failed")
}

func TestCLI_Validate(t *testing.T) {
	h := newHarness(t)
	code, out := h.run("validate")
	assert.Equal(t, CLIExitSuccess, code, out)

	code, out = h.run("validate", "--json")
	require.Equal(t, CLIExitSuccess, code)
	var res struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.True(t, res.Valid)
}

func TestCLI_Analytics(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("tool", "start", "data-mapping")
	require.Equal(t, CLIExitSuccess, code)
	code, _ = h.run("tool", "complete", "data-mapping")
	require.Equal(t, CLIExitSuccess, code)

	code, out := h.run("analytics")
	require.Equal(t, CLIExitSuccess, code)
	assert.Contains(t, out, "tool completions\t1/1")
	assert.Contains(t, out, "sessions\t")
}

func TestCLI_InvalidFlagsAreErrors(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("--log-level", "loud", "status")
	assert.Equal(t, CLIExitError, code)

	code, _ = h.run("--profile", "a:b", "status")
	assert.Equal(t, CLIExitError, code)
}

func TestCLI_InMemoryCreatesDefaultConfig(t *testing.T) {
	t.Cleanup(func() {
		ux.SetOutput(nil)
		ux.SetPersonality(ux.PersonalityFull)
	})
	config := filepath.Join(t.TempDir(), "nested", "journey.yaml")
	var buf bytes.Buffer
	ux.SetOutput(&buf)

	code := run([]string{"--config", config, "--in-memory", "--output", "machine", "status"})
	require.Equal(t, CLIExitSuccess, code, buf.String())
	assert.FileExists(t, config)
	assert.Contains(t, buf.String(), "Created default configuration")
}
