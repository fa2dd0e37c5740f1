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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
	"github.com/AleutianAI/ComplianceJourney/pkg/validation"
	"github.com/AleutianAI/ComplianceJourney/services/journey/gaps"
	"github.com/AleutianAI/ComplianceJourney/services/journey/state"
	"github.com/AleutianAI/ComplianceJourney/services/journey/tracker"
)

// maxResultsFileSize bounds assessment result files read by "assess".
const maxResultsFileSize = 1 << 20

// =============================================================================
// Root
// =============================================================================

func newRootCmd() *cobra.Command {
	var (
		opts        appOptions
		personality string
	)

	root := &cobra.Command{
		Use:   "journey",
		Short: "Track a compliance programme from assessment to maintenance",
		Long: `journey turns assessment scores into prioritised compliance gaps and
tracks remediation through four steps: Assess, Discover, Act and Maintain.
State is kept per profile in a local database under ~/.journey.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.InitPersonality(personality)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.journey/journey.yaml)")
	flags.StringVar(&opts.Profile, "profile", "", "journey profile to use")
	flags.BoolVar(&opts.InMemory, "in-memory", false, "keep state only for this invocation")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&personality, "output", "", "output style: full, minimal, machine")

	// withApp opens the journey around a command body.
	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			unsubscribe := subscribeNotifications(a)
			defer func() {
				unsubscribe()
				if cerr := a.close(ctx); cerr != nil && err == nil {
					err = cerr
				}
			}()
			return fn(ctx, a, args)
		}
	}

	root.AddCommand(
		newAssessCmd(withApp),
		newToolCmd(withApp),
		newGapCmd(withApp),
		newStepCmd(withApp),
		newStatusCmd(withApp),
		newNextCmd(withApp),
		newToolsCmd(withApp),
		newExportCmd(withApp),
		newImportCmd(withApp),
		newValidateCmd(withApp),
		newResetCmd(withApp),
		newAnalyticsCmd(withApp),
		newMetricsCmd(withApp),
	)
	return root
}

type runner func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error

// =============================================================================
// Mutations
// =============================================================================

func newAssessCmd(withApp runner) *cobra.Command {
	var preserve bool
	cmd := &cobra.Command{
		Use:   "assess <results-file>",
		Short: "Load assessment results (YAML or JSON) and regenerate gaps",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			results, err := readResults(args[0])
			if err != nil {
				return err
			}
			if _, err := a.tracker.SetAssessmentResults(ctx, results, preserve); err != nil {
				return err
			}
			renderGaps(a)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&preserve, "preserve", true, "carry forward gap progress from the previous assessment")
	return cmd
}

// readResults parses an assessment results file. JSON is valid YAML, so one
// decoder serves both.
func readResults(path string) (gaps.AssessmentResults, error) {
	var results gaps.AssessmentResults
	info, err := os.Stat(path)
	if err != nil {
		return results, fmt.Errorf("read results: %w", err)
	}
	if info.Size() > maxResultsFileSize {
		return results, fmt.Errorf("results file %s exceeds %d bytes", path, maxResultsFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return results, fmt.Errorf("read results: %w", err)
	}
	if err := yaml.Unmarshal(data, &results); err != nil {
		return results, fmt.Errorf("parse results %s: %w", path, err)
	}
	return results, nil
}

func newToolCmd(withApp runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Record remediation tool activity",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <tool-id>",
			Short: "Mark a tool as started",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := idArg("tool", args[0])
				if err != nil {
					return err
				}
				out, err := a.tracker.MarkToolStarted(ctx, id)
				return report(out, err, "tool", id, "started")
			}),
		},
		&cobra.Command{
			Use:   "complete <tool-id>",
			Short: "Mark a tool as completed",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := idArg("tool", args[0])
				if err != nil {
					return err
				}
				out, err := a.tracker.MarkToolCompleted(ctx, id)
				return report(out, err, "tool", id, "completed")
			}),
		},
	)
	return cmd
}

func newGapCmd(withApp runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gap",
		Short: "Update a compliance gap directly",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "start <gap-id>",
			Short: "Mark a gap as in progress",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := idArg("gap", args[0])
				if err != nil {
					return err
				}
				out, err := a.tracker.MarkGapStarted(ctx, id)
				return report(out, err, "gap", id, "started")
			}),
		},
		&cobra.Command{
			Use:   "complete <gap-id>",
			Short: "Mark a gap as completed",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, a *app, args []string) error {
				id, err := idArg("gap", args[0])
				if err != nil {
					return err
				}
				out, err := a.tracker.MarkGapCompleted(ctx, id)
				return report(out, err, "gap", id, "completed")
			}),
		},
	)
	return cmd
}

func newStepCmd(withApp runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Manage journey steps",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "complete <assess|discover|act|maintain>",
		Short:     "Mark a journey step as completed",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"assess", "discover", "act", "maintain"},
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			key, err := idArg("step", args[0])
			if err != nil {
				return err
			}
			out, err := a.tracker.CompleteStep(ctx, state.StepKey(key))
			return report(out, err, "step", key, "completed")
		}),
	})
	return cmd
}

// idArg normalizes an id argument. Malformed ids are findings, like
// unknown ones.
func idArg(kind, raw string) (string, error) {
	id, err := validation.SanitizeIdentifier(raw)
	if err != nil {
		return "", findings("%s: %v", kind, err)
	}
	return id, nil
}

// report prints the result of a mutation and maps NotFound to a findings
// exit code.
func report(out tracker.Outcome, err error, kind, id, verb string) error {
	if err != nil {
		return err
	}
	switch out {
	case tracker.Applied:
		ux.Success(fmt.Sprintf("%s %s %s", kind, id, verb))
	case tracker.Unchanged:
		ux.Info(fmt.Sprintf("%s %s already %s", kind, id, verb))
	case tracker.NotFound:
		return findings("unknown %s %q", kind, id)
	}
	return nil
}

func newResetCmd(withApp runner) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all journey progress and analytics for the profile",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if !yes {
				return findings("reset deletes all progress; rerun with --yes to confirm")
			}
			return a.tracker.ResetJourney(ctx)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

// =============================================================================
// Export / Import / Validate
// =============================================================================

func newExportCmd(withApp runner) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the journey as a versioned JSON document",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			data, err := a.tracker.Export(ctx)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = ux.Output().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			ux.Success("journey exported to " + output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newImportCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the journey with an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			defer f.Close()
			data, err := io.ReadAll(io.LimitReader(f, state.MaxImportBytes+1))
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}
			res, err := a.tracker.Import(ctx, data)
			var ie *state.ImportError
			if errors.As(err, &ie) {
				return findings("%s", ie.Error())
			}
			if err != nil {
				return err
			}
			if res.Recovered {
				for _, issue := range append(res.Validation.Errors, res.Validation.Warnings...) {
					ux.Info(fmt.Sprintf("repaired %s: %s", issue.Field, issue.Message))
				}
			}
			return nil
		}),
	}
}

func newValidateCmd(withApp runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the stored journey for inconsistencies",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			res := a.tracker.Validate()
			if asJSON {
				if err := outputJSON(res); err != nil {
					return err
				}
			} else {
				renderValidation(res)
			}
			if !res.Valid {
				return &ExitError{Code: CLIExitFindings}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// =============================================================================
// Queries
// =============================================================================

func newStatusCmd(withApp runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show journey steps, gaps and progress",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if asJSON {
				return outputJSON(statusView(a))
			}
			renderStatus(a)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func newNextCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the highest priority open gap and its tools",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			renderNext(a)
			return nil
		}),
	}
}

func newToolsCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List remediation tools and their completion",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			renderTools(a)
			return nil
		}),
	}
}

func newAnalyticsCmd(withApp runner) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show time and activity totals for the journey",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if asJSON {
				return outputJSON(struct {
					Summary any `json:"summary"`
					Record  any `json:"record"`
				}{a.recorder.Summary(), a.recorder.Snapshot()})
			}
			renderAnalytics(a)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analytics as JSON")
	return cmd
}
