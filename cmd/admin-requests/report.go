// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/conda-forge/admin-requests/lib/batch"
	"github.com/conda-forge/admin-requests/lib/request"
)

// stateColors are ANSI palette indexes, readable on dark and light
// backgrounds.
var stateColors = map[batch.State]lipgloss.Color{
	batch.StateLoaded:    lipgloss.Color("6"),
	batch.StateSucceeded: lipgloss.Color("2"),
	batch.StatePartial:   lipgloss.Color("3"),
	batch.StateFailed:    lipgloss.Color("1"),
	batch.StateInvalid:   lipgloss.Color("5"),
}

// summaryStates is the order states appear in the summary line.
var summaryStates = []batch.State{
	batch.StateSucceeded,
	batch.StatePartial,
	batch.StateFailed,
	batch.StateInvalid,
}

// renderReport writes one line per request followed by a summary. In a
// check report, loaded means the request is valid. Each line ends with
// the short fingerprint of the file the run read.
func renderReport(w io.Writer, report *batch.Report, styled bool) error {
	renderer := lipgloss.NewRenderer(w)
	if !styled {
		renderer.SetColorProfile(termenv.Ascii)
	}

	pathWidth, actionWidth := 0, 0
	for _, outcome := range report.Outcomes {
		pathWidth = max(pathWidth, len(outcome.Path))
		actionWidth = max(actionWidth, len(outcome.Action))
	}
	pathStyle := renderer.NewStyle().Width(pathWidth + 2)
	actionStyle := renderer.NewStyle().Width(actionWidth + 2)
	faint := renderer.NewStyle().Faint(true)

	var out strings.Builder
	for _, outcome := range report.Outcomes {
		badge := renderer.NewStyle().
			Width(10).
			Bold(true).
			Foreground(stateColors[outcome.State]).
			Render(stateLabel(report.Mode, outcome.State))
		action := outcome.Action
		if action == "" {
			action = "-"
		}
		line := badge + pathStyle.Render(outcome.Path) + actionStyle.Render(action)
		if outcome.Fingerprint != "" {
			line += faint.Render(request.ShortFingerprint(outcome.Fingerprint))
		}
		out.WriteString(line + "\n")

		if outcome.Err != nil {
			out.WriteString(indent(outcome.Err.Error()))
		}
		if outcome.PersistErr != nil {
			out.WriteString(indent("not persisted: " + outcome.PersistErr.Error()))
		}
		if outcome.State == batch.StatePartial {
			out.WriteString(indent(faint.Render("left to do: " + strings.Join(residualFields(outcome.Residual), ", "))))
		}
	}

	if len(report.Outcomes) == 0 {
		out.WriteString(faint.Render("no requests in "+report.Dir) + "\n")
	}
	out.WriteString(summaryLine(report) + "\n")

	_, err := io.WriteString(w, out.String())
	return err
}

// residualFields names the fields a partial run left in the file.
func residualFields(residual request.Request) []string {
	var fields []string
	for _, key := range residual.Keys() {
		if key != "action" {
			fields = append(fields, key)
		}
	}
	return fields
}

func stateLabel(mode batch.Mode, state batch.State) string {
	if mode == batch.ModeCheck && state == batch.StateLoaded {
		return "VALID"
	}
	return strings.ToUpper(string(state))
}

func indent(text string) string {
	var out strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		out.WriteString("    " + line + "\n")
	}
	return out.String()
}

func summaryLine(report *batch.Report) string {
	var parts []string
	if report.Mode == batch.ModeCheck {
		parts = append(parts,
			fmt.Sprintf("%d valid", report.Count(batch.StateLoaded)),
			fmt.Sprintf("%d invalid", report.Count(batch.StateInvalid)),
		)
	} else {
		for _, state := range summaryStates {
			parts = append(parts, fmt.Sprintf("%d %s", report.Count(state), state))
		}
	}
	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	return fmt.Sprintf("%s %s: %s (%d requests, %s)",
		report.Mode, shortRunID(report.RunID), strings.Join(parts, ", "), len(report.Outcomes), elapsed)
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

// reportJSON is the --json form of a batch report.
type reportJSON struct {
	RunID      string         `json:"run_id"`
	Mode       batch.Mode     `json:"mode"`
	Dir        string         `json:"dir"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Counts     map[string]int `json:"counts"`
	Outcomes   []outcomeJSON  `json:"outcomes"`
}

type outcomeJSON struct {
	Path         string          `json:"path"`
	Action       string          `json:"action,omitempty"`
	State        batch.State     `json:"state"`
	Fingerprint  string          `json:"fingerprint,omitempty"`
	Error        string          `json:"error,omitempty"`
	PersistError string          `json:"persist_error,omitempty"`
	Residual     request.Request `json:"residual,omitempty"`
}

func newReportJSON(report *batch.Report) reportJSON {
	result := reportJSON{
		RunID:      report.RunID,
		Mode:       report.Mode,
		Dir:        report.Dir,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Counts:     make(map[string]int),
		Outcomes:   make([]outcomeJSON, 0, len(report.Outcomes)),
	}
	for _, outcome := range report.Outcomes {
		result.Counts[string(outcome.State)]++
		entry := outcomeJSON{
			Path:        outcome.Path,
			Action:      outcome.Action,
			State:       outcome.State,
			Fingerprint: outcome.Fingerprint,
			Residual:    outcome.Residual,
		}
		if outcome.Err != nil {
			entry.Error = outcome.Err.Error()
		}
		if outcome.PersistErr != nil {
			entry.PersistError = outcome.PersistErr.Error()
		}
		result.Outcomes = append(result.Outcomes, entry)
	}
	return result
}
