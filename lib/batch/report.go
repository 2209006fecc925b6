// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"fmt"
	"time"

	"github.com/conda-forge/admin-requests/lib/request"
)

// State is a request's position in the per-run state machine:
//
//	loaded -> running -> succeeded | partial | failed
//	loaded -> invalid
//
// invalid covers load, resolve, and Check failures; such files are
// never run.
type State string

const (
	StateLoaded    State = "loaded"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StatePartial   State = "partial"
	StateFailed    State = "failed"
	StateInvalid   State = "invalid"
)

// Mode records which pass produced a report.
type Mode string

const (
	ModeCheck Mode = "check"
	ModeRun   Mode = "run"
)

// Outcome is one file's result.
type Outcome struct {
	Path        string
	Action      string
	State       State
	Fingerprint string

	// Err is set for invalid and failed outcomes: the load, resolve,
	// or Check error for invalid, a *FatalHandlerError for failed.
	Err error

	// Residual is the request written back for a partial outcome.
	Residual request.Request

	// PersistErr is set when the terminal state could not be made
	// durable. The outcome's State still reflects what Run returned.
	PersistErr error
}

// OK reports whether the outcome needs no human attention.
func (outcome Outcome) OK() bool {
	return outcome.Err == nil && outcome.PersistErr == nil &&
		outcome.State != StateFailed && outcome.State != StateInvalid
}

// problem returns the error that makes the outcome not OK.
func (outcome Outcome) problem() error {
	switch {
	case outcome.Err != nil && outcome.State == StateInvalid:
		return Failure{Path: outcome.Path, Action: outcome.Action, Err: outcome.Err}.asError()
	case outcome.Err != nil:
		return outcome.Err
	case outcome.PersistErr != nil:
		return &PersistError{Path: outcome.Path, Err: outcome.PersistErr}
	default:
		return fmt.Errorf("%s: %s", outcome.Path, outcome.State)
	}
}

// failureError wraps a Failure so it can travel as an error while
// keeping the underlying cause reachable.
type failureError struct{ Failure }

func (err failureError) Error() string { return err.Failure.String() }
func (err failureError) Unwrap() error { return err.Failure.Err }

func (failure Failure) asError() error { return failureError{failure} }

// Report is the result of a Check or Run pass over one batch.
type Report struct {
	RunID      string
	Mode       Mode
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Count returns the number of outcomes in the given state.
func (report *Report) Count(state State) int {
	count := 0
	for _, outcome := range report.Outcomes {
		if outcome.State == state {
			count++
		}
	}
	return count
}

// Err returns nil when every file passed (check) or no file needs
// attention (run). A check pass returns *ValidationError; a run pass
// returns *RunError. Partial outcomes are expected progress, not
// errors.
func (report *Report) Err() error {
	if report.Mode == ModeCheck {
		var failures []Failure
		for _, outcome := range report.Outcomes {
			if outcome.State == StateInvalid {
				failures = append(failures, Failure{Path: outcome.Path, Action: outcome.Action, Err: outcome.Err})
			}
		}
		if len(failures) == 0 {
			return nil
		}
		return &ValidationError{Failures: failures}
	}

	var problems []Outcome
	for _, outcome := range report.Outcomes {
		if !outcome.OK() {
			problems = append(problems, outcome)
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &RunError{Outcomes: problems}
}
