// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"errors"
	"fmt"
	"strings"
)

// Failure is one file's validation failure.
type Failure struct {
	Path   string
	Action string
	Err    error
}

func (failure Failure) String() string {
	if failure.Action == "" {
		return fmt.Sprintf("%s: %v", failure.Path, failure.Err)
	}
	return fmt.Sprintf("%s (%s): %v", failure.Path, failure.Action, failure.Err)
}

// ValidationError aggregates every validation failure in a batch:
// malformed files, unknown actions, and handler Check errors. It is
// returned only after every file was checked.
type ValidationError struct {
	Failures []Failure
}

func (err *ValidationError) Error() string {
	lines := make([]string, 0, len(err.Failures)+1)
	lines = append(lines, fmt.Sprintf("%d request(s) failed validation:", len(err.Failures)))
	for _, failure := range err.Failures {
		lines = append(lines, "  "+failure.String())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes the per-file errors to errors.Is and errors.As.
func (err *ValidationError) Unwrap() []error {
	errs := make([]error, len(err.Failures))
	for i, failure := range err.Failures {
		errs[i] = failure.Err
	}
	return errs
}

// FatalHandlerError reports a handler Run that returned an error,
// panicked, or returned a residual that breaks the handler contract.
// The request file is left untouched.
type FatalHandlerError struct {
	Path   string
	Action string
	Err    error
}

func (err *FatalHandlerError) Error() string {
	return fmt.Sprintf("%s (%s): run failed: %v", err.Path, err.Action, err.Err)
}

func (err *FatalHandlerError) Unwrap() error {
	return err.Err
}

// PanicError is the error recorded when a handler panics. The batch
// keeps going; the panic is scoped to one file.
type PanicError struct {
	Value any
	Stack []byte
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("handler panicked: %v", err.Value)
}

// ResidualError reports a residual that is not a request for the same
// action as the original. Persisting it would hand the file to a
// different handler on the next run.
type ResidualError struct {
	Want string
	Got  string
}

func (err *ResidualError) Error() string {
	if err.Got == "" {
		return fmt.Sprintf("residual has no action, want %q", err.Want)
	}
	return fmt.Sprintf("residual action %q does not match request action %q", err.Got, err.Want)
}

// PersistError reports that a terminal state was computed but could
// not be written or committed.
type PersistError struct {
	Path string
	Err  error
}

func (err *PersistError) Error() string {
	return fmt.Sprintf("%s: persisting outcome: %v", err.Path, err.Err)
}

func (err *PersistError) Unwrap() error {
	return err.Err
}

// RunError aggregates every per-file problem of a run: validation
// failures, fatal handler errors, and persistence errors.
type RunError struct {
	Outcomes []Outcome
}

func (err *RunError) Error() string {
	lines := make([]string, 0, len(err.Outcomes)+1)
	lines = append(lines, fmt.Sprintf("%d request(s) did not complete cleanly:", len(err.Outcomes)))
	for _, outcome := range err.Outcomes {
		lines = append(lines, "  "+outcome.problem().Error())
	}
	return strings.Join(lines, "\n")
}

func (err *RunError) Unwrap() []error {
	errs := make([]error, len(err.Outcomes))
	for i, outcome := range err.Outcomes {
		errs[i] = outcome.problem()
	}
	return errs
}

// errInterrupted marks files that were never attempted because the run
// was cancelled first.
var errInterrupted = errors.New("run interrupted before this request was attempted")
