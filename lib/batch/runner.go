// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch validates and dispatches a loaded queue batch.
//
// A [Runner] walks the batch in file order, one request at a time. For
// each file it resolves the handler from the registry and calls Check;
// in a run pass, a file that passed Check then gets exactly one Run
// call. Run's result picks the terminal state:
//
//   - nil or empty residual: succeeded, the file is discharged
//   - non-empty residual for the same action: partial, the residual
//     replaces the file content
//   - error, panic, or a residual for another action: failed, the file
//     is left untouched
//
// Nothing is retried inside a run. A residual is retried by the next
// scheduled run, which is why handlers must treat targets already in
// the desired state as done.
//
// Per-file problems never stop the batch. They are collected in the
// [Report] and surfaced together by [Report.Err].
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/conda-forge/admin-requests/lib/action"
	"github.com/conda-forge/admin-requests/lib/clock"
	"github.com/conda-forge/admin-requests/lib/queue"
	"github.com/conda-forge/admin-requests/lib/request"
)

// Persister makes terminal states durable. *queue.Store implements it.
type Persister interface {
	Discharge(ctx context.Context, entry queue.Entry) error
	Retain(ctx context.Context, entry queue.Entry, residual request.Request) error
}

// Config holds the dependencies of a Runner.
type Config struct {
	// Registry resolves action names. Required.
	Registry *action.Registry

	// Store persists run outcomes. Required for Run; Check never
	// touches it.
	Store Persister

	// RunID labels the report and every log line. Optional.
	RunID string

	// Clock stamps report start and finish times. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger receives one line per state transition. Defaults to a
	// discarding logger.
	Logger *slog.Logger
}

// Runner executes check and run passes over batches.
type Runner struct {
	registry *action.Registry
	store    Persister
	runID    string
	clock    clock.Clock
	logger   *slog.Logger
}

// NewRunner validates the config and returns a Runner.
func NewRunner(config Config) (*Runner, error) {
	if config.Registry == nil {
		return nil, errors.New("batch: Registry is required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.RunID != "" {
		logger = logger.With("run_id", config.RunID)
	}
	return &Runner{
		registry: config.Registry,
		store:    config.Store,
		runID:    config.RunID,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Check validates every file in the batch without running anything.
// Outcomes are loaded (passed) or invalid. Report.Err returns a
// *ValidationError listing every failure.
func (runner *Runner) Check(ctx context.Context, batch *queue.Batch) *Report {
	report := runner.newReport(ModeCheck, batch)
	for _, entry := range batch.Entries {
		outcome, _ := runner.validate(ctx, entry)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.FinishedAt = runner.clock.Now()
	return report
}

// Run validates and then runs every file in the batch, persisting each
// terminal state before moving to the next file. Validation is per
// file: an invalid file does not prevent valid ones from running. Once
// ctx is cancelled, every file not yet validated fails as interrupted
// and is left untouched.
func (runner *Runner) Run(ctx context.Context, batch *queue.Batch) *Report {
	report := runner.newReport(ModeRun, batch)
	if runner.store == nil {
		// Without a store no outcome can be made durable, so nothing
		// may run.
		for _, entry := range batch.Entries {
			report.Outcomes = append(report.Outcomes, Outcome{
				Path:        entry.Path,
				Action:      entry.Action(),
				State:       StateFailed,
				Fingerprint: entry.Fingerprint,
				Err:         &FatalHandlerError{Path: entry.Path, Action: entry.Action(), Err: errors.New("no store configured")},
			})
		}
		report.FinishedAt = runner.clock.Now()
		return report
	}

	for _, entry := range batch.Entries {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, runner.interrupted(entry, err))
			continue
		}
		outcome, handler := runner.validate(ctx, entry)
		if outcome.State == StateLoaded {
			outcome = runner.dispatch(ctx, entry, handler)
			runner.persist(ctx, entry, &outcome)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	report.FinishedAt = runner.clock.Now()
	return report
}

// newReport seeds a report with the batch's load failures, which are
// invalid before any handler sees them.
func (runner *Runner) newReport(mode Mode, batch *queue.Batch) *Report {
	report := &Report{
		RunID:     runner.runID,
		Mode:      mode,
		Dir:       batch.Dir,
		StartedAt: runner.clock.Now(),
		Outcomes:  make([]Outcome, 0, batch.Len()),
	}
	for _, failure := range batch.Failures {
		runner.logger.Warn("request malformed", "path", failure.Path, "error", failure.Err)
		report.Outcomes = append(report.Outcomes, Outcome{
			Path:  failure.Path,
			State: StateInvalid,
			Err:   failure,
		})
	}
	return report
}

// validate resolves the handler and runs Check. The returned outcome
// is loaded on success and invalid otherwise.
func (runner *Runner) validate(ctx context.Context, entry queue.Entry) (Outcome, action.Handler) {
	outcome := Outcome{
		Path:        entry.Path,
		Action:      entry.Action(),
		State:       StateLoaded,
		Fingerprint: entry.Fingerprint,
	}
	logger := runner.logger.With("path", entry.Path, "action", outcome.Action)

	handler, err := runner.registry.Resolve(outcome.Action)
	if err != nil {
		logger.Warn("request has unknown action")
		outcome.State = StateInvalid
		outcome.Err = err
		return outcome, nil
	}

	if err := safeCheck(ctx, handler, entry.Request.Clone()); err != nil {
		logger.Warn("request failed validation", "error", err)
		outcome.State = StateInvalid
		outcome.Err = err
		return outcome, nil
	}
	logger.Debug("request validated")
	return outcome, handler
}

// interrupted is the outcome of a file the run never reached.
func (runner *Runner) interrupted(entry queue.Entry, err error) Outcome {
	runner.logger.Warn("request not attempted", "path", entry.Path, "action", entry.Action(), "error", err)
	return Outcome{
		Path:        entry.Path,
		Action:      entry.Action(),
		State:       StateFailed,
		Fingerprint: entry.Fingerprint,
		Err: &FatalHandlerError{
			Path:   entry.Path,
			Action: entry.Action(),
			Err:    fmt.Errorf("%w: %w", errInterrupted, err),
		},
	}
}

// dispatch makes the single Run attempt and classifies its result.
func (runner *Runner) dispatch(ctx context.Context, entry queue.Entry, handler action.Handler) Outcome {
	outcome := Outcome{
		Path:        entry.Path,
		Action:      entry.Action(),
		State:       StateRunning,
		Fingerprint: entry.Fingerprint,
	}
	logger := runner.logger.With("path", entry.Path, "action", outcome.Action)

	fail := func(err error) Outcome {
		outcome.State = StateFailed
		outcome.Err = &FatalHandlerError{Path: entry.Path, Action: outcome.Action, Err: err}
		logger.Error("request failed", "error", err)
		return outcome
	}

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", errInterrupted, err))
	}

	logger.Info("running request")
	residual, err := safeRun(ctx, handler, entry.Request.Clone())
	if err != nil {
		return fail(err)
	}

	if residual.IsEmpty() {
		outcome.State = StateSucceeded
		logger.Info("request succeeded")
		return outcome
	}
	if residual.Action() != outcome.Action {
		return fail(&ResidualError{Want: outcome.Action, Got: residual.Action()})
	}
	outcome.State = StatePartial
	outcome.Residual = residual
	logger.Warn("request partially succeeded", "residual_keys", residual.Keys())
	return outcome
}

// persist writes a succeeded or partial outcome. Persistence runs on a
// context detached from cancellation: once Run has changed external
// state, the queue must record it even if the run is being
// interrupted.
func (runner *Runner) persist(ctx context.Context, entry queue.Entry, outcome *Outcome) {
	ctx = context.WithoutCancel(ctx)

	var err error
	switch outcome.State {
	case StateSucceeded:
		err = runner.store.Discharge(ctx, entry)
	case StatePartial:
		err = runner.store.Retain(ctx, entry, outcome.Residual)
	default:
		return
	}
	if err != nil {
		outcome.PersistErr = err
		runner.logger.Error("persisting request outcome failed",
			"path", entry.Path,
			"action", outcome.Action,
			"state", string(outcome.State),
			"error", err,
		)
	}
}

func safeCheck(ctx context.Context, handler action.Handler, req request.Request) (err error) {
	defer func() {
		if value := recover(); value != nil {
			err = &PanicError{Value: value, Stack: debug.Stack()}
		}
	}()
	return handler.Check(ctx, req)
}

func safeRun(ctx context.Context, handler action.Handler, req request.Request) (residual request.Request, err error) {
	defer func() {
		if value := recover(); value != nil {
			residual = nil
			err = &PanicError{Value: value, Stack: debug.Stack()}
		}
	}()
	return handler.Run(ctx, req)
}
