// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package condatool provides typed access to the conda ecosystem CLIs
// that admin requests drive: conda (channel queries), conda-smithy
// (CI registration and feedstock tokens), and anaconda (artifact
// copies between channels).
//
// Commands are values. The builders in this package produce a
// [Command] with the exact argument list; a [Runner] executes it.
// Handlers depend on the Runner interface so tests can record commands
// instead of executing them.
//
// Binaries are resolved on PATH first and then in the active conda
// environment ($CONDA_PREFIX/bin), so the tool works both from a shell
// with the environment activated and from a CI job that only exports
// CONDA_PREFIX.
package condatool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Binary names.
const (
	Conda       = "conda"
	CondaSmithy = "conda-smithy"
	Anaconda    = "anaconda"
)

// Command is one CLI invocation.
type Command struct {
	// Name is the binary name, resolved by the Runner.
	Name string

	// Args excludes the binary name.
	Args []string

	// Dir is the working directory. Empty inherits the runner's.
	Dir string

	// Env entries ("KEY=value") are added to the runner's environment.
	Env []string

	// Secrets are replaced by "***" wherever the command is rendered
	// (logs and errors). The arguments themselves are passed intact.
	Secrets []string
}

// String renders the command line with secrets redacted.
func (command Command) String() string {
	line := command.Name
	if len(command.Args) > 0 {
		line += " " + strings.Join(command.Args, " ")
	}
	return command.redact(line)
}

func (command Command) redact(text string) string {
	for _, secret := range command.Secrets {
		if secret != "" {
			text = strings.ReplaceAll(text, secret, "***")
		}
	}
	return text
}

// Runner executes commands and returns their stdout.
type Runner interface {
	Run(ctx context.Context, command Command) (string, error)
}

// ExecRunner runs commands as subprocesses.
type ExecRunner struct {
	// Env is the base environment. Nil uses os.Environ().
	Env []string

	// Logger receives one debug line per command. Nil discards.
	Logger *slog.Logger
}

// Run executes the command. On failure the error names the command
// and carries stderr when there is any, since that is where these
// tools write their diagnostics.
func (runner *ExecRunner) Run(ctx context.Context, command Command) (string, error) {
	binaryPath, err := FindBinary(command.Name)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	process := exec.CommandContext(ctx, binaryPath, command.Args...)
	process.Dir = command.Dir
	process.Stdout = &stdout
	process.Stderr = &stderr
	if runner.Env != nil || len(command.Env) > 0 {
		base := runner.Env
		if base == nil {
			base = os.Environ()
		}
		process.Env = append(append([]string(nil), base...), command.Env...)
	}

	if runner.Logger != nil {
		runner.Logger.Debug("running command", "command", command.String(), "dir", command.Dir)
	}
	if err := process.Run(); err != nil {
		return "", formatError(command, &stderr, err)
	}
	return stdout.String(), nil
}

// CommandError is a failed command.
type CommandError struct {
	// Command is the redacted command line.
	Command string

	// Stderr is the trimmed, redacted stderr output.
	Stderr string

	Err error
}

func (err *CommandError) Error() string {
	if err.Stderr != "" {
		return fmt.Sprintf("%s: %s", err.Command, err.Stderr)
	}
	return fmt.Sprintf("%s: %v", err.Command, err.Err)
}

func (err *CommandError) Unwrap() error { return err.Err }

// ExitCode returns the process exit code, or -1 when the process did
// not exit normally.
func (err *CommandError) ExitCode() int {
	var exitError *exec.ExitError
	if errors.As(err.Err, &exitError) {
		return exitError.ExitCode()
	}
	return -1
}

func formatError(command Command, stderr *bytes.Buffer, err error) error {
	return &CommandError{
		Command: command.String(),
		Stderr:  command.redact(strings.TrimSpace(stderr.String())),
		Err:     err,
	}
}

// FindBinary resolves a binary on PATH, then in $CONDA_PREFIX/bin.
func FindBinary(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if prefix := os.Getenv("CONDA_PREFIX"); prefix != "" {
		candidate := filepath.Join(prefix, "bin", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found on PATH or in $CONDA_PREFIX/bin", name)
}
