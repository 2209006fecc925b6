// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that carry a process exit code.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. The exit code comes
// from err when it implements ExitCoder, and is 1 otherwise.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err to writer and returns the exit code for it. An
// ExitCoder with an empty message prints nothing: the command already
// reported its own output.
func report(writer io.Writer, err error) int {
	code := 1
	var coder ExitCoder
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}
	if message := err.Error(); message != "" {
		fmt.Fprintf(writer, "error: %s\n", message)
	}
	return code
}
