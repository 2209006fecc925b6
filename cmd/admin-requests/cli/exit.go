// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code for a command that already
// wrote its own output. Error returns "" so process.Fatal prints
// nothing extra.
//
// check returns ExitError{1} when any request fails validation; run
// returns it when any request failed or could not be persisted.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return ""
}

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// String is used in logs and test failures, where an empty Error would
// be unreadable.
func (e *ExitError) String() string {
	return fmt.Sprintf("exit code %d", e.Code)
}
