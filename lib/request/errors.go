// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package request

import "fmt"

// MalformedRequestError reports a queue file that could not be read or
// decoded into a request, or that lacks an action. It is scoped to one
// file and never aborts a batch.
type MalformedRequestError struct {
	// Path identifies the file, relative to the queue directory.
	Path string

	// Err is the underlying read or decode failure.
	Err error
}

func (err *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed request %s: %v", err.Path, err.Err)
}

func (err *MalformedRequestError) Unwrap() error {
	return err.Err
}
