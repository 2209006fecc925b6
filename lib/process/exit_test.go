// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

type codedError struct {
	code    int
	message string
}

func (err *codedError) Error() string { return err.message }
func (err *codedError) ExitCode() int { return err.code }

func TestReport(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantOutput string
	}{
		{"plain", errors.New("queue missing"), 1, "error: queue missing\n"},
		{"coded", &codedError{code: 2, message: "bad flag"}, 2, "error: bad flag\n"},
		{"wrapped coded", fmt.Errorf("run: %w", &codedError{code: 3, message: "x"}), 3, "error: run: x\n"},
		{"silent", &codedError{code: 1}, 1, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var output bytes.Buffer
			if code := report(&output, test.err); code != test.wantCode {
				t.Errorf("code = %d, want %d", code, test.wantCode)
			}
			if output.String() != test.wantOutput {
				t.Errorf("output = %q, want %q", output.String(), test.wantOutput)
			}
		})
	}
}
