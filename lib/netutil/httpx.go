// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response body reads for the API clients.
//
// ReadResponse and DecodeResponse read at most MaxResponseSize bytes,
// which is far above any JSON document GitHub or anaconda.org returns
// but keeps a misbehaving server from exhausting memory. ErrorBody
// renders an error response for inclusion in an error message.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize is the bound on API response body reads: 64 MB.
const MaxResponseSize int64 = 64 << 20

// maxErrorBody is how much of an error response ends up in a message.
const maxErrorBody = 1024

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a response body (up to MaxResponseSize bytes)
// and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody reads an error response body and returns it trimmed and
// truncated for use in an error message. Read errors are ignored: a
// partial or empty body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody+1))
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

// Drain discards the rest of a body so the connection can be reused.
func Drain(body io.Reader) {
	io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
}
