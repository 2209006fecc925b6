// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Message is the top-level error description from GitHub.
	Message string

	// DocumentationURL points to the relevant API documentation.
	DocumentationURL string

	// Errors contains field-level failures. Present on 422 responses.
	Errors []FieldError
}

// FieldError describes one field-level failure in a 422 response.
type FieldError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (err *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "github: HTTP %d: %s", err.StatusCode, err.Message)
	for _, fieldError := range err.Errors {
		detail := fieldError.Message
		if detail == "" {
			detail = fieldError.Code
		}
		fmt.Fprintf(&builder, "; %s.%s: %s", fieldError.Resource, fieldError.Field, detail)
	}
	return builder.String()
}

func statusIs(err error, status int) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == status
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	return statusIs(err, http.StatusConflict)
}

// IsUnprocessable reports whether err is a 422 response. GitHub uses
// it for "Reference already exists" and similar state conflicts.
func IsUnprocessable(err error) bool {
	return statusIs(err, http.StatusUnprocessableEntity)
}

// IsRateLimited reports whether err is a rate limit response: 429, or
// 403 with a rate-limit message (403 alone means a permission error).
func IsRateLimited(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return false
	}
	return apiError.StatusCode == http.StatusTooManyRequests ||
		(apiError.StatusCode == http.StatusForbidden && isRateLimitMessage(apiError.Message))
}

func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}
