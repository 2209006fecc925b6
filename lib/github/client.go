// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/conda-forge/admin-requests/lib/clock"
	"github.com/conda-forge/admin-requests/lib/netutil"
)

// githubAPIVersion is the GitHub REST API version header. Pinning the
// version keeps response shapes stable as GitHub evolves the API.
const githubAPIVersion = "2022-11-28"

// DefaultBaseURL is the base URL for the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// Config holds configuration for creating a GitHub API Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// DefaultBaseURL. Must use HTTPS.
	BaseURL string

	// Token is a personal access token or fine-grained token. When
	// empty, requests are anonymous: fine for existence checks on
	// public repositories, rejected by GitHub for any write.
	Token string

	// HTTPClient is used for all HTTP requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Clock provides time operations for rate-limit waits. Defaults
	// to clock.Real(). Inject clock.Fake() in tests.
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a typed GitHub REST API client with token authentication,
// rate limiting, ETag caching, and structured error handling.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	authorization string
	rateLimit     *rateLimitTracker
	etagCache     *etagCache
	clock         clock.Clock
	logger        *slog.Logger
}

// NewClient creates a GitHub API client from the given configuration.
// Returns an error if the base URL is not HTTPS.
func NewClient(config Config) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var authorization string
	if config.Token != "" {
		authorization = "Bearer " + config.Token
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    httpClient,
		authorization: authorization,
		rateLimit:     newRateLimitTracker(clk),
		etagCache:     newETagCache(),
		clock:         clk,
		logger:        logger,
	}, nil
}

// Authenticated reports whether the client sends a token.
func (client *Client) Authenticated() bool {
	return client.authorization != ""
}

// do executes a GitHub API request. Handles rate limit waiting, ETag
// caching, and error parsing. The path is relative to the base URL
// (e.g., "/repos/owner/repo"). For non-GET requests, requestBody is
// JSON-encoded (pass nil for no body).
//
// On non-2xx responses, returns an *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	return client.doWithRetry(ctx, method, path, requestBody, false)
}

// doWithRetry is do with a flag that limits a rate-limited request to
// a single retry.
func (client *Client) doWithRetry(ctx context.Context, method, path string, requestBody any, isRetry bool) ([]byte, http.Header, error) {
	url := client.baseURL + path
	response, err := client.doRaw(ctx, method, url, requestBody)
	if err != nil {
		return nil, nil, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified {
		if cached := client.etagCache.body(url); cached != nil {
			return cached, response.Header, nil
		}
	}

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if !isRetry && (response.StatusCode == http.StatusTooManyRequests ||
			(response.StatusCode == http.StatusForbidden && isRateLimitMessage(string(body)))) {
			retryDuration := client.rateLimit.retryAfter(response.Header)
			if retryDuration > 0 {
				client.logger.Info("rate limited, backing off",
					"duration", retryDuration,
					"method", method,
					"path", path,
				)

				select {
				case <-client.clock.After(retryDuration):
				case <-ctx.Done():
					return nil, nil, ctx.Err()
				}

				return client.doWithRetry(ctx, method, path, requestBody, true)
			}
		}

		return nil, nil, parseAPIError(response.StatusCode, body)
	}

	if method == http.MethodGet {
		client.etagCache.put(url, response.Header.Get("ETag"), body)
	} else {
		// A write may change what a cached GET would return.
		client.etagCache.invalidate(url)
	}

	return body, response.Header, nil
}

// doRaw executes an HTTP request with authentication and preemptive
// rate limit waiting. The caller closes the response body.
func (client *Client) doRaw(ctx context.Context, method, url string, requestBody any) (*http.Response, error) {
	if err := client.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: creating request: %w", err)
	}

	if client.authorization != "" {
		request.Header.Set("Authorization", client.authorization)
	}
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	if method == http.MethodGet {
		if etag := client.etagCache.get(url); etag != "" {
			request.Header.Set("If-None-Match", etag)
		}
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("github: %s %s: %w", method, url, err)
	}

	client.rateLimit.update(response.Header)
	return response, nil
}

// get decodes a GET response into result.
func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, result)
}

// send issues a write request and decodes the response into result
// when result is non-nil.
func (client *Client) send(ctx context.Context, method, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, method, path, requestBody)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		return json.Unmarshal(body, result)
	}
	return nil
}

// parseAPIError builds an *APIError from a status code and response
// body. Bodies that are not GitHub's JSON error shape become the
// message verbatim.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Message          string       `json:"message"`
		DocumentationURL string       `json:"documentation_url"`
		Errors           []FieldError `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Message = wireError.Message
		apiError.DocumentationURL = wireError.DocumentationURL
		apiError.Errors = wireError.Errors
	} else {
		apiError.Message = string(body)
	}

	return apiError
}
