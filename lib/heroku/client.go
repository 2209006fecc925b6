// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package heroku is a client for the one Heroku Platform API endpoint
// admin requests use: adding a collaborator to an app.
package heroku

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/conda-forge/admin-requests/lib/netutil"
)

// DefaultAPIURL is the Platform API root.
const DefaultAPIURL = "https://api.heroku.com"

// acceptVersion selects version 3 of the Platform API.
const acceptVersion = "application/vnd.heroku+json; version=3"

// ErrNoToken is returned by a client without an API key.
var ErrNoToken = errors.New("heroku: no API key configured")

// Config holds configuration for creating a Client.
type Config struct {
	// APIURL defaults to DefaultAPIURL.
	APIURL string

	// Token is the Heroku API key. Optional; without it every call
	// fails with ErrNoToken.
	Token string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Client talks to the Heroku Platform API.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the configuration and returns a Client. The API
// URL must be HTTPS.
func NewClient(config Config) (*Client, error) {
	client := &Client{
		apiURL:     strings.TrimRight(config.APIURL, "/"),
		token:      config.Token,
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.apiURL == "" {
		client.apiURL = DefaultAPIURL
	}
	if !strings.HasPrefix(client.apiURL, "https://") {
		return nil, fmt.Errorf("heroku: client requires HTTPS (got %q)", client.apiURL)
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	return client, nil
}

// CanWrite reports whether the client has an API key.
func (client *Client) CanWrite() bool {
	return client.token != ""
}

// APIError is a non-2xx response from the Platform API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (err *APIError) Error() string {
	if err.Body == "" {
		return fmt.Sprintf("heroku: %s %s: HTTP %d", err.Method, err.URL, err.StatusCode)
	}
	return fmt.Sprintf("heroku: %s %s: HTTP %d: %s", err.Method, err.URL, err.StatusCode, err.Body)
}

type collaboratorRequest struct {
	Silent bool   `json:"silent"`
	User   string `json:"user"`
}

// AddCollaborator invites the account with email to app. Heroku sends
// the account a notification.
func (client *Client) AddCollaborator(ctx context.Context, app, email string) error {
	if !client.CanWrite() {
		return ErrNoToken
	}
	body, err := json.Marshal(collaboratorRequest{Silent: false, User: email})
	if err != nil {
		return fmt.Errorf("heroku: encoding request: %w", err)
	}
	rawURL := client.apiURL + "/apps/" + url.PathEscape(app) + "/collaborators"

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("heroku: creating request: %w", err)
	}
	request.Header.Set("Accept", acceptVersion)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+client.token)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("heroku: POST %s: %w", rawURL, err)
	}
	defer response.Body.Close()
	client.logger.Debug("heroku request", "method", http.MethodPost, "url", rawURL, "status", response.StatusCode)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return &APIError{
			Method:     http.MethodPost,
			URL:        rawURL,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}
	netutil.Drain(response.Body)
	return nil
}
