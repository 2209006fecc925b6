// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package anaconda is a client for the anaconda.org endpoints admin
// requests use: artifact existence on the download servers, artifact
// metadata from the API, and the broken label of a channel.
//
// Reads are anonymous. Label changes need a token with write access to
// the channel; without one they fail with [ErrNoToken] before any
// request is made.
package anaconda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/conda-forge/admin-requests/lib/condapkg"
	"github.com/conda-forge/admin-requests/lib/netutil"
)

// Default endpoints.
const (
	DefaultAPIURL      = "https://api.anaconda.org"
	DefaultDownloadURL = "https://conda.anaconda.org"
	DefaultWebURL      = "https://conda-web.anaconda.org"
)

// BrokenLabel is the label artifacts are moved to when marked broken.
const BrokenLabel = "broken"

// ErrNoToken is returned by write operations on a client without a
// token.
var ErrNoToken = errors.New("anaconda: no token configured")

// Config holds configuration for creating a Client.
type Config struct {
	// APIURL is the anaconda.org API root. Defaults to DefaultAPIURL.
	APIURL string

	// DownloadURL serves channel artifacts. Defaults to
	// DefaultDownloadURL.
	DownloadURL string

	// WebURL serves artifacts including labels of any channel.
	// Defaults to DefaultWebURL.
	WebURL string

	// Token authorizes label changes. Optional.
	Token string

	// HTTPClient is used for all requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Client talks to anaconda.org.
type Client struct {
	apiURL      string
	downloadURL string
	webURL      string
	token       string
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient validates the configuration and returns a Client. All
// endpoints must be HTTPS.
func NewClient(config Config) (*Client, error) {
	client := &Client{
		apiURL:      orDefault(config.APIURL, DefaultAPIURL),
		downloadURL: orDefault(config.DownloadURL, DefaultDownloadURL),
		webURL:      orDefault(config.WebURL, DefaultWebURL),
		token:       config.Token,
		httpClient:  config.HTTPClient,
		logger:      config.Logger,
	}
	for _, endpoint := range []string{client.apiURL, client.downloadURL, client.webURL} {
		if !strings.HasPrefix(endpoint, "https://") {
			return nil, fmt.Errorf("anaconda: client requires HTTPS (got %q)", endpoint)
		}
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	return client, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return strings.TrimRight(value, "/")
}

// CanWrite reports whether the client has a token.
func (client *Client) CanWrite() bool {
	return client.token != ""
}

// APIError is a non-2xx response from anaconda.org.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (err *APIError) Error() string {
	if err.Body == "" {
		return fmt.Sprintf("anaconda: %s %s: HTTP %d", err.Method, err.URL, err.StatusCode)
	}
	return fmt.Sprintf("anaconda: %s %s: HTTP %d: %s", err.Method, err.URL, err.StatusCode, err.Body)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response.
func IsConflict(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusConflict
}

// do sends a request and returns the response for a 2xx status. Any
// other status is returned as *APIError with the body consumed.
func (client *Client) do(ctx context.Context, method, rawURL string, body io.Reader, authorize bool) (*http.Response, error) {
	request, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("anaconda: creating request: %w", err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")
	if authorize {
		request.Header.Set("Authorization", "token "+client.token)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("anaconda: %s %s: %w", method, rawURL, err)
	}
	client.logger.Debug("anaconda request", "method", method, "url", rawURL, "status", response.StatusCode)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, &APIError{
			Method:     method,
			URL:        rawURL,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
		}
	}
	return response, nil
}

// exists issues a HEAD request: 2xx is true, 404 is false, anything
// else is an error.
func (client *Client) exists(ctx context.Context, rawURL string) (bool, error) {
	response, err := client.do(ctx, http.MethodHead, rawURL, nil, false)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	netutil.Drain(response.Body)
	response.Body.Close()
	return true, nil
}

// ArtifactExists reports whether artifact is served from channel's
// main label on the download servers.
func (client *Client) ArtifactExists(ctx context.Context, channel string, artifact condapkg.Artifact) (bool, error) {
	return client.exists(ctx, joinURL(client.downloadURL, channel, artifact.Subdir, artifact.Filename()))
}

// ChannelArtifactExists reports whether the referenced artifact exists
// in its channel and label. It queries the web servers, which serve
// every label.
func (client *Client) ChannelArtifactExists(ctx context.Context, reference condapkg.ChannelArtifact) (bool, error) {
	return client.exists(ctx, client.webURL+"/"+escapePath(reference.String()))
}

// Distribution is the API's metadata for one artifact.
type Distribution struct {
	Basename string   `json:"basename"`
	Version  string   `json:"version"`
	SHA256   string   `json:"sha256"`
	MD5      string   `json:"md5"`
	Size     int64    `json:"size"`
	Labels   []string `json:"labels"`
}

// GetDistribution fetches artifact metadata from owner's channel.
func (client *Client) GetDistribution(ctx context.Context, owner string, artifact condapkg.Artifact) (*Distribution, error) {
	rawURL := joinURL(client.apiURL, "dist", owner, artifact.Name, artifact.Version, artifact.Subdir, artifact.Filename())
	response, err := client.do(ctx, http.MethodGet, rawURL, nil, false)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var distribution Distribution
	if err := netutil.DecodeResponse(response.Body, &distribution); err != nil {
		return nil, fmt.Errorf("anaconda: GET %s: %w", rawURL, err)
	}
	if distribution.SHA256 == "" {
		return nil, fmt.Errorf("anaconda: GET %s: response has no sha256", rawURL)
	}
	return &distribution, nil
}

// MarkBroken adds artifact in channel to the broken label.
func (client *Client) MarkBroken(ctx context.Context, channel string, artifact condapkg.Artifact) error {
	return client.changeBroken(ctx, http.MethodPost, channel, artifact)
}

// UnmarkBroken removes artifact in channel from the broken label.
func (client *Client) UnmarkBroken(ctx context.Context, channel string, artifact condapkg.Artifact) error {
	return client.changeBroken(ctx, http.MethodDelete, channel, artifact)
}

type brokenRequest struct {
	Basename string `json:"basename"`
	Package  string `json:"package"`
	Version  string `json:"version"`
}

func (client *Client) changeBroken(ctx context.Context, method, channel string, artifact condapkg.Artifact) error {
	if !client.CanWrite() {
		return ErrNoToken
	}
	body, err := json.Marshal(brokenRequest{
		Basename: artifact.Path(),
		Package:  artifact.Name,
		Version:  artifact.Version,
	})
	if err != nil {
		return fmt.Errorf("anaconda: encoding request: %w", err)
	}
	rawURL := joinURL(client.apiURL, "channels", channel, BrokenLabel)

	response, err := client.do(ctx, method, rawURL, bytes.NewReader(body), true)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	netutil.Drain(response.Body)

	// The label endpoints answer 201 for a change; a 2xx without one
	// did nothing.
	if response.StatusCode != http.StatusCreated {
		return &APIError{Method: method, URL: rawURL, StatusCode: response.StatusCode}
	}
	return nil
}

// AddGroupMember adds user to group in org. Adding an existing member
// succeeds.
func (client *Client) AddGroupMember(ctx context.Context, org, group, user string) error {
	if !client.CanWrite() {
		return ErrNoToken
	}
	rawURL := joinURL(client.apiURL, "group", org, group, "members", user)
	response, err := client.do(ctx, http.MethodPost, rawURL, nil, true)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	netutil.Drain(response.Body)
	return nil
}

func joinURL(base string, segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return base + "/" + strings.Join(escaped, "/")
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
