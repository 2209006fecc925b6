// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package anaconda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/conda-forge/admin-requests/lib/condapkg"
)

// newTestClient points every endpoint at server.
func newTestClient(t *testing.T, server *httptest.Server, token string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIURL:      server.URL + "/api",
		DownloadURL: server.URL + "/download",
		WebURL:      server.URL + "/web",
		Token:       token,
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func mustArtifact(t *testing.T, path string) condapkg.Artifact {
	t.Helper()
	artifact, err := condapkg.ParseArtifact(path)
	if err != nil {
		t.Fatal(err)
	}
	return artifact
}

func TestNewClient_HTTPSEnforcement(t *testing.T) {
	_, err := NewClient(Config{DownloadURL: "http://conda.anaconda.org"})
	if err == nil {
		t.Fatal("expected error for HTTP download URL")
	}

	client, err := NewClient(Config{})
	if err != nil {
		t.Fatalf("NewClient with defaults: %v", err)
	}
	if client.apiURL != DefaultAPIURL || client.CanWrite() {
		t.Errorf("unexpected defaults: %+v", client)
	}
}

func TestArtifactExists(t *testing.T) {
	var methods []string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		methods = append(methods, request.Method)
		switch request.URL.Path {
		case "/download/conda-forge/linux-64/numpy-1.26.4-py312_0.conda":
			writer.WriteHeader(http.StatusOK)
		case "/download/conda-forge/linux-64/numpy-0.0.0-py312_0.conda":
			writer.WriteHeader(http.StatusNotFound)
		default:
			writer.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, "")
	ctx := context.Background()

	exists, err := client.ArtifactExists(ctx, "conda-forge", mustArtifact(t, "linux-64/numpy-1.26.4-py312_0.conda"))
	if err != nil || !exists {
		t.Errorf("present artifact: exists=%v err=%v", exists, err)
	}
	exists, err = client.ArtifactExists(ctx, "conda-forge", mustArtifact(t, "linux-64/numpy-0.0.0-py312_0.conda"))
	if err != nil || exists {
		t.Errorf("missing artifact: exists=%v err=%v", exists, err)
	}
	_, err = client.ArtifactExists(ctx, "conda-forge", mustArtifact(t, "osx-64/numpy-1.26.4-py312_0.conda"))
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("server error = %v, want 503 APIError", err)
	}

	for _, method := range methods {
		if method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", method)
		}
	}
}

func TestChannelArtifactExists(t *testing.T) {
	var requestedPath string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestedPath = request.URL.Path
	}))
	defer server.Close()

	reference, err := condapkg.ParseChannelArtifact("cf-post-staging/label/approved/noarch/pkg-1.0-pyh0_0.conda")
	if err != nil {
		t.Fatal(err)
	}
	exists, err := newTestClient(t, server, "").ChannelArtifactExists(context.Background(), reference)
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}
	if requestedPath != "/web/cf-post-staging/label/approved/noarch/pkg-1.0-pyh0_0.conda" {
		t.Errorf("requested %q", requestedPath)
	}
}

func TestGetDistribution(t *testing.T) {
	const sha = "0d5a2c6d6e3b4b1c8a1f7c1b2b6f5a9e8d7c6b5a4f3e2d1c0b9a8f7e6d5c4b3a"
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/api/dist/cf-post-staging/pkg/1.0/noarch/pkg-1.0-pyh0_0.conda":
			json.NewEncoder(writer).Encode(map[string]any{
				"basename": "noarch/pkg-1.0-pyh0_0.conda",
				"version":  "1.0",
				"sha256":   sha,
				"labels":   []string{"main"},
			})
		case "/api/dist/cf-post-staging/pkg/2.0/noarch/pkg-2.0-pyh0_0.conda":
			writer.Write([]byte(`{"basename":"x"}`))
		default:
			writer.WriteHeader(http.StatusNotFound)
			writer.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, "")
	ctx := context.Background()

	distribution, err := client.GetDistribution(ctx, "cf-post-staging", mustArtifact(t, "noarch/pkg-1.0-pyh0_0.conda"))
	if err != nil {
		t.Fatalf("GetDistribution: %v", err)
	}
	if distribution.SHA256 != sha {
		t.Errorf("sha256 = %q", distribution.SHA256)
	}

	if _, err := client.GetDistribution(ctx, "cf-post-staging", mustArtifact(t, "noarch/pkg-2.0-pyh0_0.conda")); err == nil {
		t.Error("expected error for a response without sha256")
	}
	_, err = client.GetDistribution(ctx, "cf-post-staging", mustArtifact(t, "noarch/pkg-3.0-pyh0_0.conda"))
	if !IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestMarkBroken(t *testing.T) {
	type received struct {
		method        string
		path          string
		authorization string
		body          brokenRequest
	}
	var requests []received
	var status atomic.Int32
	status.Store(http.StatusCreated)
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		entry := received{
			method:        request.Method,
			path:          request.URL.Path,
			authorization: request.Header.Get("Authorization"),
		}
		if err := json.NewDecoder(request.Body).Decode(&entry.body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		requests = append(requests, entry)
		writer.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	client := newTestClient(t, server, "prod-token")
	ctx := context.Background()
	artifact := mustArtifact(t, "linux-64/libfoo-1.0-h0_0.conda")

	if err := client.MarkBroken(ctx, "conda-forge", artifact); err != nil {
		t.Fatalf("MarkBroken: %v", err)
	}
	if err := client.UnmarkBroken(ctx, "conda-forge", artifact); err != nil {
		t.Fatalf("UnmarkBroken: %v", err)
	}

	want := brokenRequest{Basename: "linux-64/libfoo-1.0-h0_0.conda", Package: "libfoo", Version: "1.0"}
	for index, method := range []string{http.MethodPost, http.MethodDelete} {
		got := requests[index]
		if got.method != method || got.path != "/api/channels/conda-forge/broken" {
			t.Errorf("request %d = %s %s", index, got.method, got.path)
		}
		if got.authorization != "token prod-token" {
			t.Errorf("request %d authorization = %q", index, got.authorization)
		}
		if got.body != want {
			t.Errorf("request %d body = %+v, want %+v", index, got.body, want)
		}
	}

	// Only 201 counts as a change.
	status.Store(http.StatusOK)
	err := client.MarkBroken(ctx, "conda-forge", artifact)
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusOK {
		t.Errorf("200 response: error = %v", err)
	}

	status.Store(http.StatusConflict)
	if err := client.MarkBroken(ctx, "conda-forge", artifact); !IsConflict(err) {
		t.Errorf("409 response: error = %v, want conflict", err)
	}
}

func TestMarkBroken_RequiresToken(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		t.Error("request sent without a token")
	}))
	defer server.Close()

	err := newTestClient(t, server, "").MarkBroken(context.Background(), "conda-forge", mustArtifact(t, "noarch/a-1-0.conda"))
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("error = %v, want ErrNoToken", err)
	}
}

func TestAddGroupMember(t *testing.T) {
	var method, path, authorization string
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		method, path = request.Method, request.URL.Path
		authorization = request.Header.Get("Authorization")
		if request.URL.Path == "/api/group/conda-forge/Owners/members/nobody" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server, "prod-token")
	ctx := context.Background()
	if err := client.AddGroupMember(ctx, "conda-forge", "Owners", "alice"); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}
	if method != http.MethodPost || path != "/api/group/conda-forge/Owners/members/alice" {
		t.Errorf("request = %s %s", method, path)
	}
	if authorization != "token prod-token" {
		t.Errorf("authorization = %q", authorization)
	}

	if err := client.AddGroupMember(ctx, "conda-forge", "Owners", "nobody"); !IsNotFound(err) {
		t.Errorf("unknown user: error = %v, want not found", err)
	}
	if err := newTestClient(t, server, "").AddGroupMember(ctx, "conda-forge", "Owners", "alice"); !errors.Is(err, ErrNoToken) {
		t.Errorf("no token: error = %v, want ErrNoToken", err)
	}
}
