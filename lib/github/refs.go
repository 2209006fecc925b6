// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GetBranch retrieves a branch and its head commit.
func (client *Client) GetBranch(ctx context.Context, owner, repo, branch string) (*Branch, error) {
	var result Branch
	path := fmt.Sprintf("/repos/%s/%s/branches/%s", owner, repo, url.PathEscape(branch))
	if err := client.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("getting branch %s in %s/%s: %w", branch, owner, repo, err)
	}
	return &result, nil
}

// GetRef retrieves a single reference. ref omits the "refs/" prefix,
// e.g. "heads/main" or "tags/v1.x". Slashes inside the name are kept
// as path separators, which is what the API expects.
func (client *Client) GetRef(ctx context.Context, owner, repo, ref string) (*Ref, error) {
	var result Ref
	path := fmt.Sprintf("/repos/%s/%s/git/ref/%s", owner, repo, escapeRef(ref))
	if err := client.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("getting ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return &result, nil
}

// RefExists reports whether a reference exists. Errors other than 404
// are returned.
func (client *Client) RefExists(ctx context.Context, owner, repo, ref string) (bool, error) {
	_, err := client.GetRef(ctx, owner, repo, ref)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateRef creates a reference pointing at sha. fullRef includes the
// "refs/" prefix, e.g. "refs/tags/v1.x". GitHub answers 422 when the
// reference already exists.
func (client *Client) CreateRef(ctx context.Context, owner, repo, fullRef, sha string) (*Ref, error) {
	var result Ref
	request := struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	}{Ref: fullRef, SHA: sha}

	path := fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo)
	if err := client.send(ctx, http.MethodPost, path, request, &result); err != nil {
		return nil, fmt.Errorf("creating ref %s in %s/%s: %w", fullRef, owner, repo, err)
	}
	return &result, nil
}

// DeleteRef deletes a reference. ref omits the "refs/" prefix.
func (client *Client) DeleteRef(ctx context.Context, owner, repo, ref string) error {
	path := fmt.Sprintf("/repos/%s/%s/git/refs/%s", owner, repo, escapeRef(ref))
	if err := client.send(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting ref %s in %s/%s: %w", ref, owner, repo, err)
	}
	return nil
}

// escapeRef escapes each path segment of a ref name.
func escapeRef(ref string) string {
	segments := strings.Split(ref, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
