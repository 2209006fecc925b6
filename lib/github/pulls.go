// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
)

// CreatePullRequestRequest contains the fields for opening a pull
// request.
type CreatePullRequestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`

	// Head is the branch with the changes. For cross-repository pull
	// requests use "user:branch".
	Head string `json:"head"`

	// Base is the branch to merge into.
	Base string `json:"base"`

	// MaintainerCanModify lets base-repository maintainers push to the
	// head branch.
	MaintainerCanModify bool `json:"maintainer_can_modify"`
}

// CreatePullRequest opens a pull request against owner/repo.
func (client *Client) CreatePullRequest(ctx context.Context, owner, repo string, request CreatePullRequestRequest) (*PullRequest, error) {
	var pullRequest PullRequest
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, repo)
	if err := client.send(ctx, http.MethodPost, path, request, &pullRequest); err != nil {
		return nil, fmt.Errorf("creating pull request in %s/%s: %w", owner, repo, err)
	}
	return &pullRequest, nil
}
