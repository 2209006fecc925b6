// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
)

// GetRepository retrieves a repository.
func (client *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var repository Repository
	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := client.get(ctx, path, &repository); err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	return &repository, nil
}

// RepositoryExists reports whether owner/repo exists and is visible to
// the client. Errors other than 404 are returned.
func (client *Client) RepositoryExists(ctx context.Context, owner, repo string) (bool, error) {
	_, err := client.GetRepository(ctx, owner, repo)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetArchived archives or unarchives a repository. Requires admin
// rights on the repository.
func (client *Client) SetArchived(ctx context.Context, owner, repo string, archived bool) (*Repository, error) {
	var repository Repository
	request := struct {
		Archived bool `json:"archived"`
	}{Archived: archived}

	path := fmt.Sprintf("/repos/%s/%s", owner, repo)
	if err := client.send(ctx, http.MethodPatch, path, request, &repository); err != nil {
		return nil, fmt.Errorf("setting archived=%t on %s/%s: %w", archived, owner, repo, err)
	}
	return &repository, nil
}

// CreateFork forks owner/repo into the authenticated user's account.
// GitHub creates forks asynchronously; the returned repository may not
// accept pushes for a few seconds. Forking a repository that is
// already forked returns the existing fork.
func (client *Client) CreateFork(ctx context.Context, owner, repo string) (*Repository, error) {
	var fork Repository
	path := fmt.Sprintf("/repos/%s/%s/forks", owner, repo)
	if err := client.send(ctx, http.MethodPost, path, struct{}{}, &fork); err != nil {
		return nil, fmt.Errorf("forking %s/%s: %w", owner, repo, err)
	}
	return &fork, nil
}

// GetAuthenticatedUser returns the account the token belongs to.
func (client *Client) GetAuthenticatedUser(ctx context.Context) (*User, error) {
	var user User
	if err := client.get(ctx, "/user", &user); err != nil {
		return nil, fmt.Errorf("getting authenticated user: %w", err)
	}
	return &user, nil
}
