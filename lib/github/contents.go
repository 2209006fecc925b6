// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Decode returns the file bytes.
func (content *Content) Decode() ([]byte, error) {
	if content.Encoding != "base64" {
		return nil, fmt.Errorf("github: unsupported content encoding %q for %s", content.Encoding, content.Path)
	}
	// GitHub wraps base64 content at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("github: decoding %s: %w", content.Path, err)
	}
	return data, nil
}

// GetContents retrieves a file from the default branch. Returns an
// error satisfying IsNotFound when the file does not exist.
func (client *Client) GetContents(ctx context.Context, owner, repo, filePath string) (*Content, error) {
	var content Content
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapeRef(filePath))
	if err := client.get(ctx, path, &content); err != nil {
		return nil, fmt.Errorf("getting %s in %s/%s: %w", filePath, owner, repo, err)
	}
	if content.Type != "" && content.Type != "file" {
		return nil, fmt.Errorf("getting %s in %s/%s: is a %s, not a file", filePath, owner, repo, content.Type)
	}
	return &content, nil
}

// PutContentsRequest creates or updates a file.
type PutContentsRequest struct {
	// Message is the commit message.
	Message string

	// Content is the new file content (raw bytes; encoded by the
	// client).
	Content []byte

	// SHA is the blob SHA of the file being replaced. Empty creates a
	// new file; GitHub answers 409 or 422 if the file exists or the
	// SHA is stale.
	SHA string

	// Branch defaults to the repository's default branch.
	Branch string
}

// PutContents creates or updates a file with a single commit.
func (client *Client) PutContents(ctx context.Context, owner, repo, filePath string, request PutContentsRequest) (*ContentCommit, error) {
	body := struct {
		Message string `json:"message"`
		Content string `json:"content"`
		SHA     string `json:"sha,omitempty"`
		Branch  string `json:"branch,omitempty"`
	}{
		Message: request.Message,
		Content: base64.StdEncoding.EncodeToString(request.Content),
		SHA:     request.SHA,
		Branch:  request.Branch,
	}

	var result ContentCommit
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapeRef(filePath))
	if err := client.send(ctx, http.MethodPut, path, body, &result); err != nil {
		return nil, fmt.Errorf("writing %s in %s/%s: %w", filePath, owner, repo, err)
	}
	return &result, nil
}

// DeleteContents deletes a file with a single commit. sha is the blob
// SHA of the file being deleted.
func (client *Client) DeleteContents(ctx context.Context, owner, repo, filePath, message, sha string) error {
	body := struct {
		Message string `json:"message"`
		SHA     string `json:"sha"`
	}{Message: message, SHA: sha}

	path := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapeRef(filePath))
	if err := client.send(ctx, http.MethodDelete, path, body, nil); err != nil {
		return fmt.Errorf("deleting %s in %s/%s: %w", filePath, owner, repo, err)
	}
	return nil
}
