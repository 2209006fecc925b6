// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

// User is a GitHub account.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Repository is the subset of a GitHub repository that admin requests
// inspect.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Owner         User   `json:"owner"`
	Archived      bool   `json:"archived"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
}

// Branch is a repository branch with its head commit.
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}

// Ref is a git reference (branch or tag).
type Ref struct {
	Ref    string    `json:"ref"` // full ref name, e.g. "refs/tags/v1.x"
	Object RefObject `json:"object"`
}

// RefObject is the object a Ref points to.
type RefObject struct {
	SHA  string `json:"sha"`
	Type string `json:"type"` // "commit" or "tag"
}

// Content is a file in a repository as returned by the contents API.
// Content is base64-encoded; use Decode for the bytes.
type Content struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// ContentCommit is the response to a contents write.
type ContentCommit struct {
	Content *Content `json:"content"`
	Commit  struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
	} `json:"commit"`
}

// PullRequest is the subset of a pull request returned on creation.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}
