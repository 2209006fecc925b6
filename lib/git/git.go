// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package git provides typed access to the git CLI for repository
// operations. The request queue is a git working tree: discharged
// requests are removed with "git rm" and rewritten residuals are staged
// with "git add", each followed by its own commit. Handlers also clone
// scratch repositories (feedstocks, repodata patches) and push to them.
//
// All commands target a specific repository directory via the -C flag,
// which is automatically injected by all Repository methods. Credentials
// embedded in remote URLs are redacted from error messages.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Repository represents a git repository at a specific directory. All
// operations target this directory via "git -C <dir>". There is no
// default directory: callers must always specify which repository
// they mean.
type Repository struct {
	dir string
	env []string
}

// NewRepository returns a Repository targeting the given directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// WithEnv returns a copy of the repository handle that runs git with
// the given extra environment entries ("KEY=value") appended to the
// process environment. Used to set committer identity in CI.
func (r *Repository) WithEnv(env ...string) *Repository {
	return &Repository{dir: r.dir, env: append(append([]string(nil), r.env...), env...)}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command targeting this repository and returns
// stdout. Stderr is captured separately and included in error messages
// on failure.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := r.Command(ctx, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			redact(strings.Join(args, " ")), r.dir, err, redact(strings.TrimSpace(stderr.String())))
	}
	return stdout.String(), nil
}

// Command returns an *exec.Cmd for a git command without running it.
// The caller gets full control over Stdin, Stdout, and Stderr before
// starting the process. The -C flag targeting this repository is
// automatically prepended.
func (r *Repository) Command(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-C", r.dir}, args...)
	command := exec.CommandContext(ctx, "git", fullArgs...)
	if len(r.env) > 0 {
		command.Env = append(os.Environ(), r.env...)
	}
	return command
}

// IsWorkTree reports whether the directory is inside a git working
// tree.
func (r *Repository) IsWorkTree(ctx context.Context) bool {
	output, err := r.Run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(output) == "true"
}

// Add stages the given paths.
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return errors.New("git add: no paths given")
	}
	_, err := r.Run(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Remove stages the deletion of the given paths. Untracked paths are
// ignored, and so are tracked paths already deleted from the working
// tree: their deletion is staged.
func (r *Repository) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return errors.New("git rm: no paths given")
	}
	_, err := r.Run(ctx, append([]string{"rm", "--quiet", "--ignore-unmatch", "--"}, paths...)...)
	return err
}

// IsTracked reports whether path is tracked in the index.
func (r *Repository) IsTracked(ctx context.Context, path string) (bool, error) {
	output, err := r.Run(ctx, "ls-files", "--", path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

// CommitOptions controls a single commit.
type CommitOptions struct {
	// Message is the full commit message, including any trailers.
	Message string

	// Paths limits the commit to these paths ("git commit -- <paths>").
	// When empty, everything staged is committed.
	Paths []string

	// All stages modifications to tracked files before committing
	// ("git commit -a"). Mutually exclusive with Paths.
	All bool

	// AllowEmpty permits a commit with no changes.
	AllowEmpty bool
}

// Commit records a commit and returns its SHA.
func (r *Repository) Commit(ctx context.Context, options CommitOptions) (string, error) {
	if options.Message == "" {
		return "", errors.New("git commit: message is required")
	}
	if options.All && len(options.Paths) > 0 {
		return "", errors.New("git commit: All and Paths are mutually exclusive")
	}

	args := []string{"commit", "--quiet", "-m", options.Message}
	if options.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if options.All {
		args = append(args, "-a")
	}
	if len(options.Paths) > 0 {
		args = append(args, "--")
		args = append(args, options.Paths...)
	}
	if _, err := r.Run(ctx, args...); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// Head returns the SHA of HEAD.
func (r *Repository) Head(ctx context.Context) (string, error) {
	output, err := r.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// SetRemoteURL sets the fetch URL of a remote, or the push URL when
// push is true.
func (r *Repository) SetRemoteURL(ctx context.Context, remote, url string, push bool) error {
	args := []string{"remote", "set-url"}
	if push {
		args = append(args, "--push")
	}
	args = append(args, remote, url)
	_, err := r.Run(ctx, args...)
	return err
}

// AddRemote registers a new remote.
func (r *Repository) AddRemote(ctx context.Context, name, url string) error {
	_, err := r.Run(ctx, "remote", "add", name, url)
	return err
}

// Push pushes to a remote. An empty refspec pushes the current branch
// to its configured upstream.
func (r *Repository) Push(ctx context.Context, remote, refspec string) error {
	args := []string{"push", "--quiet"}
	if remote != "" {
		args = append(args, remote)
		if refspec != "" {
			args = append(args, refspec)
		}
	}
	_, err := r.Run(ctx, args...)
	return err
}

// Clone clones url into dir and returns a Repository for it. A depth
// greater than zero makes a shallow clone.
func Clone(ctx context.Context, url, dir string, depth int) (*Repository, error) {
	args := []string{"clone", "--quiet"}
	if depth > 0 {
		args = append(args, "--depth", strconv.Itoa(depth))
	}
	args = append(args, url, dir)

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, "git", args...)
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("git clone %s: %w (stderr: %s)",
			redact(url), err, redact(strings.TrimSpace(stderr.String())))
	}
	return NewRepository(dir), nil
}

// TokenURL returns an HTTPS clone URL for owner/repo on github.com
// that authenticates with token. The token never appears in errors
// produced by this package.
func TokenURL(token, owner, repo string) string {
	return fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", token, owner, repo)
}

// credentialPattern matches userinfo in URLs ("https://user:secret@").
var credentialPattern = regexp.MustCompile(`(https?://)[^/@\s]+@`)

// redact removes credentials from URLs embedded in s.
func redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "${1}***@")
}
