// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/conda-forge/admin-requests/lib/git"
)

// ChangeKind distinguishes the two mutations a run makes to the queue.
type ChangeKind int

const (
	// ChangeRemove records a discharged request whose file was deleted.
	ChangeRemove ChangeKind = iota
	// ChangeRewrite records a residual written over the original file.
	ChangeRewrite
)

func (kind ChangeKind) String() string {
	switch kind {
	case ChangeRemove:
		return "remove"
	case ChangeRewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(kind))
	}
}

// Change describes one file mutation to record.
type Change struct {
	Kind ChangeKind

	// Path is relative to the queue directory.
	Path string

	Action string

	// Fingerprint identifies the file content the run acted on.
	Fingerprint string
}

// FingerprintTrailer is the git trailer key carrying the digest of the
// request file as it was before the run touched it.
const FingerprintTrailer = "Request-Fingerprint"

// Message returns the commit message for the change. displayPath is
// the path as it should appear in history (usually relative to the
// repository root).
func (change Change) Message(displayPath string) string {
	var subject string
	switch change.Kind {
	case ChangeRemove:
		subject = fmt.Sprintf("Remove %s after %s", displayPath, change.Action)
	default:
		subject = fmt.Sprintf("Keeping %s after failed %s", displayPath, change.Action)
	}
	if change.Fingerprint == "" {
		return subject
	}
	return subject + "\n\n" + FingerprintTrailer + ": " + change.Fingerprint
}

// Committer records queue changes. Implementations must make each
// Commit call self-contained: one call, one recorded change.
type Committer interface {
	Commit(ctx context.Context, change Change) error
}

// NoopCommitter leaves changes in the working tree unrecorded. Used
// with --no-commit and when the queue is not a git repository.
type NoopCommitter struct{}

// Commit does nothing.
func (NoopCommitter) Commit(context.Context, Change) error { return nil }

// GitCommitter records each change as its own git commit, limited to
// the changed path so unrelated staged work is never swept in.
type GitCommitter struct {
	repository *git.Repository

	// prefix is the queue directory relative to the repository root,
	// with a trailing slash, or "" when the queue is the root.
	prefix string

	logger *slog.Logger
}

// NewGitCommitter returns a committer for a queue directory inside a
// git working tree. env entries ("KEY=value") are passed to every git
// invocation, typically the committer identity.
func NewGitCommitter(ctx context.Context, queueDir string, logger *slog.Logger, env ...string) (*GitCommitter, error) {
	repository := git.NewRepository(queueDir).WithEnv(env...)
	if !repository.IsWorkTree(ctx) {
		return nil, fmt.Errorf("queue directory %s is not inside a git working tree", queueDir)
	}
	prefix, err := repository.Run(ctx, "rev-parse", "--show-prefix")
	if err != nil {
		return nil, fmt.Errorf("locating queue directory in repository: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GitCommitter{
		repository: repository,
		prefix:     strings.TrimSpace(prefix),
		logger:     logger,
	}, nil
}

// Commit stages the change for change.Path and commits only that
// path. Rewrites are committed even when the residual is byte-for-byte
// the original, so every partial run leaves a trace in history.
func (committer *GitCommitter) Commit(ctx context.Context, change Change) error {
	displayPath := path.Join(committer.prefix, change.Path)

	switch change.Kind {
	case ChangeRemove:
		tracked, err := committer.repository.IsTracked(ctx, change.Path)
		if err != nil {
			return err
		}
		if !tracked {
			// Never committed, so there is nothing to record.
			committer.logger.Warn("removed request file was not tracked", "path", displayPath)
			return nil
		}
		if err := committer.repository.Remove(ctx, change.Path); err != nil {
			return err
		}
	case ChangeRewrite:
		if err := committer.repository.Add(ctx, change.Path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown change kind %v", change.Kind)
	}

	sha, err := committer.repository.Commit(ctx, git.CommitOptions{
		Message:    change.Message(displayPath),
		Paths:      []string{change.Path},
		AllowEmpty: change.Kind == ChangeRewrite,
	})
	if err != nil {
		return err
	}
	committer.logger.Debug("queue change committed",
		"path", displayPath,
		"kind", change.Kind.String(),
		"commit", sha,
	)
	return nil
}
