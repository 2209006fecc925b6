// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conda-forge/admin-requests/lib/anaconda"
	"github.com/conda-forge/admin-requests/lib/condapkg"
	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/git"
	"github.com/conda-forge/admin-requests/lib/request"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// brokenHandler adds artifacts to the owner channel's "broken" label
// (broken) or removes them from it (not_broken).
//
//	action: broken
//	packages:
//	  - linux-64/foo-1.0-h1234_0.conda
type brokenHandler struct {
	deps   *Deps
	broken bool
}

func (handler *brokenHandler) name() string {
	if handler.broken {
		return ActionBroken
	}
	return ActionNotBroken
}

// sourceChannel is where an artifact must currently be found.
func (handler *brokenHandler) sourceChannel() string {
	if handler.broken {
		return handler.deps.Owner
	}
	return handler.deps.Owner + "/label/broken"
}

func (handler *brokenHandler) Check(ctx context.Context, req request.Request) error {
	packages, err := req.Strings("packages")
	if err != nil {
		return err
	}
	channel := handler.sourceChannel()
	for _, pkg := range packages {
		artifact, err := condapkg.ParseArtifact(pkg)
		if err != nil {
			return err
		}
		exists, err := handler.deps.Anaconda.ArtifactExists(ctx, handler.deps.Owner, artifact)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("package %s does not exist in %s", pkg, handler.deps.Owner)
		}
		search := condatool.CondaSearch(artifact.MatchSpec(), channel, artifact.Subdir)
		if _, err := handler.deps.Tools.Run(ctx, search); err != nil {
			return fmt.Errorf("package %s is not in %s: %w", pkg, channel, err)
		}
	}
	return nil
}

func (handler *brokenHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	logger := handler.deps.logger(handler.name())
	if !handler.deps.Anaconda.CanWrite() {
		logger.Warn("no anaconda.org token, keeping request", "token", secret.ProdBinstarToken)
		return req.Clone(), nil
	}
	packages, err := req.Strings("packages")
	if err != nil {
		return nil, err
	}

	var done, failed []string
	for _, pkg := range packages {
		if err := handler.apply(ctx, pkg); err != nil {
			logger.Error("changing broken label failed", "package", pkg, "error", err)
			failed = append(failed, pkg)
			continue
		}
		logger.Info("changed broken label", "package", pkg, "broken", handler.broken)
		done = append(done, pkg)
	}

	if len(done) > 0 {
		if err := handler.resyncRepodata(ctx, done); err != nil {
			return nil, fmt.Errorf("resyncing repodata after changing %d packages: %w", len(done), err)
		}
	}

	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("packages", request.StringsAsAny(failed)), nil
}

// apply changes the label of one artifact. anaconda.org answers 409
// when adding an artifact that is already broken and 404 when removing
// one that is not; both mean the label is already right.
func (handler *brokenHandler) apply(ctx context.Context, pkg string) error {
	artifact, err := condapkg.ParseArtifact(pkg)
	if err != nil {
		return err
	}
	client := handler.deps.Anaconda
	if handler.broken {
		err = client.MarkBroken(ctx, handler.deps.Owner, artifact)
		if anaconda.IsConflict(err) {
			return nil
		}
		return err
	}
	err = client.UnmarkBroken(ctx, handler.deps.Owner, artifact)
	if anaconda.IsNotFound(err) {
		return nil
	}
	return err
}

// resyncRepodata pushes an empty commit to the repodata patches
// feedstock so its CI republishes channel metadata with the new
// labels.
func (handler *brokenHandler) resyncRepodata(ctx context.Context, packages []string) error {
	token, err := handler.deps.token(secret.GitHubToken, "resync repodata")
	if err != nil {
		return err
	}
	dir, cleanup, err := handler.deps.workspace("repodata-")
	if err != nil {
		return err
	}
	defer cleanup()

	owner, repo := handler.deps.Owner, handler.deps.Repositories.RepodataPatches
	clone, err := git.Clone(ctx, handler.deps.Remotes.CloneURL(owner, repo), filepath.Join(dir, repo), 1)
	if err != nil {
		return err
	}
	clone = clone.WithEnv(handler.deps.GitEnv...)
	if err := clone.SetRemoteURL(ctx, "origin", handler.deps.Remotes.PushURL(owner, repo, token), true); err != nil {
		return err
	}
	message := "resync repo data for broken/not-broken packages " + strings.Join(packages, " ")
	if _, err := clone.Commit(ctx, git.CommitOptions{Message: message, All: true, AllowEmpty: true}); err != nil {
		return err
	}
	return clone.Push(ctx, "", "")
}
