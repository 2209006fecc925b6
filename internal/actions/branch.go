// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"sort"

	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/request"
)

// branchHandler moves feedstock branches to same-named tags
// (archive_branch) and back (unarchive_branch).
//
//	action: archive_branch
//	feedstocks:
//	  foo: [v1.x, v2.x]
type branchHandler struct {
	deps    *Deps
	archive bool
}

// protectedBranch can never be archived.
const protectedBranch = "main"

// refMove names the ref a branch operation reads from and the one it
// writes to. Both are ref names without the "refs/" prefix.
type refMove struct {
	from string
	to   string
}

func (handler *branchHandler) move(branch string) refMove {
	if handler.archive {
		return refMove{from: "heads/" + branch, to: "tags/" + branch}
	}
	return refMove{from: "tags/" + branch, to: "heads/" + branch}
}

func (handler *branchHandler) name() string {
	if handler.archive {
		return ActionArchiveBranch
	}
	return ActionUnarchiveBranch
}

// branches parses the feedstock-to-branches mapping. Feedstocks are
// returned sorted so runs are deterministic.
func branches(req request.Request) ([]string, map[string][]string, error) {
	mapping, err := req.Mapping("feedstocks")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: feedstocks must map feedstock names to lists of branches", err)
	}
	names := make([]string, 0, len(mapping))
	parsed := make(map[string][]string, len(mapping))
	for name := range mapping {
		list, err := request.Request(mapping).Strings(name)
		if err != nil {
			return nil, nil, fmt.Errorf("branches for %s: %w", name, err)
		}
		for _, branch := range list {
			if branch == protectedBranch {
				return nil, nil, fmt.Errorf("%s: branch %q cannot be archived or unarchived", name, protectedBranch)
			}
		}
		names = append(names, name)
		parsed[name] = list
	}
	sort.Strings(names)
	return names, parsed, nil
}

func (handler *branchHandler) Check(ctx context.Context, req request.Request) error {
	names, parsed, err := branches(req)
	if err != nil {
		return err
	}
	if err := handler.deps.requireFeedstocks(ctx, names); err != nil {
		return err
	}
	for _, name := range names {
		for _, branch := range parsed[name] {
			if _, err := handler.plan(ctx, feedstockRepo(name), branch); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}

func (handler *branchHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	names, parsed, err := branches(req)
	if err != nil {
		return nil, err
	}
	logger := handler.deps.logger(handler.name())

	failed := make(map[string]any)
	for _, name := range names {
		repo := feedstockRepo(name)
		var failedBranches []string
		for _, branch := range parsed[name] {
			if err := handler.apply(ctx, repo, branch); err != nil {
				logger.Error("branch update failed", "feedstock", repo, "branch", branch, "error", err)
				failedBranches = append(failedBranches, branch)
				continue
			}
			logger.Info("branch updated", "feedstock", repo, "branch", branch, "archived", handler.archive)
		}
		if len(failedBranches) > 0 {
			failed[name] = request.StringsAsAny(failedBranches)
		}
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("feedstocks", failed), nil
}

// branchStep is what remains to do for one branch.
type branchStep struct {
	sha        string
	createTo   bool
	deleteFrom bool
}

func (step branchStep) done() bool { return !step.createTo && !step.deleteFrom }

// plan inspects both refs and decides the remaining steps. A move that
// already finished is a no-op, and a move interrupted between creating
// the target and deleting the source resumes with the delete. Any
// other combination is an error.
func (handler *branchHandler) plan(ctx context.Context, repo, branch string) (branchStep, error) {
	move := handler.move(branch)
	fromSHA, fromExists, err := handler.ref(ctx, repo, move.from)
	if err != nil {
		return branchStep{}, err
	}
	toSHA, toExists, err := handler.ref(ctx, repo, move.to)
	if err != nil {
		return branchStep{}, err
	}

	switch {
	case !fromExists && toExists:
		return branchStep{}, nil
	case !fromExists:
		return branchStep{}, fmt.Errorf("%s not found", move.from)
	case !toExists:
		return branchStep{sha: fromSHA, createTo: true, deleteFrom: true}, nil
	case toSHA == fromSHA:
		return branchStep{sha: fromSHA, deleteFrom: true}, nil
	default:
		return branchStep{}, fmt.Errorf("%s already exists at %s, %s is at %s", move.to, toSHA, move.from, fromSHA)
	}
}

func (handler *branchHandler) ref(ctx context.Context, repo, ref string) (string, bool, error) {
	found, err := handler.deps.GitHub.GetRef(ctx, handler.deps.Owner, repo, ref)
	if github.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return found.Object.SHA, true, nil
}

func (handler *branchHandler) apply(ctx context.Context, repo, branch string) error {
	step, err := handler.plan(ctx, repo, branch)
	if err != nil {
		return err
	}
	if step.done() {
		return nil
	}
	move := handler.move(branch)
	client := handler.deps.GitHub
	if step.createTo {
		if _, err := client.CreateRef(ctx, handler.deps.Owner, repo, "refs/"+move.to, step.sha); err != nil {
			return err
		}
	}
	if step.deleteFrom {
		if err := client.DeleteRef(ctx, handler.deps.Owner, repo, move.from); err != nil {
			return err
		}
	}
	return nil
}
