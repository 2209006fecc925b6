// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"

	"github.com/conda-forge/admin-requests/lib/request"
)

// archiveHandler archives or unarchives whole feedstock repositories.
//
//	action: archive
//	feedstocks: [foo, bar]
type archiveHandler struct {
	deps    *Deps
	archive bool
}

func (handler *archiveHandler) name() string {
	if handler.archive {
		return ActionArchive
	}
	return ActionUnarchive
}

func (handler *archiveHandler) Check(ctx context.Context, req request.Request) error {
	feedstocks, err := req.Strings("feedstocks")
	if err != nil {
		return err
	}
	return handler.deps.requireFeedstocks(ctx, feedstocks)
}

func (handler *archiveHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	feedstocks, err := req.Strings("feedstocks")
	if err != nil {
		return nil, err
	}
	logger := handler.deps.logger(handler.name())

	var failed []string
	for _, name := range feedstocks {
		repo := feedstockRepo(name)
		if err := handler.apply(ctx, repo); err != nil {
			logger.Error("feedstock update failed", "feedstock", repo, "error", err)
			failed = append(failed, name)
			continue
		}
		logger.Info("feedstock updated", "feedstock", repo, "archived", handler.archive)
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("feedstocks", request.StringsAsAny(failed)), nil
}

func (handler *archiveHandler) apply(ctx context.Context, repo string) error {
	client := handler.deps.GitHub
	current, err := client.GetRepository(ctx, handler.deps.Owner, repo)
	if err != nil {
		return err
	}
	if current.Archived == handler.archive {
		return nil
	}
	_, err = client.SetArchived(ctx, handler.deps.Owner, repo, handler.archive)
	return err
}
