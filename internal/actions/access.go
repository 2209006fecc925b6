// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/git"
	"github.com/conda-forge/admin-requests/lib/request"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// CI providers an access request can enable.
const (
	providerTravis = "travis"
	providerCirun  = "cirun"
)

// cirunResourcePrefix is the only family of Cirun runners feedstocks
// can request.
const cirunResourcePrefix = "cirun-openstack"

// cirunRoles may trigger Cirun jobs on OpenStack runners.
var cirunRoles = []string{"admin", "maintain", "write"}

// accessHandler grants (or for cirun, revokes) a CI provider for
// feedstocks.
//
//	action: cirun
//	feedstocks: [foo]
//	resources: [cirun-openstack-gpu-large]
//	pull_request: false   # optional
//	revoke: false         # optional
//	send_pr: true         # optional, cirun only
type accessHandler struct {
	deps     *Deps
	provider string
}

type accessOptions struct {
	feedstocks   []string
	resources    []string
	pullRequests bool
	revoke       bool
	sendPR       bool
}

func (handler *accessHandler) parse(req request.Request) (accessOptions, error) {
	var options accessOptions
	var err error
	if options.feedstocks, err = req.Strings("feedstocks"); err != nil {
		return options, err
	}
	if options.revoke, err = req.Bool("revoke", false); err != nil {
		return options, err
	}
	if options.pullRequests, err = req.Bool("pull_request", false); err != nil {
		return options, err
	}
	if options.sendPR, err = req.Bool("send_pr", true); err != nil {
		return options, err
	}

	switch handler.provider {
	case providerTravis:
		if options.revoke {
			return options, fmt.Errorf("revoking %s access is not supported", providerTravis)
		}
	case providerCirun:
		if options.resources, err = req.Strings("resources"); err != nil {
			return options, err
		}
		for _, resource := range options.resources {
			if !strings.HasPrefix(resource, cirunResourcePrefix) {
				return options, fmt.Errorf("unknown resource %q: resources must start with %s", resource, cirunResourcePrefix)
			}
		}
	}
	return options, nil
}

func (handler *accessHandler) Check(ctx context.Context, req request.Request) error {
	options, err := handler.parse(req)
	if err != nil {
		return err
	}
	return handler.deps.requireFeedstocks(ctx, options.feedstocks)
}

func (handler *accessHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	options, err := handler.parse(req)
	if err != nil {
		return nil, err
	}
	token, err := handler.deps.token(secret.GitHubAdminToken, "change CI access")
	if err != nil {
		return nil, err
	}
	if _, err := secret.WriteSmithyTokens(handler.deps.SmithyDir, handler.deps.Secrets); err != nil {
		return nil, err
	}
	logger := handler.deps.logger(handler.provider)

	var failed []string
	for _, name := range options.feedstocks {
		repo := feedstockRepo(name)
		if err := handler.apply(ctx, repo, options, token); err != nil {
			logger.Error("changing CI access failed", "feedstock", repo, "error", err)
			failed = append(failed, name)
			continue
		}
		logger.Info("changed CI access", "feedstock", repo, "revoke", options.revoke)
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("feedstocks", request.StringsAsAny(failed)), nil
}

// smithy runs a conda-smithy command as the admin token.
func (handler *accessHandler) smithy(ctx context.Context, command condatool.Command, token string) error {
	command.Env = append(append(command.Env, handler.deps.GitEnv...), "GITHUB_TOKEN="+token)
	command.Secrets = append(command.Secrets, token)
	_, err := handler.deps.Tools.Run(ctx, command)
	return err
}

func (handler *accessHandler) apply(ctx context.Context, repo string, options accessOptions, token string) error {
	dir, cleanup, err := handler.deps.workspace("access-")
	if err != nil {
		return err
	}
	defer cleanup()

	owner := handler.deps.Owner
	feedstockDir := filepath.Join(dir, repo)
	clone, err := git.Clone(ctx, handler.deps.Remotes.CloneURL(owner, repo), feedstockDir, 1)
	if err != nil {
		return err
	}
	clone = clone.WithEnv(handler.deps.GitEnv...)

	register := condatool.RegisterCIOptions{
		FeedstockDir: feedstockDir,
		Organization: owner,
		Provider:     handler.provider,
	}
	if handler.provider == providerCirun {
		register.CirunResources = options.resources
		register.CirunRoles = cirunRoles
		if handler.deps.CirunUsersURL != "" {
			register.CirunUsersURLs = []string{handler.deps.CirunUsersURL}
		}
		register.PullRequests = options.pullRequests
		register.Remove = options.revoke
	}
	if err := handler.smithy(ctx, condatool.RegisterCI(register), token); err != nil {
		return err
	}
	if options.revoke {
		return nil
	}

	tokenProvider := "github_actions"
	if handler.provider == providerTravis {
		tokenProvider = providerTravis
	}
	if err := handler.smithy(ctx, condatool.GenerateFeedstockToken(condatool.GenerateTokenOptions{
		FeedstockDir:      feedstockDir,
		Organization:      owner,
		UniquePerProvider: true,
	}), token); err != nil {
		return err
	}
	if err := handler.smithy(ctx, condatool.RegisterFeedstockToken(condatool.RegisterTokenOptions{
		FeedstockDir:      feedstockDir,
		Organization:      owner,
		UniquePerProvider: true,
		TokenRepository:   handler.deps.Remotes.PushURL(owner, handler.deps.Repositories.Tokens, token),
		Only:              []string{tokenProvider},
	}), token); err != nil {
		return err
	}

	switch handler.provider {
	case providerTravis:
		return handler.smithy(ctx, condatool.RotateBinstarToken(condatool.RotateTokenOptions{
			FeedstockDir: feedstockDir,
			Organization: owner,
			Only:         []string{providerTravis},
		}), token)
	case providerCirun:
		if !options.sendPR {
			return nil
		}
		return handler.sendCirunPR(ctx, clone, repo, options, token)
	}
	return nil
}
