// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/request"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// tokenResetHandler issues new feedstock tokens and staging upload
// tokens.
//
//	action: token_reset
//	feedstocks: [foo]
//	skip_providers: [travis]             # optional
//	unique_token_per_provider: true      # optional
//	existing_tokens_time_to_expiration: 3600  # optional, seconds
type tokenResetHandler struct {
	deps *Deps
}

// tokenResetOptions are the optional request fields.
type tokenResetOptions struct {
	feedstocks []string
	skip       []string
	unique     bool
	ttl        int
}

func parseTokenReset(req request.Request) (tokenResetOptions, error) {
	var options tokenResetOptions
	var err error
	if options.feedstocks, err = req.Strings("feedstocks"); err != nil {
		return options, err
	}
	if options.skip, err = req.OptionalStrings("skip_providers"); err != nil {
		return options, err
	}
	for _, provider := range options.skip {
		if !condatool.KnownProvider(provider) {
			return options, fmt.Errorf("unknown provider %q in skip_providers", provider)
		}
	}
	if options.unique, err = req.Bool("unique_token_per_provider", false); err != nil {
		return options, err
	}
	if options.ttl, _, err = req.Int("existing_tokens_time_to_expiration"); err != nil {
		return options, err
	}
	return options, nil
}

func (handler *tokenResetHandler) Check(ctx context.Context, req request.Request) error {
	options, err := parseTokenReset(req)
	if err != nil {
		return err
	}
	return handler.deps.requireFeedstocks(ctx, options.feedstocks)
}

func (handler *tokenResetHandler) Run(ctx context.Context, req request.Request) (request.Request, error) {
	options, err := parseTokenReset(req)
	if err != nil {
		return nil, err
	}
	token, err := handler.deps.token(secret.GitHubToken, "reset feedstock tokens")
	if err != nil {
		return nil, err
	}
	written, err := secret.WriteSmithyTokens(handler.deps.SmithyDir, handler.deps.Secrets)
	if err != nil {
		return nil, err
	}
	logger := handler.deps.logger(ActionTokenReset)
	logger.Debug("wrote provider tokens", "files", len(written))

	var failed []string
	for _, name := range options.feedstocks {
		if err := handler.reset(ctx, feedstockName(name), options, token); err != nil {
			logger.Error("token reset failed", "feedstock", feedstockRepo(name), "error", err)
			failed = append(failed, name)
			continue
		}
		logger.Info("token reset", "feedstock", feedstockRepo(name))
	}
	if len(failed) == 0 {
		return nil, nil
	}
	return req.With("feedstocks", request.StringsAsAny(failed)), nil
}

func (handler *tokenResetHandler) reset(ctx context.Context, name string, options tokenResetOptions, token string) error {
	dir, cleanup, err := handler.deps.workspace("token-reset-")
	if err != nil {
		return err
	}
	defer cleanup()

	repo := name + "-feedstock"
	feedstockDir := filepath.Join(dir, repo)
	if err := os.Mkdir(feedstockDir, 0o755); err != nil {
		return fmt.Errorf("creating feedstock directory: %w", err)
	}

	if options.ttl <= 0 {
		if err := handler.deleteRegisteredToken(ctx, repo); err != nil {
			return err
		}
	}

	owner := handler.deps.Owner
	tokenRepo := handler.deps.Remotes.PushURL(owner, handler.deps.Repositories.Tokens, token)
	commands := []condatool.Command{
		condatool.GenerateFeedstockToken(condatool.GenerateTokenOptions{
			FeedstockDir:      feedstockDir,
			Organization:      owner,
			UniquePerProvider: options.unique,
		}),
		condatool.RegisterFeedstockToken(condatool.RegisterTokenOptions{
			FeedstockDir:      feedstockDir,
			Organization:      owner,
			UniquePerProvider: options.unique,
			TokenRepository:   tokenRepo,
			Secrets:           []string{token},
			Skip:              options.skip,
			ExistingTokensTTL: options.ttl,
		}),
		condatool.RotateBinstarToken(condatool.RotateTokenOptions{
			FeedstockDir: feedstockDir,
			Skip:         options.skip,
		}),
	}
	for _, command := range commands {
		if _, err := handler.deps.Tools.Run(ctx, command); err != nil {
			return err
		}
	}
	return nil
}

// deleteRegisteredToken removes the feedstock's entry from the tokens
// repository so the old token stops validating immediately.
func (handler *tokenResetHandler) deleteRegisteredToken(ctx context.Context, repo string) error {
	client := handler.deps.GitHub
	owner, tokensRepo := handler.deps.Owner, handler.deps.Repositories.Tokens
	tokenPath := "tokens/" + repo + ".json"

	content, err := client.GetContents(ctx, owner, tokensRepo, tokenPath)
	if github.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	message := "[ci skip] [skip ci] [cf admin skip] ***NO_CI*** removing token for " + repo
	return client.DeleteContents(ctx, owner, tokensRepo, tokenPath, message, content.SHA)
}
