// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/conda-forge/admin-requests/cmd/admin-requests/cli"
	"github.com/conda-forge/admin-requests/internal/actions"
	"github.com/conda-forge/admin-requests/lib/action"
	"github.com/conda-forge/admin-requests/lib/anaconda"
	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/config"
	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/heroku"
	"github.com/conda-forge/admin-requests/lib/queue"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// environment is everything a command needs after configuration is
// resolved.
type environment struct {
	config   *config.Config
	runID    string
	logger   *slog.Logger
	secrets  *secret.Set
	registry *action.Registry
}

// setup resolves configuration, reads secrets, and registers every
// action handler.
func (a *app) setup(opts *options) (*environment, error) {
	cfg, err := a.loadConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := cli.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := a.newLogger(level).With("run_id", runID)

	secrets, err := loadSecrets(cfg, a.lookup)
	if err != nil {
		return nil, err
	}

	registry, err := a.register(cfg, secrets, logger)
	if err != nil {
		secrets.Close()
		return nil, err
	}

	logger.Debug("configuration loaded",
		"owner", cfg.Owner,
		"queue_dir", cfg.Queue.Dir,
		"commit", cfg.Queue.Commit,
		"tokens", secrets.Names(),
	)
	return &environment{
		config:   cfg,
		runID:    runID,
		logger:   logger,
		secrets:  secrets,
		registry: registry,
	}, nil
}

// loadConfig applies, in increasing precedence: defaults, the config
// file, the environment, and flags.
func (a *app) loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case opts.configPath != "":
		cfg, err = config.LoadFile(opts.configPath)
	default:
		path, ok := a.lookup(config.EnvironmentVariable)
		if ok && path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg, err = config.Parse(nil)
		}
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvironment(a.lookup)
	if opts.queueDir != "" {
		cfg.Queue.Dir = opts.queueDir
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.noCommit {
		cfg.Queue.Commit = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// loadSecrets reads every known token from the environment, then
// overlays the configured token files.
func loadSecrets(cfg *config.Config, lookup func(string) (string, bool)) (*secret.Set, error) {
	secrets, err := secret.FromEnvironment(lookup, secret.KnownTokens...)
	if err != nil {
		return nil, fmt.Errorf("reading tokens from the environment: %w", err)
	}

	names := make([]string, 0, len(cfg.Secrets.Files))
	for name := range cfg.Secrets.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := secrets.PutFile(name, cfg.Secrets.Files[name]); err != nil {
			secrets.Close()
			return nil, err
		}
	}
	return secrets, nil
}

// register builds the API clients and registers the handlers.
func (a *app) register(cfg *config.Config, secrets *secret.Set, logger *slog.Logger) (*action.Registry, error) {
	githubClient, err := github.NewClient(github.Config{
		BaseURL:    cfg.GitHub.BaseURL,
		Token:      secrets.Value(secret.GitHubToken),
		HTTPClient: a.httpClient,
		Logger:     logger.With("client", "github"),
	})
	if err != nil {
		return nil, err
	}

	adminClient := githubClient
	if secrets.Has(secret.GitHubAdminToken) {
		adminClient, err = github.NewClient(github.Config{
			BaseURL:    cfg.GitHub.BaseURL,
			Token:      secrets.Value(secret.GitHubAdminToken),
			HTTPClient: a.httpClient,
			Logger:     logger.With("client", "github-admin"),
		})
		if err != nil {
			return nil, err
		}
	}

	anacondaClient, err := anaconda.NewClient(anaconda.Config{
		APIURL:      cfg.Anaconda.BaseURL,
		DownloadURL: cfg.Anaconda.DownloadURL,
		WebURL:      cfg.Anaconda.WebURL,
		Token:       secrets.Value(secret.ProdBinstarToken),
		HTTPClient:  a.httpClient,
		Logger:      logger.With("client", "anaconda"),
	})
	if err != nil {
		return nil, err
	}

	herokuClient, err := heroku.NewClient(heroku.Config{
		APIURL:     cfg.Heroku.BaseURL,
		Token:      secrets.Value(secret.HerokuAPIKey),
		HTTPClient: a.httpClient,
		Logger:     logger.With("client", "heroku"),
	})
	if err != nil {
		return nil, err
	}

	// Set by pull request CI to the login that opened the pull request.
	author, _ := a.lookup("GITHUB_PR_AUTHOR")

	registry := action.NewRegistry()
	err = actions.Register(registry, actions.Deps{
		Owner:       cfg.Owner,
		GitHub:      githubClient,
		AdminGitHub: adminClient,
		Anaconda:    anacondaClient,
		Heroku:      herokuClient,
		HerokuApp:   cfg.Heroku.App,
		Tools:       &condatool.ExecRunner{Logger: logger},
		Secrets:     secrets,
		SmithyDir:   cfg.Secrets.SmithyDir,
		Repositories: actions.Repositories{
			Outputs:         cfg.GitHub.OutputsRepository,
			Tokens:          cfg.GitHub.TokensRepository,
			RepodataPatches: cfg.GitHub.RepodataPatchesRepository,
		},
		CirunUsersURL:     cfg.GitHub.CirunUsersURL,
		CoreListURLs:      cfg.GitHub.CoreListURLs,
		PullRequestAuthor: author,
		HTTPClient:        a.httpClient,
		GitEnv:            cfg.Git.Env(),
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("registering actions: %w", err)
	}
	return registry, nil
}

func (env *environment) load() (*queue.Batch, error) {
	loaded, err := queue.Load(queue.LoadOptions{
		Dir:        env.config.Queue.Dir,
		Extensions: env.config.Queue.Extensions,
		Exclude:    env.config.Queue.Exclude,
	})
	if err != nil {
		return nil, err
	}
	env.logger.Info("loaded request queue",
		"dir", loaded.Dir,
		"requests", len(loaded.Entries),
		"malformed", len(loaded.Failures),
	)
	return loaded, nil
}

func (env *environment) close() {
	if err := env.secrets.Close(); err != nil {
		env.logger.Warn("releasing secrets failed", "error", err)
	}
}
