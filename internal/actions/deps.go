// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package actions implements the admin request handlers and registers
// them under their action names.
//
// Every handler gets its collaborators from [Deps]: typed clients for
// GitHub and anaconda.org, a [condatool.Runner] for the conda CLIs, the
// token [secret.Set], and the git remotes to clone from. Nothing is
// read from the environment here; cmd/admin-requests assembles Deps
// from configuration.
//
// Handlers that act on a list of targets return a residual holding the
// failed targets in their original order. A target already in the
// requested state counts as done, so a residual can be re-run as is.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/conda-forge/admin-requests/lib/action"
	"github.com/conda-forge/admin-requests/lib/anaconda"
	"github.com/conda-forge/admin-requests/lib/clock"
	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/git"
	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/heroku"
	"github.com/conda-forge/admin-requests/lib/secret"
)

// Action names.
const (
	ActionArchive            = "archive"
	ActionUnarchive          = "unarchive"
	ActionArchiveBranch      = "archive_branch"
	ActionUnarchiveBranch    = "unarchive_branch"
	ActionBroken             = "broken"
	ActionNotBroken          = "not_broken"
	ActionTokenReset         = "token_reset"
	ActionTravis             = "travis"
	ActionCirun              = "cirun"
	ActionCFEP3Copy          = "cfep3_copy"
	ActionAddFeedstockOutput = "add_feedstock_output"
	ActionCore               = "core"
)

// Repositories names the registry repositories in the owner
// organization that some actions write to.
type Repositories struct {
	Outputs         string
	Tokens          string
	RepodataPatches string
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	// Owner is the GitHub organization and anaconda.org channel.
	Owner string

	// GitHub is authenticated with GITHUB_TOKEN when available and is
	// used for checks and most writes.
	GitHub *github.Client

	// AdminGitHub is authenticated with GITHUB_ADMIN_TOKEN for CI
	// access changes. Defaults to GitHub.
	AdminGitHub *github.Client

	// Anaconda is authenticated with PROD_BINSTAR_TOKEN when available.
	Anaconda *anaconda.Client

	// Heroku is authenticated with HEROKU_API_KEY when available. A
	// nil client leaves heroku fields of core requests undone.
	Heroku *heroku.Client

	// HerokuApp is the app core members join. Defaults to Owner.
	HerokuApp string

	// Tools runs conda, conda-smithy, and anaconda.
	Tools condatool.Runner

	// Secrets holds every token the run has.
	Secrets *secret.Set

	// SmithyDir is where conda-smithy reads provider token files.
	SmithyDir string

	Repositories Repositories

	// CirunUsersURL lists users allowed on Cirun runners.
	CirunUsersURL string

	// CoreListURLs are CSV files whose first column holds the handles
	// of core and emeritus members.
	CoreListURLs []string

	// PullRequestAuthor is the login that opened the pull request
	// being checked. Empty outside pull request CI.
	PullRequestAuthor string

	// HTTPClient fetches CoreListURLs. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Remotes builds git URLs. Defaults to GitHubRemotes.
	Remotes Remotes

	// GitEnv is added to every git invocation (committer identity).
	GitEnv []string

	// WorkDir holds temporary clones. Defaults to os.TempDir().
	WorkDir string

	// Clock names Cirun pull request branches. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Remotes builds clone and push URLs for repositories.
type Remotes interface {
	CloneURL(owner, repo string) string
	PushURL(owner, repo, token string) string
}

// GitHubRemotes are HTTPS remotes on github.com.
type GitHubRemotes struct{}

// CloneURL returns the anonymous HTTPS URL.
func (GitHubRemotes) CloneURL(owner, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s.git", owner, repo)
}

// PushURL returns an HTTPS URL authenticated with token.
func (GitHubRemotes) PushURL(owner, repo, token string) string {
	return git.TokenURL(token, owner, repo)
}

func (deps *Deps) validate() error {
	var errs []error
	if deps.Owner == "" {
		errs = append(errs, errors.New("Owner is required"))
	}
	if deps.GitHub == nil {
		errs = append(errs, errors.New("GitHub is required"))
	}
	if deps.Anaconda == nil {
		errs = append(errs, errors.New("Anaconda is required"))
	}
	if deps.Tools == nil {
		errs = append(errs, errors.New("Tools is required"))
	}
	if deps.Secrets == nil {
		errs = append(errs, errors.New("Secrets is required"))
	}
	if deps.SmithyDir == "" {
		errs = append(errs, errors.New("SmithyDir is required"))
	}
	if len(deps.CoreListURLs) == 0 {
		errs = append(errs, errors.New("CoreListURLs must not be empty"))
	}
	if deps.Repositories.Outputs == "" || deps.Repositories.Tokens == "" || deps.Repositories.RepodataPatches == "" {
		errs = append(errs, errors.New("Repositories must name all three registry repositories"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("actions: invalid dependencies: %w", errors.Join(errs...))
	}

	if deps.AdminGitHub == nil {
		deps.AdminGitHub = deps.GitHub
	}
	if deps.HerokuApp == "" {
		deps.HerokuApp = deps.Owner
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	if deps.Remotes == nil {
		deps.Remotes = GitHubRemotes{}
	}
	if deps.WorkDir == "" {
		deps.WorkDir = os.TempDir()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return nil
}

// Register adds every handler to registry.
func Register(registry *action.Registry, deps Deps) error {
	if err := deps.validate(); err != nil {
		return err
	}
	shared := &deps

	handlers := []struct {
		name    string
		handler action.Handler
	}{
		{ActionArchive, &archiveHandler{deps: shared, archive: true}},
		{ActionUnarchive, &archiveHandler{deps: shared, archive: false}},
		{ActionArchiveBranch, &branchHandler{deps: shared, archive: true}},
		{ActionUnarchiveBranch, &branchHandler{deps: shared, archive: false}},
		{ActionBroken, &brokenHandler{deps: shared, broken: true}},
		{ActionNotBroken, &brokenHandler{deps: shared, broken: false}},
		{ActionTokenReset, &tokenResetHandler{deps: shared}},
		{ActionTravis, &accessHandler{deps: shared, provider: providerTravis}},
		{ActionCirun, &accessHandler{deps: shared, provider: providerCirun}},
		{ActionCFEP3Copy, &copyHandler{deps: shared}},
		{ActionAddFeedstockOutput, &outputsHandler{deps: shared}},
		{ActionCore, &coreHandler{deps: shared}},
	}
	for _, entry := range handlers {
		if err := registry.Register(entry.name, entry.handler); err != nil {
			return err
		}
	}
	return nil
}

// logger scopes the shared logger to one request.
func (deps *Deps) logger(actionName string) *slog.Logger {
	return deps.Logger.With("action", actionName)
}

// token returns the named secret, or an error naming what needs it.
func (deps *Deps) token(name, purpose string) (string, error) {
	value := deps.Secrets.Value(name)
	if value == "" {
		return "", fmt.Errorf("%s is required to %s", name, purpose)
	}
	return value, nil
}

// workspace creates a temporary directory under WorkDir and returns it
// with its cleanup function.
func (deps *Deps) workspace(pattern string) (string, func(), error) {
	dir, err := os.MkdirTemp(deps.WorkDir, pattern)
	if err != nil {
		return "", nil, fmt.Errorf("creating work directory: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// feedstockName strips a trailing "-feedstock".
func feedstockName(name string) string {
	return strings.TrimSuffix(name, "-feedstock")
}

// feedstockRepo returns the repository name of a feedstock.
func feedstockRepo(name string) string {
	return feedstockName(name) + "-feedstock"
}

// requireFeedstocks fails when any named feedstock repository does not
// exist in the owner organization. Every missing name is reported.
func (deps *Deps) requireFeedstocks(ctx context.Context, names []string) error {
	var missing []string
	for _, name := range names {
		exists, err := deps.GitHub.RepositoryExists(ctx, deps.Owner, feedstockRepo(name))
		if err != nil {
			return err
		}
		if !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("feedstocks %v could not be found in %s", missing, deps.Owner)
	}
	return nil
}
