// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package condatool

import (
	"strconv"
	"strings"
)

// StagingTokenName is the CI secret conda-smithy rotates into
// feedstock CI configurations.
const StagingTokenName = "STAGING_BINSTAR_TOKEN"

// Providers conda-smithy can be told to skip with --without-<name>.
var allProviders = []string{"appveyor", "azure", "circle", "drone", "github-actions", "travis"}

// ProviderFlag returns the conda-smithy spelling of a provider name:
// "github_actions" becomes "github-actions".
func ProviderFlag(provider string) string {
	return strings.ReplaceAll(provider, "_", "-")
}

// withoutFlags returns --without-<p> for every skip not already in
// implied, in skip order.
func withoutFlags(skips []string, implied ...string) []string {
	var flags []string
	for _, skip := range skips {
		provider := ProviderFlag(skip)
		if contains(implied, provider) {
			continue
		}
		flags = append(flags, "--without-"+provider)
	}
	return flags
}

func contains(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}

// CondaSearch checks that spec resolves in channel alone for subdir.
func CondaSearch(spec, channel, subdir string) Command {
	return Command{
		Name: Conda,
		Args: []string{"search", spec, "-c", channel, "--override-channels"},
		Env:  []string{"CONDA_SUBDIR=" + subdir},
	}
}

// GenerateTokenOptions configures GenerateFeedstockToken.
type GenerateTokenOptions struct {
	FeedstockDir      string
	Organization      string
	UniquePerProvider bool
}

// GenerateFeedstockToken creates a new feedstock token in the smithy
// token directory.
func GenerateFeedstockToken(options GenerateTokenOptions) Command {
	args := []string{"generate-feedstock-token"}
	if options.UniquePerProvider {
		args = append(args, "--unique-token-per-provider")
	}
	args = append(args,
		"--feedstock_directory", options.FeedstockDir,
		"--organization", options.Organization,
	)
	return Command{Name: CondaSmithy, Args: args}
}

// RegisterTokenOptions configures RegisterFeedstockToken.
type RegisterTokenOptions struct {
	FeedstockDir      string
	Organization      string
	UniquePerProvider bool

	// TokenRepository is the authenticated clone URL of the feedstock
	// tokens repository. It is redacted from rendered commands.
	TokenRepository string
	Secrets         []string

	// Only restricts registration to these providers (--without-all
	// plus --with-<p>). When empty, every provider except those in
	// Skip is registered; circle and drone are always skipped.
	Only []string
	Skip []string

	// ExistingTokensTTL, when positive, keeps existing tokens valid
	// for that many seconds instead of revoking them.
	ExistingTokensTTL int
}

// RegisterFeedstockToken registers the generated token with the CI
// providers and the tokens repository.
func RegisterFeedstockToken(options RegisterTokenOptions) Command {
	args := []string{"register-feedstock-token"}
	if options.UniquePerProvider {
		args = append(args, "--unique-token-per-provider")
	}
	if len(options.Only) > 0 {
		args = append(args, "--without-all")
		for _, provider := range options.Only {
			args = append(args, "--with-"+ProviderFlag(provider))
		}
	} else {
		args = append(args, "--without-circle", "--without-drone")
		args = append(args, withoutFlags(options.Skip, "circle", "drone")...)
	}
	args = append(args,
		"--feedstock_directory", options.FeedstockDir,
		"--organization", options.Organization,
		"--token_repo", options.TokenRepository,
	)
	if options.ExistingTokensTTL > 0 {
		args = append(args, "--existing-tokens-time-to-expiration", strconv.Itoa(options.ExistingTokensTTL))
	}
	return Command{
		Name:    CondaSmithy,
		Args:    args,
		Secrets: append([]string{options.TokenRepository}, options.Secrets...),
	}
}

// RotateTokenOptions configures RotateBinstarToken.
type RotateTokenOptions struct {
	FeedstockDir string
	Organization string

	// Only and Skip select providers as in RegisterTokenOptions. When
	// Only is empty, travis is the only provider that can receive the
	// token; the others get it through the feedstock token.
	Only []string
	Skip []string
}

// RotateBinstarToken pushes a fresh staging upload token to the
// feedstock's CI providers. It runs inside the feedstock directory.
func RotateBinstarToken(options RotateTokenOptions) Command {
	args := []string{"rotate-binstar-token"}
	if len(options.Only) > 0 {
		args = append(args, "--feedstock_directory", options.FeedstockDir, "--without-all")
		for _, provider := range options.Only {
			args = append(args, "--with-"+ProviderFlag(provider))
		}
		if options.Organization != "" {
			args = append(args, "--organization", options.Organization)
		}
	} else {
		implied := []string{"appveyor", "azure", "circle", "drone", "github-actions"}
		for _, provider := range implied {
			args = append(args, "--without-"+provider)
		}
		args = append(args, withoutFlags(options.Skip, implied...)...)
	}
	args = append(args, "--token_name", StagingTokenName)
	return Command{Name: CondaSmithy, Args: args, Dir: options.FeedstockDir}
}

// RegisterCIOptions configures RegisterCI.
type RegisterCIOptions struct {
	FeedstockDir string
	Organization string

	// Provider is "travis" or "cirun".
	Provider string

	// Cirun settings, ignored for travis.
	CirunResources []string
	CirunRoles     []string
	CirunUsersURLs []string
	PullRequests   bool
	Remove         bool
}

// RegisterCI enables (or with Remove, disables) one CI provider for a
// feedstock.
func RegisterCI(options RegisterCIOptions) Command {
	args := []string{
		"register-ci",
		"--feedstock_dir", options.FeedstockDir,
		"--without-all",
		"--without-anaconda-token",
		"--organization", options.Organization,
		"--with-" + options.Provider,
	}
	if options.Provider == "cirun" {
		for _, resource := range options.CirunResources {
			args = append(args, "--cirun-resources", resource)
		}
		for _, role := range options.CirunRoles {
			args = append(args, "--cirun-roles", role)
		}
		for _, usersURL := range options.CirunUsersURLs {
			args = append(args, "--cirun-users-from-json", usersURL)
		}
		if options.PullRequests {
			args = append(args, "--cirun-policy-args", "pull_request")
		}
		if options.Remove {
			args = append(args, "--remove")
		}
	}
	return Command{Name: CondaSmithy, Args: args}
}

// Rerender regenerates the feedstock's CI files in place and commits
// the result.
func Rerender(feedstockDir string) Command {
	return Command{
		Name: CondaSmithy,
		Args: []string{"rerender", "-c", "auto", "--no-check-uptodate"},
		Dir:  feedstockDir,
	}
}

// CopyOptions configures AnacondaCopy.
type CopyOptions struct {
	// Spec is "channel/name/version/subdir/filename".
	Spec string

	// ToOwner receives the copy.
	ToOwner string

	// FromLabel is omitted when empty or "main".
	FromLabel string

	// ToLabel is omitted when empty.
	ToLabel string

	// Token authorizes the copy. Redacted from rendered commands.
	Token string
}

// AnacondaCopy copies one artifact between channels on anaconda.org.
func AnacondaCopy(options CopyOptions) Command {
	args := []string{"--token", options.Token, "copy", "--to-owner", options.ToOwner}
	if options.FromLabel != "" && options.FromLabel != "main" {
		args = append(args, "--from-label", options.FromLabel)
	}
	if options.ToLabel != "" {
		args = append(args, "--to-label", options.ToLabel)
	}
	args = append(args, options.Spec)
	return Command{Name: Anaconda, Args: args, Secrets: []string{options.Token}}
}

// KnownProvider reports whether provider (either spelling) is a CI
// provider conda-smithy knows.
func KnownProvider(provider string) bool {
	return contains(allProviders, ProviderFlag(provider))
}
