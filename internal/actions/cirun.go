// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/git"
	"github.com/conda-forge/admin-requests/lib/github"
)

// Files a Cirun pull request edits, relative to the feedstock root.
const (
	forgeConfigFile      = "conda-forge.yml"
	buildConfigFile      = "recipe/conda_build_config.yaml"
	cirunLabelPrefix     = "cirun-"
	githubActionsLabels  = "github_actions_labels"
	cirunPullRequestBase = "main"
)

const cirunPullRequestBody = `Note that only builds triggered by maintainers of the feedstock (and core)
who have accepted the terms of service and privacy policy will run
on Github actions via Cirun.
- [ ] Maintainers have accepted the terms of service and privacy policy
  at https://github.com/Quansight/open-gpu-server

Also, note that rerendering with Github actions as CI provider must be done
locally in the future for this feedstock.
`

// configureCirun points the feedstock's linux-64 builds at self-hosted
// GitHub Actions runners with the given labels. It reports false, and
// writes nothing, when the feedstock already uses Cirun labels.
func configureCirun(feedstockDir string, resources []string, pullRequests bool) (bool, error) {
	buildConfigPath := filepath.Join(feedstockDir, filepath.FromSlash(buildConfigFile))
	forgeConfigPath := filepath.Join(feedstockDir, forgeConfigFile)

	buildConfig, err := readYAMLDocument(buildConfigPath)
	if err != nil {
		return false, err
	}
	for _, label := range nodeStrings(lookupNode(buildConfig.mapping(), githubActionsLabels)) {
		if strings.HasPrefix(label, cirunLabelPrefix) {
			return false, nil
		}
	}
	forgeConfig, err := readYAMLDocument(forgeConfigPath)
	if err != nil {
		return false, err
	}

	githubActions := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setNode(githubActions, "self_hosted", boolNode(true))
	if pullRequests {
		setNode(githubActions, "triggers", stringsNode([]string{"push", "pull_request"}))
	}
	setNode(forgeConfig.mapping(), "github_actions", githubActions)
	setNode(childMapping(forgeConfig.mapping(), "provider"), "linux_64", scalarNode("github_actions"))
	setNode(buildConfig.mapping(), githubActionsLabels, stringsNode(resources))

	if err := forgeConfig.writeFile(forgeConfigPath); err != nil {
		return false, err
	}
	if err := buildConfig.writeFile(buildConfigPath); err != nil {
		return false, err
	}
	return true, nil
}

// sendCirunPR commits the Cirun configuration on a branch of the
// token owner's fork and opens a pull request against the feedstock.
func (handler *accessHandler) sendCirunPR(ctx context.Context, clone *git.Repository, repo string, options accessOptions, token string) error {
	changed, err := configureCirun(clone.Dir(), options.resources, options.pullRequests)
	if err != nil {
		return err
	}
	logger := handler.deps.logger(providerCirun).With("feedstock", repo)
	if !changed {
		logger.Info("feedstock already uses cirun labels, not sending a pull request")
		return nil
	}

	client := handler.deps.AdminGitHub
	owner := handler.deps.Owner
	user, err := client.GetAuthenticatedUser(ctx)
	if err != nil {
		return err
	}
	if _, err := client.CreateFork(ctx, owner, repo); err != nil {
		return err
	}

	branch := fmt.Sprintf("cirun-%d", handler.deps.Clock.Now().Unix())
	resources := strings.Join(options.resources, ", ")

	author := clone
	if user.Name != "" && user.Email != "" {
		author = clone.WithEnv("GIT_AUTHOR_NAME="+user.Name, "GIT_AUTHOR_EMAIL="+user.Email)
	}
	if err := clone.Add(ctx, buildConfigFile, forgeConfigFile); err != nil {
		return err
	}
	if err := clone.AddRemote(ctx, user.Login, handler.deps.Remotes.PushURL(user.Login, repo, token)); err != nil {
		return err
	}
	if _, err := author.Commit(ctx, git.CommitOptions{Message: "Enable " + resources + " using Cirun"}); err != nil {
		return err
	}
	if err := handler.smithy(ctx, condatool.Rerender(clone.Dir()), token); err != nil {
		return err
	}
	if err := clone.Push(ctx, user.Login, "HEAD:"+branch); err != nil {
		return err
	}

	pull, err := client.CreatePullRequest(ctx, owner, repo, github.CreatePullRequestRequest{
		Title: "Update feedstock to use " + resources + " with Cirun",
		Body:  cirunPullRequestBody,
		Head:  user.Login + ":" + branch,
		Base:  cirunPullRequestBase,
	})
	if err != nil {
		return err
	}
	logger.Info("opened cirun pull request", "number", pull.Number, "url", pull.HTMLURL)
	return nil
}
