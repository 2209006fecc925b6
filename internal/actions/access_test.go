// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/conda-forge/admin-requests/lib/secret"
)

const feedstockForgeConfig = `# managed by the bot
bot:
  automerge: true
provider:
  win: azure
`

func TestAccess_Check(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, allTokens())
	env.github.addRepo(testOwner, "foo-feedstock", nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		action  string
		text    string
		wantErr string
	}{
		{"travis", ActionTravis, "feedstocks: [foo]", ""},
		{"travis revoke", ActionTravis, "feedstocks: [foo]\nrevoke: true", "not supported"},
		{"cirun", ActionCirun, "feedstocks: [foo]\nresources: [cirun-openstack-gpu-large]", ""},
		{"cirun without resources", ActionCirun, "feedstocks: [foo]", `"resources"`},
		{"cirun empty resources", ActionCirun, "feedstocks: [foo]\nresources: []", "must not be empty"},
		{"cirun foreign resource", ActionCirun, "feedstocks: [foo]\nresources: [cirun-aws-large]", "unknown resource"},
		{"missing feedstock", ActionCirun, "feedstocks: [bar]\nresources: [cirun-openstack-cpu]", "could not be found"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := env.handler(t, test.action).Check(ctx, decode(t, "action: "+test.action+"\n"+test.text+"\n"))
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Check: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Check error = %v, want %q", err, test.wantErr)
			}
		})
	}
}

func TestTravis_Run(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, allTokens())
	env.remotes.addRemote(t, testOwner, "foo-feedstock", map[string]string{"conda-forge.yml": feedstockForgeConfig})

	residual := mustRun(t, env.handler(t, ActionTravis), decode(t, "action: travis\nfeedstocks: [foo, missing]\n"))
	if got := residual["feedstocks"]; !reflect.DeepEqual(got, []any{"missing"}) {
		t.Errorf("residual feedstocks = %v, want [missing]", got)
	}

	lines := env.tools.lines()
	if len(lines) != 4 {
		t.Fatalf("commands = %q", lines)
	}
	for i, want := range []string{
		"conda-smithy register-ci --feedstock_dir ",
		"conda-smithy generate-feedstock-token --unique-token-per-provider ",
		"conda-smithy register-feedstock-token --unique-token-per-provider --without-all --with-travis ",
		"conda-smithy rotate-binstar-token --feedstock_directory ",
	} {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("command %d = %q, want prefix %q", i, lines[i], want)
		}
	}
	if !strings.Contains(lines[0], "--with-travis") {
		t.Errorf("register-ci = %q, want --with-travis", lines[0])
	}
	for _, command := range env.tools.commands {
		if !slices.Contains(command.Env, "GITHUB_TOKEN="+testAdminToken) {
			t.Errorf("%s runs without the admin token", command.Name)
		}
	}
	if strings.Contains(strings.Join(lines, "\n"), testAdminToken) {
		t.Error("rendered commands leak the admin token")
	}
}

func TestAccess_RunRequiresAdminToken(t *testing.T) {
	t.Parallel()

	tokens := allTokens()
	delete(tokens, secret.GitHubAdminToken)
	env := newTestEnv(t, tokens)

	_, err := env.handler(t, ActionTravis).Run(context.Background(), decode(t, "action: travis\nfeedstocks: [foo]\n"))
	if err == nil || !strings.Contains(err.Error(), secret.GitHubAdminToken) {
		t.Fatalf("Run error = %v", err)
	}
}

func TestCirun_RunSendsPullRequest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, allTokens())
	env.github.addRepo(testOwner, "foo-feedstock", nil)
	env.remotes.addRemote(t, testOwner, "foo-feedstock", map[string]string{
		"conda-forge.yml":   feedstockForgeConfig,
		"recipe/meta.yaml": "package:\n  name: foo\n",
	})
	fork := env.remotes.addRemote(t, testUser, "foo-feedstock", nil)

	residual := mustRun(t, env.handler(t, ActionCirun), decode(t,
		"action: cirun\nfeedstocks: [foo]\nresources: [cirun-openstack-gpu-large]\npull_request: true\n"))
	if !residual.IsEmpty() {
		t.Fatalf("residual = %v", residual)
	}

	lines := env.tools.lines()
	if len(lines) != 4 {
		t.Fatalf("commands = %q", lines)
	}
	for _, want := range []string{
		"--with-cirun",
		"--cirun-resources cirun-openstack-gpu-large",
		"--cirun-roles admin --cirun-roles maintain --cirun-roles write",
		"--cirun-users-from-json https://users.test/conda-forge-users.json",
		"--cirun-policy-args pull_request",
	} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("register-ci = %q, want %q", lines[0], want)
		}
	}
	if !strings.Contains(lines[2], "--with-github-actions") {
		t.Errorf("register-feedstock-token = %q, want --with-github-actions", lines[2])
	}
	if !strings.HasPrefix(lines[3], "conda-smithy rerender") {
		t.Errorf("last command = %q, want rerender", lines[3])
	}

	branch := fmt.Sprintf("cirun-%d", env.clock.Now().Unix())
	pulls := env.github.pullRequests()
	if len(pulls) != 1 {
		t.Fatalf("pull requests = %v", pulls)
	}
	if pulls[0].Head != testUser+":"+branch || pulls[0].Base != "main" {
		t.Errorf("pull request head/base = %q/%q", pulls[0].Head, pulls[0].Base)
	}
	if pulls[0].Title != "Update feedstock to use cirun-openstack-gpu-large with Cirun" {
		t.Errorf("title = %q", pulls[0].Title)
	}

	if got := runGit(t, fork, "log", "-1", "--format=%s%n%an", branch); got != "Enable cirun-openstack-gpu-large using Cirun\nAdmin Bot" {
		t.Errorf("pushed commit = %q", got)
	}
	forgeConfig := runGit(t, fork, "show", branch+":conda-forge.yml")
	for _, want := range []string{"# managed by the bot", "automerge: true", "self_hosted: true", "- pull_request", "linux_64: github_actions", "win: azure"} {
		if !strings.Contains(forgeConfig, want) {
			t.Errorf("conda-forge.yml lacks %q:\n%s", want, forgeConfig)
		}
	}
	buildConfig := runGit(t, fork, "show", branch+":recipe/conda_build_config.yaml")
	if !strings.Contains(buildConfig, "- cirun-openstack-gpu-large") {
		t.Errorf("conda_build_config.yaml:\n%s", buildConfig)
	}
}

func TestCirun_RunRevokeOnlyUnregisters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, allTokens())
	env.remotes.addRemote(t, testOwner, "foo-feedstock", map[string]string{"conda-forge.yml": feedstockForgeConfig})

	residual := mustRun(t, env.handler(t, ActionCirun), decode(t,
		"action: cirun\nfeedstocks: [foo]\nresources: [cirun-openstack-cpu]\nrevoke: true\n"))
	if !residual.IsEmpty() {
		t.Fatalf("residual = %v", residual)
	}
	lines := env.tools.lines()
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "--remove") {
		t.Errorf("commands = %q, want a single register-ci --remove", lines)
	}
	if len(env.github.pullRequests()) != 0 {
		t.Error("revoke opened a pull request")
	}
}

func TestConfigureCirun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, forgeConfigFile), []byte(feedstockForgeConfig), 0o644); err != nil {
		t.Fatal(err)
	}

	changed, err := configureCirun(dir, []string{"cirun-openstack-cpu"}, false)
	if err != nil || !changed {
		t.Fatalf("configureCirun = %v, %v", changed, err)
	}
	forgeConfig, err := readYAMLDocument(filepath.Join(dir, forgeConfigFile))
	if err != nil {
		t.Fatal(err)
	}
	githubActions := lookupNode(forgeConfig.mapping(), "github_actions")
	if githubActions == nil || lookupNode(githubActions, "triggers") != nil {
		t.Errorf("github_actions = %+v, want self_hosted without triggers", githubActions)
	}

	// A feedstock already on Cirun labels is left alone.
	changed, err = configureCirun(dir, []string{"cirun-openstack-gpu"}, true)
	if err != nil || changed {
		t.Fatalf("second configureCirun = %v, %v", changed, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(buildConfigFile)))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "cirun-openstack-gpu\n") {
		t.Errorf("labels were rewritten:\n%s", data)
	}
}
