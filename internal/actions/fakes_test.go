// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package actions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/conda-forge/admin-requests/lib/action"
	"github.com/conda-forge/admin-requests/lib/anaconda"
	"github.com/conda-forge/admin-requests/lib/clock"
	"github.com/conda-forge/admin-requests/lib/condatool"
	"github.com/conda-forge/admin-requests/lib/github"
	"github.com/conda-forge/admin-requests/lib/heroku"
	"github.com/conda-forge/admin-requests/lib/request"
	"github.com/conda-forge/admin-requests/lib/secret"
)

const (
	testOwner      = "conda-forge"
	testUser       = "cf-admin-bot"
	testProdToken  = "prod-binstar-token"
	testGHToken    = "ghp_regular"
	testAdminToken = "ghp_admin"
	testHerokuKey  = "heroku-key"
)

// testIdentity is the committer identity of every test repository.
var testIdentity = []string{
	"GIT_AUTHOR_NAME=Test",
	"GIT_AUTHOR_EMAIL=test@test.local",
	"GIT_COMMITTER_NAME=Test",
	"GIT_COMMITTER_EMAIL=test@test.local",
}

// --- GitHub ---

type fakeFile struct {
	data []byte
	sha  string
}

type fakeRepo struct {
	archived bool
	refs     map[string]string
	files    map[string]fakeFile
}

// fakeGitHub serves the subset of the GitHub REST API the handlers use
// from in-memory state.
type fakeGitHub struct {
	mu       sync.Mutex
	repos    map[string]*fakeRepo
	teams    map[string]bool
	failures map[string]int
	requests []string
	messages []string
	forks    []string
	pulls    []github.CreatePullRequestRequest
	nextSHA  int
}

func newFakeGitHub(t *testing.T) (*fakeGitHub, *github.Client) {
	t.Helper()
	fake := &fakeGitHub{repos: make(map[string]*fakeRepo), teams: make(map[string]bool), failures: make(map[string]int)}
	server := httptest.NewTLSServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := github.NewClient(github.Config{
		BaseURL:    server.URL,
		Token:      "test-token",
		HTTPClient: server.Client(),
		Clock:      clock.Real(),
	})
	if err != nil {
		t.Fatalf("github.NewClient: %v", err)
	}
	return fake, client
}

// addRepo creates owner/name with the given refs ("heads/x" or
// "tags/x" to SHA).
func (fake *fakeGitHub) addRepo(owner, name string, refs map[string]string) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	repo := &fakeRepo{refs: make(map[string]string), files: make(map[string]fakeFile)}
	for ref, sha := range refs {
		repo.refs[ref] = sha
	}
	fake.repos[owner+"/"+name] = repo
}

// addTeamMember makes user an active member of org's team slug.
func (fake *fakeGitHub) addTeamMember(org, slug, user string) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.teams[org+"/"+slug+"/"+user] = true
}

func (fake *fakeGitHub) setArchived(owner, name string, archived bool) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.repos[owner+"/"+name].archived = archived
}

func (fake *fakeGitHub) setFile(owner, name, path string, data []byte) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.nextSHA++
	fake.repos[owner+"/"+name].files[path] = fakeFile{data: data, sha: fmt.Sprintf("blob%d", fake.nextSHA)}
}

func (fake *fakeGitHub) file(owner, name, path string) ([]byte, bool) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	file, ok := fake.repos[owner+"/"+name].files[path]
	return file.data, ok
}

func (fake *fakeGitHub) ref(owner, name, ref string) (string, bool) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	sha, ok := fake.repos[owner+"/"+name].refs[ref]
	return sha, ok
}

func (fake *fakeGitHub) isArchived(owner, name string) bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.repos[owner+"/"+name].archived
}

// fail makes every request with this method and path answer status.
func (fake *fakeGitHub) fail(method, path string, status int) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	fake.failures[method+" "+path] = status
}

func (fake *fakeGitHub) commitMessages() []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.messages...)
}

func (fake *fakeGitHub) pullRequests() []github.CreatePullRequestRequest {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]github.CreatePullRequestRequest(nil), fake.pulls...)
}

func (fake *fakeGitHub) clearFailures() {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	clear(fake.failures)
}

func (fake *fakeGitHub) requestLog() []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.requests...)
}

func (fake *fakeGitHub) countRequests(method, prefix string) int {
	count := 0
	for _, line := range fake.requestLog() {
		if strings.HasPrefix(line, method+" "+prefix) {
			count++
		}
	}
	return count
}

func githubError(writer http.ResponseWriter, status int, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"message": message})
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(value)
}

func (fake *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()

	// repoFor resolves the path's repository or answers 404. The
	// caller holds fake.mu.
	repoFor := func(writer http.ResponseWriter, request *http.Request) *fakeRepo {
		repo := fake.repos[request.PathValue("owner")+"/"+request.PathValue("repo")]
		if repo == nil {
			githubError(writer, http.StatusNotFound, "Not Found")
		}
		return repo
	}
	repoJSON := func(request *http.Request, repo *fakeRepo) github.Repository {
		owner, name := request.PathValue("owner"), request.PathValue("repo")
		return github.Repository{Name: name, FullName: owner + "/" + name, Owner: github.User{Login: owner}, Archived: repo.archived}
	}

	mux.HandleFunc("GET /user", func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, github.User{Login: testUser, Name: "Admin Bot", Email: "bot@conda-forge.test"})
	})
	mux.HandleFunc("GET /orgs/{org}/teams/{slug}/memberships/{user}", func(writer http.ResponseWriter, request *http.Request) {
		if !fake.teams[request.PathValue("org")+"/"+request.PathValue("slug")+"/"+request.PathValue("user")] {
			githubError(writer, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(writer, http.StatusOK, github.TeamMembership{Role: "member", State: "active"})
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}", func(writer http.ResponseWriter, request *http.Request) {
		if repo := repoFor(writer, request); repo != nil {
			writeJSON(writer, http.StatusOK, repoJSON(request, repo))
		}
	})
	mux.HandleFunc("PATCH /repos/{owner}/{repo}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		var body struct {
			Archived *bool `json:"archived"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		if body.Archived != nil {
			repo.archived = *body.Archived
		}
		writeJSON(writer, http.StatusOK, repoJSON(request, repo))
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/git/ref/{ref...}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		ref := request.PathValue("ref")
		sha, ok := repo.refs[ref]
		if !ok {
			githubError(writer, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(writer, http.StatusOK, github.Ref{Ref: "refs/" + ref, Object: github.RefObject{SHA: sha, Type: "commit"}})
	})
	mux.HandleFunc("POST /repos/{owner}/{repo}/git/refs", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		var body struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		ref := strings.TrimPrefix(body.Ref, "refs/")
		if _, exists := repo.refs[ref]; exists {
			githubError(writer, http.StatusUnprocessableEntity, "Reference already exists")
			return
		}
		repo.refs[ref] = body.SHA
		writeJSON(writer, http.StatusCreated, github.Ref{Ref: body.Ref, Object: github.RefObject{SHA: body.SHA, Type: "commit"}})
	})
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/git/refs/{ref...}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		ref := request.PathValue("ref")
		if _, exists := repo.refs[ref]; !exists {
			githubError(writer, http.StatusUnprocessableEntity, "Reference does not exist")
			return
		}
		delete(repo.refs, ref)
		writer.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		path := request.PathValue("path")
		file, ok := repo.files[path]
		if !ok {
			githubError(writer, http.StatusNotFound, "Not Found")
			return
		}
		writeJSON(writer, http.StatusOK, github.Content{
			Type:     "file",
			Path:     path,
			SHA:      file.sha,
			Encoding: "base64",
			Content:  base64.StdEncoding.EncodeToString(file.data),
		})
	})
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		path := request.PathValue("path")
		if existing, ok := repo.files[path]; ok && existing.sha != body.SHA {
			githubError(writer, http.StatusConflict, path+" does not match "+body.SHA)
			return
		}
		data, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			githubError(writer, http.StatusUnprocessableEntity, "content is not valid Base64")
			return
		}
		fake.nextSHA++
		repo.files[path] = fakeFile{data: data, sha: fmt.Sprintf("blob%d", fake.nextSHA)}
		fake.messages = append(fake.messages, body.Message)
		writeJSON(writer, http.StatusOK, map[string]any{"content": map[string]string{"path": path}})
	})
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/contents/{path...}", func(writer http.ResponseWriter, request *http.Request) {
		repo := repoFor(writer, request)
		if repo == nil {
			return
		}
		var body struct {
			Message string `json:"message"`
			SHA     string `json:"sha"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		path := request.PathValue("path")
		existing, ok := repo.files[path]
		if !ok {
			githubError(writer, http.StatusNotFound, "Not Found")
			return
		}
		if existing.sha != body.SHA {
			githubError(writer, http.StatusConflict, path+" does not match "+body.SHA)
			return
		}
		delete(repo.files, path)
		fake.messages = append(fake.messages, body.Message)
		writeJSON(writer, http.StatusOK, map[string]any{"content": nil})
	})
	mux.HandleFunc("POST /repos/{owner}/{repo}/forks", func(writer http.ResponseWriter, request *http.Request) {
		if repoFor(writer, request) == nil {
			return
		}
		name := request.PathValue("repo")
		fake.forks = append(fake.forks, request.PathValue("owner")+"/"+name)
		writeJSON(writer, http.StatusAccepted, github.Repository{Name: name, FullName: testUser + "/" + name, Fork: true})
	})
	mux.HandleFunc("POST /repos/{owner}/{repo}/pulls", func(writer http.ResponseWriter, request *http.Request) {
		if repoFor(writer, request) == nil {
			return
		}
		var body github.CreatePullRequestRequest
		json.NewDecoder(request.Body).Decode(&body)
		fake.pulls = append(fake.pulls, body)
		writeJSON(writer, http.StatusCreated, github.PullRequest{
			Number:  len(fake.pulls),
			Title:   body.Title,
			State:   "open",
			HTMLURL: fmt.Sprintf("https://github.test/%s/pull/%d", request.PathValue("repo"), len(fake.pulls)),
		})
	})

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		key := request.Method + " " + request.URL.Path
		fake.requests = append(fake.requests, key)
		if status, ok := fake.failures[key]; ok {
			githubError(writer, status, "injected failure")
			return
		}
		mux.ServeHTTP(writer, request)
	})
}

// --- anaconda.org ---

// fakeAnaconda serves download HEADs, dist metadata, and the broken
// label API. Artifact keys are "channel/subdir/filename"; web keys
// carry the label as in ChannelArtifact.String.
type fakeAnaconda struct {
	mu           sync.Mutex
	download     map[string]bool
	web          map[string]bool
	dists        map[string]anaconda.Distribution
	broken       map[string]bool
	brokenStatus map[string]int
	groups       map[string]bool
	requests     []string
}

func newFakeAnaconda(t *testing.T, token string) (*fakeAnaconda, *anaconda.Client) {
	t.Helper()
	fake := &fakeAnaconda{
		download:     make(map[string]bool),
		web:          make(map[string]bool),
		dists:        make(map[string]anaconda.Distribution),
		broken:       make(map[string]bool),
		brokenStatus: make(map[string]int),
		groups:       make(map[string]bool),
	}
	server := httptest.NewTLSServer(fake.handler())
	t.Cleanup(server.Close)

	client, err := anaconda.NewClient(anaconda.Config{
		APIURL:      server.URL + "/api",
		DownloadURL: server.URL + "/download",
		WebURL:      server.URL + "/web",
		Token:       token,
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("anaconda.NewClient: %v", err)
	}
	return fake, client
}

func (fake *fakeAnaconda) update(change func(*fakeAnaconda)) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	change(fake)
}

func (fake *fakeAnaconda) requestLog() []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.requests...)
}

func (fake *fakeAnaconda) isBroken(basename string) bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.broken[basename]
}

// isGroupMember reports membership for an "org/group/user" key.
func (fake *fakeAnaconda) isGroupMember(key string) bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.groups[key]
}

func (fake *fakeAnaconda) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("HEAD /download/{path...}", func(writer http.ResponseWriter, request *http.Request) {
		if !fake.download[request.PathValue("path")] {
			writer.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("HEAD /web/{path...}", func(writer http.ResponseWriter, request *http.Request) {
		if !fake.web[request.PathValue("path")] {
			writer.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("GET /api/dist/{owner}/{name}/{version}/{subdir}/{file}", func(writer http.ResponseWriter, request *http.Request) {
		key := request.PathValue("owner") + "/" + request.PathValue("subdir") + "/" + request.PathValue("file")
		distribution, ok := fake.dists[key]
		if !ok {
			writeJSON(writer, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(writer, http.StatusOK, distribution)
	})
	changeBroken := func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "token "+testProdToken {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Basename string `json:"basename"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		if status, ok := fake.brokenStatus[body.Basename]; ok {
			writer.WriteHeader(status)
			return
		}
		add := request.Method == http.MethodPost
		switch {
		case add && fake.broken[body.Basename]:
			writer.WriteHeader(http.StatusConflict)
		case !add && !fake.broken[body.Basename]:
			writer.WriteHeader(http.StatusNotFound)
		default:
			fake.broken[body.Basename] = add
			writer.WriteHeader(http.StatusCreated)
		}
	}
	mux.HandleFunc("POST /api/group/{org}/{group}/members/{user}", func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "token "+testProdToken {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		fake.groups[request.PathValue("org")+"/"+request.PathValue("group")+"/"+request.PathValue("user")] = true
		writer.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/channels/{channel}/broken", changeBroken)
	mux.HandleFunc("DELETE /api/channels/{channel}/broken", changeBroken)

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		fake.requests = append(fake.requests, request.Method+" "+request.URL.Path)
		mux.ServeHTTP(writer, request)
	})
}

// --- Heroku ---

// fakeHeroku records collaborators per app. Emails in status answer
// with that status instead.
type fakeHeroku struct {
	mu            sync.Mutex
	collaborators map[string][]string
	status        map[string]int
}

func newFakeHeroku(t *testing.T, token string) (*fakeHeroku, *heroku.Client) {
	t.Helper()
	fake := &fakeHeroku{collaborators: make(map[string][]string), status: make(map[string]int)}
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		if request.Method != http.MethodPost || !strings.HasSuffix(request.URL.Path, "/collaborators") {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		if request.Header.Get("Authorization") != "Bearer "+testHerokuKey {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			User string `json:"user"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		if status, ok := fake.status[body.User]; ok {
			writer.WriteHeader(status)
			return
		}
		app := strings.TrimSuffix(strings.TrimPrefix(request.URL.Path, "/apps/"), "/collaborators")
		fake.collaborators[app] = append(fake.collaborators[app], body.User)
		writeJSON(writer, http.StatusCreated, map[string]any{"app": map[string]string{"name": app}})
	}))
	t.Cleanup(server.Close)

	client, err := heroku.NewClient(heroku.Config{APIURL: server.URL, Token: token, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("heroku.NewClient: %v", err)
	}
	return fake, client
}

func (fake *fakeHeroku) update(change func(*fakeHeroku)) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	change(fake)
}

func (fake *fakeHeroku) appCollaborators(app string) []string {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return append([]string(nil), fake.collaborators[app]...)
}

// --- member lists ---

// fakeMemberLists serves core.csv and emeritus.csv.
type fakeMemberLists struct {
	mu    sync.Mutex
	files map[string]string
	url   string
}

func newFakeMemberLists(t *testing.T) (*fakeMemberLists, *http.Client) {
	t.Helper()
	fake := &fakeMemberLists{files: map[string]string{
		"/core.csv":     "github_username,name\nalice,Alice A\nbob,Bob B\n",
		"/emeritus.csv": "github_username,name\ncarol,Carol C\n",
	}}
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		body, ok := fake.files[request.URL.Path]
		if !ok {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		writer.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	fake.url = server.URL
	return fake, server.Client()
}

func (fake *fakeMemberLists) urls() []string {
	return []string{fake.url + "/core.csv", fake.url + "/emeritus.csv"}
}

// --- tools ---

// recordingRunner records every command instead of running it. fail,
// when set, decides the command's error.
type recordingRunner struct {
	mu       sync.Mutex
	commands []condatool.Command
	fail     func(condatool.Command) error
}

func (runner *recordingRunner) Run(_ context.Context, command condatool.Command) (string, error) {
	runner.mu.Lock()
	runner.commands = append(runner.commands, command)
	fail := runner.fail
	runner.mu.Unlock()
	if fail != nil {
		return "", fail(command)
	}
	return "", nil
}

// lines renders the recorded commands with secrets redacted.
func (runner *recordingRunner) lines() []string {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	lines := make([]string, len(runner.commands))
	for i, command := range runner.commands {
		lines[i] = command.String()
	}
	return lines
}

// --- git remotes ---

// localRemotes maps owner/repo to bare repositories under root.
type localRemotes struct {
	root string
}

func (remotes localRemotes) path(owner, repo string) string {
	return filepath.Join(remotes.root, owner, repo+".git")
}

func (remotes localRemotes) CloneURL(owner, repo string) string { return remotes.path(owner, repo) }

func (remotes localRemotes) PushURL(owner, repo, _ string) string { return remotes.path(owner, repo) }

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(), testIdentity...)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// addRemote creates a bare repository for owner/repo holding files in
// a single commit on main. No files makes an empty repository.
func (remotes localRemotes) addRemote(t *testing.T, owner, repo string, files map[string]string) string {
	t.Helper()
	requireGit(t)
	bare := remotes.path(owner, repo)
	if err := os.MkdirAll(filepath.Dir(bare), 0o755); err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		runGit(t, filepath.Dir(bare), "init", "--quiet", "--bare", "-b", "main", bare)
		return bare
	}

	work := t.TempDir()
	runGit(t, work, "init", "--quiet", "-b", "main")
	for name, content := range files {
		path := filepath.Join(work, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	runGit(t, work, "add", "-A")
	runGit(t, work, "commit", "--quiet", "-m", "initial")
	runGit(t, filepath.Dir(bare), "clone", "--quiet", "--bare", work, bare)
	return bare
}

// --- environment ---

// testEnv wires every handler to fakes.
type testEnv struct {
	github   *fakeGitHub
	anaconda *fakeAnaconda
	heroku   *fakeHeroku
	members  *fakeMemberLists
	tools    *recordingRunner
	remotes  localRemotes
	clock    *clock.FakeClock
	deps     Deps
	registry *action.Registry
}

// newTestEnv builds an environment holding the given secrets. The
// anaconda client is authenticated when PROD_BINSTAR_TOKEN is among
// them.
func newTestEnv(t *testing.T, tokens map[string]string) *testEnv {
	t.Helper()

	secrets := secret.NewSet()
	t.Cleanup(func() { secrets.Close() })
	for name, value := range tokens {
		if err := secrets.Put(name, []byte(value)); err != nil {
			t.Fatalf("Put(%s): %v", name, err)
		}
	}

	env := &testEnv{
		tools:   &recordingRunner{},
		remotes: localRemotes{root: t.TempDir()},
		clock:   clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	var githubClient *github.Client
	env.github, githubClient = newFakeGitHub(t)
	var anacondaClient *anaconda.Client
	env.anaconda, anacondaClient = newFakeAnaconda(t, tokens[secret.ProdBinstarToken])
	var herokuClient *heroku.Client
	env.heroku, herokuClient = newFakeHeroku(t, tokens[secret.HerokuAPIKey])
	var membersClient *http.Client
	env.members, membersClient = newFakeMemberLists(t)

	env.deps = Deps{
		Owner:     testOwner,
		GitHub:    githubClient,
		Anaconda:  anacondaClient,
		Heroku:    herokuClient,
		Tools:     env.tools,
		Secrets:   secrets,
		SmithyDir: filepath.Join(t.TempDir(), ".conda-smithy"),
		Repositories: Repositories{
			Outputs:         "feedstock-outputs",
			Tokens:          "feedstock-tokens",
			RepodataPatches: "conda-forge-repodata-patches-feedstock",
		},
		CirunUsersURL: "https://users.test/conda-forge-users.json",
		CoreListURLs:  env.members.urls(),
		HTTPClient:    membersClient,
		Remotes:       env.remotes,
		GitEnv:        testIdentity,
		WorkDir:       t.TempDir(),
		Clock:         env.clock,
	}
	env.registry = action.NewRegistry()
	if err := Register(env.registry, env.deps); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return env
}

// allTokens is a secret set with every token a handler can use.
func allTokens() map[string]string {
	return map[string]string{
		secret.GitHubToken:         testGHToken,
		secret.GitHubAdminToken:    testAdminToken,
		secret.ProdBinstarToken:    testProdToken,
		secret.StagingBinstarToken: "staging-token",
		secret.TravisToken:         "travis-token",
		secret.HerokuAPIKey:        testHerokuKey,
	}
}

func (env *testEnv) handler(t *testing.T, name string) action.Handler {
	t.Helper()
	handler, err := env.registry.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", name, err)
	}
	return handler
}

// decode parses a YAML request.
func decode(t *testing.T, text string) request.Request {
	t.Helper()
	req, err := request.Decode(request.FormatYAML, []byte(text))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return req
}

func mustCheck(t *testing.T, handler action.Handler, req request.Request) {
	t.Helper()
	if err := handler.Check(context.Background(), req); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func mustRun(t *testing.T, handler action.Handler, req request.Request) request.Request {
	t.Helper()
	residual, err := handler.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return residual
}
