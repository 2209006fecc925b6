// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conda-forge/admin-requests/lib/request"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "ADMIN_REQUESTS_CONFIG"

// Config is the complete admin-requests configuration.
type Config struct {
	// Queue locates and filters request files.
	Queue QueueConfig `yaml:"queue"`

	// Owner is the GitHub organization and anaconda.org channel owner
	// that requests act on. Overridden by GH_ORG.
	Owner string `yaml:"owner"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// GitHub configures the GitHub API client and the registry
	// repositories some actions write to.
	GitHub GitHubConfig `yaml:"github"`

	// Anaconda configures the anaconda.org endpoints.
	Anaconda AnacondaConfig `yaml:"anaconda"`

	// Heroku configures where new core members are added as
	// collaborators.
	Heroku HerokuConfig `yaml:"heroku"`

	// Secrets configures where tokens come from and where
	// conda-smithy expects them.
	Secrets SecretsConfig `yaml:"secrets"`

	// Git sets the identity of commits made by the run. Empty fields
	// fall back to the ambient git configuration.
	Git GitConfig `yaml:"git"`
}

// GitConfig is the author and committer identity for git commits.
type GitConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// Env returns the GIT_AUTHOR_* and GIT_COMMITTER_* variables for the
// configured identity.
func (g GitConfig) Env() []string {
	var env []string
	if g.Name != "" {
		env = append(env, "GIT_AUTHOR_NAME="+g.Name, "GIT_COMMITTER_NAME="+g.Name)
	}
	if g.Email != "" {
		env = append(env, "GIT_AUTHOR_EMAIL="+g.Email, "GIT_COMMITTER_EMAIL="+g.Email)
	}
	return env
}

// QueueConfig configures the request queue directory.
type QueueConfig struct {
	// Dir is the directory holding request files. Relative paths are
	// resolved against the working directory.
	Dir string `yaml:"dir"`

	// Extensions lists accepted file extensions, with the leading dot.
	Extensions []string `yaml:"extensions"`

	// Exclude lists glob patterns (matched against base names) for
	// files that are never requests.
	Exclude []string `yaml:"exclude"`

	// Commit enables one git commit per discharged or retained file.
	Commit bool `yaml:"commit"`
}

// GitHubConfig configures GitHub access.
type GitHubConfig struct {
	// BaseURL is the REST API root. Must be HTTPS.
	BaseURL string `yaml:"base_url"`

	// OutputsRepository holds the feedstock output registry.
	OutputsRepository string `yaml:"outputs_repository"`

	// TokensRepository holds the feedstock token registry.
	TokensRepository string `yaml:"tokens_repository"`

	// RepodataPatchesRepository is pushed to after broken-label
	// changes so the channel's repodata is regenerated.
	RepodataPatchesRepository string `yaml:"repodata_patches_repository"`

	// CirunUsersURL is the JSON list of users allowed to use Cirun
	// runners, passed to conda-smithy.
	CirunUsersURL string `yaml:"cirun_users_url"`

	// CoreListURLs are the CSV member lists (core and emeritus) a
	// core request's handle must appear in.
	CoreListURLs []string `yaml:"core_list_urls"`
}

// HerokuConfig configures the Heroku Platform API.
type HerokuConfig struct {
	// BaseURL is the Platform API root.
	BaseURL string `yaml:"base_url"`

	// App is the Heroku app core members join.
	App string `yaml:"app"`
}

// AnacondaConfig configures anaconda.org endpoints.
type AnacondaConfig struct {
	// BaseURL is the anaconda.org API root.
	BaseURL string `yaml:"base_url"`

	// DownloadURL serves artifacts of the owner's channel.
	DownloadURL string `yaml:"download_url"`

	// WebURL serves artifacts of any channel, including labels.
	WebURL string `yaml:"web_url"`
}

// SecretsConfig configures token handling.
type SecretsConfig struct {
	// SmithyDir is where conda-smithy reads <provider>.token files.
	SmithyDir string `yaml:"smithy_dir"`

	// Files maps token names (GITHUB_TOKEN, ...) to files holding
	// them. A file entry takes precedence over the environment.
	Files map[string]string `yaml:"files"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Queue: QueueConfig{
			Dir:        "requests",
			Extensions: []string{".yml", ".yaml", ".json", ".jsonc"},
			Exclude:    []string{"example.*", "README*"},
			Commit:     true,
		},
		Owner:    "conda-forge",
		LogLevel: "info",
		GitHub: GitHubConfig{
			BaseURL:                   "https://api.github.com",
			OutputsRepository:         "feedstock-outputs",
			TokensRepository:          "feedstock-tokens",
			RepodataPatchesRepository: "conda-forge-repodata-patches-feedstock",
			CirunUsersURL:             "https://raw.githubusercontent.com/Quansight/open-gpu-server/main/access/conda-forge-users.json",
			CoreListURLs: []string{
				"https://raw.githubusercontent.com/conda-forge/conda-forge.github.io/main/src/core.csv",
				"https://raw.githubusercontent.com/conda-forge/conda-forge.github.io/main/src/emeritus.csv",
			},
		},
		Heroku: HerokuConfig{
			BaseURL: "https://api.heroku.com",
			App:     "conda-forge",
		},
		Anaconda: AnacondaConfig{
			BaseURL:     "https://api.anaconda.org",
			DownloadURL: "https://conda.anaconda.org",
			WebURL:      "https://conda-web.anaconda.org",
		},
		Secrets: SecretsConfig{
			SmithyDir: "${HOME}/.conda-smithy",
		},
	}
}

// Load loads the file named by ADMIN_REQUESTS_CONFIG, or returns
// Default (expanded) when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration over the defaults and expands path
// variables. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	cfg.expandVariables()
	return cfg, nil
}

// ApplyEnvironment applies the environment variables that override
// configuration values. lookup is os.LookupEnv in production.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	if owner, ok := lookup("GH_ORG"); ok && owner != "" {
		c.Owner = owner
	}
}

func (c *Config) expandVariables() {
	c.Queue.Dir = expandVars(c.Queue.Dir)
	c.Secrets.SmithyDir = expandVars(c.Secrets.SmithyDir)
	for name, path := range c.Secrets.Files {
		c.Secrets.Files[name] = expandVars(path)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
// An unset or empty variable without a default expands to "".
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Queue.Dir == "" {
		errs = append(errs, errors.New("queue.dir is required"))
	}
	if len(c.Queue.Extensions) == 0 {
		errs = append(errs, errors.New("queue.extensions must not be empty"))
	}
	for _, extension := range c.Queue.Extensions {
		if !strings.HasPrefix(extension, ".") || len(extension) < 2 {
			errs = append(errs, fmt.Errorf("queue.extensions: %q must start with a dot", extension))
			continue
		}
		if _, ok := request.FormatForPath("request" + extension); !ok {
			errs = append(errs, fmt.Errorf("queue.extensions: %q is not a YAML or JSON extension", extension))
		}
	}
	for _, pattern := range c.Queue.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("queue.exclude: bad pattern %q: %w", pattern, err))
		}
	}

	if c.Owner == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", logLevels))
	}

	for _, field := range []struct{ name, value string }{
		{"github.base_url", c.GitHub.BaseURL},
		{"anaconda.base_url", c.Anaconda.BaseURL},
		{"anaconda.download_url", c.Anaconda.DownloadURL},
		{"anaconda.web_url", c.Anaconda.WebURL},
		{"github.cirun_users_url", c.GitHub.CirunUsersURL},
		{"heroku.base_url", c.Heroku.BaseURL},
	} {
		if err := checkHTTPS(field.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
		}
	}
	if len(c.GitHub.CoreListURLs) == 0 {
		errs = append(errs, errors.New("github.core_list_urls must not be empty"))
	}
	for _, raw := range c.GitHub.CoreListURLs {
		if err := checkHTTPS(raw); err != nil {
			errs = append(errs, fmt.Errorf("github.core_list_urls: %w", err))
		}
	}
	if c.Heroku.App == "" {
		errs = append(errs, errors.New("heroku.app is required"))
	}
	for _, field := range []struct{ name, value string }{
		{"github.outputs_repository", c.GitHub.OutputsRepository},
		{"github.tokens_repository", c.GitHub.TokensRepository},
		{"github.repodata_patches_repository", c.GitHub.RepodataPatchesRepository},
	} {
		if field.value == "" || strings.Contains(field.value, "/") {
			errs = append(errs, fmt.Errorf("%s must be a bare repository name, got %q", field.name, field.value))
		}
	}

	if c.Git.Email != "" && !strings.Contains(c.Git.Email, "@") {
		errs = append(errs, fmt.Errorf("git.email: %q is not an email address", c.Git.Email))
	}

	if c.Secrets.SmithyDir == "" {
		errs = append(errs, errors.New("secrets.smithy_dir is required"))
	}
	for name, path := range c.Secrets.Files {
		if path == "" {
			errs = append(errs, fmt.Errorf("secrets.files.%s: path is empty", name))
		}
	}

	return errors.Join(errs...)
}

func checkHTTPS(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("must be an https URL, got %q", raw)
	}
	return nil
}
