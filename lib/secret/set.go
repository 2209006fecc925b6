// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Token names read from the environment.
const (
	GitHubToken         = "GITHUB_TOKEN"
	GitHubAdminToken    = "GITHUB_ADMIN_TOKEN"
	ProdBinstarToken    = "PROD_BINSTAR_TOKEN"
	StagingBinstarToken = "STAGING_BINSTAR_TOKEN"
	CircleToken         = "CIRCLE_TOKEN"
	AzureToken          = "AZURE_TOKEN"
	DroneToken          = "DRONE_TOKEN"
	TravisToken         = "TRAVIS_TOKEN"
	HerokuAPIKey        = "HEROKU_API_KEY"
)

// KnownTokens lists every token name FromEnvironment looks for.
var KnownTokens = []string{
	GitHubToken,
	GitHubAdminToken,
	ProdBinstarToken,
	StagingBinstarToken,
	CircleToken,
	AzureToken,
	DroneToken,
	TravisToken,
	HerokuAPIKey,
}

// Set is a named collection of secret buffers. The zero value is not
// usable; call NewSet. A Set is safe for concurrent use.
type Set struct {
	mu      sync.Mutex
	buffers map[string]*Buffer
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{buffers: make(map[string]*Buffer)}
}

// FromEnvironment reads every name in names via lookup (os.LookupEnv
// in production). Unset and empty variables are skipped.
func FromEnvironment(lookup func(string) (string, bool), names ...string) (*Set, error) {
	set := NewSet()
	for _, name := range names {
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := set.Put(name, []byte(value)); err != nil {
			set.Close()
			return nil, err
		}
	}
	return set, nil
}

// Put stores value under name, replacing and closing any previous
// buffer. Surrounding whitespace is trimmed; value is zeroed.
func (set *Set) Put(name string, value []byte) error {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		Zero(value)
		return fmt.Errorf("secret %s is empty", name)
	}
	buffer, err := NewFromBytes(trimmed)
	Zero(value)
	if err != nil {
		return fmt.Errorf("storing secret %s: %w", name, err)
	}

	set.mu.Lock()
	previous := set.buffers[name]
	set.buffers[name] = buffer
	set.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// PutFile stores the trimmed content of path under name.
func (set *Set) PutFile(name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading secret %s: %w", name, err)
	}
	return set.Put(name, data)
}

// Get returns the buffer stored under name.
func (set *Set) Get(name string) (*Buffer, bool) {
	set.mu.Lock()
	defer set.mu.Unlock()
	buffer, ok := set.buffers[name]
	return buffer, ok
}

// Has reports whether name is present.
func (set *Set) Has(name string) bool {
	_, ok := set.Get(name)
	return ok
}

// Value returns a heap copy of the secret under name, or "" when it is
// absent.
func (set *Set) Value(name string) string {
	buffer, ok := set.Get(name)
	if !ok {
		return ""
	}
	return buffer.String()
}

// Names returns the stored names, sorted.
func (set *Set) Names() []string {
	set.mu.Lock()
	defer set.mu.Unlock()
	names := make([]string, 0, len(set.buffers))
	for name := range set.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every buffer.
func (set *Set) Close() error {
	set.mu.Lock()
	buffers := set.buffers
	set.buffers = make(map[string]*Buffer)
	set.mu.Unlock()

	var errs []error
	for _, buffer := range buffers {
		errs = append(errs, buffer.Close())
	}
	return errors.Join(errs...)
}
