// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"
	"path/filepath"
)

// smithyTokenFiles maps conda-smithy token file names to the secrets
// that fill them.
var smithyTokenFiles = []struct {
	file   string
	secret string
}{
	{"circle", CircleToken},
	{"azure", AzureToken},
	{"drone", DroneToken},
	{"travis", TravisToken},
	{"github", GitHubToken},
	{"anaconda", StagingBinstarToken},
}

// WriteSmithyTokens writes <dir>/<name>.token for every provider
// secret present in set and returns the paths written. dir is created
// with mode 0700 if missing; token files get mode 0600 even when they
// already exist with wider permissions.
func WriteSmithyTokens(dir string, set *Set) ([]string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	for _, entry := range smithyTokenFiles {
		buffer, ok := set.Get(entry.secret)
		if !ok {
			continue
		}
		path := filepath.Join(dir, entry.file+".token")
		if err := writeTokenFile(path, buffer); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeTokenFile(path string, buffer *Buffer) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if err := file.Chmod(0o600); err != nil {
		file.Close()
		return fmt.Errorf("restricting %s: %w", path, err)
	}
	if _, err := buffer.WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
