// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue reads and writes the request queue: a flat directory of
// request files inside a git working tree.
//
// [Load] materializes a [Batch] from the directory at the moment it is
// called. Membership is fixed from then on; files added later are seen
// by the next run. A [Store] makes terminal outcomes durable: a
// discharged request's file is removed, a residual overwrites the file
// atomically, and each change is recorded by a [Committer] as one
// commit per file.
//
// The queue assumes a single writer. Nothing here locks the directory;
// serializing runs is the caller's job.
package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conda-forge/admin-requests/lib/request"
)

// DefaultExtensions are the file extensions recognized as requests
// when LoadOptions.Extensions is empty.
var DefaultExtensions = []string{".yml", ".yaml", ".json", ".jsonc"}

// DefaultExclude are the base-name patterns skipped when
// LoadOptions.Exclude is nil. They cover documentation and the
// example requests kept next to real ones.
var DefaultExclude = []string{"example.*", "README*"}

// LoadOptions configures Load.
type LoadOptions struct {
	// Dir is the queue directory. Required.
	Dir string

	// Extensions lists recognized request file extensions, including
	// the leading dot. Matching is case-insensitive. Empty means
	// DefaultExtensions.
	Extensions []string

	// Exclude lists filepath.Match patterns applied to base names.
	// Nil means DefaultExclude; an empty non-nil slice excludes
	// nothing.
	Exclude []string
}

// Entry is one request file in a batch.
type Entry struct {
	// Path is the file path relative to the queue directory. It is
	// the file's identity in reports, logs, and commit messages.
	Path string

	// Format is the file's encoding. Residuals are written back in
	// the same format.
	Format request.Format

	// Request is the decoded content.
	Request request.Request

	// Fingerprint is the BLAKE3 digest of the file bytes as loaded.
	Fingerprint string
}

// Action returns the entry's action name.
func (entry Entry) Action() string {
	return entry.Request.Action()
}

// Batch is the set of request files present when Load ran.
type Batch struct {
	// Dir is the absolute queue directory.
	Dir string

	// Entries are the well-formed requests, sorted by Path.
	Entries []Entry

	// Failures are the files that could not be decoded, sorted by
	// Path. A failure never prevents the other files from loading.
	Failures []*request.MalformedRequestError
}

// Len returns the number of files in the batch, including failures.
func (batch *Batch) Len() int {
	return len(batch.Entries) + len(batch.Failures)
}

// Load scans options.Dir (non-recursively) and decodes every
// recognized request file. A missing or unreadable directory is an
// error; a bad individual file is recorded in Batch.Failures.
func Load(options LoadOptions) (*Batch, error) {
	if options.Dir == "" {
		return nil, errors.New("queue: directory is required")
	}
	dir, err := filepath.Abs(options.Dir)
	if err != nil {
		return nil, fmt.Errorf("queue: resolving %s: %w", options.Dir, err)
	}

	extensions := options.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exclude := options.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	for _, pattern := range exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("queue: invalid exclude pattern %q: %w", pattern, err)
		}
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("queue: directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("queue: reading %s: %w", dir, err)
	}

	batch := &Batch{Dir: dir}
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !hasExtension(name, extensions) || isExcluded(name, exclude) {
			continue
		}

		entry, loadErr := loadFile(dir, name)
		if loadErr != nil {
			batch.Failures = append(batch.Failures, loadErr)
			continue
		}
		batch.Entries = append(batch.Entries, entry)
	}

	// os.ReadDir already sorts by name; sort explicitly so ordering
	// does not depend on that.
	sort.Slice(batch.Entries, func(i, j int) bool {
		return batch.Entries[i].Path < batch.Entries[j].Path
	})
	sort.Slice(batch.Failures, func(i, j int) bool {
		return batch.Failures[i].Path < batch.Failures[j].Path
	})
	return batch, nil
}

func loadFile(dir, name string) (Entry, *request.MalformedRequestError) {
	format, ok := request.FormatForPath(name)
	if !ok {
		return Entry{}, &request.MalformedRequestError{
			Path: name,
			Err:  fmt.Errorf("no decoder for extension %q", filepath.Ext(name)),
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return Entry{}, &request.MalformedRequestError{Path: name, Err: err}
	}

	decoded, err := request.Decode(format, data)
	if err != nil {
		return Entry{}, &request.MalformedRequestError{Path: name, Err: err}
	}

	return Entry{
		Path:        name,
		Format:      format,
		Request:     decoded,
		Fingerprint: request.Fingerprint(data),
	}, nil
}

func hasExtension(name string, extensions []string) bool {
	extension := strings.ToLower(filepath.Ext(name))
	for _, candidate := range extensions {
		if extension == strings.ToLower(candidate) {
			return true
		}
	}
	return false
}

func isExcluded(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
