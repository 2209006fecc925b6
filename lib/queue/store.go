// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/conda-forge/admin-requests/lib/request"
)

// Store persists terminal outcomes to the queue directory.
type Store struct {
	dir       string
	committer Committer
	logger    *slog.Logger
}

// NewStore returns a Store for the queue directory. A nil committer
// means NoopCommitter; a nil logger discards.
func NewStore(dir string, committer Committer, logger *slog.Logger) *Store {
	if committer == nil {
		committer = NoopCommitter{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{dir: dir, committer: committer, logger: logger}
}

// Discharge removes a fully succeeded request's file and records the
// removal. A file that is already gone is not an error: the removal is
// still committed so the index matches the working tree.
func (store *Store) Discharge(ctx context.Context, entry Entry) error {
	path := filepath.Join(store.dir, entry.Path)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", entry.Path, err)
	}

	change := Change{
		Kind:        ChangeRemove,
		Path:        entry.Path,
		Action:      entry.Action(),
		Fingerprint: entry.Fingerprint,
	}
	if err := store.committer.Commit(ctx, change); err != nil {
		return fmt.Errorf("committing removal of %s: %w", entry.Path, err)
	}
	store.logger.Info("request discharged", "path", entry.Path, "action", change.Action)
	return nil
}

// Retain overwrites a partially succeeded request's file with the
// residual and records the rewrite. The residual is encoded in the
// entry's original format.
func (store *Store) Retain(ctx context.Context, entry Entry, residual request.Request) error {
	if residual.IsEmpty() {
		return fmt.Errorf("retaining %s: residual is empty", entry.Path)
	}
	data, err := request.Encode(entry.Format, residual)
	if err != nil {
		return fmt.Errorf("encoding residual for %s: %w", entry.Path, err)
	}
	if err := WriteFileAtomic(filepath.Join(store.dir, entry.Path), data); err != nil {
		return err
	}

	change := Change{
		Kind:        ChangeRewrite,
		Path:        entry.Path,
		Action:      entry.Action(),
		Fingerprint: entry.Fingerprint,
	}
	if err := store.committer.Commit(ctx, change); err != nil {
		return fmt.Errorf("committing residual of %s: %w", entry.Path, err)
	}
	store.logger.Info("request retained",
		"path", entry.Path,
		"action", change.Action,
		"residual_fingerprint", request.Fingerprint(data),
	)
	return nil
}

// WriteFileAtomic replaces path with data. The content is written to a
// temporary file in the same directory, fsynced, and renamed into
// place, so readers see either the old content or the new content and
// never a partial write. The existing file's permissions are kept;
// new files get 0644.
func WriteFileAtomic(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryPath := file.Name()

	// Write, sync, close, in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary file for %s: %w", path, err)
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("setting mode on temporary file for %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary file for %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary file for %s: %w", path, err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming %s into place: %w", path, err)
	}

	// Sync the parent directory so the rename survives a power loss.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}
