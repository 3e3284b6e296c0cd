// Package jsonfile stores the roadmap as a single JSON document on disk.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

// BackendName is the configuration value selecting this backend.
const BackendName = "json"

// CorruptSuffix is appended to the file name of an unreadable document when
// it is copied aside.
const CorruptSuffix = ".corrupt"

// Store is a storage.Backend backed by one JSON file.
type Store struct {
	path string
	perm fs.FileMode
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Locator = (*Store)(nil)
)

// New returns a file backend for path. The file and its parent directories
// are created on the first Save.
func New(path string) *Store {
	return &Store{path: path, perm: 0o644}
}

func (s *Store) Name() string { return BackendName }

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Load reads and decodes the document. When the file exists but cannot be
// decoded, a copy is written next to it before the error is returned so the
// next Save does not destroy the only copy.
func (s *Store) Load(ctx context.Context) (*types.Roadmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from the configured project root
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	doc, err := storage.DecodeRoadmap(data)
	if err != nil {
		backup := s.path + CorruptSuffix
		if werr := writeFileAtomicDurable(backup, data, s.perm); werr != nil {
			debug.Logf("jsonfile: could not back up corrupt file: %v\n", werr)
		} else {
			debug.Logf("jsonfile: copied unreadable %s to %s\n", s.path, backup)
		}
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return doc, nil
}

// Save writes the document atomically: temp file, fsync, rename, directory fsync.
func (s *Store) Save(ctx context.Context, doc *types.Roadmap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.EncodeRoadmap(doc)
	if err != nil {
		return err
	}
	if err := writeFileAtomicDurable(s.path, data, s.perm); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func writeFileAtomicDurable(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
