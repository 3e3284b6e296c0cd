// Package roadmap holds the in-memory aggregate of all tracked specs and
// mediates every read and write against a storage backend.
package roadmap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

// UpsertResult reports what Upsert did to the store.
type UpsertResult int

const (
	Unchanged UpsertResult = iota
	Added
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Added:
		return "added"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Store is the aggregate root. It is not safe for concurrent use; one CLI
// invocation owns one Store.
type Store struct {
	backend   storage.Backend
	now       time.Time
	doc       *types.Roadmap
	recovered error
}

// Option configures Open.
type Option func(*Store)

// WithNow fixes the clock reading used for every timestamp written by this
// Store.
func WithNow(now time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the persisted roadmap. It never fails: when nothing is persisted
// or the data cannot be read, the store starts empty and Recovered reports why.
func Open(ctx context.Context, backend storage.Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	if s.now.IsZero() {
		s.now = time.Now().UTC()
	}

	doc, err := backend.Load(ctx)
	switch {
	case err == nil:
		s.doc = doc
	case errors.Is(err, storage.ErrNotFound):
		s.doc = types.NewRoadmap()
	default:
		debug.Logf("roadmap: starting fresh, load failed: %v\n", err)
		s.recovered = err
		s.doc = types.NewRoadmap()
	}
	return s
}

// Recovered returns the load error that forced a fresh store, or nil.
func (s *Store) Recovered() error {
	return s.recovered
}

// Now is the single clock reading for this invocation.
func (s *Store) Now() time.Time {
	return s.now
}

// Backend returns the storage backend the store persists to.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

// Roadmap exposes the current document for read-side views. Callers must not
// mutate it; use Upsert or the lifecycle package instead.
func (s *Store) Roadmap() *types.Roadmap {
	return s.doc
}

// Get looks up a spec by id (exact, then normalized).
func (s *Store) Get(id string) (*types.Spec, bool) {
	return s.doc.Get(id)
}

// Specs returns every spec ordered by id.
func (s *Store) Specs() []*types.Spec {
	return s.doc.Sorted()
}

// Len returns the number of tracked specs.
func (s *Store) Len() int {
	return len(s.doc.Specs)
}

// Upsert inserts a pending spec or refreshes the path and dependencies of an
// existing one. Status, history, and created_at are never touched for
// existing specs.
func (s *Store) Upsert(id, path string, deps []string) UpsertResult {
	if deps == nil {
		deps = []string{}
	}
	if existing, ok := s.doc.Specs[id]; ok {
		if existing.Path == path && slices.Equal(existing.Dependencies, deps) {
			return Unchanged
		}
		existing.Path = path
		existing.Dependencies = slices.Clone(deps)
		return Updated
	}
	s.doc.Specs[id] = &types.Spec{
		ID:           id,
		Status:       types.StatusPending,
		Path:         path,
		Dependencies: slices.Clone(deps),
		CreatedAt:    s.now,
		History:      []types.Transition{},
	}
	return Added
}

// Save stamps last_updated and persists the whole document.
func (s *Store) Save(ctx context.Context) error {
	prev := s.doc.LastUpdated
	s.doc.LastUpdated = s.now
	if s.doc.Version == "" {
		s.doc.Version = types.SchemaVersion
	}
	if err := s.backend.Save(ctx, s.doc); err != nil {
		s.doc.LastUpdated = prev
		return fmt.Errorf("saving roadmap to %s: %w", s.backend.Name(), err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
