// Package memory provides an in-process storage.Backend, used by tests and
// dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

// BackendName is the configuration value selecting this backend.
const BackendName = "memory"

// Store keeps a deep copy of the last saved document.
type Store struct {
	mu    sync.Mutex
	doc   *types.Roadmap
	saves int

	// FailSave, when set, is returned by Save instead of persisting.
	FailSave error
}

var _ storage.Backend = (*Store)(nil)

// New returns an empty store. Load reports storage.ErrNotFound until the first Save.
func New() *Store {
	return &Store{}
}

// NewWith returns a store pre-populated with a copy of doc.
func NewWith(doc *types.Roadmap) *Store {
	return &Store{doc: doc.Clone()}
}

func (s *Store) Name() string { return BackendName }

func (s *Store) Load(ctx context.Context) (*types.Roadmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, storage.ErrNotFound
	}
	return s.doc.Clone(), nil
}

func (s *Store) Save(ctx context.Context, doc *types.Roadmap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.doc = doc.Clone()
	s.saves++
	return nil
}

func (s *Store) Close() error { return nil }

// Saves reports how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Snapshot returns a copy of the stored document, or nil if nothing was saved.
func (s *Store) Snapshot() *types.Roadmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	return s.doc.Clone()
}
