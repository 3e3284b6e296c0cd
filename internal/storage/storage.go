// Package storage defines the persistence contract for roadmap snapshots.
//
// Backends load and save the whole roadmap document at once. The concrete
// implementations live in sub-packages (jsonfile, sqlstore, s3, memory) and
// are selected by the factory package.
package storage

import (
	"context"
	"errors"

	"github.com/moai-adk/orchestrator/internal/types"
)

// ErrNotFound is returned by Load when nothing has been persisted yet.
var ErrNotFound = errors.New("not found")

// ErrCorrupt is wrapped by Load errors when persisted data exists but cannot
// be decoded into a roadmap.
var ErrCorrupt = errors.New("corrupt roadmap data")

// Backend persists whole roadmap snapshots.
//
// Save must be atomic with respect to a single snapshot: a reader never
// observes a spec status without its matching history entry.
type Backend interface {
	// Name identifies the backend in logs and telemetry (e.g. "json", "sqlite").
	Name() string
	// Load returns the persisted document, ErrNotFound, or an error wrapping ErrCorrupt.
	Load(ctx context.Context) (*types.Roadmap, error)
	// Save replaces the persisted document with doc.
	Save(ctx context.Context, doc *types.Roadmap) error
	// Close releases any connections held by the backend.
	Close() error
}

// Locator is implemented by backends that persist to a local file, so callers
// can watch it for changes.
type Locator interface {
	Path() string
}
