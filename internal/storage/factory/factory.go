// Package factory provides functions for creating storage backends based on configuration.
package factory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/storage/jsonfile"
	"github.com/moai-adk/orchestrator/internal/storage/memory"
	s3store "github.com/moai-adk/orchestrator/internal/storage/s3"
	"github.com/moai-adk/orchestrator/internal/storage/sqlstore"
	"github.com/moai-adk/orchestrator/internal/telemetry"
)

// Default file names under the project root.
const (
	DefaultStatusFile = "indexes/spec-status.json"
	DefaultSQLiteFile = "indexes/spec-status.db"
)

// BackendFactory is a function that creates a storage backend
type BackendFactory func(ctx context.Context, opts Options) (storage.Backend, error)

// backendRegistry holds registered backend factories
var backendRegistry = map[string]BackendFactory{
	jsonfile.BackendName:     newJSONFile,
	memory.BackendName:       func(context.Context, Options) (storage.Backend, error) { return memory.New(), nil },
	sqlstore.DialectSQLite:   newSQL(sqlstore.DialectSQLite),
	sqlstore.DialectMySQL:    newSQL(sqlstore.DialectMySQL),
	"dolt":                   newSQL(sqlstore.DialectMySQL),
	sqlstore.DialectPostgres: newSQL(sqlstore.DialectPostgres),
	s3store.BackendName:      newS3,
}

// RegisterBackend registers a storage backend factory
func RegisterBackend(name string, factory BackendFactory) {
	backendRegistry[name] = factory
}

// Backends lists registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backendRegistry))
	for name := range backendRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options configures how the storage backend is opened
type Options struct {
	// Backend selects the implementation; empty means "json".
	Backend string
	// Root is the project root directory; relative paths resolve against it.
	Root string
	// Path is the json or sqlite file location.
	Path string
	// DSN is the mysql/postgres connection string.
	DSN string
	S3  s3store.Config
}

// New creates the configured backend, wrapped with telemetry when enabled.
func New(ctx context.Context, opts Options) (storage.Backend, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = jsonfile.BackendName
	}
	factory, ok := backendRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", name, strings.Join(Backends(), ", "))
	}
	b, err := factory(ctx, opts)
	if err != nil {
		return nil, err
	}
	return telemetry.WrapBackend(b), nil
}

func resolve(root, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, path)
}

func newJSONFile(_ context.Context, opts Options) (storage.Backend, error) {
	return jsonfile.New(resolve(opts.Root, opts.Path, DefaultStatusFile)), nil
}

func newSQL(dialect string) BackendFactory {
	return func(ctx context.Context, opts Options) (storage.Backend, error) {
		dsn := opts.DSN
		if dialect == sqlstore.DialectSQLite {
			dsn = resolve(opts.Root, opts.Path, DefaultSQLiteFile)
		}
		return sqlstore.Open(ctx, sqlstore.Config{Dialect: dialect, DSN: dsn})
	}
}

func newS3(ctx context.Context, opts Options) (storage.Backend, error) {
	return s3store.New(ctx, opts.S3)
}
