// Package sqlstore persists the roadmap in a relational database.
//
// Three dialects are supported: an embedded sqlite file (modernc.org/sqlite),
// a MySQL-protocol server such as a Dolt sql-server (go-sql-driver/mysql), and
// Postgres (pgx). Every Save rewrites the snapshot inside one transaction, so
// a spec's status and its history rows always change together.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql" // register "mysql" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" database/sql driver
	_ "modernc.org/sqlite"             // register "sqlite" database/sql driver

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

// Dialect names accepted by Open.
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

const (
	metaVersion     = "version"
	metaLastUpdated = "last_updated"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Config selects the dialect and connection string.
type Config struct {
	Dialect string
	// DSN is a file path for sqlite and a driver DSN for mysql/postgres.
	DSN string
}

// Store is a storage.Backend over database/sql.
type Store struct {
	db         *sql.DB
	dialect    string
	serverMode bool
}

var _ storage.Backend = (*Store)(nil)

func driverFor(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q (supported: sqlite, mysql, postgres)", dialect)
	}
}

// Open connects to the database and ensures the schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver, err := driverFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%s: dsn is required", cfg.Dialect)
	}
	if cfg.Dialect == DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	openMu.Lock()
	db, err := sqlOpen(driver, cfg.DSN)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Dialect, err)
	}

	s := &Store{db: db, dialect: cfg.Dialect, serverMode: cfg.Dialect != DialectSQLite}
	if cfg.Dialect == DialectSQLite {
		// One writer connection avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := s.withRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Dialect, err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Name() string { return s.dialect }

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS orch_meta (
			meta_key VARCHAR(64) PRIMARY KEY,
			meta_value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orch_specs (
			id VARCHAR(191) PRIMARY KEY,
			status VARCHAR(32) NOT NULL,
			path TEXT NOT NULL,
			dependencies TEXT NOT NULL,
			created_at VARCHAR(64) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orch_history (
			spec_id VARCHAR(191) NOT NULL,
			seq INTEGER NOT NULL,
			from_status VARCHAR(32) NOT NULL,
			to_status VARCHAR(32) NOT NULL,
			ts VARCHAR(64) NOT NULL,
			PRIMARY KEY (spec_id, seq)
		)`,
	}
	for _, stmt := range ddl {
		if err := s.withRetry(ctx, func() error {
			_, err := s.db.ExecContext(ctx, stmt)
			return err
		}); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Load reads the snapshot. An empty meta table means nothing was saved yet.
func (s *Store) Load(ctx context.Context) (*types.Roadmap, error) {
	var doc *types.Roadmap
	err := s.withRetry(ctx, func() error {
		var err error
		doc, err = s.load(ctx)
		return err
	})
	return doc, err
}

func (s *Store) load(ctx context.Context) (*types.Roadmap, error) {
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return nil, err
	}
	version, ok := meta[metaVersion]
	if !ok {
		return nil, storage.ErrNotFound
	}

	doc := types.NewRoadmap()
	doc.Version = version
	if raw := meta[metaLastUpdated]; raw != "" {
		if doc.LastUpdated, err = parseTime(raw); err != nil {
			return nil, fmt.Errorf("%w: last_updated: %v", storage.ErrCorrupt, err)
		}
	}

	if err := s.loadSpecs(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, doc); err != nil {
		return nil, err
	}
	doc.Normalize()
	return doc, nil
}

func (s *Store) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT meta_key, meta_value FROM orch_meta`)
	if err != nil {
		return nil, fmt.Errorf("select meta: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

func (s *Store) loadSpecs(ctx context.Context, doc *types.Roadmap) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, path, dependencies, created_at FROM orch_specs`)
	if err != nil {
		return fmt.Errorf("select specs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, status, path, deps, created string
		if err := rows.Scan(&id, &status, &path, &deps, &created); err != nil {
			return fmt.Errorf("scan spec: %w", err)
		}
		spec := &types.Spec{ID: id, Path: path}
		if spec.Status, err = types.ParseStatus(status); err != nil {
			return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, id, err)
		}
		if err := json.Unmarshal([]byte(deps), &spec.Dependencies); err != nil {
			return fmt.Errorf("%w: %s dependencies: %v", storage.ErrCorrupt, id, err)
		}
		if spec.CreatedAt, err = parseTime(created); err != nil {
			return fmt.Errorf("%w: %s created_at: %v", storage.ErrCorrupt, id, err)
		}
		doc.Specs[id] = spec
	}
	return rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, doc *types.Roadmap) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spec_id, from_status, to_status, ts FROM orch_history ORDER BY spec_id, seq`)
	if err != nil {
		return fmt.Errorf("select history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, from, to, ts string
		if err := rows.Scan(&id, &from, &to, &ts); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		spec, ok := doc.Specs[id]
		if !ok {
			return fmt.Errorf("%w: history for unknown spec %s", storage.ErrCorrupt, id)
		}
		var tr types.Transition
		if tr.From, err = types.ParseStatus(from); err != nil {
			return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, id, err)
		}
		if tr.To, err = types.ParseStatus(to); err != nil {
			return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, id, err)
		}
		if tr.Timestamp, err = parseTime(ts); err != nil {
			return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, id, err)
		}
		spec.History = append(spec.History, tr)
	}
	return rows.Err()
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, doc *types.Roadmap) error {
	return s.withRetry(ctx, func() error { return s.save(ctx, doc) })
}

func (s *Store) save(ctx context.Context, doc *types.Roadmap) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"orch_history", "orch_specs", "orch_meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	metaStmt := s.rebind(`INSERT INTO orch_meta (meta_key, meta_value) VALUES (?, ?)`)
	if _, err := tx.ExecContext(ctx, metaStmt, metaVersion, doc.Version); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if _, err := tx.ExecContext(ctx, metaStmt, metaLastUpdated, formatTime(doc.LastUpdated)); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}

	specStmt := s.rebind(`INSERT INTO orch_specs (id, status, path, dependencies, created_at) VALUES (?, ?, ?, ?, ?)`)
	histStmt := s.rebind(`INSERT INTO orch_history (spec_id, seq, from_status, to_status, ts) VALUES (?, ?, ?, ?, ?)`)
	for _, spec := range doc.Sorted() {
		deps := spec.Dependencies
		if deps == nil {
			deps = []string{}
		}
		depsJSON, err := json.Marshal(deps)
		if err != nil {
			return fmt.Errorf("encode dependencies of %s: %w", spec.ID, err)
		}
		if _, err := tx.ExecContext(ctx, specStmt,
			spec.ID, string(spec.Status), spec.Path, string(depsJSON), formatTime(spec.CreatedAt)); err != nil {
			return fmt.Errorf("insert spec %s: %w", spec.ID, err)
		}
		for seq, tr := range spec.History {
			if _, err := tx.ExecContext(ctx, histStmt,
				spec.ID, seq, string(tr.From), string(tr.To), formatTime(tr.Timestamp)); err != nil {
				return fmt.Errorf("insert history %s/%d: %w", spec.ID, seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

const serverRetryMaxElapsed = 30 * time.Second

func newServerRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return bo
}

// withRetry retries transient connection errors against server dialects.
// sqlite runs op exactly once.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	if !s.serverMode {
		return op()
	}
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(newServerRetryBackoff(), ctx))
}

// isRetryableError reports whether err looks like a transient connection failure.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"database is read only",
		"lost connection",
		"gone away",
		"i/o timeout",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
