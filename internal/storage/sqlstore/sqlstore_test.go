package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

func sampleRoadmap() *types.Roadmap {
	t0 := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	doc := types.NewRoadmap()
	doc.LastUpdated = t0.Add(72 * time.Hour)
	doc.Specs["SPEC-A"] = &types.Spec{
		ID:           "SPEC-A",
		Status:       types.StatusCompleted,
		Path:         "specs/SPEC-A",
		Dependencies: []string{},
		CreatedAt:    t0,
		History: []types.Transition{
			{From: types.StatusPending, To: types.StatusInProgress, Timestamp: t0.Add(time.Hour)},
			{From: types.StatusInProgress, To: types.StatusCompleted, Timestamp: t0.Add(72*time.Hour + time.Hour)},
		},
	}
	doc.Specs["SPEC-B"] = &types.Spec{
		ID:           "SPEC-B",
		Status:       types.StatusPending,
		Path:         "specs/SPEC-B",
		Dependencies: []string{"SPEC-A", "SPEC-X"},
		CreatedAt:    t0,
		History:      []types.Transition{},
	}
	return doc
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Dialect: DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "indexes", "spec-status.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteEmptyLoad(t *testing.T) {
	s := openSQLite(t)
	_, err := s.Load(context.Background())
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	want := sampleRoadmap()

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, want.Version, got.Version)
	assert.True(t, want.LastUpdated.Equal(got.LastUpdated))
	require.Len(t, got.Specs, 2)

	a := got.Specs["SPEC-A"]
	assert.Equal(t, types.StatusCompleted, a.Status)
	require.Len(t, a.History, 2)
	assert.Equal(t, types.StatusInProgress, a.History[0].To)
	assert.True(t, want.Specs["SPEC-A"].History[1].Timestamp.Equal(a.History[1].Timestamp))

	assert.Equal(t, []string{"SPEC-A", "SPEC-X"}, got.Specs["SPEC-B"].Dependencies)
}

func TestSQLiteSaveReplacesSnapshot(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	doc := sampleRoadmap()
	require.NoError(t, s.Save(ctx, doc))

	delete(doc.Specs, "SPEC-A")
	require.NoError(t, s.Save(ctx, doc))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Specs, 1)

	var n int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM orch_history`).Scan(&n))
	assert.Zero(t, n, "history rows of removed spec should be gone")
}

func TestSQLiteCorruptStatus(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleRoadmap()))

	_, err := s.DB().ExecContext(ctx, `UPDATE orch_specs SET status = 'archived' WHERE id = 'SPEC-B'`)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.True(t, errors.Is(err, storage.ErrCorrupt), "got %v", err)
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Config{Dialect: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DialectPostgres}
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.rebind("INSERT INTO t (a, b) VALUES (?, ?)"))

	my := &Store{dialect: DialectMySQL}
	assert.Equal(t, "VALUES (?, ?)", my.rebind("VALUES (?, ?)"))
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, isRetryableError(errors.New("Error 2006: MySQL server has gone away")))
	assert.False(t, isRetryableError(errors.New("syntax error")))
	assert.False(t, isRetryableError(storage.ErrNotFound))
	assert.False(t, isRetryableError(nil))
}

// Server dialects run only against a live database.
func TestServerDialects(t *testing.T) {
	cases := []struct {
		dialect string
		env     string
	}{
		{DialectMySQL, "ORCH_TEST_MYSQL_DSN"},
		{DialectPostgres, "ORCH_TEST_POSTGRES_DSN"},
	}
	for _, tc := range cases {
		t.Run(tc.dialect, func(t *testing.T) {
			dsn := os.Getenv(tc.env)
			if dsn == "" {
				t.Skipf("%s not set", tc.env)
			}
			ctx := context.Background()
			s, err := Open(ctx, Config{Dialect: tc.dialect, DSN: dsn})
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Save(ctx, sampleRoadmap()))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Specs, 2)
		})
	}
}
