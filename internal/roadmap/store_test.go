package roadmap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/storage/jsonfile"
	"github.com/moai-adk/orchestrator/internal/storage/memory"
	"github.com/moai-adk/orchestrator/internal/types"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestOpenEmptyBackend(t *testing.T) {
	s := Open(context.Background(), memory.New(), WithNow(t0))
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d specs", s.Len())
	}
	if s.Recovered() != nil {
		t.Errorf("missing data is not a recovery: %v", s.Recovered())
	}
	if s.Roadmap().Version != types.SchemaVersion {
		t.Errorf("Version = %q", s.Roadmap().Version)
	}
}

func TestOpenCorruptFileFallsBackToFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec-status.json")
	if err := os.WriteFile(path, []byte(`{"version": "1.1", "specs": {`), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(context.Background(), jsonfile.New(path), WithNow(t0))
	if s.Len() != 0 {
		t.Errorf("expected fresh store, got %d specs", s.Len())
	}
	if !errors.Is(s.Recovered(), storage.ErrCorrupt) {
		t.Errorf("Recovered = %v, want ErrCorrupt", s.Recovered())
	}

	// The fresh store is usable and its save replaces the corrupt file.
	s.Upsert("SPEC-A", "specs/SPEC-A", nil)
	if err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reopened := Open(context.Background(), jsonfile.New(path))
	if reopened.Recovered() != nil || reopened.Len() != 1 {
		t.Errorf("reopen: recovered=%v len=%d", reopened.Recovered(), reopened.Len())
	}
}

func TestUpsertNewSpec(t *testing.T) {
	s := Open(context.Background(), memory.New(), WithNow(t0))

	if got := s.Upsert("SPEC-A", "specs/SPEC-A", []string{"SPEC-B"}); got != Added {
		t.Fatalf("Upsert = %v, want added", got)
	}
	spec, ok := s.Get("SPEC-A")
	if !ok {
		t.Fatal("spec not stored")
	}
	if spec.Status != types.StatusPending || len(spec.History) != 0 {
		t.Errorf("new spec should be pending with empty history: %+v", spec)
	}
	if !spec.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", spec.CreatedAt, t0)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := Open(context.Background(), memory.New(), WithNow(t0))
	s.Upsert("SPEC-A", "specs/SPEC-A", []string{"SPEC-B"})
	before := s.Roadmap().Clone()

	if got := s.Upsert("SPEC-A", "specs/SPEC-A", []string{"SPEC-B"}); got != Unchanged {
		t.Errorf("second Upsert = %v, want unchanged", got)
	}
	if !reflect.DeepEqual(before, s.Roadmap()) {
		t.Error("repeated upsert changed the store")
	}
}

func TestUpsertRefreshesOnlyPathAndDeps(t *testing.T) {
	backend := memory.New()
	s := Open(context.Background(), backend, WithNow(t0))
	s.Upsert("SPEC-A", "specs/SPEC-A", nil)
	spec, _ := s.Get("SPEC-A")
	spec.Status = types.StatusInProgress
	spec.History = append(spec.History, types.Transition{From: types.StatusPending, To: types.StatusInProgress, Timestamp: t0})

	later := Open(context.Background(), memory.NewWith(s.Roadmap()), WithNow(t0.Add(48*time.Hour)))
	if got := later.Upsert("SPEC-A", "specs/moved/SPEC-A", []string{"SPEC-C"}); got != Updated {
		t.Fatalf("Upsert = %v, want updated", got)
	}
	refreshed, _ := later.Get("SPEC-A")
	if refreshed.Path != "specs/moved/SPEC-A" || !reflect.DeepEqual(refreshed.Dependencies, []string{"SPEC-C"}) {
		t.Errorf("path/deps not refreshed: %+v", refreshed)
	}
	if refreshed.Status != types.StatusInProgress || len(refreshed.History) != 1 {
		t.Errorf("status/history must be preserved: %+v", refreshed)
	}
	if !refreshed.CreatedAt.Equal(t0) {
		t.Errorf("created_at changed to %v", refreshed.CreatedAt)
	}
}

func TestSaveStampsLastUpdated(t *testing.T) {
	backend := memory.New()
	s := Open(context.Background(), backend, WithNow(t0))
	s.Upsert("SPEC-A", "specs/SPEC-A", nil)

	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	saved := backend.Snapshot()
	if !saved.LastUpdated.Equal(t0) {
		t.Errorf("LastUpdated = %v, want %v", saved.LastUpdated, t0)
	}
}

func TestSaveFailureKeepsPreviousTimestamp(t *testing.T) {
	backend := memory.New()
	backend.FailSave = errors.New("disk full")
	s := Open(context.Background(), backend, WithNow(t0))

	err := s.Save(context.Background())
	if err == nil || !errors.Is(err, backend.FailSave) {
		t.Fatalf("Save error = %v", err)
	}
	if !s.Roadmap().LastUpdated.IsZero() {
		t.Error("failed save should not stamp last_updated")
	}
}

func TestSpecsSortedByID(t *testing.T) {
	s := Open(context.Background(), memory.New(), WithNow(t0))
	for _, id := range []string{"SPEC-C", "SPEC-A", "SPEC-B"} {
		s.Upsert(id, "", nil)
	}
	var ids []string
	for _, spec := range s.Specs() {
		ids = append(ids, spec.ID)
	}
	if !reflect.DeepEqual(ids, []string{"SPEC-A", "SPEC-B", "SPEC-C"}) {
		t.Errorf("Specs order = %v", ids)
	}
}
