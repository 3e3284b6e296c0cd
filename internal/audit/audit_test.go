package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moai-adk/orchestrator/internal/types"
)

func TestRun(t *testing.T) {
	root := t.TempDir()
	mk := func(rel string, files ...string) {
		dir := filepath.Join(root, rel)
		if err := os.MkdirAll(dir, 0750); err != nil {
			t.Fatal(err)
		}
		for _, f := range files {
			if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
				t.Fatal(err)
			}
		}
	}
	mk("specs/SPEC-A", "verification.py")
	mk("specs/SPEC-B", "verification.py")
	mk("specs/SPEC-C")
	mk("specs/SPEC-D")

	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	doc := types.NewRoadmap()
	doc.Specs["SPEC-A"] = &types.Spec{ID: "SPEC-A", Status: types.StatusPending, Path: "specs/SPEC-A"}
	doc.Specs["SPEC-B"] = &types.Spec{ID: "SPEC-B", Status: types.StatusInProgress, Path: "specs/SPEC-B", Dependencies: []string{"SPEC-A", "SPEC-ZZ"}, History: []types.Transition{
		{From: types.StatusPending, To: types.StatusInProgress, Timestamp: ts},
	}}
	doc.Specs["SPEC-C"] = &types.Spec{ID: "SPEC-C", Status: types.StatusCompleted, Path: "specs/SPEC-C", History: []types.Transition{
		{From: types.StatusPending, To: types.StatusInProgress, Timestamp: ts},
	}}
	doc.Specs["SPEC-D"] = &types.Spec{ID: "SPEC-X", Status: types.StatusPending, Path: "specs/SPEC-D"}
	doc.Specs["SPEC-E"] = &types.Spec{ID: "SPEC-E", Status: types.StatusPending, Path: "specs/SPEC-E"}

	got := Run(doc, root, Options{})
	want := []Anomaly{
		{SpecID: "SPEC-A", Kind: KindVerificationArtifact},
		{SpecID: "SPEC-B", Kind: KindUnknownDependency},
		{SpecID: "SPEC-C", Kind: KindHistoryMismatch},
		{SpecID: "SPEC-D", Kind: KindIDMismatch},
		{SpecID: "SPEC-E", Kind: KindMissingPath},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d anomalies: %+v", len(got), got)
	}
	for i := range want {
		if got[i].SpecID != want[i].SpecID || got[i].Kind != want[i].Kind {
			t.Errorf("anomaly %d = %+v, want %s/%s", i, got[i], want[i].SpecID, want[i].Kind)
		}
	}
}

func TestRunCleanRoadmap(t *testing.T) {
	doc := types.NewRoadmap()
	doc.Specs["SPEC-A"] = &types.Spec{ID: "SPEC-A", Status: types.StatusPending}
	if got := Run(doc, t.TempDir(), Options{}); len(got) != 0 {
		t.Errorf("expected no anomalies, got %+v", got)
	}
}

func TestRunCustomArtifacts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "specs", "SPEC-A")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "verify_test.go"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	doc := types.NewRoadmap()
	doc.Specs["SPEC-A"] = &types.Spec{ID: "SPEC-A", Status: types.StatusPending, Path: "specs/SPEC-A"}

	if got := Run(doc, root, Options{}); len(got) != 0 {
		t.Errorf("default artifacts should not match: %+v", got)
	}
	if got := Run(doc, root, Options{Artifacts: []string{"verify_test.go"}}); len(got) != 1 {
		t.Errorf("custom artifact not flagged: %+v", got)
	}
}
