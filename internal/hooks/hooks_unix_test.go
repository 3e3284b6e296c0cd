//go:build unix

package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeHook(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write hook: %v", err)
	}
	return path
}

func TestRunSyncPassesArgsAndCloudEvent(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	writeHook(t, dir, HookOnComplete, `echo "$1 $2" > `+out+`.args; cat > `+out+`.json`)

	r := NewRunner(dir, 5*time.Second)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := r.RunSync(context.Background(), EventComplete, Payload{
		SpecID: "SPEC-A", From: "in_progress", To: "completed", Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}

	args, err := os.ReadFile(out + ".args")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(args)); got != "SPEC-A complete" {
		t.Errorf("args = %q", got)
	}

	raw, err := os.ReadFile(out + ".json")
	if err != nil {
		t.Fatal(err)
	}
	var envelope struct {
		Type    string  `json:"type"`
		Source  string  `json:"source"`
		Subject string  `json:"subject"`
		Data    Payload `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("stdin is not JSON: %v\n%s", err, raw)
	}
	if envelope.Type != "dev.moai.orch.spec.complete" || envelope.Source != EventSource || envelope.Subject != "SPEC-A" {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
	if envelope.Data.To != "completed" || !envelope.Data.Timestamp.Equal(ts) {
		t.Errorf("unexpected data: %+v", envelope.Data)
	}
}

func TestRunSyncMissingHookIsNoop(t *testing.T) {
	r := NewRunner(t.TempDir(), time.Second)
	if err := r.RunSync(context.Background(), EventTransition, Payload{SpecID: "SPEC-A"}); err != nil {
		t.Errorf("missing hook should be skipped: %v", err)
	}
	if r.HookExists(EventTransition) {
		t.Error("HookExists should be false")
	}
}

func TestNonExecutableHookIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HookOnTransition)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(dir, time.Second)
	if r.HookExists(EventTransition) {
		t.Error("non-executable hook should not count")
	}
	if err := r.RunSync(context.Background(), EventTransition, Payload{SpecID: "SPEC-A"}); err != nil {
		t.Errorf("RunSync: %v", err)
	}
}

func TestRunSyncReportsFailure(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, HookOnTransition, "exit 3")
	r := NewRunner(dir, 5*time.Second)
	if err := r.RunSync(context.Background(), EventTransition, Payload{SpecID: "SPEC-A"}); err == nil {
		t.Error("expected error from failing hook")
	}
}

func TestRunSyncTimeout(t *testing.T) {
	dir := t.TempDir()
	writeHook(t, dir, HookOnTransition, "sleep 10")
	r := NewRunner(dir, 100*time.Millisecond)

	start := time.Now()
	err := r.RunSync(context.Background(), EventTransition, Payload{SpecID: "SPEC-A"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("hook was not killed promptly: %v", elapsed)
	}
}

func TestUnknownEventHasNoHook(t *testing.T) {
	r := NewRunner(t.TempDir(), time.Second)
	if r.HookExists("rename") {
		t.Error("unknown events map to no hook")
	}
}

func TestTruncateOutput(t *testing.T) {
	short := "ok"
	if truncateOutput(short) != short {
		t.Error("short output must be unchanged")
	}
	long := strings.Repeat("x", maxOutputBytes+10)
	got := truncateOutput(long)
	if !strings.HasPrefix(got, strings.Repeat("x", maxOutputBytes)) || !strings.HasSuffix(got, "(truncated)") {
		t.Errorf("unexpected truncation: len=%d", len(got))
	}
}
