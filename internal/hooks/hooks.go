// Package hooks runs user-provided executables when a spec changes status.
//
// Hooks live in <root>/hooks/ and receive the spec id and event name as
// arguments and a CloudEvents JSON envelope on stdin. A missing or
// non-executable hook is skipped silently.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event types
const (
	EventTransition = "transition"
	EventComplete   = "complete"
)

// Hook file names
const (
	HookOnTransition = "on_transition"
	HookOnComplete   = "on_complete"
)

// EventSource is the CloudEvents source attribute of every hook payload.
const EventSource = "orch"

// eventTypePrefix namespaces CloudEvents types.
const eventTypePrefix = "dev.moai.orch.spec."

// maxOutputBytes caps hook output recorded on spans.
const maxOutputBytes = 4096

// Payload is the data section of the CloudEvent passed to hooks.
type Payload struct {
	SpecID    string    `json:"spec_id"`
	Path      string    `json:"path,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Runner handles hook execution
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner creates a new hook runner.
// hooksDir is typically <root>/hooks.
func NewRunner(hooksDir string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Runner{
		hooksDir: hooksDir,
		timeout:  timeout,
	}
}

// NewRunnerFromRoot creates a hook runner for a project root.
func NewRunnerFromRoot(root string, timeout time.Duration) *Runner {
	return NewRunner(filepath.Join(root, "hooks"), timeout)
}

// Dir returns the directory hooks are looked up in.
func (r *Runner) Dir() string {
	return r.hooksDir
}

// RunSync executes the hook for event, if present, and waits for it.
func (r *Runner) RunSync(ctx context.Context, event string, p Payload) error {
	hookPath, ok := r.lookup(event)
	if !ok {
		return nil
	}
	body, err := NewEvent(event, p)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return runHook(ctx, hookPath, event, p.SpecID, body)
}

// HookExists checks if a hook exists for an event
func (r *Runner) HookExists(event string) bool {
	_, ok := r.lookup(event)
	return ok
}

func (r *Runner) lookup(event string) (string, bool) {
	hookName := eventToHook(event)
	if hookName == "" {
		return "", false
	}
	hookPath := filepath.Join(r.hooksDir, hookName)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	if info.Mode()&0o111 == 0 {
		return "", false
	}
	return hookPath, true
}

// NewEvent wraps p in a CloudEvents JSON envelope.
func NewEvent(event string, p Payload) ([]byte, error) {
	e := cloudevents.NewEvent()
	e.SetID(uuid.NewString())
	e.SetSource(EventSource)
	e.SetType(eventTypePrefix + event)
	e.SetSubject(p.SpecID)
	e.SetTime(p.Timestamp)
	if err := e.SetData(cloudevents.ApplicationJSON, p); err != nil {
		return nil, fmt.Errorf("encode hook payload: %w", err)
	}
	return json.Marshal(e)
}

func eventToHook(event string) string {
	switch event {
	case EventTransition:
		return HookOnTransition
	case EventComplete:
		return HookOnComplete
	default:
		return ""
	}
}

func truncateOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "...(truncated)"
}
