// Package lifecycle applies status changes to tracked specs.
//
// Every change appends an immutable transition to the spec's history and
// persists the whole roadmap before it is reported as done. Status and
// history are rolled back together when the save fails.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/moai-adk/orchestrator/internal/debug"
	"github.com/moai-adk/orchestrator/internal/hooks"
	"github.com/moai-adk/orchestrator/internal/roadmap"
	"github.com/moai-adk/orchestrator/internal/telemetry"
	"github.com/moai-adk/orchestrator/internal/types"
)

const scopeName = "github.com/moai-adk/orchestrator/lifecycle"

// Event log codes
const (
	EventTransition = "spec.transition"
	EventNoop       = "spec.noop"
)

// ErrNotFound is matched by *NotFoundError.
var ErrNotFound = errors.New("spec not found")

// ErrInvalidStatus is returned for statuses outside the closed set.
var ErrInvalidStatus = errors.New("invalid status")

// NotFoundError reports an update addressed to an id the store does not track.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("spec %s not found", e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Result describes what Update did.
type Result struct {
	SpecID     string           `json:"spec_id"`
	From       types.Status     `json:"from"`
	To         types.Status     `json:"to"`
	Changed    bool             `json:"changed"`
	Transition types.Transition `json:"transition,omitempty"`
}

// Machine validates and applies status updates against a Store.
type Machine struct {
	store       *roadmap.Store
	hooks       *hooks.Runner
	warnf       func(format string, args ...interface{})
	transitions metric.Int64Counter
}

// Option configures a Machine.
type Option func(*Machine)

// WithHooks runs on_transition/on_complete hooks after each change.
func WithHooks(r *hooks.Runner) Option {
	return func(m *Machine) { m.hooks = r }
}

// WithWarnf replaces the stderr warning printer.
func WithWarnf(fn func(format string, args ...interface{})) Option {
	return func(m *Machine) { m.warnf = fn }
}

// New creates a Machine over store.
func New(store *roadmap.Store, opts ...Option) *Machine {
	m := &Machine{
		store: store,
		warnf: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.transitions, _ = telemetry.Meter(scopeName).Int64Counter("orch.transitions",
		metric.WithDescription("Spec status transitions applied"),
	)
	return m
}

// Update moves spec id to status to.
//
// An unknown id yields a *NotFoundError and is logged as a warning. Setting
// the current status again is a no-op: nothing is appended and nothing is
// saved. Any other change is allowed, including moving backwards.
func (m *Machine) Update(ctx context.Context, id string, to types.Status) (Result, error) {
	if !to.IsValid() {
		return Result{}, fmt.Errorf("%w %q", ErrInvalidStatus, to)
	}
	spec, ok := m.store.Get(id)
	if !ok {
		err := &NotFoundError{ID: id}
		m.warnf("%v", err)
		return Result{SpecID: id}, err
	}

	res := Result{SpecID: spec.ID, From: spec.Status, To: to}
	if spec.Status == to {
		debug.Logf("lifecycle: %s already %s\n", spec.ID, to)
		return res, nil
	}

	ts := m.store.Now()
	if n := len(spec.History); n > 0 && ts.Before(spec.History[n-1].Timestamp) {
		// Keep history non-decreasing when the clock steps backwards.
		ts = spec.History[n-1].Timestamp
	}
	tr := types.Transition{From: spec.Status, To: to, Timestamp: ts}

	prevStatus, prevLen := spec.Status, len(spec.History)
	spec.History = append(spec.History, tr)
	spec.Status = to

	if err := m.store.Save(ctx); err != nil {
		spec.Status = prevStatus
		spec.History = spec.History[:prevLen]
		return Result{SpecID: spec.ID, From: prevStatus, To: to}, fmt.Errorf("update %s: %w", spec.ID, err)
	}

	res.Changed = true
	res.Transition = tr
	m.afterTransition(ctx, spec, tr)
	return res, nil
}

func (m *Machine) afterTransition(ctx context.Context, spec *types.Spec, tr types.Transition) {
	debug.LogEvent(EventTransition, spec.ID, fmt.Sprintf("%s->%s", tr.From, tr.To))
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", tr.From.String()),
			attribute.String("to", tr.To.String()),
		))
	}
	if m.hooks == nil {
		return
	}

	p := hooks.Payload{
		SpecID:    spec.ID,
		Path:      spec.Path,
		From:      tr.From.String(),
		To:        tr.To.String(),
		Timestamp: tr.Timestamp,
	}
	if err := m.hooks.RunSync(ctx, hooks.EventTransition, p); err != nil {
		m.warnf("on_transition hook failed for %s: %v", spec.ID, err)
	}
	if tr.To == types.StatusCompleted {
		if err := m.hooks.RunSync(ctx, hooks.EventComplete, p); err != nil {
			m.warnf("on_complete hook failed for %s: %v", spec.ID, err)
		}
	}
}
