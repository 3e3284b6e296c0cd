// Package branchsync marks specs as started when a feature branch for them exists.
package branchsync

import (
	"context"
	"errors"

	"github.com/moai-adk/orchestrator/internal/git"
	"github.com/moai-adk/orchestrator/internal/lifecycle"
	"github.com/moai-adk/orchestrator/internal/roadmap"
	"github.com/moai-adk/orchestrator/internal/types"
)

// Outcome describes what happened to one matched branch.
type Outcome string

const (
	OutcomeStarted Outcome = "started"
	OutcomeSkipped Outcome = "skipped" // spec exists but is not pending
	OutcomeUnknown Outcome = "unknown" // branch names an untracked spec
	OutcomeFailed  Outcome = "failed"
)

// Change is the result for one branch.
type Change struct {
	Branch  string       `json:"branch"`
	SpecID  string       `json:"spec_id"`
	Status  types.Status `json:"status,omitempty"`
	Outcome Outcome      `json:"outcome"`
	Error   string       `json:"error,omitempty"`
}

// Summary aggregates a sync run.
type Summary struct {
	Branches int      `json:"branches"`
	Started  int      `json:"started"`
	Changes  []Change `json:"changes"`
}

// Sync moves every known pending spec named by a matched branch to
// in_progress. Specs in any other status are left alone.
func Sync(ctx context.Context, store *roadmap.Store, m *lifecycle.Machine, matches []git.BranchMatch) (Summary, error) {
	sum := Summary{Branches: len(matches), Changes: []Change{}}
	var errs []error
	for _, bm := range matches {
		c := Change{Branch: bm.Branch, SpecID: bm.SpecID}
		spec, ok := store.Get(bm.SpecID)
		switch {
		case !ok:
			c.Outcome = OutcomeUnknown
		case spec.Status != types.StatusPending:
			c.Outcome = OutcomeSkipped
			c.Status = spec.Status
		default:
			if _, err := m.Update(ctx, spec.ID, types.StatusInProgress); err != nil {
				c.Outcome = OutcomeFailed
				c.Error = err.Error()
				errs = append(errs, err)
			} else {
				c.Outcome = OutcomeStarted
				c.Status = types.StatusInProgress
				sum.Started++
			}
		}
		sum.Changes = append(sum.Changes, c)
	}
	return sum, errors.Join(errs...)
}
