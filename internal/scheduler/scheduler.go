// Package scheduler recommends the next spec to work on.
package scheduler

import (
	"github.com/moai-adk/orchestrator/internal/deps"
	"github.com/moai-adk/orchestrator/internal/types"
)

// DefaultAlternates is how many runner-up specs are listed with a recommendation.
const DefaultAlternates = 3

// Kind classifies a next-action answer.
type Kind string

const (
	// ActionRunning means a spec is already in progress and should be finished first.
	ActionRunning Kind = "running"
	// ActionRecommend means an unblocked pending spec is ready to start.
	ActionRecommend Kind = "recommend"
	// ActionNone means everything is completed or blocked.
	ActionNone Kind = "none"
)

// Action is the scheduler's answer.
type Action struct {
	Kind       Kind     `json:"kind"`
	SpecID     string   `json:"spec_id,omitempty"`
	Alternates []string `json:"alternates,omitempty"`
}

// NextAction picks what to work on. An in-progress spec always wins; otherwise
// the first unblocked pending spec in id order is recommended together with up
// to alternates others. alternates < 0 uses DefaultAlternates.
func NextAction(doc *types.Roadmap, alternates int) Action {
	if alternates < 0 {
		alternates = DefaultAlternates
	}

	specs := doc.Sorted()
	for _, s := range specs {
		if s.Status == types.StatusInProgress {
			return Action{Kind: ActionRunning, SpecID: s.ID}
		}
	}

	ready := Ready(doc)
	if len(ready) == 0 {
		return Action{Kind: ActionNone}
	}
	a := Action{Kind: ActionRecommend, SpecID: ready[0]}
	if rest := ready[1:]; len(rest) > 0 && alternates > 0 {
		if len(rest) > alternates {
			rest = rest[:alternates]
		}
		a.Alternates = append([]string(nil), rest...)
	}
	return a
}

// Ready returns the ids of pending specs whose dependencies are satisfied, in id order.
func Ready(doc *types.Roadmap) []string {
	var ids []string
	for _, s := range doc.Sorted() {
		if s.Status == types.StatusPending && deps.IsUnblocked(doc, s) {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
