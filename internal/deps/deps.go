// Package deps answers dependency questions over a roadmap snapshot.
//
// Only the recorded status of a spec's direct dependencies is inspected, so
// cycles and duplicate entries need no special handling. A dependency that is
// not tracked in the roadmap is treated as satisfied.
package deps

import "github.com/moai-adk/orchestrator/internal/types"

// Satisfied reports whether a single dependency id no longer blocks work.
func Satisfied(doc *types.Roadmap, depID string) bool {
	dep, ok := doc.Specs[depID]
	return !ok || dep.Status == types.StatusCompleted
}

// IsUnblocked reports whether every dependency of spec is unknown or completed.
func IsUnblocked(doc *types.Roadmap, spec *types.Spec) bool {
	for _, id := range spec.Dependencies {
		if !Satisfied(doc, id) {
			return false
		}
	}
	return true
}

// Blockers returns the dependencies of spec that are tracked and not yet
// completed, in declaration order. Duplicates are reported once.
func Blockers(doc *types.Roadmap, spec *types.Spec) []string {
	var blockers []string
	seen := make(map[string]bool, len(spec.Dependencies))
	for _, id := range spec.Dependencies {
		if seen[id] || Satisfied(doc, id) {
			continue
		}
		seen[id] = true
		blockers = append(blockers, id)
	}
	return blockers
}

// Unknown returns dependency ids that are not tracked in the roadmap.
func Unknown(doc *types.Roadmap, spec *types.Spec) []string {
	var unknown []string
	for _, id := range spec.Dependencies {
		if _, ok := doc.Specs[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	return unknown
}

// Blocked pairs a pending spec with what holds it back.
type Blocked struct {
	SpecID   string   `json:"spec_id"`
	Blockers []string `json:"blockers"`
}

// BlockedPending lists pending specs with at least one blocker, ordered by id.
// limit <= 0 means no limit.
func BlockedPending(doc *types.Roadmap, limit int) []Blocked {
	var out []Blocked
	for _, spec := range doc.Sorted() {
		if spec.Status != types.StatusPending {
			continue
		}
		if b := Blockers(doc, spec); len(b) > 0 {
			out = append(out, Blocked{SpecID: spec.ID, Blockers: b})
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
