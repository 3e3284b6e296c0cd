// Package audit flags roadmap records that disagree with themselves or with
// the spec tree on disk. Nothing is ever corrected here.
package audit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moai-adk/orchestrator/internal/deps"
	"github.com/moai-adk/orchestrator/internal/types"
)

// DefaultArtifacts are files whose presence means work has started.
var DefaultArtifacts = []string{"verification.py"}

// Kind classifies an anomaly.
type Kind string

const (
	// KindVerificationArtifact: a pending spec already has a verification artifact.
	KindVerificationArtifact Kind = "verification_artifact"
	// KindHistoryMismatch: status and history disagree, or history is out of order.
	KindHistoryMismatch Kind = "history_mismatch"
	// KindIDMismatch: the record id differs from its key.
	KindIDMismatch Kind = "id_mismatch"
	// KindMissingPath: the recorded spec directory no longer exists.
	KindMissingPath Kind = "missing_path"
	// KindUnknownDependency: a dependency names a spec that is not tracked.
	KindUnknownDependency Kind = "unknown_dependency"
)

// Anomaly is one finding.
type Anomaly struct {
	SpecID  string `json:"spec_id"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Options tunes Run.
type Options struct {
	Artifacts []string
}

// Run checks every spec in id order. root resolves the relative spec paths.
func Run(doc *types.Roadmap, root string, opts Options) []Anomaly {
	artifacts := opts.Artifacts
	if len(artifacts) == 0 {
		artifacts = DefaultArtifacts
	}

	out := []Anomaly{}
	for _, key := range doc.IDs() {
		s := doc.Specs[key]
		if s.ID != key {
			out = append(out, Anomaly{
				SpecID:  key,
				Kind:    KindIDMismatch,
				Message: fmt.Sprintf("record id %q stored under key %q", s.ID, key),
			})
		}
		if err := s.Validate(); err != nil {
			out = append(out, Anomaly{SpecID: key, Kind: KindHistoryMismatch, Message: err.Error()})
		}
		for _, dep := range deps.Unknown(doc, s) {
			out = append(out, Anomaly{
				SpecID:  key,
				Kind:    KindUnknownDependency,
				Message: fmt.Sprintf("depends on untracked %s (treated as satisfied)", dep),
			})
		}

		if s.Path == "" {
			continue
		}
		dir := s.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, filepath.FromSlash(dir))
		}
		if _, err := os.Stat(dir); err != nil {
			out = append(out, Anomaly{
				SpecID:  key,
				Kind:    KindMissingPath,
				Message: fmt.Sprintf("spec directory %s not found", s.Path),
			})
			continue
		}
		if s.Status != types.StatusPending {
			continue
		}
		for _, name := range artifacts {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				out = append(out, Anomaly{
					SpecID:  key,
					Kind:    KindVerificationArtifact,
					Message: fmt.Sprintf("pending but has %s", name),
				})
			}
		}
	}
	return out
}
