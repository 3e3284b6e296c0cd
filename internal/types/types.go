// Package types defines core data structures for the orch roadmap tracker.
package types

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is written to every persisted roadmap document.
const SchemaVersion = "1.1"

// Status represents the lifecycle state of a spec
type Status string

// Spec status constants
const (
	StatusPending      Status = "pending"
	StatusInProgress   Status = "in_progress"
	StatusVerification Status = "verification"
	StatusCompleted    Status = "completed"
)

// AllStatuses lists every valid status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusVerification, StatusCompleted}

// IsValid checks if the status value is one of the built-in statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusVerification, StatusCompleted:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus converts user or file input into a Status, rejecting unknown values.
// Matching is case-insensitive and tolerates surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid status %q (valid: %s)", raw, strings.Join(StatusNames(), ", "))
	}
	return s, nil
}

// StatusNames returns the valid status strings in lifecycle order.
func StatusNames() []string {
	names := make([]string, len(AllStatuses))
	for i, s := range AllStatuses {
		names[i] = string(s)
	}
	return names
}

// UnmarshalText rejects statuses outside the closed set so a bad value never
// reaches the core.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NormalizeID returns the canonical form of a spec identifier.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Transition is one immutable entry of a spec's audit history.
type Transition struct {
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Spec is one tracked unit of work.
type Spec struct {
	ID           string       `json:"id"`
	Status       Status       `json:"status"`
	Path         string       `json:"path"`
	Dependencies []string     `json:"dependencies"`
	CreatedAt    time.Time    `json:"created_at"`
	History      []Transition `json:"history"`
}

// FirstTransitionTo returns the earliest history entry moving into status, and its index.
func (s *Spec) FirstTransitionTo(status Status) (Transition, int, bool) {
	for i, t := range s.History {
		if t.To == status {
			return t, i, true
		}
	}
	return Transition{}, -1, false
}

// LastTransitionTo returns the most recent history entry moving into status, and its index.
func (s *Spec) LastTransitionTo(status Status) (Transition, int, bool) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].To == status {
			return s.History[i], i, true
		}
	}
	return Transition{}, -1, false
}

// Clone returns a deep copy of the spec.
func (s *Spec) Clone() *Spec {
	c := *s
	c.Dependencies = slices.Clone(s.Dependencies)
	c.History = slices.Clone(s.History)
	return &c
}

// Validate checks the per-record invariants of a spec. It reports the first
// violation found; callers decide whether that is fatal.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("spec id is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("%s: invalid status %q", s.ID, s.Status)
	}
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Timestamp.Before(s.History[i-1].Timestamp) {
			return fmt.Errorf("%s: history timestamps decrease at entry %d", s.ID, i)
		}
	}
	if n := len(s.History); n > 0 {
		if last := s.History[n-1].To; last != s.Status {
			return fmt.Errorf("%s: status %s does not match last transition to %s", s.ID, s.Status, last)
		}
	} else if s.Status != StatusPending {
		return fmt.Errorf("%s: status %s with empty history", s.ID, s.Status)
	}
	return nil
}

// Roadmap is the persisted aggregate: every tracked spec plus document metadata.
type Roadmap struct {
	Version     string           `json:"version"`
	LastUpdated time.Time        `json:"last_updated"`
	Specs       map[string]*Spec `json:"specs"`
}

// NewRoadmap returns an empty document at the current schema version.
func NewRoadmap() *Roadmap {
	return &Roadmap{
		Version: SchemaVersion,
		Specs:   make(map[string]*Spec),
	}
}

// Get looks a spec up by exact id, falling back to the normalized id.
func (r *Roadmap) Get(id string) (*Spec, bool) {
	if s, ok := r.Specs[id]; ok {
		return s, true
	}
	s, ok := r.Specs[NormalizeID(id)]
	return s, ok
}

// IDs returns all spec ids in ascending order.
func (r *Roadmap) IDs() []string {
	ids := make([]string, 0, len(r.Specs))
	for id := range r.Specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sorted returns all specs in ascending id order.
func (r *Roadmap) Sorted() []*Spec {
	ids := r.IDs()
	specs := make([]*Spec, len(ids))
	for i, id := range ids {
		specs[i] = r.Specs[id]
	}
	return specs
}

// CountByStatus tallies specs per status. Every valid status has an entry.
func (r *Roadmap) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, s := range AllStatuses {
		counts[s] = 0
	}
	for _, spec := range r.Specs {
		counts[spec.Status]++
	}
	return counts
}

// Clone returns a deep copy of the document.
func (r *Roadmap) Clone() *Roadmap {
	c := &Roadmap{
		Version:     r.Version,
		LastUpdated: r.LastUpdated,
		Specs:       make(map[string]*Spec, len(r.Specs)),
	}
	for id, s := range r.Specs {
		c.Specs[id] = s.Clone()
	}
	return c
}

// Normalize fills derived fields after decoding: missing record ids take
// their map key, nil slices become empty, and the version defaults.
func (r *Roadmap) Normalize() {
	if r.Version == "" {
		r.Version = SchemaVersion
	}
	if r.Specs == nil {
		r.Specs = make(map[string]*Spec)
	}
	for key, s := range r.Specs {
		if s == nil {
			delete(r.Specs, key)
			continue
		}
		if s.ID == "" {
			s.ID = key
		}
		if s.Status == "" {
			s.Status = StatusPending
		}
		if s.Dependencies == nil {
			s.Dependencies = []string{}
		}
		if s.History == nil {
			s.History = []Transition{}
		}
	}
}
