// Package velocity derives throughput analytics from transition history.
//
// Everything here is a pure function of a roadmap snapshot and a reference
// time; nothing is cached between calls.
package velocity

import (
	"fmt"
	"sort"
	"time"

	"github.com/moai-adk/orchestrator/internal/deps"
	"github.com/moai-adk/orchestrator/internal/types"
)

// Defaults used when Options leave a field zero.
const (
	DefaultStaleDays    = 7.0
	DefaultDays         = 3.0
	DefaultBlockedLimit = 5
	WeekCount           = 4
)

const day = 24 * time.Hour

// Confidence tiers a projection by the number of completion samples.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// ConfidenceFor maps a sample count to a tier: >=5 High, >=2 Medium, else Low.
func ConfidenceFor(samples int) Confidence {
	switch {
	case samples >= 5:
		return ConfidenceHigh
	case samples >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Options tunes Compute.
type Options struct {
	StaleDays    float64 // in_progress longer than this is a bottleneck
	DefaultDays  float64 // per-spec estimate when there is no completion data
	BlockedLimit int
}

func (o Options) withDefaults() Options {
	if o.StaleDays <= 0 {
		o.StaleDays = DefaultStaleDays
	}
	if o.DefaultDays <= 0 {
		o.DefaultDays = DefaultDays
	}
	if o.BlockedLimit <= 0 {
		o.BlockedLimit = DefaultBlockedLimit
	}
	return o
}

// Completion is one spec's measured time from start to done.
type Completion struct {
	SpecID    string    `json:"spec_id"`
	Started   time.Time `json:"started"`
	Completed time.Time `json:"completed"`
	Days      float64   `json:"days"`
}

// WeekBucket counts completions in the half-open window [Start, End).
type WeekBucket struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Completed int       `json:"completed"`
}

// Projection estimates when the remaining work finishes.
type Projection struct {
	Remaining     int        `json:"remaining"`
	InProgress    int        `json:"in_progress"`
	Available     bool       `json:"available"`
	DaysPerSpec   float64    `json:"days_per_spec"`
	UsedDefault   bool       `json:"used_default"`
	EstimatedDays float64    `json:"estimated_days,omitempty"`
	EstimatedDate time.Time  `json:"estimated_date,omitempty"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Samples       int        `json:"samples"`
}

// Bottleneck is an in_progress spec that has not moved for too long.
type Bottleneck struct {
	SpecID string    `json:"spec_id"`
	Since  time.Time `json:"since"`
	Days   float64   `json:"days"`
}

// BlockedSpec is a pending spec and the first dependency holding it back.
type BlockedSpec struct {
	SpecID    string `json:"spec_id"`
	BlockedBy string `json:"blocked_by"`
}

// Report is the full analytics result.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Completions []Completion  `json:"completions"`
	HasData     bool          `json:"has_data"`
	AverageDays float64       `json:"average_days,omitempty"`
	Fastest     *Completion   `json:"fastest,omitempty"`
	Slowest     *Completion   `json:"slowest,omitempty"`
	Weeks       []WeekBucket  `json:"weeks"`
	Projection  Projection    `json:"projection"`
	StaleDays   float64       `json:"stale_days"`
	Bottlenecks []Bottleneck  `json:"bottlenecks"`
	Blocked     []BlockedSpec `json:"blocked"`
}

// Compute builds a Report for doc as seen at now.
func Compute(doc *types.Roadmap, now time.Time, opts Options) Report {
	opts = opts.withDefaults()
	specs := doc.Sorted()

	r := Report{
		GeneratedAt: now,
		Completions: Completions(specs),
		Weeks:       WeeklyBuckets(specs, now),
		StaleDays:   opts.StaleDays,
		Bottlenecks: Bottlenecks(specs, now, opts.StaleDays),
		Blocked:     Blocked(doc, opts.BlockedLimit),
	}
	if r.Completions == nil {
		r.Completions = []Completion{}
	}

	if n := len(r.Completions); n > 0 {
		r.HasData = true
		var sum float64
		fastest, slowest := 0, 0
		for i, c := range r.Completions {
			sum += c.Days
			if c.Days < r.Completions[fastest].Days {
				fastest = i
			}
			if c.Days > r.Completions[slowest].Days {
				slowest = i
			}
		}
		r.AverageDays = sum / float64(n)
		r.Fastest = &r.Completions[fastest]
		r.Slowest = &r.Completions[slowest]
	}

	r.Projection = project(doc, now, r, opts)
	return r
}

// Completions measures every spec that has a first transition to in_progress
// followed by a transition to completed. Specs are expected in id order.
func Completions(specs []*types.Spec) []Completion {
	var out []Completion
	for _, s := range specs {
		start, si, ok := s.FirstTransitionTo(types.StatusInProgress)
		if !ok {
			continue
		}
		end, ei, ok := s.LastTransitionTo(types.StatusCompleted)
		if !ok || ei < si {
			continue
		}
		out = append(out, Completion{
			SpecID:    s.ID,
			Started:   start.Timestamp,
			Completed: end.Timestamp,
			Days:      Days(end.Timestamp.Sub(start.Timestamp)),
		})
	}
	return out
}

// Days converts a duration to fractional days.
func Days(d time.Duration) float64 {
	return d.Hours() / 24
}

// WeekLabel names the i-th trailing week, 0 being the current one.
func WeekLabel(i int) string {
	if i == 0 {
		return "This week"
	}
	return fmt.Sprintf("Week -%d", i)
}

// WeeklyBuckets counts every transition to completed into four trailing
// 7-day windows ending at now, most recent first.
func WeeklyBuckets(specs []*types.Spec, now time.Time) []WeekBucket {
	weeks := make([]WeekBucket, WeekCount)
	for i := range weeks {
		end := now.Add(-time.Duration(i) * 7 * day)
		weeks[i] = WeekBucket{Label: WeekLabel(i), Start: end.Add(-7 * day), End: end}
	}
	for _, s := range specs {
		for _, h := range s.History {
			if h.To != types.StatusCompleted {
				continue
			}
			for i := range weeks {
				if !h.Timestamp.Before(weeks[i].Start) && h.Timestamp.Before(weeks[i].End) {
					weeks[i].Completed++
					break
				}
			}
		}
	}
	return weeks
}

// CompletedWithin counts specs currently completed with at least one move to
// completed after now-window. A reopened spec counts once.
func CompletedWithin(specs []*types.Spec, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	n := 0
	for _, s := range specs {
		if s.Status != types.StatusCompleted {
			continue
		}
		for _, t := range s.History {
			if t.To == types.StatusCompleted && t.Timestamp.After(cutoff) {
				n++
				break
			}
		}
	}
	return n
}

// Bottlenecks lists in_progress specs whose latest move into in_progress is
// more than staleDays before now, longest first.
func Bottlenecks(specs []*types.Spec, now time.Time, staleDays float64) []Bottleneck {
	out := []Bottleneck{}
	for _, s := range specs {
		if s.Status != types.StatusInProgress {
			continue
		}
		t, _, ok := s.LastTransitionTo(types.StatusInProgress)
		if !ok {
			continue
		}
		if days := Days(now.Sub(t.Timestamp)); days > staleDays {
			out = append(out, Bottleneck{SpecID: s.ID, Since: t.Timestamp, Days: days})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Days > out[j].Days })
	return out
}

// Blocked lists up to limit pending specs with their first blocking dependency.
func Blocked(doc *types.Roadmap, limit int) []BlockedSpec {
	out := []BlockedSpec{}
	for _, b := range deps.BlockedPending(doc, limit) {
		out = append(out, BlockedSpec{SpecID: b.SpecID, BlockedBy: b.Blockers[0]})
	}
	return out
}

func project(doc *types.Roadmap, now time.Time, r Report, opts Options) Projection {
	counts := doc.CountByStatus()
	p := Projection{
		Remaining:   counts[types.StatusPending] + counts[types.StatusInProgress],
		InProgress:  counts[types.StatusInProgress],
		DaysPerSpec: r.AverageDays,
		Samples:     len(r.Completions),
	}
	if !r.HasData {
		p.DaysPerSpec = opts.DefaultDays
		p.UsedDefault = true
	}
	if p.Remaining == 0 || p.DaysPerSpec <= 0 {
		return p
	}
	p.Available = true
	p.EstimatedDays = float64(p.Remaining) * p.DaysPerSpec
	p.EstimatedDate = now.Add(time.Duration(p.EstimatedDays * float64(day)))
	p.Confidence = ConfidenceFor(p.Samples)
	return p
}
