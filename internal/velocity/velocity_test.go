package velocity

import (
	"math"
	"testing"
	"time"

	"github.com/moai-adk/orchestrator/internal/types"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func at(daysAgo float64) time.Time {
	return now.Add(-time.Duration(daysAgo * float64(24*time.Hour)))
}

func tr(from, to types.Status, ts time.Time) types.Transition {
	return types.Transition{From: from, To: to, Timestamp: ts}
}

func completedSpec(id string, startDaysAgo, endDaysAgo float64) *types.Spec {
	return &types.Spec{
		ID:     id,
		Status: types.StatusCompleted,
		History: []types.Transition{
			tr(types.StatusPending, types.StatusInProgress, at(startDaysAgo)),
			tr(types.StatusInProgress, types.StatusCompleted, at(endDaysAgo)),
		},
	}
}

func roadmap(specs ...*types.Spec) *types.Roadmap {
	doc := types.NewRoadmap()
	for _, s := range specs {
		doc.Specs[s.ID] = s
	}
	return doc
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDurationExactlyThreeDays(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &types.Spec{
		ID:     "SPEC-A",
		Status: types.StatusCompleted,
		History: []types.Transition{
			tr(types.StatusPending, types.StatusInProgress, start),
			tr(types.StatusInProgress, types.StatusCompleted, start.Add(72*time.Hour)),
		},
	}
	got := Completions([]*types.Spec{s})
	if len(got) != 1 || got[0].Days != 3.0 {
		t.Fatalf("Completions = %+v, want one entry of 3.0 days", got)
	}
}

func TestCompletionsUseFirstStartAndLastDone(t *testing.T) {
	s := &types.Spec{
		ID:     "SPEC-A",
		Status: types.StatusCompleted,
		History: []types.Transition{
			tr(types.StatusPending, types.StatusInProgress, at(10)),
			tr(types.StatusInProgress, types.StatusCompleted, at(8)),
			tr(types.StatusCompleted, types.StatusInProgress, at(6)),
			tr(types.StatusInProgress, types.StatusCompleted, at(4)),
		},
	}
	got := Completions([]*types.Spec{s})
	if len(got) != 1 || !approx(got[0].Days, 6) {
		t.Fatalf("Completions = %+v, want 6 days", got)
	}
}

func TestCompletionsExcludeIncomplete(t *testing.T) {
	specs := []*types.Spec{
		{ID: "SPEC-NEVER-STARTED", Status: types.StatusCompleted, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, at(1)),
		}},
		{ID: "SPEC-RUNNING", Status: types.StatusInProgress, History: []types.Transition{
			tr(types.StatusPending, types.StatusInProgress, at(1)),
		}},
		{ID: "SPEC-DONE-BEFORE-START", Status: types.StatusInProgress, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, at(3)),
			tr(types.StatusCompleted, types.StatusInProgress, at(2)),
		}},
	}
	if got := Completions(specs); len(got) != 0 {
		t.Errorf("Completions = %+v, want none", got)
	}
}

func TestComputeSummary(t *testing.T) {
	doc := roadmap(
		completedSpec("SPEC-A", 10, 8), // 2 days
		completedSpec("SPEC-B", 10, 4), // 6 days
		completedSpec("SPEC-C", 5, 1),  // 4 days
		&types.Spec{ID: "SPEC-D", Status: types.StatusPending},
	)
	r := Compute(doc, now, Options{})

	if !r.HasData || !approx(r.AverageDays, 4) {
		t.Errorf("average = %v (hasData=%v), want 4", r.AverageDays, r.HasData)
	}
	if r.Fastest.SpecID != "SPEC-A" || r.Slowest.SpecID != "SPEC-B" {
		t.Errorf("fastest=%s slowest=%s", r.Fastest.SpecID, r.Slowest.SpecID)
	}

	p := r.Projection
	if p.Remaining != 1 || !p.Available || p.UsedDefault {
		t.Fatalf("projection = %+v", p)
	}
	if !approx(p.EstimatedDays, 4) || !p.EstimatedDate.Equal(now.Add(96*time.Hour)) {
		t.Errorf("estimate = %v days, %v", p.EstimatedDays, p.EstimatedDate)
	}
	if p.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %s", p.Confidence)
	}
}

func TestFastestSlowestTiesResolveByID(t *testing.T) {
	doc := roadmap(
		completedSpec("SPEC-B", 4, 2),
		completedSpec("SPEC-A", 5, 3),
	)
	r := Compute(doc, now, Options{})
	if r.Fastest.SpecID != "SPEC-A" || r.Slowest.SpecID != "SPEC-A" {
		t.Errorf("fastest=%s slowest=%s, want SPEC-A for both", r.Fastest.SpecID, r.Slowest.SpecID)
	}
}

func TestProjectionWithoutData(t *testing.T) {
	doc := roadmap(
		&types.Spec{ID: "SPEC-A", Status: types.StatusPending},
		&types.Spec{ID: "SPEC-B", Status: types.StatusInProgress, History: []types.Transition{
			tr(types.StatusPending, types.StatusInProgress, at(1)),
		}},
		&types.Spec{ID: "SPEC-C", Status: types.StatusVerification},
	)
	r := Compute(doc, now, Options{})
	p := r.Projection
	if r.HasData || r.Fastest != nil {
		t.Error("expected no completion data")
	}
	if p.Remaining != 2 || p.InProgress != 1 || !p.UsedDefault || !approx(p.EstimatedDays, 6) {
		t.Errorf("projection = %+v", p)
	}
	if p.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s", p.Confidence)
	}
}

func TestProjectionNothingRemaining(t *testing.T) {
	r := Compute(roadmap(completedSpec("SPEC-A", 3, 1)), now, Options{})
	if r.Projection.Available || r.Projection.Remaining != 0 {
		t.Errorf("projection = %+v", r.Projection)
	}
}

func TestProjectionZeroAverage(t *testing.T) {
	doc := roadmap(
		completedSpec("SPEC-A", 1, 1),
		&types.Spec{ID: "SPEC-B", Status: types.StatusPending},
	)
	if p := Compute(doc, now, Options{}).Projection; p.Available {
		t.Errorf("zero average must not project: %+v", p)
	}
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		samples int
		want    Confidence
	}{
		{0, ConfidenceLow},
		{1, ConfidenceLow},
		{2, ConfidenceMedium},
		{4, ConfidenceMedium},
		{5, ConfidenceHigh},
		{50, ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := ConfidenceFor(tt.samples); got != tt.want {
			t.Errorf("ConfidenceFor(%d) = %s, want %s", tt.samples, got, tt.want)
		}
	}
}

func TestWeeklyBucketBoundaries(t *testing.T) {
	done := func(id string, ts time.Time) *types.Spec {
		return &types.Spec{ID: id, Status: types.StatusCompleted, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, ts),
		}}
	}
	specs := []*types.Spec{
		done("SPEC-EXACT-7", at(7)),     // start is inclusive: This week, not Week -1
		done("SPEC-JUST-IN", at(6.999)), // This week
		done("SPEC-NOW", now),           // end is exclusive: no bucket
		done("SPEC-OLD", at(28)),        // start of Week -3 is inclusive
		done("SPEC-TOO-OLD", at(28.01)), // outside every bucket
	}

	weeks := WeeklyBuckets(specs, now)
	if len(weeks) != 4 {
		t.Fatalf("got %d buckets", len(weeks))
	}
	wantLabels := []string{"This week", "Week -1", "Week -2", "Week -3"}
	wantCounts := []int{2, 0, 0, 1}
	for i, w := range weeks {
		if w.Label != wantLabels[i] {
			t.Errorf("bucket %d label = %q, want %q", i, w.Label, wantLabels[i])
		}
		if w.Completed != wantCounts[i] {
			t.Errorf("%s = %d, want %d", w.Label, w.Completed, wantCounts[i])
		}
	}
	if !weeks[0].End.Equal(now) || !weeks[0].Start.Equal(at(7)) {
		t.Errorf("this week = [%v, %v)", weeks[0].Start, weeks[0].End)
	}
}

func TestWeeklyCountsEveryCompletion(t *testing.T) {
	s := &types.Spec{ID: "SPEC-A", Status: types.StatusCompleted, History: []types.Transition{
		tr(types.StatusPending, types.StatusCompleted, at(2)),
		tr(types.StatusCompleted, types.StatusInProgress, at(1.5)),
		tr(types.StatusInProgress, types.StatusCompleted, at(1)),
	}}
	if got := WeeklyBuckets([]*types.Spec{s}, now)[0].Completed; got != 2 {
		t.Errorf("this week = %d, want 2", got)
	}
}

func TestBottlenecks(t *testing.T) {
	running := func(id string, daysAgo ...float64) *types.Spec {
		s := &types.Spec{ID: id, Status: types.StatusInProgress}
		for _, d := range daysAgo {
			s.History = append(s.History, tr(types.StatusPending, types.StatusInProgress, at(d)))
		}
		return s
	}
	specs := []*types.Spec{
		running("SPEC-A", 8),
		running("SPEC-B", 20, 3), // restarted recently: latest entry counts
		running("SPEC-C", 7),     // exactly at threshold: not stale
		running("SPEC-D", 15),
		completedSpec("SPEC-E", 30, 29),
	}

	got := Bottlenecks(specs, now, 7)
	if len(got) != 2 {
		t.Fatalf("Bottlenecks = %+v", got)
	}
	if got[0].SpecID != "SPEC-D" || got[1].SpecID != "SPEC-A" {
		t.Errorf("order = %s, %s; want SPEC-D, SPEC-A", got[0].SpecID, got[1].SpecID)
	}
	if !approx(got[0].Days, 15) {
		t.Errorf("days = %v", got[0].Days)
	}
}

func TestBlockedCappedWithFirstBlocker(t *testing.T) {
	doc := roadmap(&types.Spec{ID: "SPEC-ROOT", Status: types.StatusInProgress})
	for _, id := range []string{"SPEC-1", "SPEC-2", "SPEC-3", "SPEC-4", "SPEC-5", "SPEC-6"} {
		doc.Specs[id] = &types.Spec{ID: id, Status: types.StatusPending, Dependencies: []string{"SPEC-MISSING", "SPEC-ROOT"}}
	}

	got := Compute(doc, now, Options{}).Blocked
	if len(got) != 5 {
		t.Fatalf("blocked = %d, want 5", len(got))
	}
	for _, b := range got {
		if b.BlockedBy != "SPEC-ROOT" {
			t.Errorf("%s blocked by %s, want SPEC-ROOT", b.SpecID, b.BlockedBy)
		}
	}
	if got[0].SpecID != "SPEC-1" || got[4].SpecID != "SPEC-5" {
		t.Errorf("blocked order = %+v", got)
	}
}

func TestCompletedWithin(t *testing.T) {
	specs := []*types.Spec{
		completedSpec("SPEC-A", 3, 2),
		completedSpec("SPEC-B", 10, 8),
		{ID: "SPEC-C", Status: types.StatusInProgress, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, at(1)),
			tr(types.StatusCompleted, types.StatusInProgress, at(0.5)),
		}},
		// Finished long ago, reopened, finished again this week.
		{ID: "SPEC-D", Status: types.StatusCompleted, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, at(20)),
			tr(types.StatusCompleted, types.StatusInProgress, at(5)),
			tr(types.StatusInProgress, types.StatusCompleted, at(2)),
		}},
		// Completed twice inside the window still counts once.
		{ID: "SPEC-E", Status: types.StatusCompleted, History: []types.Transition{
			tr(types.StatusPending, types.StatusCompleted, at(4)),
			tr(types.StatusCompleted, types.StatusInProgress, at(3)),
			tr(types.StatusInProgress, types.StatusCompleted, at(1)),
		}},
	}
	if got := CompletedWithin(specs, now, 7*24*time.Hour); got != 3 {
		t.Errorf("CompletedWithin = %d, want 3", got)
	}
}

func TestComputeIsPure(t *testing.T) {
	doc := roadmap(completedSpec("SPEC-A", 3, 1), &types.Spec{ID: "SPEC-B", Status: types.StatusPending})
	a := Compute(doc, now, Options{})
	b := Compute(doc, now, Options{})
	if a.AverageDays != b.AverageDays || a.Projection != b.Projection {
		t.Error("Compute is not deterministic")
	}
}
