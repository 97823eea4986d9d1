package queue

import (
	"testing"
	"time"

	"github.com/skywavefm/onair/internal/segment"
)

func seg(id string, source segment.Source, priority int, pinned bool) segment.Rendered {
	return segment.Rendered{ID: id, Kind: segment.KindSong, Source: source, Priority: priority, Pinned: pinned}
}

func TestEnqueueDefaultsPriority(t *testing.T) {
	q := New()
	now := time.Now()

	autoSeg := segment.Rendered{ID: "a", Kind: segment.KindSong, Source: segment.SourceAuto}
	it := q.Enqueue(autoSeg, now)
	if it.Segment.Priority != 50 {
		t.Errorf("auto default priority = %d, want 50", it.Segment.Priority)
	}

	manualSeg := segment.Rendered{ID: "m", Kind: segment.KindSong, Source: segment.SourceManual}
	it2 := q.Enqueue(manualSeg, now)
	if it2.Segment.Priority != 100 {
		t.Errorf("manual default priority = %d, want 100", it2.Segment.Priority)
	}
}

func TestEnqueueClampsPriority(t *testing.T) {
	q := New()
	s := seg("a", segment.SourceManual, 999, false)
	it := q.Enqueue(s, time.Now())
	if it.Segment.Priority != 200 {
		t.Errorf("priority = %d, want clamped to 200", it.Segment.Priority)
	}
}

// TestOrderingInvariant is property P1: after any sequence of mutations the
// queue is ordered (pinned desc, priority desc, enqueuedAt asc).
func TestOrderingInvariant(t *testing.T) {
	q := New()
	base := time.Now()

	q.Enqueue(seg("A", segment.SourceAuto, 50, false), base)
	q.Enqueue(seg("B", segment.SourceManual, 100, false), base.Add(time.Second))
	q.Enqueue(seg("C", segment.SourceManual, 120, true), base.Add(2*time.Second))

	snap := q.Snapshot()
	if snap[0].Segment.ID != "C" {
		t.Fatalf("head = %s, want C (pinned)", snap[0].Segment.ID)
	}
	assertOrdered(t, snap)
}

func TestScenario2QueueOrdering(t *testing.T) {
	q := New()
	base := time.Now()

	q.Enqueue(seg("A", segment.SourceAuto, 50, false), base)
	q.Enqueue(seg("B", segment.SourceManual, 100, false), base.Add(time.Second))
	q.Enqueue(seg("C", segment.SourceManual, 120, true), base.Add(2*time.Second))

	head, ok := q.Head()
	if !ok || head.Segment.ID != "C" {
		t.Fatalf("head = %v, want C", head)
	}

	pinTrue := true
	prio := 80
	if err := q.Update("B", &prio, &pinTrue); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	snap := q.Snapshot()
	if snap[0].Segment.ID != "C" {
		t.Errorf("after update, head = %s, want C (higher priority among pinned)", snap[0].Segment.ID)
	}
	if snap[1].Segment.ID != "B" {
		t.Errorf("after update, second = %s, want B", snap[1].Segment.ID)
	}
	assertOrdered(t, snap)
}

func TestUpdateUnknownIDReturnsQueueMiss(t *testing.T) {
	q := New()
	prio := 10
	err := q.Update("nope", &prio, nil)
	if err == nil {
		t.Fatal("Update() of unknown id should fail")
	}
}

// TestUpdateIdempotent is property R2.
func TestUpdateIdempotent(t *testing.T) {
	q := New()
	q.Enqueue(seg("A", segment.SourceManual, 50, false), time.Now())

	prio := 77
	pinned := true
	if err := q.Update("A", &prio, &pinned); err != nil {
		t.Fatalf("first Update() error: %v", err)
	}
	after1 := q.Snapshot()

	if err := q.Update("A", &prio, &pinned); err != nil {
		t.Fatalf("second Update() error: %v", err)
	}
	after2 := q.Snapshot()

	if after1[0].Segment.Priority != after2[0].Segment.Priority || after1[0].Segment.Pinned != after2[0].Segment.Pinned {
		t.Errorf("Update() applied twice diverged: %+v vs %+v", after1[0], after2[0])
	}
}

// TestEnqueueRemoveRoundTrip is property R1.
func TestEnqueueRemoveRoundTrip(t *testing.T) {
	q := New()
	q.Enqueue(seg("existing", segment.SourceAuto, 50, false), time.Now())
	before := q.Snapshot()

	it := q.Enqueue(seg("temp", segment.SourceManual, 90, false), time.Now())
	if !q.Remove(it.Segment.ID) {
		t.Fatal("Remove() of just-enqueued item returned false")
	}

	after := q.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("round trip changed queue length: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Segment.ID != after[i].Segment.ID {
			t.Errorf("round trip changed order at %d: %s vs %s", i, before[i].Segment.ID, after[i].Segment.ID)
		}
	}
}

func TestRemoveUnknownReturnsFalse(t *testing.T) {
	q := New()
	if q.Remove("nope") {
		t.Error("Remove() of unknown id should return false")
	}
}

func TestReasonComputation(t *testing.T) {
	tests := []struct {
		name string
		it   Item
		want Reason
	}{
		{"manual pinned", Item{Segment: seg("a", segment.SourceManual, 100, true)}, ReasonManualPinned},
		{"manual unpinned", Item{Segment: seg("a", segment.SourceManual, 100, false)}, ReasonManualPriority},
		{"auto", Item{Segment: seg("a", segment.SourceAuto, 50, false)}, ReasonAutoPriority},
	}
	for _, tt := range tests {
		if got := tt.it.Reason(); got != tt.want {
			t.Errorf("%s: Reason() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func assertOrdered(t *testing.T, items []Item) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		if less(items[i], items[i-1]) {
			t.Fatalf("ordering invariant violated at index %d: %+v before %+v", i, items[i-1], items[i])
		}
	}
}
