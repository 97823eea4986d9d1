// Package queue implements the priority-and-pin ordered queue of rendered
// segments. No teacher analog exists for manual queueing;
// the ordering model is grounded on the ScheduleEntry/PlayHistory shape in
// friendsincode-grimnir_radio's models.go, expressed with stdlib sort.
package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/skywavefm/onair/internal/onairerr"
	"github.com/skywavefm/onair/internal/segment"
)

// Reason explains why a queued item sits where it does.
type Reason string

const (
	ReasonManualPinned   Reason = "manual_pinned"
	ReasonManualPriority Reason = "manual_priority"
	ReasonAutoPriority   Reason = "auto_priority"
)

// Item is a RenderedSegment plus its enqueue timestamp.
type Item struct {
	Segment   segment.Rendered
	EnqueuedAt time.Time
}

// Reason computes the arbitration reason for this item.
func (it Item) Reason() Reason {
	switch {
	case it.Segment.Pinned && it.Segment.Source == segment.SourceManual:
		return ReasonManualPinned
	case it.Segment.Source == segment.SourceManual:
		return ReasonManualPriority
	default:
		return ReasonAutoPriority
	}
}

// Queue is a thread-safe priority-and-pin ordered list of queue items.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// clampPriority enforces the [0,200] priority bound.
func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 200 {
		return 200
	}
	return p
}

func less(a, b Item) bool {
	if a.Segment.Pinned != b.Segment.Pinned {
		return a.Segment.Pinned // pinned first
	}
	if a.Segment.Priority != b.Segment.Priority {
		return a.Segment.Priority > b.Segment.Priority
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

func (q *Queue) sortLocked() {
	sort.SliceStable(q.items, func(i, j int) bool { return less(q.items[i], q.items[j]) })
}

// Enqueue inserts seg, defaulting priority per source (100 manual, 50 auto)
// when unset, clamping into [0,200], then re-sorts (P1).
func (q *Queue) Enqueue(seg segment.Rendered, now time.Time) Item {
	if seg.Priority == 0 {
		if seg.Source == segment.SourceManual {
			seg.Priority = 100
		} else {
			seg.Priority = 50
		}
	}
	seg.Priority = clampPriority(seg.Priority)

	it := Item{Segment: seg, EnqueuedAt: now}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, it)
	q.sortLocked()
	return it
}

// Remove deletes the item with the given segment ID, returning whether it
// was present.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.Segment.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Update patches priority and/or pinned for the item with the given ID and
// re-sorts. Returns onairerr.QueueMiss if the ID is unknown.
func (q *Queue) Update(id string, priority *int, pinned *bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.Segment.ID != id {
			continue
		}
		if priority != nil {
			it.Segment.Priority = clampPriority(*priority)
		}
		if pinned != nil {
			it.Segment.Pinned = *pinned
		}
		q.items[i] = it
		q.sortLocked()
		return nil
	}
	return &onairerr.QueueMiss{ID: id}
}

// Head returns the first item without removing it.
func (q *Queue) Head() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Pop removes and returns the first item.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Snapshot returns a copy of the current queue order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
