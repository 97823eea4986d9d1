// Package state holds the single in-process authoritative runtime state
// bounded rings of recent events, segments, and errors,
// rate-limited meter updates, and a snapshot for newly connected
// subscribers. Grounded on the reference broadcaster's stream.Broadcaster
// fan-out-with-drop shape, generalized from raw PCM frames to structured
// JSON events.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxEvents   = 200
	maxSegments = 50
	maxErrors   = 50

	meterDeltaThreshold = 0.02
	updateEventThrottle = 500 * time.Millisecond
)

// Event is a compact state mutation notification delivered to subscribers.
// Revision is a monotonically increasing sequence number, used by the
// WebSocket endpoint to resume from a client's last-seen position.
type Event struct {
	ID       string      `json:"id"`
	Revision int64       `json:"revision"`
	Ts       time.Time   `json:"ts"`
	Event    string      `json:"event"`
	Payload  interface{} `json:"payload,omitempty"`
}

// SegmentRecord tracks a segment's lifecycle for the recent-segments ring.
type SegmentRecord struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	FilePath   string     `json:"filePath,omitempty"`
	Status     string     `json:"status"` // enqueued, started, finished, removed
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// ErrorRecord is one entry in the recent-errors ring.
type ErrorRecord struct {
	Ts      time.Time `json:"ts"`
	Message string    `json:"message"`
}

// Snapshot is the full state as of one instant, sent on first connect.
type Snapshot struct {
	Running        bool              `json:"running"`
	Cursor         float64           `json:"cursor"`
	BufferedSec    float64           `json:"bufferedSec"`
	Meters         map[string]float64 `json:"meters"`
	RecentSegments []SegmentRecord   `json:"recentSegments"`
	RecentErrors   []ErrorRecord     `json:"recentErrors"`
}

// Subscriber receives state Events.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Store is the single authoritative runtime state.
type Store struct {
	mu sync.Mutex

	running     bool
	cursor      float64
	bufferedSec float64

	events   []Event
	segments []SegmentRecord
	errs     []ErrorRecord
	meters   map[string]float64

	lastUpdateEmit time.Time
	subs           map[*Subscriber]struct{}
	revSeq         int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		meters: make(map[string]float64),
		subs:   make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new event subscriber.
func (s *Store) Subscribe() *Subscriber {
	sub := &Subscriber{C: make(chan Event, 64), done: make(chan struct{})}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber.
func (s *Store) Unsubscribe(sub *Subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	close(sub.done)
}

func (s *Store) publishLocked(event string, payload interface{}) {
	s.revSeq++
	ev := Event{ID: uuid.NewString(), Revision: s.revSeq, Ts: time.Now(), Event: event, Payload: payload}
	s.events = append(s.events, ev)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	for sub := range s.subs {
		select {
		case sub.C <- ev:
		default:
			// subscriber too slow, drop
		}
	}
}

// SetRunning records the engine's running flag and emits "engine.started"/
// "engine.stopped".
func (s *Store) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	if running {
		s.publishLocked("engine.started", nil)
	} else {
		s.publishLocked("engine.stopped", nil)
	}
}

// SetCursorAndBuffer updates the schedule cursor and buffered-seconds
// estimate, throttling "state.updated" to at most one per 500ms (§4.12).
func (s *Store) SetCursorAndBuffer(cursor, bufferedSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	s.bufferedSec = bufferedSec

	if time.Since(s.lastUpdateEmit) < updateEventThrottle {
		return
	}
	s.lastUpdateEmit = time.Now()
	s.publishLocked("state.updated", map[string]float64{"cursor": cursor, "bufferedSec": bufferedSec})
}

// RecordEnqueued appends a new segment record in "enqueued" status and
// emits "segment.enqueued". filePath lets the dashboard media endpoints
// resolve a segment ID to its rendered audio while it is still in the ring.
func (s *Store) RecordEnqueued(id, kind, filePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := SegmentRecord{ID: id, Kind: kind, FilePath: filePath, Status: "enqueued", EnqueuedAt: time.Now()}
	s.segments = append(s.segments, rec)
	if len(s.segments) > maxSegments {
		s.segments = s.segments[len(s.segments)-maxSegments:]
	}
	s.publishLocked("segment.enqueued", rec)
}

// RecordStarted transitions a segment to "started" and emits
// "segment.started". No-op if the segment is not tracked.
func (s *Store) RecordStarted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].ID == id {
			now := time.Now()
			s.segments[i].Status = "started"
			s.segments[i].StartedAt = &now
			s.publishLocked("segment.started", s.segments[i])
			return
		}
	}
}

// RecordFinished transitions a segment to "finished" and emits
// "segment.finished" carrying bufferedSec.
func (s *Store) RecordFinished(id string, bufferedSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].ID == id {
			now := time.Now()
			s.segments[i].Status = "finished"
			s.segments[i].FinishedAt = &now
			s.publishLocked("segment.finished", map[string]interface{}{
				"segment":     s.segments[i],
				"bufferedSec": bufferedSec,
			})
			return
		}
	}
}

// RecordRemoved transitions a segment to "removed" and emits
// "segment.removed".
func (s *Store) RecordRemoved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].ID == id {
			s.segments[i].Status = "removed"
			s.publishLocked("segment.removed", s.segments[i])
			return
		}
	}
}

// RecordError appends to the bounded error ring and emits "error".
func (s *Store) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := ErrorRecord{Ts: time.Now(), Message: err.Error()}
	s.errs = append(s.errs, rec)
	if len(s.errs) > maxErrors {
		s.errs = s.errs[len(s.errs)-maxErrors:]
	}
	s.publishLocked("error", rec)
}

// UpdateMeter sets a channel's meter level, emitting "meter.updated" only
// when the level changed by more than meterDeltaThreshold (§4.12).
func (s *Store) UpdateMeter(channel string, level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.meters[channel]
	s.meters[channel] = level
	if ok && abs(level-prev) <= meterDeltaThreshold {
		return
	}
	s.publishLocked("meter.updated", map[string]interface{}{"channel": channel, "level": level})
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// SegmentPath returns the file path recorded for id, if it is still in the
// recent-segments ring.
func (s *Store) SegmentPath(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].ID == id {
			return s.segments[i].FilePath, s.segments[i].FilePath != ""
		}
	}
	return "", false
}

// EventsSince returns the events with Revision > lastRevision still held in
// the ring, and whether the ring still covers that revision (false means
// the caller has fallen too far behind and should take a fresh Snapshot).
func (s *Store) EventsSince(lastRevision int64) ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		return nil, lastRevision == s.revSeq
	}
	oldest := s.events[0].Revision
	if lastRevision < oldest-1 {
		return nil, false
	}

	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.Revision > lastRevision {
			out = append(out, ev)
		}
	}
	return out, true
}

// Snapshot returns a full copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	meters := make(map[string]float64, len(s.meters))
	for k, v := range s.meters {
		meters[k] = v
	}
	segs := make([]SegmentRecord, len(s.segments))
	copy(segs, s.segments)
	errs := make([]ErrorRecord, len(s.errs))
	copy(errs, s.errs)

	return Snapshot{
		Running:        s.running,
		Cursor:         s.cursor,
		BufferedSec:    s.bufferedSec,
		Meters:         meters,
		RecentSegments: segs,
		RecentErrors:   errs,
	}
}
