package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/queue"
	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/segment"
	"github.com/skywavefm/onair/internal/state"
)

type fakeEngine struct {
	cursor      float64
	skipped     int
	nextDeck    scheduler.Deck
	transitions []scheduler.Transition
}

func (f *fakeEngine) Running() bool   { return true }
func (f *fakeEngine) Cursor() float64 { return f.cursor }
func (f *fakeEngine) SkipCurrent()    { f.skipped++ }
func (f *fakeEngine) Transitions() []scheduler.Transition { return f.transitions }
func (f *fakeEngine) NextDeck() scheduler.Deck {
	if f.nextDeck == "" {
		return scheduler.DeckA
	}
	return f.nextDeck
}

type fakeStartStopper struct {
	starts, stops int
}

func (f *fakeStartStopper) Start() { f.starts++ }
func (f *fakeStartStopper) Stop()  { f.stops++ }

func testServer() (*Server, *fakeEngine, *fakeStartStopper, *queue.Queue, *state.Store) {
	q := queue.New()
	st := state.New()
	eng := &fakeEngine{}
	ss := &fakeStartStopper{}
	srv := New(Deps{
		Log:       zerolog.Nop(),
		Queue:     q,
		State:     st,
		Engine:    eng,
		StartStop: ss,
		WorkDir:   "/tmp",
	})
	return srv, eng, ss, q, st
}

func TestHealthz(t *testing.T) {
	srv, _, _, _, _ := testServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK {
		t.Error("expected ok=true")
	}
}

func TestDashboardQueueReflectsQueueOrder(t *testing.T) {
	srv, _, _, q, _ := testServer()
	q.Enqueue(segment.Rendered{ID: "s1", Kind: segment.KindSong, DurationSec: 3, Priority: 50}, time.Now())
	q.Enqueue(segment.Rendered{ID: "s2", Kind: segment.KindSong, Pinned: true, Priority: 100, Source: segment.SourceManual}, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/dashboard/queue", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var items []queueItemDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != "s2" {
		t.Errorf("head = %q, want pinned s2 first", items[0].ID)
	}
}

func TestDeleteUnknownQueueItemReturns404(t *testing.T) {
	srv, _, _, _, _ := testServer()
	req := httptest.NewRequest(http.MethodDelete, "/dashboard/queue/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPatchQueueItemClampsPriority(t *testing.T) {
	srv, _, _, q, _ := testServer()
	q.Enqueue(segment.Rendered{ID: "s1", Kind: segment.KindSong, DurationSec: 3}, time.Now())

	body := strings.NewReader(`{"priority": 999}`)
	req := httptest.NewRequest(http.MethodPatch, "/dashboard/queue/s1", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	items := q.Snapshot()
	if items[0].Segment.Priority != 200 {
		t.Errorf("priority = %d, want clamped to 200", items[0].Segment.Priority)
	}
}

func TestTransportSkipCallsEngine(t *testing.T) {
	srv, eng, _, _, _ := testServer()
	req := httptest.NewRequest(http.MethodPost, "/dashboard/transport/skip", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if eng.skipped != 1 {
		t.Errorf("skipped = %d, want 1", eng.skipped)
	}
}

func TestControlStartStop(t *testing.T) {
	srv, _, ss, _, _ := testServer()

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/control/start", nil))
	if ss.starts != 1 {
		t.Errorf("starts = %d, want 1", ss.starts)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/control/stop", nil))
	if ss.stops != 1 {
		t.Errorf("stops = %d, want 1", ss.stops)
	}
}

func TestDashboardSnapshotReflectsState(t *testing.T) {
	srv, _, _, _, st := testServer()
	st.SetRunning(true)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/snapshot", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var snap state.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.Running {
		t.Error("expected running=true")
	}
}

func TestTimelineSnapshotGroupsSongsByDeckAndReportsTransitions(t *testing.T) {
	srv, eng, _, q, _ := testServer()
	eng.nextDeck = scheduler.DeckB
	eng.transitions = []scheduler.Transition{{FromSegmentID: "s0", ToSegmentID: "s1", WindowSec: 2.8, Curve: scheduler.CurveExp}}

	q.Enqueue(segment.Rendered{ID: "s1", Kind: segment.KindSong, Priority: 50}, time.Now())
	q.Enqueue(segment.Rendered{ID: "c1", Kind: segment.KindCommentary, Priority: 50}, time.Now())
	q.Enqueue(segment.Rendered{ID: "s2", Kind: segment.KindSong, Pinned: true, Priority: 100, Source: segment.SourceManual}, time.Now())

	req := httptest.NewRequest(http.MethodGet, "/timeline/snapshot", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var snap timelineSnapshotDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Transitions) != 1 || snap.Transitions[0].ToSegmentID != "s1" {
		t.Errorf("transitions = %+v, want one transition to s1", snap.Transitions)
	}
	if len(snap.Decks["A"]) != 1 || snap.Decks["A"][0].SegmentID != "s1" {
		t.Errorf("deck A = %+v, want [s1]", snap.Decks["A"])
	}
	if len(snap.Decks["B"]) != 1 || snap.Decks["B"][0].SegmentID != "s2" {
		t.Errorf("deck B = %+v, want [s2]", snap.Decks["B"])
	}
	if len(snap.Decks["pending"]) != 1 || snap.Decks["pending"][0].SegmentID != "c1" {
		t.Errorf("pending = %+v, want [c1]", snap.Decks["pending"])
	}
	if snap.Decks["B"][0].Reason != string(queue.ReasonManualPinned) {
		t.Errorf("s2 reason = %q, want manual_pinned", snap.Decks["B"][0].Reason)
	}
}

func TestMediaByPathRejectsOutsideAllowedDirs(t *testing.T) {
	srv, _, _, _, _ := testServer()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/media-by-path?path=/etc/passwd", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
