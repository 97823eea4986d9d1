package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/segment"
)

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Service: "onair"})
}

type statusResponse struct {
	Running      bool     `json:"running"`
	TracksLoaded int      `json:"tracksLoaded"`
	Phase        string   `json:"phase"`
	BufferedSec  float64  `json:"bufferedSec"`
	LastPlayed   []string `json:"lastPlayed"`
	LastError    *string  `json:"lastError"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.State.Snapshot()

	tracksLoaded := 0
	if s.deps.TracksLoaded != nil {
		tracksLoaded = s.deps.TracksLoaded()
	}

	lastPlayed := make([]string, 0, len(snap.RecentSegments))
	for i := len(snap.RecentSegments) - 1; i >= 0 && len(lastPlayed) < 10; i-- {
		if snap.RecentSegments[i].Status == "finished" {
			lastPlayed = append(lastPlayed, snap.RecentSegments[i].ID)
		}
	}

	var lastError *string
	if n := len(snap.RecentErrors); n > 0 {
		msg := snap.RecentErrors[n-1].Message
		lastError = &msg
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Running:      snap.Running,
		TracksLoaded: tracksLoaded,
		Phase:        phaseFromMeters(snap.Meters),
		BufferedSec:  snap.BufferedSec,
		LastPlayed:   lastPlayed,
		LastError:    lastError,
	})
}

// phaseFromMeters approximates the songs/commentary phase from which
// channel currently carries signal, since the API has no direct builder
// handle. Nothing in the running daemon calls state.Store.UpdateMeter, so
// the meters map stays empty and this reports "songs".
func phaseFromMeters(meters map[string]float64) string {
	if meters["voice"] > meters["music"] {
		return "commentary"
	}
	return "songs"
}

func (s *Server) handleDashboardSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.State.Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

type queueItemDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	DurationSec float64 `json:"durationSec"`
	Source      string  `json:"source"`
	Priority    int     `json:"priority"`
	Pinned      bool    `json:"pinned"`
	Channel     string  `json:"channel"`
	EnqueuedAt  string  `json:"enqueuedAt"`
	Reason      string  `json:"reason"`
}

func (s *Server) handleDashboardQueue(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Queue.Snapshot()
	out := make([]queueItemDTO, len(items))
	for i, it := range items {
		out[i] = queueItemDTO{
			ID:          it.Segment.ID,
			Kind:        string(it.Segment.Kind),
			DurationSec: it.Segment.DurationSec,
			Source:      string(it.Segment.Source),
			Priority:    it.Segment.Priority,
			Pinned:      it.Segment.Pinned,
			Channel:     string(it.Segment.Channel),
			EnqueuedAt:  it.EnqueuedAt.Format(time.RFC3339Nano),
			Reason:      string(it.Reason()),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMediaBySegment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "segmentId")
	path, ok := s.deps.State.SegmentPath(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "unknown segment")
		return
	}
	serveWav(w, r, path)
}

func (s *Server) handleMediaByPath(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "path is required")
		return
	}

	resolved, err := filepath.Abs(raw)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if !underDir(resolved, s.deps.WorkDir) && !underDir(resolved, s.deps.EmergencyLinersDir) {
		writeJSONError(w, http.StatusForbidden, "path must resolve under the work dir or emergency liners dir")
		return
	}
	serveWav(w, r, resolved)
}

func underDir(path, dir string) bool {
	if dir == "" {
		return false
	}
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dirAbs, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func serveWav(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "media not found")
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeContent(w, r, filepath.Base(path), time.Time{}, f)
}

func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.deps.State.Subscribe()
	defer s.deps.State.Unsubscribe(sub)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := marshalSSE(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleTimelineSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, timelineSnapshotFrom(s.deps))
}

func (s *Server) handleTimelineRebuild(w http.ResponseWriter, r *http.Request) {
	// Clips are assigned to a deck lazily when drained, not pre-rendered
	// into a lookahead window, so there is nothing to recompute; rebuild
	// just re-reads current scheduler and queue state.
	writeJSON(w, http.StatusOK, timelineSnapshotFrom(s.deps))
}

type timelineClipDTO struct {
	SegmentID   string `json:"segmentId"`
	Kind        string `json:"kind"`
	DurationSec float64 `json:"durationSec"`
	Reason      string `json:"reason"`
}

type timelineTransitionDTO struct {
	FromSegmentID string  `json:"fromSegmentId"`
	ToSegmentID   string  `json:"toSegmentId"`
	WindowSec     float64 `json:"windowSec"`
	Curve         string  `json:"curve"`
}

type timelineSnapshotDTO struct {
	Cursor      float64                      `json:"cursor"`
	Decks       map[string][]timelineClipDTO `json:"decks"`
	Transitions []timelineTransitionDTO       `json:"transitions"`
}

// timelineSnapshotFrom builds the lookahead view over the still-queued
// (undrained) items: upcoming song-kind items are predicted onto decks by
// alternation starting from the scheduler's actual next-deck state, since
// real deck assignment only happens at drain time; non-song items have no
// deck membership and are grouped under "pending".
func timelineSnapshotFrom(deps Deps) timelineSnapshotDTO {
	out := timelineSnapshotDTO{
		Decks: map[string][]timelineClipDTO{
			string(scheduler.DeckA): {},
			string(scheduler.DeckB): {},
			"pending":               {},
		},
	}
	if deps.Engine == nil {
		return out
	}
	out.Cursor = deps.Engine.Cursor()

	for _, t := range deps.Engine.Transitions() {
		out.Transitions = append(out.Transitions, timelineTransitionDTO{
			FromSegmentID: t.FromSegmentID,
			ToSegmentID:   t.ToSegmentID,
			WindowSec:     t.WindowSec,
			Curve:         t.Curve,
		})
	}

	deck := deps.Engine.NextDeck()
	if deps.Queue == nil {
		return out
	}
	for _, item := range deps.Queue.Snapshot() {
		clip := timelineClipDTO{
			SegmentID:   item.Segment.ID,
			Kind:        string(item.Segment.Kind),
			DurationSec: item.Segment.DurationSec,
			Reason:      string(item.Reason()),
		}
		if item.Segment.Kind != segment.KindSong {
			out.Decks["pending"] = append(out.Decks["pending"], clip)
			continue
		}
		out.Decks[string(deck)] = append(out.Decks[string(deck)], clip)
		if deck == scheduler.DeckA {
			deck = scheduler.DeckB
		} else {
			deck = scheduler.DeckA
		}
	}
	return out
}
