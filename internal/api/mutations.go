package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/segment"
)

type enqueueCommentaryRequest struct {
	Text string `json:"text"`
}

type enqueuedResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// handleEnqueueCommentary implements `POST /dashboard/queue/commentary`:
// synthesize the given text and enqueue it pinned at priority 120.
func (s *Server) handleEnqueueCommentary(w http.ResponseWriter, r *http.Request) {
	var req enqueueCommentaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if s.deps.TTS == nil {
		writeJSONError(w, http.StatusInternalServerError, "tts adapter not configured")
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.deps.WorkDir, "talk-manual-"+id+".wav")
	if err := s.deps.TTS.Synthesize(r.Context(), req.Text, path); err != nil {
		writeErr(w, err)
		return
	}

	dur := 0.0
	if s.deps.SourceCache != nil {
		if d, err := s.deps.SourceCache.Duration(path); err == nil {
			dur = d
		}
	}

	seg := segment.Rendered{
		ID:             id,
		Kind:           segment.KindCommentary,
		FilePath:       path,
		DurationSec:    dur,
		CommentaryText: req.Text,
		Source:         segment.SourceManual,
		Priority:       120,
		Pinned:         true,
		Channel:        segment.ChannelVoice,
	}
	item := s.deps.Queue.Enqueue(seg, time.Now())
	s.deps.State.RecordEnqueued(item.Segment.ID, string(item.Segment.Kind), item.Segment.FilePath)

	writeJSON(w, http.StatusOK, enqueuedResponse{OK: true, ID: id})
}

type enqueueTrackRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	YoutubeURL string `json:"youtube_url"`
}

// handleEnqueueTrack implements `POST /dashboard/queue/track`: fetch the
// requested track's audio and enqueue it pinned at priority 110.
func (s *Server) handleEnqueueTrack(w http.ResponseWriter, r *http.Request) {
	var req enqueueTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" || req.YoutubeURL == "" {
		writeJSONError(w, http.StatusBadRequest, "title and youtube_url are required")
		return
	}
	if s.deps.SourceCache == nil {
		writeJSONError(w, http.StatusInternalServerError, "source cache not configured")
		return
	}

	id := uuid.NewString()
	track := catalog.Track{ID: id, Title: req.Title, Artist: req.Artist, URL: req.YoutubeURL}

	path, err := s.deps.SourceCache.FetchTrackWav(r.Context(), track)
	if err != nil {
		writeErr(w, err)
		return
	}
	dur, err := s.deps.SourceCache.Duration(path)
	if err != nil {
		dur = 0
	}

	seg := segment.Rendered{
		ID:          id,
		Kind:        segment.KindSong,
		FilePath:    path,
		DurationSec: dur,
		Source:      segment.SourceManual,
		Priority:    110,
		Pinned:      true,
		Channel:     segment.ChannelMusic,
		TrackID:     id,
	}
	item := s.deps.Queue.Enqueue(seg, time.Now())
	s.deps.State.RecordEnqueued(item.Segment.ID, string(item.Segment.Kind), item.Segment.FilePath)

	writeJSON(w, http.StatusOK, enqueuedResponse{OK: true, ID: id})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Queue.Remove(id) {
		writeJSONError(w, http.StatusNotFound, "unknown segment")
		return
	}
	s.deps.State.RecordRemoved(id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updateQueueItemRequest struct {
	Priority *int  `json:"priority"`
	Pinned   *bool `json:"pinned"`
}

func (s *Server) handleUpdateQueueItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateQueueItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.deps.Queue.Update(id, req.Priority, req.Pinned); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTransportSkip(w http.ResponseWriter, r *http.Request) {
	if s.deps.Engine == nil {
		writeJSONError(w, http.StatusInternalServerError, "engine not configured")
		return
	}
	s.deps.Engine.SkipCurrent()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleControlStart(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartStop == nil {
		writeJSONError(w, http.StatusInternalServerError, "engine not configured")
		return
	}
	s.deps.StartStop.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleControlStop(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartStop == nil {
		writeJSONError(w, http.StatusInternalServerError, "engine not configured")
		return
	}
	s.deps.StartStop.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
