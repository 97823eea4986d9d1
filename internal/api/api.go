// Package api exposes the read-only observation and control surface over
// HTTP: dashboard snapshots, queue mutation, transport skip, lifecycle
// start/stop, and event delivery over SSE and WebSocket. Grounded
// on the reference broadcaster's flat http.ServeMux route table in its
// cmd/radio/main.go, replaced with go-chi/chi per the pack's more
// production-shaped HTTP-API example, with rate limiting on mutating routes
// via go-chi/httprate.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/monitor"
	"github.com/skywavefm/onair/internal/process"
	"github.com/skywavefm/onair/internal/queue"
	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/sourcecache"
	"github.com/skywavefm/onair/internal/state"
	"github.com/skywavefm/onair/internal/tts"
)

// Engine is the subset of the playout engine the API observes and steers
// directly (skip, cursor, timeline lookahead). Lifecycle start/stop goes
// through StartStopper instead, since Engine.Start needs a context main
// owns, not the API.
type Engine interface {
	Running() bool
	Cursor() float64
	SkipCurrent()
	Transitions() []scheduler.Transition
	NextDeck() scheduler.Deck
}

// StartStopper is implemented by the playout engine lifecycle the
// /control/start and /control/stop routes drive. main wires this as a thin
// adapter holding the base context the engine's goroutines run under.
type StartStopper interface {
	Start()
	Stop()
}

// Deps are the components the API facade wires together. WorkDir and
// EmergencyLinersDir bound the paths /dashboard/media-by-path may read.
type Deps struct {
	Log                zerolog.Logger
	Queue              *queue.Queue
	State              *state.Store
	Engine             Engine
	StartStop          StartStopper
	TTS                *tts.Adapter
	SourceCache        *sourcecache.Cache
	Runner             *process.Runner
	Monitor            *monitor.WebRTCHandler
	WorkDir            string
	EmergencyLinersDir string
	TracksLoaded       func() int
}

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	deps Deps
}

// New builds a Server over deps.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the full chi route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/dashboard/snapshot", s.handleDashboardSnapshot)
	r.Get("/dashboard/queue", s.handleDashboardQueue)
	r.Get("/dashboard/media/{segmentId}", s.handleMediaBySegment)
	r.Get("/dashboard/media-by-path", s.handleMediaByPath)
	r.Get("/dashboard/events", s.handleEventsSSE)
	r.Get("/timeline/snapshot", s.handleTimelineSnapshot)

	r.Get("/ws", s.handleWebSocket)
	if s.deps.Monitor != nil {
		r.Handle("/monitor/webrtc", s.deps.Monitor)
	}

	mutating := httprate.Limit(
		60, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitedJSON),
	)
	r.Group(func(r chi.Router) {
		r.Use(mutating)
		r.Post("/timeline/rebuild", s.handleTimelineRebuild)
		r.Post("/dashboard/queue/commentary", s.handleEnqueueCommentary)
		r.Post("/dashboard/queue/track", s.handleEnqueueTrack)
		r.Delete("/dashboard/queue/{id}", s.handleDequeue)
		r.Patch("/dashboard/queue/{id}", s.handleUpdateQueueItem)
		r.Post("/dashboard/transport/skip", s.handleTransportSkip)
		r.Post("/control/start", s.handleControlStart)
		r.Post("/control/stop", s.handleControlStop)
	})

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.deps.Log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func rateLimitedJSON(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
