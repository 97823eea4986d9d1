// Package playout implements the Playout Engine control loop: a fill side
// that asks the Segment Builder for segments while the queued backlog runs
// low, and a drain side that pops segments in arbitration order, places
// them on the scheduler's virtual timeline, renders each placed clip's
// gain envelope into real audio, and pushes the result through the RTMP
// sink one at a time. Grounded on the reference broadcaster's
// audio.Pipeline (Run/playTrack loop shape, a background producer feeding
// a paced consumer) and friendsincode-grimnir_radio's
// Director.tick/handleEntry structure, generalized from "decode and pace
// one track" to "build ahead into a queue, then drain it against a
// real-time sink".
package playout

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/queue"
	"github.com/skywavefm/onair/internal/render"
	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/segment"
)

// Builder produces the next rendered segment on demand.
type Builder interface {
	BuildNext(ctx context.Context) (segment.Rendered, error)
}

// Sink publishes a rendered segment's audio downstream.
type Sink interface {
	PushFile(ctx context.Context, path string) error
	AbortCurrent()
}

// Renderer bakes a clip's gain envelope into audio via ffmpeg. A nil
// Renderer on Config leaves ScheduledClips unrendered: their raw
// FilePath is pushed to the sink as-is.
type Renderer interface {
	Render(ctx context.Context, req render.Request) error
}

// StateSink receives lifecycle and buffer notifications. A nil StateSink is
// valid; all calls become no-ops.
type StateSink interface {
	RecordEnqueued(id, kind, filePath string)
	RecordStarted(id string)
	RecordFinished(id string, bufferedSec float64)
	RecordError(err error)
	SetCursorAndBuffer(cursor, bufferedSec float64)
	SetRunning(running bool)
}

// Monitor taps the same audio pushed to the sink for a secondary,
// operator-only listening path. A nil Monitor is valid; feeding becomes a
// no-op. Failures here never affect the sink push they run alongside.
type Monitor interface {
	FeedFile(ctx context.Context, path string) error
}

// Config tunes the engine's pacing.
type Config struct {
	TargetBufferedSec  float64       // default 600
	MinBufferedSec     float64       // default 180
	MaxBuildsPerTick   int           // default 1
	TickInterval       time.Duration // default 250ms
	RecoverySilenceSec float64       // default 2
	DrainIdleInterval  time.Duration // default 50ms, how often the drain side checks for new queue items
	SchedulerConfig    scheduler.Config

	// Renderer bakes each ScheduledClip's BaseGain/Ramp/fades into audio
	// before it reaches the sink. Optional; nil pushes clip.FilePath as-is.
	Renderer Renderer
	// WorkDir holds rendered clip output. Required when Renderer is set.
	WorkDir string
}

func (c *Config) setDefaults() {
	if c.TargetBufferedSec <= 0 {
		c.TargetBufferedSec = 600
	}
	if c.MinBufferedSec <= 0 {
		c.MinBufferedSec = 180
	}
	if c.MaxBuildsPerTick <= 0 {
		c.MaxBuildsPerTick = 1
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 250 * time.Millisecond
	}
	if c.RecoverySilenceSec <= 0 {
		c.RecoverySilenceSec = 2
	}
	if c.DrainIdleInterval <= 0 {
		c.DrainIdleInterval = 50 * time.Millisecond
	}
}

// Engine is the central playout control loop. The fill side keeps the
// Queue topped up to TargetBufferedSec worth of segment durations; the
// drain side pops one item at a time, places it on the scheduler, renders
// each placed clip's gain envelope into audio, and pushes the result to
// the sink, which naturally paces at real time via the sink's FIFO
// backpressure.
type Engine struct {
	log       zerolog.Logger
	cfg       Config
	builder   Builder
	sink      Sink
	sched     *scheduler.Scheduler
	q         *queue.Queue
	state     StateSink
	monitor   Monitor
	silenceFn func(durationSec float64) (segment.Rendered, error)

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	fillDone  chan struct{}
	drainDone chan struct{}
}

// New builds an Engine. silenceFn produces a recovery-silence segment when
// the builder fails.
func New(log zerolog.Logger, cfg Config, builder Builder, sink Sink, q *queue.Queue, state StateSink, silenceFn func(durationSec float64) (segment.Rendered, error)) *Engine {
	cfg.setDefaults()
	return &Engine{
		log:       log,
		cfg:       cfg,
		builder:   builder,
		sink:      sink,
		sched:     scheduler.New(cfg.SchedulerConfig),
		q:         q,
		state:     state,
		silenceFn: silenceFn,
	}
}

// Running reports whether the engine's loops are active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Cursor returns the scheduler's current timeline cursor.
func (e *Engine) Cursor() float64 { return e.sched.Cursor() }

// Transitions returns the scheduler's recorded deck-to-deck transitions.
func (e *Engine) Transitions() []scheduler.Transition { return e.sched.Transitions() }

// NextDeck returns the deck the scheduler will assign to the next placed song.
func (e *Engine) NextDeck() scheduler.Deck { return e.sched.NextDeck() }

// SetMonitor attaches (or detaches, with nil) the operator monitor tap.
func (e *Engine) SetMonitor(m Monitor) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitor = m
}

// Start launches the fill and drain loops in background goroutines and
// returns immediately. Stop (or ctx cancellation) ends them.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.fillDone = make(chan struct{})
	e.drainDone = make(chan struct{})
	e.mu.Unlock()

	if e.state != nil {
		e.state.SetRunning(true)
	}

	go func() {
		defer close(e.fillDone)
		e.runFillLoop(runCtx)
	}()
	go func() {
		defer close(e.drainDone)
		e.runDrainLoop(runCtx)
	}()
}

// Stop ends both loops and waits for them to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	fillDone, drainDone := e.fillDone, e.drainDone
	e.mu.Unlock()

	cancel()
	<-fillDone
	<-drainDone

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	if e.state != nil {
		e.state.SetRunning(false)
	}
}

// SkipCurrent terminates the in-flight push, if any.
func (e *Engine) SkipCurrent() {
	e.sink.AbortCurrent()
}

func (e *Engine) runFillLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		e.fillBuffer(ctx)
		if e.state != nil {
			e.state.SetCursorAndBuffer(e.sched.Cursor(), e.queuedDurationSeconds())
		}
	}
}

func (e *Engine) runDrainLoop(ctx context.Context) {
	start := time.Now()
	idle := time.NewTicker(e.cfg.DrainIdleInterval)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
		now := time.Since(start).Seconds()
		for e.drainOne(ctx, now) {
			now = time.Since(start).Seconds()
		}
	}
}

// fillBuffer asks the builder for new segments while the queued backlog
// runs low, enqueuing each one. The buffered metric is the sum of queued
// segment durations. On a build failure it enqueues a pinned recovery
// silence and stops for this tick.
func (e *Engine) fillBuffer(ctx context.Context) {
	builds := 0
	for {
		if e.queuedDurationSeconds() >= e.cfg.TargetBufferedSec || builds >= e.cfg.MaxBuildsPerTick {
			return
		}

		seg, err := e.builder.BuildNext(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("segment build failed, enqueuing recovery silence")
			if e.state != nil {
				e.state.RecordError(err)
			}
			if e.silenceFn != nil {
				if silence, sErr := e.silenceFn(e.cfg.RecoverySilenceSec); sErr == nil {
					silence.Priority = 200
					silence.Pinned = true
					e.enqueue(silence)
				}
			}
			return
		}

		e.enqueue(seg)
		builds++
	}
}

func (e *Engine) enqueue(seg segment.Rendered) {
	item := e.q.Enqueue(seg, time.Now())
	if e.state != nil {
		e.state.RecordEnqueued(item.Segment.ID, string(item.Segment.Kind), item.Segment.FilePath)
	}
}

// queuedDurationSeconds is the buffered metric: the sum of durations of
// segments still waiting to be drained.
func (e *Engine) queuedDurationSeconds() float64 {
	total := 0.0
	for _, it := range e.q.Snapshot() {
		total += it.Segment.DurationSec
	}
	return total
}

// drainOne pops the head of the queue (if any), places it on the
// scheduler, renders each placed clip's gain envelope into audio, and
// pushes the result to the sink in pop order. Returns false if the queue
// was empty.
func (e *Engine) drainOne(ctx context.Context, now float64) bool {
	item, ok := e.q.Pop()
	if !ok {
		return false
	}

	clips := e.sched.Place(item.Segment, now)
	if e.state != nil {
		e.state.RecordStarted(item.Segment.ID)
	}

	for _, clip := range clips {
		path := e.renderClip(ctx, clip)

		e.mu.Lock()
		monitor := e.monitor
		e.mu.Unlock()
		if monitor != nil {
			go func(path string) {
				if err := monitor.FeedFile(ctx, path); err != nil {
					e.log.Debug().Err(err).Str("path", path).Msg("monitor feed failed")
				}
			}(path)
		}

		if err := e.sink.PushFile(ctx, path); err != nil {
			if e.state != nil {
				e.state.RecordError(err)
			}
			e.log.Warn().Err(err).Str("segmentId", item.Segment.ID).Msg("push to sink failed")
		}
	}

	if e.state != nil {
		e.state.RecordFinished(item.Segment.ID, e.queuedDurationSeconds())
	}
	return true
}

// renderClip bakes clip's BaseGain, Ramp, fades, and SourceOffsetSec into
// a new WAV via e.cfg.Renderer. With no Renderer configured, it returns
// clip.FilePath unchanged.
func (e *Engine) renderClip(ctx context.Context, clip scheduler.ScheduledClip) string {
	if e.cfg.Renderer == nil {
		return clip.FilePath
	}

	rc := render.Clip{
		FilePath:     clip.FilePath,
		SourceOffset: clip.SourceOffsetSec,
		DurationSec:  clip.DurationSec,
		GainConst:    clip.BaseGain,
		FadeInSec:    clip.FadeInSec,
		FadeOutSec:   clip.FadeOutSec,
	}
	if clip.Ramp != nil {
		rc.HasRamp = true
		rc.RampFrom = clip.Ramp.From
		rc.RampTo = clip.Ramp.To
		rc.RampSec = clip.Ramp.RampSec
	}

	out := filepath.Join(e.cfg.WorkDir, fmt.Sprintf("clip-%s-%s.wav", clip.SegmentID, uuid.NewString()))
	if err := e.cfg.Renderer.Render(ctx, render.Request{Clips: []render.Clip{rc}, Output: out}); err != nil {
		e.log.Warn().Err(err).Str("segmentId", clip.SegmentID).Msg("clip render failed, pushing unrendered file")
		return clip.FilePath
	}
	return out
}

// bufferedSeconds is the cursor-relative buffered formula: the schedule
// cursor never runs behind wall clock. queuedDurationSeconds is used
// instead for the current per-segment drain loop; this form is kept for
// callers that need the cursor-relative value directly.
func bufferedSeconds(cursor, now float64) float64 {
	return math.Max(0, cursor-now)
}
