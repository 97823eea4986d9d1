package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skywavefm/onair/internal/api"
	"github.com/skywavefm/onair/internal/audio"
	"github.com/skywavefm/onair/internal/builder"
	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/commentary"
	"github.com/skywavefm/onair/internal/config"
	"github.com/skywavefm/onair/internal/logging"
	"github.com/skywavefm/onair/internal/monitor"
	"github.com/skywavefm/onair/internal/playout"
	"github.com/skywavefm/onair/internal/process"
	"github.com/skywavefm/onair/internal/queue"
	"github.com/skywavefm/onair/internal/render"
	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/segment"
	"github.com/skywavefm/onair/internal/sink"
	"github.com/skywavefm/onair/internal/sourcecache"
	"github.com/skywavefm/onair/internal/state"
	"github.com/skywavefm/onair/internal/tts"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the broadcast core",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// engineAdapter exposes the playout Engine's lifecycle as api.StartStopper
// by holding the base context the engine's goroutines run under, since
// Engine.Start needs a context main owns and the HTTP handlers don't.
type engineAdapter struct {
	ctx    context.Context
	engine *playout.Engine
}

func (a *engineAdapter) Start() { a.engine.Start(a.ctx) }
func (a *engineAdapter) Stop()  { a.engine.Stop() }

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := process.New(logging.Component(log, "process"))

	watcher, err := catalog.NewWatcher(logging.Component(log, "catalog"), cfg.CatalogPath, func(tracks []catalog.Track) {
		log.Info().Int("count", len(tracks)).Msg("catalog reloaded")
	})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	watchStop, err := watcher.Start()
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}
	defer watchStop()

	cache, err := sourcecache.New(logging.Component(log, "sourcecache"), filepath.Join(cfg.WorkDir, "yt-cache"), runner)
	if err != nil {
		return fmt.Errorf("build source cache: %w", err)
	}

	renderer, err := render.New(logging.Component(log, "render"), runner)
	if err != nil {
		return fmt.Errorf("build renderer: %w", err)
	}

	commentaryGen := commentary.New(logging.Component(log, "commentary"), cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.StationName)
	ttsAdapter := tts.New(logging.Component(log, "tts"), cfg.TTSBaseURL)

	b := builder.New(logging.Component(log, "builder"), builder.Deps{
		SourceCache:     cache,
		Renderer:        renderer,
		Commentary:      commentaryGen,
		TTS:             ttsAdapter,
		WorkDir:         cfg.WorkDir,
		EmergencyLiners: cfg.EmergencyLiners,
		Cadence:         cfg.CommentaryCadence,
	}, watcher.Tracks)

	q := queue.New()
	st := state.New()

	fifoPath := filepath.Join(cfg.WorkDir, "live.pcm")
	rtmpSink := sink.New(logging.Component(log, "sink"), runner, fifoPath, cfg.RTMPTargetURL)

	var stationID *scheduler.StationID
	if cfg.StationIDPath != "" {
		if dur, err := cache.Duration(cfg.StationIDPath); err == nil {
			stationID = &scheduler.StationID{FilePath: cfg.StationIDPath, DurationSec: dur}
		} else {
			log.Warn().Err(err).Str("path", cfg.StationIDPath).Msg("station id probe failed, disabling jingle")
		}
	}

	engine := playout.New(
		logging.Component(log, "playout"),
		playout.Config{
			TargetBufferedSec: cfg.TargetBufferedSec,
			MinBufferedSec:    cfg.MinBufferedSec,
			SchedulerConfig: scheduler.Config{
				StationID:           stationID,
				CommentaryCarryOver: cfg.SchedulerCommentaryCarryOver,
			},
			Renderer: renderer,
			WorkDir:  cfg.WorkDir,
		},
		b, rtmpSink, q, st,
		recoverySilence(cfg.WorkDir),
	)

	bus := monitor.NewBus()
	engine.SetMonitor(bus)
	webrtcHandler := monitor.NewWebRTCHandler(logging.Component(log, "monitor"), bus)

	if err := rtmpSink.Start(ctx, func(exitCode int) {
		log.Error().Int("exit_code", exitCode).Msg("rtmp ingest process exited unexpectedly")
		st.RecordError(fmt.Errorf("rtmp ingest exited with code %d", exitCode))
	}); err != nil {
		return fmt.Errorf("start rtmp sink: %w", err)
	}
	defer rtmpSink.Stop()

	engine.Start(ctx)
	defer engine.Stop()

	apiServer := api.New(api.Deps{
		Log:                logging.Component(log, "api"),
		Queue:              q,
		State:              st,
		Engine:             engine,
		StartStop:          &engineAdapter{ctx: ctx, engine: engine},
		TTS:                ttsAdapter,
		SourceCache:        cache,
		Runner:             runner,
		Monitor:            webrtcHandler,
		WorkDir:            cfg.WorkDir,
		EmergencyLinersDir: cfg.EmergencyLiners,
		TracksLoaded:       func() int { return len(watcher.Tracks()) },
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: apiServer.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", cfg.Port).Msg("onair listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// recoverySilence builds the Engine's silenceFn: a pinned clip of digital
// silence written under workDir, used to keep the stream alive when the
// builder fails.
func recoverySilence(workDir string) func(durationSec float64) (segment.Rendered, error) {
	return func(durationSec float64) (segment.Rendered, error) {
		path := filepath.Join(workDir, "recover-"+uuid.NewString()+".wav")
		if err := audio.WriteWAV(path, audio.SilenceSamples(durationSec)); err != nil {
			return segment.Rendered{}, err
		}
		return segment.Rendered{
			ID:          uuid.NewString(),
			Kind:        segment.KindLiner,
			FilePath:    path,
			DurationSec: durationSec,
			Note:        "recovery silence",
			Source:      segment.SourceAuto,
			Channel:     segment.ChannelJingle,
		}, nil
	}
}
