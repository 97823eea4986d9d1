// Package sink owns the named pipe that feeds the RTMP ingest process:
// it recreates the FIFO, spawns ffmpeg to read raw PCM from it and push an
// AAC/FLV stream to the configured RTMP URL, and serializes short-lived
// per-file transcodes that write PCM into that FIFO.
// Grounded on the reference broadcaster's stream.HTTPHandler for the
// spawn-ffmpeg-with-piped-stdio shape, generalized from an HTTP response
// writer to a named pipe and from MP3 to AAC/FLV/RTMP.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
	"github.com/skywavefm/onair/internal/process"
)

// Sink publishes PCM audio to an RTMP endpoint through a FIFO-fed ffmpeg
// ingest process.
type Sink struct {
	log      zerolog.Logger
	runner   *process.Runner
	fifoPath string
	rtmpURL  string

	mu       sync.Mutex
	running  bool
	ingest   *process.Handle
	fifoFile *os.File

	transcodeMu sync.Mutex
	current     *process.Handle
}

// New builds a Sink writing to fifoPath and pushing to rtmpURL.
func New(log zerolog.Logger, runner *process.Runner, fifoPath, rtmpURL string) *Sink {
	return &Sink{log: log, runner: runner, fifoPath: fifoPath, rtmpURL: rtmpURL}
}

// Running reports whether the ingest process is currently active.
func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start recreates the FIFO, spawns the ingest process, and opens a write
// handle to the FIFO. onExit is invoked (with the ingest's exit code) if the
// ingest process terminates unexpectedly; it is never called after Stop.
func (s *Sink) Start(ctx context.Context, onExit func(exitCode int)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if _, err := process.Resolve("ffmpeg", "install ffmpeg and ensure it is on PATH"); err != nil {
		return err
	}

	os.Remove(s.fifoPath)
	if err := syscall.Mkfifo(s.fifoPath, 0o644); err != nil {
		return fmt.Errorf("sink: mkfifo %s: %w", s.fifoPath, err)
	}

	ingest, err := s.runner.Spawn(ctx,
		"ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", "48000", "-ac", "2",
		"-re", "-i", s.fifoPath,
		"-c:a", "aac", "-b:a", "192k",
		"-f", "flv",
		s.rtmpURL,
	)
	if err != nil {
		return err
	}
	s.ingest = ingest

	go func() {
		waitErr := ingest.Wait()
		s.mu.Lock()
		wasRunning := s.running
		s.running = false
		s.mu.Unlock()
		if wasRunning {
			code := ingest.ExitCode()
			s.log.Error().Err(waitErr).Int("exitCode", code).Msg("rtmp ingest exited unexpectedly")
			if onExit != nil {
				onExit(code)
			}
		}
	}()

	// Opening for write blocks until the ingest process opens its read end.
	f, err := os.OpenFile(s.fifoPath, os.O_WRONLY, 0)
	if err != nil {
		ingest.Terminate(2 * time.Second)
		return fmt.Errorf("sink: open fifo for write: %w", err)
	}
	s.fifoFile = f
	s.running = true
	s.log.Info().Str("rtmpUrl", s.rtmpURL).Msg("rtmp sink started")
	return nil
}

// PushFile spawns a short-lived transcode of path to raw PCM and copies its
// stdout into the FIFO without closing the FIFO. At most one transcode runs
// at a time.
func (s *Sink) PushFile(ctx context.Context, path string) error {
	s.transcodeMu.Lock()
	defer s.transcodeMu.Unlock()

	s.mu.Lock()
	fifo := s.fifoFile
	running := s.running
	s.mu.Unlock()
	if !running || fifo == nil {
		return &onairerr.PublisherExited{ExitCode: -1}
	}

	h, err := s.runner.Spawn(ctx,
		"ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "s16le", "-ar", "48000", "-ac", "2",
		"pipe:1",
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = h
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
	}()

	if _, err := io.Copy(fifo, h.Stdout); err != nil {
		h.Terminate(2 * time.Second)
		return fmt.Errorf("sink: copy transcoded pcm to fifo: %w", err)
	}
	return h.Wait()
}

// AbortCurrent terminates the in-flight transcode, if any.
func (s *Sink) AbortCurrent() {
	s.mu.Lock()
	h := s.current
	s.mu.Unlock()
	if h != nil {
		h.Terminate(time.Second)
	}
}

// Stop terminates any in-flight transcode, closes the FIFO writer, and
// terminates the ingest process.
func (s *Sink) Stop() {
	s.AbortCurrent()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.fifoFile != nil {
		s.fifoFile.Close()
		s.fifoFile = nil
	}
	if s.ingest != nil {
		s.ingest.Terminate(3 * time.Second)
		s.ingest = nil
	}
	s.log.Info().Msg("rtmp sink stopped")
}
