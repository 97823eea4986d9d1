package sink

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/skywavefm/onair/internal/onairerr"
	"github.com/skywavefm/onair/internal/process"
)

func TestPushFileBeforeStartFails(t *testing.T) {
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), filepath.Join(t.TempDir(), "audio.fifo"), "rtmp://localhost/live/radio")
	err := s.PushFile(context.Background(), "does-not-matter.wav")
	if err == nil {
		t.Fatal("PushFile before Start should fail")
	}
	var exited *onairerr.PublisherExited
	if !errors.As(err, &exited) {
		t.Errorf("error = %v, want *onairerr.PublisherExited", err)
	}
}

func TestStartRequiresFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		t.Skip("ffmpeg present; this test only exercises the missing-binary path")
	}
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), filepath.Join(t.TempDir(), "audio.fifo"), "rtmp://localhost/live/radio")
	if err := s.Start(context.Background(), nil); err == nil {
		t.Fatal("Start() without ffmpeg on PATH should fail")
	}
}

func TestRunningFalseBeforeStart(t *testing.T) {
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), filepath.Join(t.TempDir(), "audio.fifo"), "rtmp://localhost/live/radio")
	if s.Running() {
		t.Fatal("Running() before Start should be false")
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), filepath.Join(t.TempDir(), "audio.fifo"), "rtmp://localhost/live/radio")
	s.Stop() // must not panic
}

// TestAtMostOneTranscodeActive is P3: transcodeMu serializes PushFile, so
// concurrent callers never hold the FIFO-writing critical section at once.
func TestAtMostOneTranscodeActive(t *testing.T) {
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), filepath.Join(t.TempDir(), "audio.fifo"), "rtmp://localhost/live/radio")

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.transcodeMu.Lock()
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
			s.transcodeMu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders of transcodeMu = %d, want 1", maxActive)
	}
}

// TestStopKillsChildren is P7: after Stop returns, the ingest process this
// Sink spawned no longer exists (no leaked process-watcher goroutine).
func TestStopKillsChildren(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not on PATH")
	}
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fifoPath := filepath.Join(t.TempDir(), "audio.fifo")
	s := New(zerolog.Nop(), process.New(zerolog.Nop()), fifoPath, "rtmp://127.0.0.1:1/live/radio")

	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !s.Running() {
		t.Fatal("expected Running() true after Start")
	}

	s.Stop()

	if s.Running() {
		t.Error("expected Running() false after Stop")
	}
	if s.ingest != nil && s.ingest.ExitCode() == -1 {
		t.Error("ingest process should have exited by the time Stop returns")
	}
}
