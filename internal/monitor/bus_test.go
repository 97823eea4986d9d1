package monitor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/skywavefm/onair/internal/audio"
)

func TestSubscribeReceivesPublishedFrames(t *testing.T) {
	b := NewBus()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	if got := b.ListenerCount(); got != 1 {
		t.Fatalf("ListenerCount() = %d, want 1", got)
	}

	frame := make([]int16, audio.FrameSamples)
	b.Publish(frame)

	select {
	case got := <-l.C:
		if len(got) != audio.FrameSamples {
			t.Errorf("frame length = %d, want %d", len(got), audio.FrameSamples)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published frame")
	}
}

func TestPublishDropsOnFullListenerBuffer(t *testing.T) {
	b := NewBus()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	frame := make([]int16, audio.FrameSamples)
	for i := 0; i < cap(l.C)+10; i++ {
		b.Publish(frame) // must never block even once the channel is full
	}
}

func TestUnsubscribeIsIdempotentAndClosesDone(t *testing.T) {
	b := NewBus()
	l := b.Subscribe()
	b.Unsubscribe(l)

	select {
	case <-l.done:
	default:
		t.Fatal("done channel should be closed after Unsubscribe")
	}

	b.Unsubscribe(l) // second call must not panic (double-close guard)

	if got := b.ListenerCount(); got != 0 {
		t.Errorf("ListenerCount() after unsubscribe = %d, want 0", got)
	}
}

func TestFeedFileRequiresFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		t.Skip("ffmpeg present; this test only exercises the missing-binary/missing-file path")
	}
	b := NewBus()
	if err := b.FeedFile(context.Background(), filepath.Join(os.TempDir(), "does-not-exist.wav")); err == nil {
		t.Fatal("FeedFile with no ffmpeg/no file should fail")
	}
}
