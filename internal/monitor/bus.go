// Package monitor is an operator-only, read-only tap of the post-mix master
// bus: the Playout Engine feeds it the same PCM the RTMP sink is fed, and it
// fans that PCM out over low-latency WebRTC so an operator can listen in a
// browser tab without depending on the RTMP relay being reachable. Grounded
// on the reference broadcaster's stream.Broadcaster/stream.WebRTCHandler,
// kept close to their original shape since a fan-out PCM tap is
// domain-invariant, and repurposed from "the only output" to "a secondary
// monitoring output alongside the sink".
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/skywavefm/onair/internal/audio"
)

// Bus fans out master-mix PCM frames from one feeder to N listeners. Slow
// listeners get frames dropped rather than blocking the feed.
type Bus struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives 20ms PCM frames from the Bus.
type Listener struct {
	C    chan []int16
	done chan struct{}
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[*Listener]struct{})}
}

// Subscribe registers a new listener.
func (b *Bus) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, 150), // ~3s of buffer at 20ms/frame
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Bus) Unsubscribe(l *Listener) {
	b.mu.Lock()
	if _, ok := b.listeners[l]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish fans frame out to every listener, dropping it for any listener
// whose buffer is full.
func (b *Bus) Publish(frame []int16) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := range b.listeners {
		select {
		case l.C <- frame:
		default:
		}
	}
}

// FeedFile decodes path and publishes it to the Bus one 20ms frame at a
// time, paced to wall-clock so listeners hear the same cadence the sink's
// FIFO enforces on the RTMP side. It returns once the file is exhausted or
// ctx is cancelled; a feed failure here never affects the sink push it runs
// alongside, so callers should treat its error as log-only.
func (b *Bus) FeedFile(ctx context.Context, path string) error {
	samples, err := audio.DecodeFile(path)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for offset := 0; offset < len(samples); offset += audio.FrameSamples {
		end := offset + audio.FrameSamples
		if end > len(samples) {
			end = len(samples)
		}
		frame := make([]int16, audio.FrameSamples)
		copy(frame, samples[offset:end])

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Publish(frame)
		}
	}
	return nil
}
