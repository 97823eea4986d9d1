package playout

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/queue"
	"github.com/skywavefm/onair/internal/segment"
)

func song(id string, dur float64) segment.Rendered {
	return segment.Rendered{ID: id, Kind: segment.KindSong, FilePath: id + ".wav", DurationSec: dur, Source: segment.SourceAuto, Priority: 50, Channel: segment.ChannelMusic}
}

// TestLifecycleEventOrder is P2: enqueued, started, finished in strict order.
func TestLifecycleEventOrder(t *testing.T) {
	b := &fakeBuilder{segs: []segment.Rendered{song("s1", 3)}}
	sink := &fakeSink{}
	st := &fakeState{}
	e := New(zerolog.Nop(), Config{MaxBuildsPerTick: 1}, b, sink, queue.New(), st, nil)

	e.fillBuffer(context.Background())
	e.drainOne(context.Background(), 0)

	want := []string{"enqueued:s1", "started:s1", "finished:s1"}
	got := st.snapshot()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

// TestBufferedSecondsMonotone is P4: buffered never negative, rises when a
// build lands, and falls as items drain without a new build.
func TestBufferedSecondsMonotone(t *testing.T) {
	if got := bufferedSeconds(0, 0); got != 0 {
		t.Errorf("bufferedSeconds(0,0) = %v, want 0", got)
	}
	if got := bufferedSeconds(5, 20); got != 0 {
		t.Errorf("bufferedSeconds(5,20) = %v, want 0 (clamped, never negative)", got)
	}

	b := &fakeBuilder{segs: []segment.Rendered{song("s1", 5), song("s2", 5), song("s3", 5)}}
	sink := &fakeSink{}
	e := New(zerolog.Nop(), Config{MaxBuildsPerTick: 1, TargetBufferedSec: 100}, b, sink, queue.New(), nil, nil)
	ctx := context.Background()

	before := e.queuedDurationSeconds()
	if before < 0 {
		t.Fatalf("buffered before build = %v, want >= 0", before)
	}

	e.fillBuffer(ctx)
	afterBuild := e.queuedDurationSeconds()
	if afterBuild < before {
		t.Errorf("buffered decreased on a build landing: before=%v after=%v", before, afterBuild)
	}
	if afterBuild != 5 {
		t.Errorf("buffered after one build = %v, want 5", afterBuild)
	}

	e.fillBuffer(ctx) // second tick, still under target: builds another
	afterSecondBuild := e.queuedDurationSeconds()
	if afterSecondBuild < afterBuild {
		t.Errorf("buffered decreased on a build landing: before=%v after=%v", afterBuild, afterSecondBuild)
	}

	e.drainOne(ctx, 0) // drains without a new build: buffered must fall, never negative
	afterDrain := e.queuedDurationSeconds()
	if afterDrain > afterSecondBuild {
		t.Errorf("buffered increased on drain: %v -> %v", afterSecondBuild, afterDrain)
	}
	if afterDrain < 0 {
		t.Fatalf("buffered went negative: %v", afterDrain)
	}
}

func TestFillBufferStopsAtTarget(t *testing.T) {
	b := &fakeBuilder{segs: []segment.Rendered{song("s1", 10), song("s2", 10), song("s3", 10)}}
	sink := &fakeSink{}
	e := New(zerolog.Nop(), Config{MaxBuildsPerTick: 5, TargetBufferedSec: 15}, b, sink, queue.New(), nil, nil)

	e.fillBuffer(context.Background())

	if b.idx != 2 {
		t.Errorf("builder called %d times, want 2 (stop once queued duration >= target)", b.idx)
	}
}

func TestFillBufferFallsBackToRecoverySilenceOnBuildFailure(t *testing.T) {
	b := &fakeBuilder{err: errBoom{}}
	sink := &fakeSink{}
	st := &fakeState{}
	silenceCalls := 0
	silenceFn := func(d float64) (segment.Rendered, error) {
		silenceCalls++
		return segment.Rendered{ID: "silence", Kind: segment.KindLiner, FilePath: "silence.wav", DurationSec: d}, nil
	}
	e := New(zerolog.Nop(), Config{MaxBuildsPerTick: 1}, b, sink, queue.New(), st, silenceFn)

	e.fillBuffer(context.Background())

	if silenceCalls != 1 {
		t.Fatalf("silenceFn called %d times, want 1", silenceCalls)
	}
	item, ok := e.q.Head()
	if !ok {
		t.Fatal("expected recovery silence to be enqueued")
	}
	if !item.Segment.Pinned || item.Segment.Priority != 200 {
		t.Errorf("recovery silence = %+v, want pinned priority 200", item.Segment)
	}
}

func TestDrainOnePushesInPopOrder(t *testing.T) {
	b := &fakeBuilder{segs: []segment.Rendered{song("s1", 5), song("s2", 5)}}
	sink := &fakeSink{}
	e := New(zerolog.Nop(), Config{MaxBuildsPerTick: 2, TargetBufferedSec: 100}, b, sink, queue.New(), nil, nil)
	ctx := context.Background()

	e.fillBuffer(ctx)
	for e.drainOne(ctx, 0) {
	}

	got := sink.pushedPaths()
	want := []string{"s1.wav", "s2.wav"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("pushed = %v, want %v", got, want)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "build failed" }
