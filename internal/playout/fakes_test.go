package playout

import (
	"context"
	"errors"
	"sync"

	"github.com/skywavefm/onair/internal/segment"
)

type fakeBuilder struct {
	segs []segment.Rendered
	idx  int
	err  error
}

func (f *fakeBuilder) BuildNext(ctx context.Context) (segment.Rendered, error) {
	if f.err != nil {
		return segment.Rendered{}, f.err
	}
	if f.idx >= len(f.segs) {
		return segment.Rendered{}, errors.New("fakeBuilder: exhausted")
	}
	s := f.segs[f.idx]
	f.idx++
	return s, nil
}

type fakeSink struct {
	mu      sync.Mutex
	pushed  []string
	fail    bool
	aborted int
}

func (f *fakeSink) PushFile(ctx context.Context, path string) error {
	f.mu.Lock()
	f.pushed = append(f.pushed, path)
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("fakeSink: push failed")
	}
	return nil
}

func (f *fakeSink) AbortCurrent() {
	f.mu.Lock()
	f.aborted++
	f.mu.Unlock()
}

func (f *fakeSink) pushedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pushed))
	copy(out, f.pushed)
	return out
}

type fakeState struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeState) record(s string) {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
}

func (f *fakeState) RecordEnqueued(id, kind, filePath string)       { f.record("enqueued:" + id) }
func (f *fakeState) RecordStarted(id string)                        { f.record("started:" + id) }
func (f *fakeState) RecordFinished(id string, bufferedSec float64)  { f.record("finished:" + id) }
func (f *fakeState) RecordError(err error)                          { f.record("error:" + err.Error()) }
func (f *fakeState) SetCursorAndBuffer(cursor, bufferedSec float64) { f.record("cursor") }
func (f *fakeState) SetRunning(running bool)                        { f.record("running") }

func (f *fakeState) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
