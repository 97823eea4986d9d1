// Package builder implements the Segment Builder: it alternates between a
// songs phase and a commentary phase, producing one RenderedSegment per
// call. The phase state machine is grounded on the
// reference broadcaster's autodj.Scheduler; the shuffle-without-immediate
// -repeat idea is grounded on autodj's deterministic track-naming/genre
// pool selection in prompts.go, adapted from a genre pool to a fixed track
// catalog.
package builder

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/audio"
	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/commentary"
	"github.com/skywavefm/onair/internal/render"
	"github.com/skywavefm/onair/internal/segment"
)

// SourceCache resolves a catalog track to a normalized local WAV and
// probes durations. Satisfied by *sourcecache.Cache.
type SourceCache interface {
	FetchTrackWav(ctx context.Context, track catalog.Track) (string, error)
	Duration(path string) (float64, error)
}

// Renderer mixes clips into an output WAV. Satisfied by *render.Renderer.
type Renderer interface {
	Render(ctx context.Context, req render.Request) error
}

// CommentaryGenerator produces host copy from track context. Satisfied by
// *commentary.Generator.
type CommentaryGenerator interface {
	Generate(ctx context.Context, tctx commentary.Context) string
}

// TTSAdapter synthesizes text to a WAV file. Satisfied by *tts.Adapter.
type TTSAdapter interface {
	Synthesize(ctx context.Context, text, outputPath string) error
}

// Phase is the builder's current intent.
type Phase string

const (
	PhaseSongs       Phase = "songs"
	PhaseCommentary  Phase = "commentary"
)

const (
	songFadeIn      = 0.4
	songFadeOut     = 0.9
	voiceGain       = 1.9
	voiceFadeIn     = 0.25
	voiceLoudnessI  = -15.0
	linerSilenceSec = 3.0
)

// Deps bundles the Builder's external collaborators.
type Deps struct {
	SourceCache     SourceCache
	Renderer        Renderer
	Commentary      CommentaryGenerator
	TTS             TTSAdapter
	WorkDir         string
	EmergencyLiners string
	Cadence         int // songs between commentaries (default 2)
}

// Builder produces the next rendered segment on demand.
type Builder struct {
	log  zerolog.Logger
	deps Deps

	phase               Phase
	order               []int
	pointer             int
	songsSinceComment   int
	lastPlayedTrackIdx  int
	lastTrack           *catalog.Track
	tracksFn            func() []catalog.Track
}

// New builds a Builder reading the live catalog snapshot via tracksFn.
func New(log zerolog.Logger, deps Deps, tracksFn func() []catalog.Track) *Builder {
	if deps.Cadence <= 0 {
		deps.Cadence = 2
	}
	return &Builder{
		log:                log,
		deps:               deps,
		phase:              PhaseSongs,
		lastPlayedTrackIdx: -1,
		tracksFn:           tracksFn,
	}
}

// Phase returns the builder's current phase.
func (b *Builder) Phase() Phase { return b.phase }

// SongsSinceCommentary returns the count of songs built since the last commentary.
func (b *Builder) SongsSinceCommentary() int { return b.songsSinceComment }

// BuildNext produces the next RenderedSegment, alternating phase per cadence.
func (b *Builder) BuildNext(ctx context.Context) (segment.Rendered, error) {
	tracks := b.tracksFn()
	if len(tracks) == 0 {
		return segment.Rendered{}, errNoTracks{}
	}
	b.ensureOrder(len(tracks))

	if b.phase == PhaseSongs {
		return b.buildSong(ctx, tracks)
	}
	return b.buildCommentary(ctx, tracks)
}

type errNoTracks struct{}

func (errNoTracks) Error() string { return "builder: no tracks in catalog" }

// ensureOrder (re)generates the shuffle order when exhausted or when the
// catalog size changed underneath it.
func (b *Builder) ensureOrder(n int) {
	if b.pointer < len(b.order) && len(b.order) == n {
		return
	}
	b.order = shuffle(n, b.lastPlayedTrackIdx)
	b.pointer = 0
}

// shuffle returns a uniformly random permutation of [0,n), swapping away an
// immediate repeat of lastIdx at position 0.
func shuffle(n int, lastIdx int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

	if n > 1 && lastIdx >= 0 && order[0] == lastIdx {
		swapWith := 1 + rand.IntN(n-1)
		order[0], order[swapWith] = order[swapWith], order[0]
	}
	return order
}

func (b *Builder) buildSong(ctx context.Context, tracks []catalog.Track) (segment.Rendered, error) {
	idx := b.order[b.pointer]
	b.pointer++
	track := tracks[idx]
	b.lastPlayedTrackIdx = idx
	b.lastTrack = &track

	raw, err := b.deps.SourceCache.FetchTrackWav(ctx, track)
	if err != nil {
		return segment.Rendered{}, err
	}

	out := filepath.Join(b.deps.WorkDir, "song-faded-"+uuid.NewString()+".wav")
	err = b.deps.Renderer.Render(ctx, render.Request{
		Clips: []render.Clip{{
			FilePath:   raw,
			FadeInSec:  songFadeIn,
			FadeOutSec: songFadeOut,
		}},
		Output: out,
	})
	if err != nil {
		return segment.Rendered{}, err
	}

	dur, err := b.deps.SourceCache.Duration(out)
	if err != nil || dur <= 0 {
		dur = float64(track.Duration)
	}

	b.songsSinceComment++
	if b.songsSinceComment >= b.deps.Cadence {
		b.phase = PhaseCommentary
	}

	return segment.Rendered{
		ID:          uuid.NewString(),
		Kind:        segment.KindSong,
		FilePath:    out,
		DurationSec: dur,
		Source:      segment.SourceAuto,
		Priority:    50,
		Channel:     segment.ChannelMusic,
		TrackID:     track.ID,
	}, nil
}

func (b *Builder) buildCommentary(ctx context.Context, tracks []catalog.Track) (segment.Rendered, error) {
	var next *catalog.Track
	if b.pointer < len(b.order) {
		t := tracks[b.order[b.pointer]]
		next = &t
	}

	text := b.deps.Commentary.Generate(ctx, commentary.Context{LastTrack: b.lastTrack, NextTrack: next})

	raw := filepath.Join(b.deps.WorkDir, "talk-raw-"+uuid.NewString()+".wav")
	if err := b.deps.TTS.Synthesize(ctx, text, raw); err != nil {
		b.log.Warn().Err(err).Msg("tts synthesis failed, falling back to liner")
		return b.buildLinerFallback(ctx)
	}
	defer os.Remove(raw)

	out := filepath.Join(b.deps.WorkDir, "talk-"+uuid.NewString()+".wav")
	err := b.deps.Renderer.Render(ctx, render.Request{
		Clips: []render.Clip{{
			FilePath:  raw,
			GainConst: voiceGain,
			FadeInSec: voiceFadeIn,
		}},
		Output:          out,
		Master:          true,
		MasterLoudnessI: voiceLoudnessI,
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("commentary render failed, falling back to liner")
		return b.buildLinerFallback(ctx)
	}

	dur, err := b.deps.SourceCache.Duration(out)
	if err != nil || dur <= 0 {
		return b.buildLinerFallback(ctx)
	}

	b.phase = PhaseSongs
	b.songsSinceComment = 0

	return segment.Rendered{
		ID:             uuid.NewString(),
		Kind:           segment.KindCommentary,
		FilePath:       out,
		DurationSec:    dur,
		CommentaryText: text,
		Source:         segment.SourceAuto,
		Priority:       50,
		Channel:        segment.ChannelVoice,
	}, nil
}

// buildLinerFallback produces a liner-kind segment from the emergency
// liners directory, or 3 seconds of silence if none is available.
func (b *Builder) buildLinerFallback(ctx context.Context) (segment.Rendered, error) {
	b.phase = PhaseSongs
	b.songsSinceComment = 0

	if path, ok := randomLiner(b.deps.EmergencyLiners); ok {
		dur, err := b.deps.SourceCache.Duration(path)
		if err != nil || dur <= 0 {
			dur = linerSilenceSec
		}
		return segment.Rendered{
			ID:          uuid.NewString(),
			Kind:        segment.KindLiner,
			FilePath:    path,
			DurationSec: dur,
			Source:      segment.SourceAuto,
			Priority:    50,
			Channel:     segment.ChannelJingle,
		}, nil
	}

	out := filepath.Join(b.deps.WorkDir, "recover-"+uuid.NewString()+".wav")
	if err := audio.WriteWAV(out, audio.SilenceSamples(linerSilenceSec)); err != nil {
		return segment.Rendered{}, err
	}
	return segment.Rendered{
		ID:          uuid.NewString(),
		Kind:        segment.KindLiner,
		FilePath:    out,
		DurationSec: linerSilenceSec,
		Source:      segment.SourceAuto,
		Priority:    50,
		Channel:     segment.ChannelJingle,
	}, nil
}

func randomLiner(dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return "", false
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return "", false
	}
	pick := files[rand.IntN(len(files))]
	return filepath.Join(dir, pick), true
}
