// Package scheduler places rendered segments on the virtual two-deck
// timeline: deck alternation, crossfades, voice-over overlay, and
// station-ID prepending. The state-machine shape (a monotonically
// advancing cursor, a "last placed" pointer) is grounded on the reference
// broadcaster's autodj.Scheduler; deck/crossfade timing is grounded on
// friendsincode-grimnir_radio's Director tick/schedule pattern.
package scheduler

import (
	"math"
	"sync"

	"github.com/skywavefm/onair/internal/segment"
)

// Deck identifies a virtual stereo slot used to plan music crossfades.
type Deck string

const (
	DeckA Deck = "A"
	DeckB Deck = "B"
)

// GainRamp is a linear gain envelope applied over a clip's lifetime.
type GainRamp struct {
	From, To float64
	RampSec  float64
}

// ScheduledClip is one atomic output element on the timeline.
type ScheduledClip struct {
	SegmentID       string
	ParentSegmentID string
	Channel         segment.Channel
	Deck            Deck
	FilePath        string
	StartSec        float64
	SourceOffsetSec float64
	DurationSec     float64
	BaseGain        float64
	Ramp            *GainRamp
	FadeInSec       float64
	FadeOutSec      float64
}

// EndSec returns the clip's end time on the timeline.
func (c ScheduledClip) EndSec() float64 { return c.StartSec + c.DurationSec }

// Transition records a planned deck-to-deck crossfade.
type Transition struct {
	FromSegmentID string
	ToSegmentID   string
	WindowSec     float64
	Curve         string
}

// Curve names used for transition planning.
const (
	CurveLog = "log"
	CurveExp = "exp"
	CurveTri = "tri"
)

// StationID describes the optional station-identification jingle.
type StationID struct {
	FilePath    string
	DurationSec float64
}

// Config holds the optional station-ID jingle and the carry-over flag.
type Config struct {
	StationID           *StationID
	CommentaryCarryOver bool // disabled by default; Place does not read it
}

// windowFor returns the crossfade window for a given priority.
func windowFor(priority int) float64 {
	switch {
	case priority >= 120:
		return 2.2
	case priority >= 80:
		return 2.8
	default:
		return 3.6
	}
}

func curveFor(priority int, adjacentToCommentary bool) string {
	switch {
	case adjacentToCommentary:
		return CurveLog
	case priority >= 100:
		return CurveExp
	default:
		return CurveTri
	}
}

// Scheduler assigns ScheduledClips to the timeline and tracks the
// monotonically increasing cursor.
type Scheduler struct {
	cfg Config

	mu             sync.Mutex
	cursor         float64
	nextDeck       Deck
	lastMusicClip  *ScheduledClip
	lastCommentary *ScheduledClip
	transitions    []Transition
}

// New builds a Scheduler starting its cursor at 0.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg, nextDeck: DeckA}
}

// Cursor returns the current schedule cursor (seconds from stream start).
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Transitions returns all recorded crossfade transitions so far.
func (s *Scheduler) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// NextDeck returns the deck the next placed song will be assigned to.
func (s *Scheduler) NextDeck() Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDeck
}

// Place computes the ScheduledClips for seg given the current wall-clock
// time (now, seconds from stream start) and advances the cursor.
func (s *Scheduler) Place(seg segment.Rendered, now float64) []ScheduledClip {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseStart := math.Max(s.cursor, now)

	switch seg.Kind {
	case segment.KindSong:
		return s.placeSong(seg, now, baseStart)
	case segment.KindCommentary:
		return s.placeCommentary(seg, now, baseStart)
	default:
		return s.placeLiner(seg, baseStart)
	}
}

func (s *Scheduler) placeSong(seg segment.Rendered, now, baseStart float64) []ScheduledClip {
	start := baseStart
	// Overlap rule: a song starts beneath the latter half of a preceding
	// commentary.
	if s.lastCommentary != nil {
		latterHalf := s.lastCommentary.StartSec + 0.5*s.lastCommentary.DurationSec
		start = math.Max(now, math.Min(baseStart, latterHalf))
	}

	deck := s.nextDeck
	if s.nextDeck == DeckA {
		s.nextDeck = DeckB
	} else {
		s.nextDeck = DeckA
	}

	clip := ScheduledClip{
		SegmentID:   seg.ID,
		Channel:     segment.ChannelMusic,
		Deck:        deck,
		FilePath:    seg.FilePath,
		StartSec:    start,
		DurationSec: seg.DurationSec,
		BaseGain:    1.0,
		Ramp:        &GainRamp{From: 0.70, To: 1.00, RampSec: 7},
	}

	if s.lastMusicClip != nil {
		w := windowFor(seg.Priority)
		curve := curveFor(seg.Priority, s.lastCommentary != nil)
		s.transitions = append(s.transitions, Transition{
			FromSegmentID: s.lastMusicClip.SegmentID,
			ToSegmentID:   seg.ID,
			WindowSec:     w,
			Curve:         curve,
		})
	}

	clipCopy := clip
	s.lastMusicClip = &clipCopy
	s.lastCommentary = nil
	s.advanceCursor(clip.StartSec + clip.DurationSec)
	return []ScheduledClip{clip}
}

func (s *Scheduler) placeCommentary(seg segment.Rendered, now, baseStart float64) []ScheduledClip {
	var clips []ScheduledClip
	voiceStart := baseStart

	if s.cfg.StationID != nil && s.cfg.StationID.DurationSec > 0.05 {
		d := s.cfg.StationID.DurationSec
		jingle := ScheduledClip{
			SegmentID:   seg.ID + "-station-id",
			ParentSegmentID: seg.ID,
			Channel:     segment.ChannelJingle,
			FilePath:    s.cfg.StationID.FilePath,
			StartSec:    baseStart,
			DurationSec: d,
			BaseGain:    1.0,
			Ramp:        &GainRamp{From: 1.0, To: 0.15, RampSec: d},
		}
		clips = append(clips, jingle)

		crossfade := math.Min(0.45, 0.4*d)
		voiceStart = baseStart + math.Max(0, d-crossfade)
	}

	voice := ScheduledClip{
		SegmentID:   seg.ID,
		Channel:     segment.ChannelVoice,
		FilePath:    seg.FilePath,
		StartSec:    voiceStart,
		DurationSec: seg.DurationSec,
		BaseGain:    1.0,
		Ramp:        &GainRamp{From: 0.65, To: 1.35, RampSec: 3.5},
	}
	clips = append(clips, voice)

	voiceCopy := voice
	s.lastCommentary = &voiceCopy
	s.advanceCursor(voice.StartSec + voice.DurationSec)
	return clips
}

func (s *Scheduler) placeLiner(seg segment.Rendered, baseStart float64) []ScheduledClip {
	clip := ScheduledClip{
		SegmentID:   seg.ID,
		Channel:     segment.ChannelJingle,
		FilePath:    seg.FilePath,
		StartSec:    baseStart,
		DurationSec: seg.DurationSec,
		BaseGain:    1.0,
	}
	s.advanceCursor(clip.StartSec + clip.DurationSec)
	return []ScheduledClip{clip}
}

func (s *Scheduler) advanceCursor(t float64) {
	if t > s.cursor {
		s.cursor = t
	}
}
