package scheduler

import (
	"math"
	"testing"

	"github.com/skywavefm/onair/internal/segment"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// TestScenario3StationIDPlacement covers a station-ID jingle prepended
// before a commentary segment with the expected crossfade overlap.
func TestScenario3StationIDPlacement(t *testing.T) {
	s := New(Config{StationID: &StationID{FilePath: "station.wav", DurationSec: 0.8}})
	s.mu.Lock()
	s.cursor = 20.0
	s.mu.Unlock()

	seg := segment.Rendered{ID: "c1", Kind: segment.KindCommentary, DurationSec: 10}
	clips := s.Place(seg, 20.0)

	if len(clips) != 2 {
		t.Fatalf("Place() returned %d clips, want 2 (jingle + voice)", len(clips))
	}

	jingle, voice := clips[0], clips[1]
	if !almostEqual(jingle.StartSec, 20.0) {
		t.Errorf("jingle start = %v, want 20.0", jingle.StartSec)
	}
	if !almostEqual(jingle.DurationSec, 0.8) {
		t.Errorf("jingle duration = %v, want 0.8", jingle.DurationSec)
	}
	if jingle.Ramp == nil || jingle.Ramp.From != 1.0 || jingle.Ramp.To != 0.15 {
		t.Errorf("jingle ramp = %+v, want 1.0->0.15", jingle.Ramp)
	}

	wantVoiceStart := 20.48
	if !almostEqual(voice.StartSec, wantVoiceStart) {
		t.Errorf("voice start = %v, want %v", voice.StartSec, wantVoiceStart)
	}
	if !almostEqual(voice.DurationSec, 10) {
		t.Errorf("voice duration = %v, want 10", voice.DurationSec)
	}
}

// TestScenario4DeckAlternation covers consecutive songs alternating decks.
func TestScenario4DeckAlternation(t *testing.T) {
	s := New(Config{})
	wantDecks := []Deck{DeckA, DeckB, DeckA, DeckB}

	for i := 0; i < 4; i++ {
		seg := segment.Rendered{ID: idFor(i), Kind: segment.KindSong, Priority: 50, DurationSec: 30}
		clips := s.Place(seg, float64(i)*30)
		if len(clips) != 1 {
			t.Fatalf("Place() song %d returned %d clips, want 1", i, len(clips))
		}
		if clips[0].Deck != wantDecks[i] {
			t.Errorf("song %d deck = %v, want %v", i, clips[0].Deck, wantDecks[i])
		}
	}

	transitions := s.Transitions()
	if len(transitions) != 3 {
		t.Fatalf("Transitions() = %d, want 3", len(transitions))
	}
	for i, tr := range transitions {
		if !almostEqual(tr.WindowSec, 3.6) {
			t.Errorf("transition %d window = %v, want 3.6 (priority 50)", i, tr.WindowSec)
		}
		if tr.Curve != CurveTri {
			t.Errorf("transition %d curve = %v, want tri", i, tr.Curve)
		}
	}
}

func TestCursorMonotonicAcrossPlacements(t *testing.T) {
	s := New(Config{})
	prev := s.Cursor()
	for i := 0; i < 5; i++ {
		seg := segment.Rendered{ID: idFor(i), Kind: segment.KindSong, DurationSec: 20}
		s.Place(seg, float64(i)*20)
		cur := s.Cursor()
		if cur < prev {
			t.Fatalf("cursor decreased: %v -> %v", prev, cur)
		}
		prev = cur
	}
}

func TestSongOverlapsLatterHalfOfCommentary(t *testing.T) {
	s := New(Config{})
	commentary := segment.Rendered{ID: "c1", Kind: segment.KindCommentary, DurationSec: 10}
	s.Place(commentary, 0)

	song := segment.Rendered{ID: "s1", Kind: segment.KindSong, DurationSec: 30}
	clips := s.Place(song, 0)

	// last commentary started at 0, latter half begins at 5.0
	if !almostEqual(clips[0].StartSec, 5.0) {
		t.Errorf("song start = %v, want 5.0", clips[0].StartSec)
	}
}

func idFor(i int) string {
	names := []string{"S1", "S2", "S3", "S4", "S5", "S6"}
	return names[i]
}
