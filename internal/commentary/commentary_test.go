package commentary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/catalog"
)

func track(title, artist string) *catalog.Track {
	return &catalog.Track{ID: title, Title: title, Artist: artist}
}

// TestFallbackWhenKeyMissing is boundary B2.
func TestFallbackWhenKeyMissing(t *testing.T) {
	g := New(zerolog.Nop(), "http://unused", "", "gpt-4o-mini", "Test FM")
	text := g.Generate(context.Background(), Context{
		LastTrack: track("Old Song", "Artist A"),
		NextTrack: track("New Song", "Artist B"),
	})
	want := "That was Old Song by Artist A. Now we roll into New Song by Artist B. You are listening to Test FM."
	if text != want {
		t.Errorf("Generate() = %q, want %q", text, want)
	}
}

func TestFallbackEmptySlots(t *testing.T) {
	g := New(zerolog.Nop(), "http://unused", "", "gpt-4o-mini", "Test FM")
	text := g.Generate(context.Background(), Context{})
	want := "That was that last track. Now we roll into our next song. You are listening to Test FM."
	if text != want {
		t.Errorf("Generate() = %q, want %q", text, want)
	}
}

func TestGenerateUsesChatEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing/incorrect Authorization header: %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Great set, more coming up."}}]}`))
	}))
	defer srv.Close()

	g := New(zerolog.Nop(), srv.URL, "secret", "gpt-4o-mini", "Test FM")
	text := g.Generate(context.Background(), Context{NextTrack: track("New Song", "Artist B")})
	if text != "Great set, more coming up." {
		t.Errorf("Generate() = %q, want the API's content", text)
	}
}

func TestGenerateFallsBackOnTransportError(t *testing.T) {
	g := New(zerolog.Nop(), "http://127.0.0.1:0", "secret", "gpt-4o-mini", "Test FM")
	text := g.Generate(context.Background(), Context{})
	if text == "" {
		t.Fatal("Generate() should fall back, not return empty")
	}
}

func TestGenerateFallsBackOnEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := New(zerolog.Nop(), srv.URL, "secret", "gpt-4o-mini", "Test FM")
	text := g.Generate(context.Background(), Context{LastTrack: track("X", "Y")})
	if text == "" {
		t.Fatal("Generate() should fall back on empty completion")
	}
}

func TestGenreVibe(t *testing.T) {
	tests := []struct {
		track catalog.Track
		want  string
	}{
		{catalog.Track{Energy: 0.9}, "high-energy anthem"},
		{catalog.Track{Energy: 0.3, Mood: "Chill Vibes"}, "smooth laid-back"},
		{catalog.Track{Energy: 0.5, Mood: "neutral"}, "rhythmic momentum"},
	}
	for _, tt := range tests {
		if got := genreVibe(tt.track); got != tt.want {
			t.Errorf("genreVibe(%+v) = %q, want %q", tt.track, got, tt.want)
		}
	}
}

func TestHistoryBounded(t *testing.T) {
	g := New(zerolog.Nop(), "http://unused", "", "m", "Test FM")
	for i := 0; i < 10; i++ {
		g.remember("line")
	}
	if len(g.History()) != historyLimit {
		t.Errorf("History() len = %d, want %d", len(g.History()), historyLimit)
	}
}
