// Package commentary composes host-persona spoken-word copy from recent
// and upcoming track context and calls a chat-completion endpoint,
// falling back to a deterministic line when the key is missing or the call
// fails. Generalized from the reference broadcaster's
// ollama.CaptionGenerator (system/user prompt composition, cleanCaption)
// from a local-model caption generator into a Bearer-authenticated
// OpenAI-compatible chat client.
package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/onairerr"
)

const systemPrompt = `You are the host of a 24/7 automated radio station. Your voice is
rhythmic, broadcast-ready, and PG-13. Keep it to two or three sentences.
Never use stage directions, emoji, or markdown. Speak the copy exactly as
it should be read aloud.`

// Generator produces commentary text from track context.
type Generator struct {
	log         zerolog.Logger
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	stationName string

	mu      sync.Mutex
	history []string // bounded last-N outputs, diagnostics only
}

const historyLimit = 6

// New builds a Generator. If apiKey is empty, Generate always returns the
// deterministic fallback (boundary B2).
func New(log zerolog.Logger, baseURL, apiKey, model, stationName string) *Generator {
	return &Generator{
		log:         log,
		http:        &http.Client{Timeout: 30 * time.Second},
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		stationName: stationName,
	}
}

// Context carries the inputs needed to compose a commentary prompt.
type Context struct {
	LastTrack *catalog.Track // nil if nothing has played yet
	NextTrack *catalog.Track // nil for "a surprise drop"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate returns commentary text for ctx, falling back to a deterministic
// line on a missing key, a transport failure, or an empty completion.
func (g *Generator) Generate(ctx context.Context, tctx Context) string {
	if g.apiKey == "" {
		return g.fallback(tctx)
	}

	text, err := g.call(ctx, g.buildPrompt(tctx))
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			g.log.Warn().Err(err).Msg("commentary generation failed, using fallback")
		}
		return g.fallback(tctx)
	}

	g.remember(text)
	return text
}

func (g *Generator) buildPrompt(tctx Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Station: %s\n", g.stationName)
	if tctx.LastTrack != nil {
		fmt.Fprintf(&b, "Just played: %q by %s\n", tctx.LastTrack.Title, tctx.LastTrack.Artist)
	}
	if tctx.NextTrack != nil {
		fmt.Fprintf(&b, "Coming up: %q by %s (%s)\n", tctx.NextTrack.Title, tctx.NextTrack.Artist, genreVibe(*tctx.NextTrack))
	} else {
		b.WriteString("Coming up: a surprise drop\n")
	}
	b.WriteString("Write the host's transition commentary now.")
	return b.String()
}

// genreVibe derives a vibe tag from a track's energy/mood.
func genreVibe(t catalog.Track) string {
	switch {
	case t.Energy >= 0.8:
		return "high-energy anthem"
	case strings.Contains(strings.ToLower(t.Mood), "chill"):
		return "smooth laid-back"
	default:
		return "rhythmic momentum"
	}
}

func (g *Generator) call(ctx context.Context, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 1.5,
		MaxTokens:   2000,
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", &onairerr.CommentaryError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", &onairerr.CommentaryError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", &onairerr.CommentaryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", &onairerr.CommentaryError{Err: fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &onairerr.CommentaryError{Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &onairerr.CommentaryError{Err: fmt.Errorf("no choices in response")}
	}
	return clean(parsed.Choices[0].Message.Content), nil
}

func (g *Generator) fallback(tctx Context) string {
	lastTitle, lastArtist := "that last track", ""
	if tctx.LastTrack != nil {
		lastTitle, lastArtist = tctx.LastTrack.Title, tctx.LastTrack.Artist
	}
	nextTitle, nextArtist := "our next song", ""
	if tctx.NextTrack != nil {
		nextTitle, nextArtist = tctx.NextTrack.Title, tctx.NextTrack.Artist
	}

	var b strings.Builder
	if lastArtist != "" {
		fmt.Fprintf(&b, "That was %s by %s. ", lastTitle, lastArtist)
	} else {
		fmt.Fprintf(&b, "That was %s. ", lastTitle)
	}
	if nextArtist != "" {
		fmt.Fprintf(&b, "Now we roll into %s by %s. ", nextTitle, nextArtist)
	} else {
		fmt.Fprintf(&b, "Now we roll into %s. ", nextTitle)
	}
	fmt.Fprintf(&b, "You are listening to %s.", g.stationName)
	return b.String()
}

func (g *Generator) remember(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.history = append(g.history, text)
	if len(g.history) > historyLimit {
		g.history = g.history[len(g.history)-historyLimit:]
	}
}

// History returns the bounded last-N generated outputs, for diagnostics.
func (g *Generator) History() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.history))
	copy(out, g.history)
	return out
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
