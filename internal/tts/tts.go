// Package tts adapts the text-to-speech HTTP endpoint: it posts text and
// materializes whichever response shape comes back (raw audio bytes, a
// URL, a local path, or base64) into a WAV file.
//
// The tagged-response handling is grounded on the reference broadcaster's
// acestep.Client.extractAudioPath, generalized from ACE-Step's single
// "path or download" branch into the full four-variant union.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
)

// Adapter talks to a TTS HTTP endpoint.
type Adapter struct {
	log     zerolog.Logger
	baseURL string
	http    *http.Client
}

// New builds an Adapter targeting baseURL.
func New(log zerolog.Logger, baseURL string) *Adapter {
	return &Adapter{log: log, baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 60 * time.Second}}
}

type generateRequest struct {
	Text string `json:"text"`
}

// pathKeys and friends: JSON keys accepted in priority order per variant.
var (
	urlKeys  = []string{"audio_url", "url", "file_url", "download_url"}
	pathKeys = []string{"audio_path", "file_path", "path", "output_path"}
	b64Keys  = []string{"audio_base64", "wav_base64", "base64", "audio"}
)

// Synthesize posts text to the TTS endpoint and writes the resulting audio
// to outputPath.
func (a *Adapter) Synthesize(ctx context.Context, text, outputPath string) error {
	body, err := json.Marshal(generateRequest{Text: text})
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &onairerr.TtsError{Err: fmt.Errorf("tts endpoint returned status %d", resp.StatusCode)}
	}

	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "audio/") {
		return writeBody(resp.Body, outputPath)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return &onairerr.TtsError{Err: fmt.Errorf("decode json payload: %w", err)}
	}

	return a.materialize(ctx, payload, outputPath)
}

func (a *Adapter) materialize(ctx context.Context, payload map[string]any, outputPath string) error {
	if v, ok := firstString(payload, urlKeys); ok {
		return a.download(ctx, v, outputPath)
	}
	if v, ok := firstString(payload, pathKeys); ok {
		return copyFile(v, outputPath)
	}
	if v, ok := firstString(payload, b64Keys); ok {
		return writeBase64(v, outputPath)
	}

	keysSeen := make([]string, 0, len(payload))
	for k := range payload {
		keysSeen = append(keysSeen, k)
	}
	return &onairerr.TtsUnsupportedPayload{KeysSeen: keysSeen}
}

func firstString(payload map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func (a *Adapter) download(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	defer resp.Body.Close()
	return writeBody(resp.Body, outputPath)
}

func writeBody(r io.Reader, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return &onairerr.TtsError{Err: err}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return &onairerr.TtsError{Err: err}
	}
	return os.WriteFile(dst, data, 0o644)
}

func writeBase64(s, dst string) error {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return &onairerr.TtsError{Err: fmt.Errorf("decode base64 payload: %w", err)}
	}
	return os.WriteFile(dst, data, 0o644)
}
