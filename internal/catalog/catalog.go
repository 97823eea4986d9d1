// Package catalog loads and hot-reloads the station's track list.
//
// Loading itself has no direct analog in the reference broadcaster (which
// generates tracks on demand); the file-watch reload is grounded on
// fsnotify usage in the broader example pack and the manifest-scan shape of
// friendsincode-grimnir_radio's manifest.go.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
)

// Track is a stable catalog entry, read-only after load.
type Track struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artist   string   `json:"artist"`
	URL      string   `json:"url"`
	Duration int      `json:"duration_sec"`
	Tags     []string `json:"tags"`
	Energy   float64  `json:"energy"`
	Mood     string   `json:"mood"`
	Language string   `json:"language"`
}

func normalize(t Track) (Track, error) {
	if t.ID == "" {
		return Track{}, fmt.Errorf("track missing id")
	}
	if t.Duration <= 0 {
		return Track{}, fmt.Errorf("track %s: duration_sec must be positive", t.ID)
	}
	if t.Energy < 0 || t.Energy > 1 {
		return Track{}, fmt.Errorf("track %s: energy must be in [0,1]", t.ID)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Mood == "" {
		t.Mood = "neutral"
	}
	if t.Language == "" {
		t.Language = "en"
	}
	return t, nil
}

// Load reads and validates a catalog JSON file, returning
// *onairerr.CatalogInvalid on any structural or content problem, including
// an empty catalog (spec boundary B1).
func Load(path string) ([]Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &onairerr.CatalogInvalid{Path: path, Reason: err.Error()}
	}

	var tracks []Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, &onairerr.CatalogInvalid{Path: path, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if len(tracks) == 0 {
		return nil, &onairerr.CatalogInvalid{Path: path, Reason: "catalog is empty"}
	}

	out := make([]Track, 0, len(tracks))
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		nt, err := normalize(t)
		if err != nil {
			return nil, &onairerr.CatalogInvalid{Path: path, Reason: err.Error()}
		}
		if seen[nt.ID] {
			return nil, &onairerr.CatalogInvalid{Path: path, Reason: fmt.Sprintf("duplicate track id %q", nt.ID)}
		}
		seen[nt.ID] = true
		out = append(out, nt)
	}
	return out, nil
}

// Watcher holds the current catalog snapshot and reloads it whenever the
// backing file changes, replacing the snapshot atomically. Individual Track
// values are never mutated in place, matching the "read-only after load"
// invariant: a reload swaps the whole slice.
type Watcher struct {
	log  zerolog.Logger
	path string

	mu     sync.RWMutex
	tracks []Track

	onReload func([]Track)
}

// NewWatcher loads the initial catalog and prepares a Watcher; call Start to
// begin watching for changes.
func NewWatcher(log zerolog.Logger, path string, onReload func([]Track)) (*Watcher, error) {
	tracks, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		log:      log,
		path:     path,
		tracks:   tracks,
		onReload: onReload,
	}, nil
}

// Tracks returns the current catalog snapshot.
func (w *Watcher) Tracks() []Track {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Track, len(w.tracks))
	copy(out, w.tracks)
	return out
}

// Start begins watching the catalog file for writes, reloading on change.
// It runs until the returned stop function is called.
func (w *Watcher) Start() (stop func(), err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("catalog watcher: %w", err)
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("catalog watcher: watch %s: %w", w.path, err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				tracks, err := Load(w.path)
				if err != nil {
					w.log.Error().Err(err).Msg("catalog reload failed, keeping previous snapshot")
					continue
				}
				w.mu.Lock()
				w.tracks = tracks
				w.mu.Unlock()
				w.log.Info().Int("tracks", len(tracks)).Msg("catalog reloaded")
				if w.onReload != nil {
					w.onReload(tracks)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Error().Err(err).Msg("catalog watcher error")
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		fw.Close()
	}, nil
}
