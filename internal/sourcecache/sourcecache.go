// Package sourcecache resolves a catalog track ID to a normalized,
// 60-second-max 48kHz stereo WAV on local disk, reusing a cache hit when
// the file already exists at the expected duration.
//
// The download-then-normalize shape is grounded on the reference
// broadcaster's acestep.Client (Generate/PollUntilDone/downloadAudio); the
// duration probe is grounded on Zzhihon-Bt1QFM's FFmpegProcessor.GetAudioDuration.
package sourcecache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/skywavefm/onair/internal/catalog"
	"github.com/skywavefm/onair/internal/onairerr"
	"github.com/skywavefm/onair/internal/process"
)

const (
	clipSeconds    = 60.0
	toleranceSec   = 0.25
	downloaderName = "yt-dlp"
)

// Cache produces normalized WAVs for catalog tracks, deduplicating
// concurrent fetches of the same track via singleflight.
type Cache struct {
	log     zerolog.Logger
	dir     string
	runner  *process.Runner
	http    *http.Client
	group   singleflight.Group
	ffmpeg  string
	ffprobe string
}

// New builds a Cache rooted at dir (created if absent). ffmpeg/ffprobe are
// resolved eagerly so construction fails fast with DependencyMissing.
func New(log zerolog.Logger, dir string, runner *process.Runner) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sourcecache: create dir %s: %w", dir, err)
	}
	ffmpeg, err := process.Resolve("ffmpeg", "install ffmpeg")
	if err != nil {
		return nil, err
	}
	ffprobe, err := process.Resolve("ffprobe", "install ffmpeg (bundles ffprobe)")
	if err != nil {
		return nil, err
	}
	return &Cache{
		log:     log,
		dir:     dir,
		runner:  runner,
		http:    &http.Client{Timeout: 2 * time.Minute},
		ffmpeg:  ffmpeg,
		ffprobe: ffprobe,
	}, nil
}

func (c *Cache) cachePath(trackID string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s-60s.wav", trackID))
}

// FetchTrackWav returns the cache path for track, generating and
// normalizing it first if absent or of unexpected duration.
func (c *Cache) FetchTrackWav(ctx context.Context, track catalog.Track) (string, error) {
	path := c.cachePath(track.ID)

	v, err, _ := c.group.Do(track.ID, func() (interface{}, error) {
		if dur, ok := c.probeIfExists(path); ok && dur > 0 && dur <= clipSeconds+toleranceSec {
			return path, nil
		}
		return path, c.fetchAndNormalize(ctx, track, path)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) probeIfExists(path string) (float64, bool) {
	if _, err := os.Stat(path); err != nil {
		return 0, false
	}
	dur, err := c.Duration(path)
	if err != nil {
		return 0, false
	}
	return dur, true
}

func (c *Cache) fetchAndNormalize(ctx context.Context, track catalog.Track, dest string) error {
	rawPath, err := c.download(ctx, track)
	if err != nil {
		return err
	}
	defer os.Remove(rawPath)

	tmp := dest + ".tmp"
	if _, err := c.runner.Run(ctx, c.ffmpeg,
		"-y", "-i", rawPath,
		"-t", strconv.FormatFloat(clipSeconds, 'f', -1, 64),
		"-ar", "48000", "-ac", "2",
		"-acodec", "pcm_s16le",
		tmp,
	); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// download fetches the raw source for a track by invoking the downloader
// tool on the track URL. Local file paths get no special handling; they are
// passed to the downloader like any other URL.
func (c *Cache) download(ctx context.Context, track catalog.Track) (string, error) {
	tmp, err := os.CreateTemp(c.dir, "src-*.dat")
	if err != nil {
		return "", fmt.Errorf("sourcecache: temp file: %w", err)
	}
	tmp.Close()

	if _, err := process.Resolve(downloaderName, "install yt-dlp"); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	if _, err := c.runner.Run(ctx, downloaderName, "-o", tmp.Name(), "--force-overwrites", "-x", track.URL); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// Duration probes a WAV/audio file's duration in seconds via ffprobe.
// Returns -1 on any failure; callers fall back to a track's catalog
// duration rather than propagate a probe error.
func (c *Cache) Duration(path string) (float64, error) {
	out, err := c.runner.Run(context.Background(), c.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return -1, &onairerr.ProcessError{Program: c.ffprobe, Err: err}
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if jsonErr := json.NewDecoder(bytes.NewReader(out)).Decode(&probe); jsonErr != nil {
		return -1, fmt.Errorf("sourcecache: decode ffprobe output: %w", jsonErr)
	}
	if probe.Format.Duration == "" {
		return -1, fmt.Errorf("sourcecache: no duration in ffprobe output")
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return -1, fmt.Errorf("sourcecache: parse duration: %w", err)
	}
	return d, nil
}

// fetchURL is a direct HTTP GET-to-file helper that does not go through the
// process runner. Nothing in this package calls it.
func fetchURL(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}
