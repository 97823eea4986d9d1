// Package render invokes ffmpeg to mix a set of input clips into a single
// output WAV, honoring per-clip source windows, delays, gain envelopes, and
// fades, with an optional mastering chain for the final master mix.
// Generalized from the reference decoder's single-file ffmpeg invocation
// (internal/audio/decoder.go) to an N-input filter graph.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skywavefm/onair/internal/onairerr"
	"github.com/skywavefm/onair/internal/process"
)

// Clip describes one input to a render pass.
type Clip struct {
	FilePath      string
	StartSec      float64// delay on the output timeline
	SourceOffset  float64 // seek into the source file
	DurationSec   float64 // 0 means "to end of source"
	GainConst     float64 // used when HasRamp is false; 0 means 1.0 (unset)
	RampFrom      float64
	RampTo        float64
	RampSec       float64
	HasRamp       bool
	FadeInSec     float64
	FadeOutSec    float64
}

// Request describes one render invocation.
type Request struct {
	Clips           []Clip
	Output          string
	Master          bool    // apply loudness-normalize + compressor + limiter chain
	MasterLoudnessI float64 // loudnorm integrated target in LUFS; 0 means defaultMasterLoudnessI
}

const defaultMasterLoudnessI = -16.0

// Renderer mixes clips into WAV files via ffmpeg.
type Renderer struct {
	log    zerolog.Logger
	runner *process.Runner
	ffmpeg string
}

// New builds a Renderer, resolving ffmpeg eagerly.
func New(log zerolog.Logger, runner *process.Runner) (*Renderer, error) {
	ffmpeg, err := process.Resolve("ffmpeg", "install ffmpeg")
	if err != nil {
		return nil, err
	}
	return &Renderer{log: log, runner: runner, ffmpeg: ffmpeg}, nil
}

// Render mixes req.Clips into req.Output. Fails with *onairerr.RenderError
// when ffmpeg exits non-zero.
func (r *Renderer) Render(ctx context.Context, req Request) error {
	if len(req.Clips) == 0 {
		return &onairerr.RenderError{Op: "render", Err: fmt.Errorf("no clips supplied")}
	}

	args := []string{"-y"}
	for _, c := range req.Clips {
		if c.SourceOffset > 0 {
			args = append(args, "-ss", fmt.Sprintf("%.3f", c.SourceOffset))
		}
		if c.DurationSec > 0 {
			args = append(args, "-t", fmt.Sprintf("%.3f", c.DurationSec))
		}
		args = append(args, "-i", c.FilePath)
	}

	loudnessI := req.MasterLoudnessI
	if loudnessI == 0 {
		loudnessI = defaultMasterLoudnessI
	}
	filter, outLabel := buildFilterGraph(req.Clips, req.Master, loudnessI)
	args = append(args, "-filter_complex", filter, "-map", "["+outLabel+"]", "-ar", "48000", "-ac", "2", "-acodec", "pcm_s16le", req.Output)

	if _, err := r.runner.Run(ctx, r.ffmpeg, args...); err != nil {
		return &onairerr.RenderError{Op: "render", Err: err}
	}
	return nil
}

// buildFilterGraph composes a filter_complex string applying per-clip
// delay, gain/ramp, and fade, then sums (amix) into a labeled output; when
// master is set, appends loudnorm + acompressor + alimiter at loudnessI LUFS.
func buildFilterGraph(clips []Clip, master bool, loudnessI float64) (string, string) {
	var parts []string
	var labels []string

	for i, c := range clips {
		label := fmt.Sprintf("c%d", i)
		var chain []string

		if c.HasRamp && c.RampSec > 0 {
			chain = append(chain, fmt.Sprintf(
				"volume='if(gte(t,%.4f),%.4f,%.4f+(%.4f-%.4f)*t/%.4f)':eval=frame",
				c.RampSec, c.RampTo, c.RampFrom, c.RampTo, c.RampFrom, c.RampSec,
			))
		} else if c.GainConst > 0 && c.GainConst != 1.0 {
			chain = append(chain, fmt.Sprintf("volume=%.4f", c.GainConst))
		}

		if c.FadeInSec > 0 {
			chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%.3f", c.FadeInSec))
		}
		if c.FadeOutSec > 0 && c.DurationSec > c.FadeOutSec {
			st := c.DurationSec - c.FadeOutSec
			chain = append(chain, fmt.Sprintf("afade=t=out:st=%.3f:d=%.3f", st, c.FadeOutSec))
		}
		if c.StartSec > 0 {
			chain = append(chain, fmt.Sprintf("adelay=%d|%d", int(c.StartSec*1000), int(c.StartSec*1000)))
		}

		filterExpr := fmt.Sprintf("[%d:a]", i)
		if len(chain) > 0 {
			filterExpr += strings.Join(chain, ",") + fmt.Sprintf("[%s]", label)
		} else {
			filterExpr += fmt.Sprintf("anull[%s]", label)
		}
		parts = append(parts, filterExpr)
		labels = append(labels, fmt.Sprintf("[%s]", label))
	}

	mixLabel := "mix"
	mix := fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[%s]", strings.Join(labels, ""), len(clips), mixLabel)
	parts = append(parts, mix)

	if master {
		parts = append(parts, fmt.Sprintf("[mix]loudnorm=I=%.2f:TP=-1.5:LRA=11,acompressor=threshold=-18dB:ratio=3:attack=5:release=100,alimiter=limit=0.98[mastered]", loudnessI))
		return strings.Join(parts, ";"), "mastered"
	}
	return strings.Join(parts, ";"), mixLabel
}
