package playout

import (
	"math"

	"github.com/skywavefm/onair/internal/scheduler"
	"github.com/skywavefm/onair/internal/segment"
)

// envelopeLevel evaluates a scheduled clip's gain envelope at time now,
// combining its base gain, linear ramp, and edge fades
// step 2). Open Question decision: meter levels are modeled as envelope
// level only, not actual PCM amplitude (DESIGN.md).
func envelopeLevel(clip scheduler.ScheduledClip, now float64) float64 {
	if now < clip.StartSec || now > clip.EndSec() {
		return 0
	}
	elapsed := now - clip.StartSec
	remaining := clip.EndSec() - now

	level := clip.BaseGain
	if clip.Ramp != nil && clip.Ramp.RampSec > 0 {
		t := math.Min(1, elapsed/clip.Ramp.RampSec)
		level = clip.Ramp.From + t*(clip.Ramp.To-clip.Ramp.From)
	}

	if clip.FadeInSec > 0 && elapsed < clip.FadeInSec {
		level *= elapsed / clip.FadeInSec
	}
	if clip.FadeOutSec > 0 && remaining < clip.FadeOutSec {
		level *= remaining / clip.FadeOutSec
	}

	return clampUnit(level)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// channelMeters computes the per-channel meter values (max over active
// clips on that channel) at time now. masterMeter combines them.
func channelMeters(clips []scheduler.ScheduledClip, now float64) map[segment.Channel]float64 {
	levels := make(map[segment.Channel]float64)
	for _, clip := range clips {
		lvl := envelopeLevel(clip, now)
		if lvl > levels[clip.Channel] {
			levels[clip.Channel] = lvl
		}
	}
	return levels
}

// masterMeter combines per-channel levels into a single master value,
// min(1, sqrt(sum of channel^2)).
func masterMeter(levels map[segment.Channel]float64) float64 {
	sumSq := 0.0
	for _, v := range levels {
		sumSq += v * v
	}
	return clampUnit(math.Sqrt(sumSq))
}
