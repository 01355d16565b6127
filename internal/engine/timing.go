package engine

import (
	"math"

	"github.com/ivlev/shotmotion/internal/director"
)

// FitFade keeps crossfades shorter than every clip: a fade at least as long as the
// shortest clip is halved relative to that clip.
func FitFade(durations []float64, fade float64) float64 {
	if len(durations) < 2 || fade <= 0 {
		return fade
	}
	minDur := durations[0]
	for _, d := range durations {
		if d < minDur {
			minDur = d
		}
	}
	if fade >= minDur {
		return minDur / 2
	}
	return fade
}

// ReelLength is the running time of clips joined with crossfades of length fade: each
// transition overlaps two clips by fade seconds.
func ReelLength(durations []float64, fade float64) float64 {
	sum := 0.0
	for _, d := range durations {
		sum += d
	}
	if n := len(durations); n > 1 {
		sum -= float64(n-1) * fade
	}
	return sum
}

// ScaleDurations stretches durations proportionally so that the crossfaded reel lasts
// total seconds, then snaps each clip to the frame grid of frameRate. Snapping can move the
// reel length by up to half a frame per clip.
func ScaleDurations(durations []float64, total, fade, frameRate float64) []float64 {
	out := make([]float64, len(durations))
	copy(out, durations)
	if len(out) == 0 || total <= 0 {
		return out
	}

	target := total
	if n := len(out); n > 1 {
		target += float64(n-1) * fade
	}
	sum := 0.0
	for _, d := range out {
		sum += d
	}
	if sum <= 0 {
		return out
	}

	scale := target / sum
	for i := range out {
		out[i] *= scale
		if frameRate > 0 {
			out[i] = math.Max(1, math.Round(out[i]*frameRate)) / frameRate
		}
	}
	return out
}

// FitPlanDuration retimes every shot of plan so the reel lasts total seconds. Shots keep
// their relative lengths.
func FitPlanDuration(plan *director.Plan, total, fade, fallbackFrameRate float64) {
	durations := make([]float64, len(plan.Shots))
	for i, s := range plan.Shots {
		durations[i] = s.Duration
	}
	scaled := ScaleDurations(durations, total, fade, plan.FrameRateFor(director.Shot{}, fallbackFrameRate))
	for i := range plan.Shots {
		plan.Shots[i].Duration = scaled[i]
	}
}
