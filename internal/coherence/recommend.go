package coherence

import (
	"fmt"

	"github.com/ivlev/shotmotion/internal/analyzer"
)

var metricAdvice = [...]string{
	analyzer.CharacterStability:  "Subject position jitters between frames; smooth the camera path with a longer ease or stabilize the keyframes before interpolation",
	analyzer.LightingConsistency: "Brightness changes are not explained by neighbouring frames; match exposure across keyframes or lengthen the fade",
	analyzer.ColorPalette:        "Colour palette drifts beyond tolerance; colour-grade keyframes to a common reference before interpolation",
	analyzer.ArtifactFreedom:     "Temporal artifacts were detected; re-render the affected frame ranges with a denser keyframe spacing",
}

var _ = [1]struct{}{}[len(metricAdvice)-int(analyzer.NumMetrics)]

var artifactAdvice = map[analyzer.ArtifactType]string{
	analyzer.Flicker:           "Flicker around frames %d-%d; normalize per-frame exposure or drop the alternating frames",
	analyzer.Ghosting:          "Ghosting around frames %d-%d; replace cross-dissolved in-betweens with motion-compensated interpolation",
	analyzer.WarpDiscontinuity: "Warp discontinuity between frames %d-%d; check the motion curve for jumps and add hold or easing at the cut",
	analyzer.FrozenFrame:       "Frozen frames %d-%d; regenerate the duplicated in-betweens or retime the shot",
	analyzer.ColorShift:        "Colour shift between frames %d-%d; re-grade the shifted frames to match their neighbours",
}

const fallbackAdvice = "Overall coherence is below the target; review the shot's keyframes and motion settings and re-render"

// recommend builds the remediation list: one entry per weak metric in metric order, then
// one per detected artifact in detection order. Degraded scores are never weak. When the
// overall score misses the threshold the list is never empty.
func recommend(a *SequenceCoherenceAnalysis, cfg Config) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	weak := cfg.weakThreshold()
	for _, s := range a.MetricScores {
		if s.Degraded || s.Score >= weak {
			continue
		}
		add(fmt.Sprintf("%s (%s score %.2f)", metricAdvice[s.Metric], s.Metric, s.Score))
	}
	for _, d := range a.DetectedArtifacts {
		format, ok := artifactAdvice[d.Type]
		if !ok || len(d.FrameIndices) == 0 {
			continue
		}
		add(fmt.Sprintf(format, d.FrameIndices[0], d.FrameIndices[len(d.FrameIndices)-1]))
	}
	if len(out) == 0 && a.OverallScore < cfg.CoherenceThreshold {
		add(fmt.Sprintf("%s (overall %.2f < %.2f)", fallbackAdvice, a.OverallScore, cfg.CoherenceThreshold))
	}
	return out
}
