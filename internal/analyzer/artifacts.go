package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// ArtifactDetector scans a sequence for defect signatures. Only detections whose severity
// reaches Threshold are reported. Ghosting needs per-frame correlation and only runs when
// Advanced is set.
type ArtifactDetector struct {
	Threshold float64
	Advanced  bool

	// FlickerLevel is the luma swing (0-255) both sides of a flicker frame must exceed.
	FlickerLevel float64
	// FrozenLevel is the mean luma difference below which two frames count as identical.
	FrozenLevel float64
	// SpikeRatio and SpikeFloor bound warp discontinuities: a frame difference must exceed
	// both SpikeRatio times the typical difference and SpikeFloor.
	SpikeRatio float64
	SpikeFloor float64
	// GhostSharpness is the fraction of its neighbours' edge energy below which a blended
	// frame counts as ghosted.
	GhostSharpness float64
	// ColorShiftFloor is the minimum chroma jump reported as a colour shift.
	ColorShiftFloor float64
}

func NewArtifactDetector(threshold float64, advanced bool) *ArtifactDetector {
	return &ArtifactDetector{
		Threshold:       threshold,
		Advanced:        advanced,
		FlickerLevel:    4,
		FrozenLevel:     0.25,
		SpikeRatio:      3,
		SpikeFloor:      12,
		GhostSharpness:  0.75,
		ColorShiftFloor: 6,
	}
}

func (d *ArtifactDetector) Metric() Metric {
	return ArtifactFreedom
}

func (d *ArtifactDetector) Analyze(ctx context.Context, seq *Sequence) (CoherenceScore, error) {
	score, _, err := d.Inspect(ctx, seq)
	return score, err
}

// Inspect detects artifacts and turns them into an artifact-freedom score.
func (d *ArtifactDetector) Inspect(ctx context.Context, seq *Sequence) (CoherenceScore, []ArtifactDetection, error) {
	n := seq.Len()
	if n < MinTemporalFrames {
		return seq.neutral(ArtifactFreedom), nil, nil
	}
	found, err := d.Detect(ctx, seq)
	if err != nil {
		return CoherenceScore{}, nil, err
	}

	weight := 0.0
	for _, a := range found {
		weight += a.Severity * a.Confidence
	}
	capacity := math.Max(1, float64(n-2)/4)

	return CoherenceScore{
		Metric:     ArtifactFreedom,
		Score:      similarity.Clamp01(1 - weight/capacity),
		Confidence: similarity.Clamp01(0.5 + 0.4*math.Min(1, float64(n)/24)),
		FrameRange: seq.FullRange(),
		Details:    fmt.Sprintf("%d artifacts at threshold %.2f", len(found), d.Threshold),
	}, found, nil
}

// Detect returns the artifacts found in seq, ordered by first frame and then by type.
func (d *ArtifactDetector) Detect(ctx context.Context, seq *Sequence) ([]ArtifactDetection, error) {
	if seq.Len() < MinTemporalFrames {
		return nil, nil
	}
	means := seq.MeanLuma()
	diffs := seq.FrameDiffs()

	var all []ArtifactDetection
	all = append(all, d.flicker(means)...)
	all = append(all, d.frozen(diffs)...)
	all = append(all, d.warpDiscontinuities(diffs)...)
	all = append(all, d.colorShifts(seq)...)
	if d.Advanced {
		ghosts, err := d.ghosting(ctx, seq)
		if err != nil {
			return nil, err
		}
		all = append(all, ghosts...)
	}

	out := all[:0]
	for _, a := range all {
		if a.Severity >= d.Threshold {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FrameIndices[0] != out[j].FrameIndices[0] {
			return out[i].FrameIndices[0] < out[j].FrameIndices[0]
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

// flicker finds frames whose brightness jumps away from both neighbours in opposite
// directions. Adjacent flicker frames are reported as one run.
func (d *ArtifactDetector) flicker(means []float64) []ArtifactDetection {
	steps := similarity.Diff(means)
	var out []ArtifactDetection
	var run []int
	peak := 0.0
	flush := func() {
		if len(run) == 0 {
			return
		}
		out = append(out, ArtifactDetection{
			Type:         Flicker,
			Severity:     similarity.Clamp01(peak / 40),
			Confidence:   math.Min(0.9, 0.55+0.1*float64(len(run))),
			FrameIndices: run,
			Description:  fmt.Sprintf("brightness alternates by up to %.1f luma levels around frames %d-%d", peak, run[0], run[len(run)-1]),
		})
		run, peak = nil, 0
	}
	for i := 1; i < len(steps); i++ {
		a, b := steps[i-1], steps[i]
		if a*b < 0 && math.Abs(a) > d.FlickerLevel && math.Abs(b) > d.FlickerLevel {
			run = append(run, i)
			peak = math.Max(peak, math.Min(math.Abs(a), math.Abs(b)))
			continue
		}
		flush()
	}
	flush()
	return out
}

// frozen finds repeated frames inside an otherwise moving sequence.
func (d *ArtifactDetector) frozen(diffs []float64) []ArtifactDetection {
	typical := similarity.Median(diffs)
	if typical <= 2 {
		return nil
	}
	var out []ArtifactDetection
	for i := 0; i < len(diffs); i++ {
		if diffs[i] >= d.FrozenLevel {
			continue
		}
		j := i
		for j+1 < len(diffs) && diffs[j+1] < d.FrozenLevel {
			j++
		}
		indices := make([]int, 0, j-i+2)
		for k := i; k <= j+1; k++ {
			indices = append(indices, k)
		}
		out = append(out, ArtifactDetection{
			Type:         FrozenFrame,
			Severity:     similarity.Clamp01(typical / 8),
			Confidence:   0.7,
			FrameIndices: indices,
			Description:  fmt.Sprintf("frames %d-%d repeat while the shot otherwise changes by %.1f luma levels per frame", i, j+1, typical),
		})
		i = j
	}
	return out
}

// warpDiscontinuities finds single transitions far larger than the typical one, the mark of
// a transform jumping instead of moving.
func (d *ArtifactDetector) warpDiscontinuities(diffs []float64) []ArtifactDetection {
	base := math.Max(similarity.Median(diffs), 4)
	var out []ArtifactDetection
	for i, v := range diffs {
		ratio := v / base
		if ratio <= d.SpikeRatio || v <= d.SpikeFloor {
			continue
		}
		out = append(out, ArtifactDetection{
			Type:         WarpDiscontinuity,
			Severity:     similarity.Clamp01(0.3 + (ratio-d.SpikeRatio)/10),
			Confidence:   0.7,
			FrameIndices: []int{i, i + 1},
			Description:  fmt.Sprintf("frame %d differs from frame %d %.1fx more than typical neighbours", i+1, i, ratio),
		})
	}
	return out
}

// colorShifts finds sudden changes of colour balance (chroma offsets relative to green).
func (d *ArtifactDetector) colorShifts(seq *Sequence) []ArtifactDetection {
	chroma := make([][2]float64, seq.Len())
	for i, th := range seq.Thumbs {
		var r, g, b float64
		px := th.Pix
		count := 0.0
		for y := 0; y < th.Bounds().Dy(); y++ {
			row := px[y*th.Stride:]
			for x := 0; x < th.Bounds().Dx(); x++ {
				r += float64(row[x*4])
				g += float64(row[x*4+1])
				b += float64(row[x*4+2])
				count++
			}
		}
		if count > 0 {
			chroma[i] = [2]float64{(r - g) / count, (b - g) / count}
		}
	}

	jumps := make([]float64, seq.Len()-1)
	for i := range jumps {
		jumps[i] = math.Hypot(chroma[i+1][0]-chroma[i][0], chroma[i+1][1]-chroma[i][1])
	}
	limit := math.Max(d.ColorShiftFloor, 3*similarity.Median(jumps))

	var out []ArtifactDetection
	for i, j := range jumps {
		if j <= limit {
			continue
		}
		out = append(out, ArtifactDetection{
			Type:         ColorShift,
			Severity:     similarity.Clamp01(j / 40),
			Confidence:   0.65,
			FrameIndices: []int{i, i + 1},
			Description:  fmt.Sprintf("colour balance shifts by %.1f levels between frames %d and %d", j, i, i+1),
		})
	}
	return out
}

// ghosting finds frames that look like a double exposure of their neighbours: softer than
// both yet strongly correlated with their average.
func (d *ArtifactDetector) ghosting(ctx context.Context, seq *Sequence) ([]ArtifactDetection, error) {
	sharp := make([]float64, seq.Len())
	for i, e := range seq.Edges {
		sharp[i] = e.Mean()
	}

	var out []ArtifactDetection
	for i := 1; i+1 < seq.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		around := (sharp[i-1] + sharp[i+1]) / 2
		if around < 2 || sharp[i] >= d.GhostSharpness*around {
			continue
		}
		prev, next := seq.Luma[i-1], seq.Luma[i+1]
		if meanAbsDiff(prev, next) < 3 {
			continue
		}
		blend := make([]float64, len(prev.Pix))
		for k := range blend {
			blend[k] = (prev.Pix[k] + next.Pix[k]) / 2
		}
		corr := similarity.Pearson(seq.Luma[i].Pix, blend)
		if corr < 0.9 {
			continue
		}
		out = append(out, ArtifactDetection{
			Type:         Ghosting,
			Severity:     similarity.Clamp01((1 - sharp[i]/around) / 0.5),
			Confidence:   similarity.Clamp01(0.5 + 4*(corr-0.9)),
			FrameIndices: []int{i - 1, i, i + 1},
			Description:  fmt.Sprintf("frame %d is a soft blend of frames %d and %d (edge energy %.0f%% of neighbours)", i, i-1, i+1, 100*sharp[i]/around),
		})
	}
	return out, nil
}
