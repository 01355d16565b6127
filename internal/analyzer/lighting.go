package analyzer

import (
	"context"
	"fmt"
	"math"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// LightingConsistencyAnalyzer looks for brightness changes that the surrounding frames do
// not explain. A steady fade follows its own moving average and is not penalized; a single
// frame jumping away from it is.
type LightingConsistencyAnalyzer struct {
	// Period of the moving-average baseline, in frames.
	Period int
	// Grid is the number of regions per side for the regional comparison.
	Grid int
}

func NewLightingConsistencyAnalyzer() *LightingConsistencyAnalyzer {
	return &LightingConsistencyAnalyzer{Period: 5, Grid: 3}
}

func (a *LightingConsistencyAnalyzer) Metric() Metric {
	return LightingConsistency
}

func (a *LightingConsistencyAnalyzer) Analyze(ctx context.Context, seq *Sequence) (CoherenceScore, error) {
	n := seq.Len()
	if n < MinTemporalFrames {
		return seq.neutral(LightingConsistency), nil
	}

	means := seq.MeanLuma()
	period := a.Period
	if period > n {
		period = n
	}
	residuals := centeredResiduals(means, period)
	meanRes := similarity.Mean(residuals)
	peakRes := maxOf(residuals)

	regional, err := a.regionalDeviation(ctx, seq, means)
	if err != nil {
		return CoherenceScore{}, err
	}

	score := 0.45*math.Exp(-meanRes/6) + 0.35*math.Exp(-peakRes/30) + 0.2*math.Exp(-regional/25)

	return CoherenceScore{
		Metric:     LightingConsistency,
		Score:      similarity.Clamp01(score),
		Confidence: a.confidence(seq),
		FrameRange: seq.FullRange(),
		Details: fmt.Sprintf("mean residual %.2f, peak residual %.2f, regional deviation %.2f",
			meanRes, peakRes, regional),
	}, nil
}

// regionalDeviation is the median, over frame pairs, of how far regional brightness
// changes stray from the global change. Uniform lighting changes move all regions together.
func (a *LightingConsistencyAnalyzer) regionalDeviation(ctx context.Context, seq *Sequence, means []float64) (float64, error) {
	grid := a.Grid
	if grid < 1 {
		grid = 1
	}
	regions := make([][]float64, seq.Len())
	for i, p := range seq.Luma {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		regions[i] = regionMeans(p, grid)
	}

	devs := make([]float64, 0, seq.Len()-1)
	for i := 0; i+1 < seq.Len(); i++ {
		global := means[i+1] - means[i]
		sum := 0.0
		for k := range regions[i] {
			sum += math.Abs((regions[i+1][k] - regions[i][k]) - global)
		}
		devs = append(devs, sum/float64(len(regions[i])))
	}
	return similarity.Median(devs), nil
}

// confidence drops when many pixels are clipped, since clipped areas cannot show
// brightness changes.
func (a *LightingConsistencyAnalyzer) confidence(seq *Sequence) float64 {
	clipped := 0.0
	for _, th := range seq.Thumbs {
		h := similarity.LuminanceHistogram(th)
		for i := 0; i < 4; i++ {
			clipped += h[i] + h[255-i]
		}
	}
	clipped /= float64(seq.Len())
	base := 0.6 + 0.3*math.Min(1, float64(seq.Len())/24)
	return similarity.Clamp01(base * (1 - 0.5*clipped))
}

// regionMeans splits p into grid x grid cells and returns their mean values, row major.
func regionMeans(p similarity.Plane, grid int) []float64 {
	out := make([]float64, grid*grid)
	counts := make([]int, grid*grid)
	for y := 0; y < p.Height; y++ {
		gy := y * grid / p.Height
		for x := 0; x < p.Width; x++ {
			k := gy*grid + x*grid/p.Width
			out[k] += p.At(x, y)
			counts[k]++
		}
	}
	for k := range out {
		if counts[k] > 0 {
			out[k] /= float64(counts[k])
		}
	}
	return out
}
