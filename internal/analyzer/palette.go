package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// paletteLevels is the number of levels per channel of the joint RGB histogram (4^3 = 64 bins).
const paletteLevels = 4

// ColorPaletteAnalyzer compares dominant-colour histograms of neighbouring frames.
// Drift up to Tolerance is free; beyond it the score falls, faster when the drift is
// sustained over several frames.
type ColorPaletteAnalyzer struct {
	Tolerance float64
	Period    int
}

func NewColorPaletteAnalyzer() *ColorPaletteAnalyzer {
	return &ColorPaletteAnalyzer{Tolerance: 0.15, Period: 4}
}

func (a *ColorPaletteAnalyzer) Metric() Metric {
	return ColorPalette
}

func (a *ColorPaletteAnalyzer) Analyze(ctx context.Context, seq *Sequence) (CoherenceScore, error) {
	n := seq.Len()
	if n < MinTemporalFrames {
		return seq.neutral(ColorPalette), nil
	}

	hists := make([][]float64, n)
	for i, th := range seq.Thumbs {
		if err := ctx.Err(); err != nil {
			return CoherenceScore{}, err
		}
		hists[i] = paletteHistogram(th)
	}

	drift := make([]float64, n-1)
	excess := 0.0
	for i := range drift {
		drift[i] = 1 - similarity.HistogramIntersection(hists[i], hists[i+1])
		excess += math.Max(0, drift[i]-a.Tolerance)
	}
	excess /= float64(len(drift))

	sustained := 0.0
	if period := minInt(a.Period, len(drift)); period >= 2 {
		sustained = math.Max(0, maxOf(movingAverage(drift, period))-a.Tolerance)
	}
	longTerm := 1 - similarity.HistogramIntersection(hists[0], hists[n-1])

	penalty := 2*excess + 1.5*sustained + 0.25*math.Max(0, longTerm-2*a.Tolerance)

	return CoherenceScore{
		Metric:     ColorPalette,
		Score:      similarity.Clamp01(1 - penalty),
		Confidence: similarity.Clamp01(0.55 + 0.35*math.Min(1, float64(n)/24)),
		FrameRange: seq.FullRange(),
		Details: fmt.Sprintf("mean drift %.3f, sustained excess %.3f, first-to-last drift %.3f",
			similarity.Mean(drift), sustained, longTerm),
	}, nil
}

// paletteHistogram is the normalized joint RGB histogram with paletteLevels per channel.
// Each pixel is spread trilinearly over the eight cells around it so that colours near a
// level boundary do not flip between cells.
func paletteHistogram(img *image.NRGBA) []float64 {
	hist := make([]float64, paletteLevels*paletteLevels*paletteLevels)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return hist
	}
	var cell [3][2]int
	var weight [3][2]float64
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				lo, hi, frac := similarity.SoftBin(row[x*4+c], paletteLevels)
				cell[c] = [2]int{lo, hi}
				weight[c] = [2]float64{1 - frac, frac}
			}
			for i := 0; i < 8; i++ {
				r, g, bl := i&1, (i>>1)&1, (i>>2)&1
				wt := weight[0][r] * weight[1][g] * weight[2][bl]
				if wt == 0 {
					continue
				}
				hist[(cell[0][r]*paletteLevels+cell[1][g])*paletteLevels+cell[2][bl]] += wt
			}
		}
	}
	total := float64(w * h)
	for i := range hist {
		hist[i] /= total
	}
	return hist
}
