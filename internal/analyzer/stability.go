package analyzer

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// CharacterStabilityTracker follows the salient content of a shot and penalizes jitter:
// frame-to-frame changes in its velocity. Smooth camera moves shift content steadily and
// score high; shaky or popping content scores low.
type CharacterStabilityTracker struct {
	Detector *ContrastDetector
	// JitterScale is the jitter (in frame fractions per frame²) at which the score falls
	// to 1/e.
	JitterScale float64
}

func NewCharacterStabilityTracker() *CharacterStabilityTracker {
	return &CharacterStabilityTracker{Detector: NewThumbnailDetector(), JitterScale: 0.02}
}

func (t *CharacterStabilityTracker) Metric() Metric {
	return CharacterStability
}

// track is the per-frame trajectory of the tracked content, in frame fractions.
type track struct {
	cx, cy       []float64 // edge-weighted centroid
	rx, ry, size []float64 // tracked region center and size
	tracked      int
	energy       float64
}

func (t *CharacterStabilityTracker) Analyze(ctx context.Context, seq *Sequence) (CoherenceScore, error) {
	n := seq.Len()
	if n < MinTemporalFrames {
		return seq.neutral(CharacterStability), nil
	}

	tr, err := t.follow(ctx, seq)
	if err != nil {
		return CoherenceScore{}, err
	}

	centroid := math.Hypot(meanAbs(secondDiff(tr.cx)), meanAbs(secondDiff(tr.cy)))
	region := math.Hypot(meanAbs(secondDiff(tr.rx)), meanAbs(secondDiff(tr.ry)))
	size := meanAbs(secondDiff(tr.size))
	jitter := 0.5*centroid + 0.35*region + 0.15*size

	confidence := 0.5 + 0.4*float64(tr.tracked)/float64(n)
	if tr.energy < 5 {
		// Flat frames carry almost no structure to track.
		confidence = 0.4
	}

	return CoherenceScore{
		Metric:     CharacterStability,
		Score:      similarity.Clamp01(math.Exp(-jitter / t.JitterScale)),
		Confidence: similarity.Clamp01(confidence),
		FrameRange: seq.FullRange(),
		Details: fmt.Sprintf("centroid jitter %.4f, region jitter %.4f, tracked %d/%d frames",
			centroid, region, tr.tracked, n),
	}, nil
}

func (t *CharacterStabilityTracker) follow(ctx context.Context, seq *Sequence) (track, error) {
	n := seq.Len()
	tr := track{
		cx: make([]float64, n), cy: make([]float64, n),
		rx: make([]float64, n), ry: make([]float64, n), size: make([]float64, n),
	}

	var current image.Rectangle
	energy := 0.0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return track{}, err
		}
		edges := seq.Edges[i]
		w, h := float64(edges.Width), float64(edges.Height)
		tr.cx[i], tr.cy[i] = edgeCentroid(edges)
		energy += edges.Mean()

		blocks := t.Detector.DetectPlane(seq.Luma[i])
		next, ok := pickBlock(blocks, current, i == 0)
		switch {
		case ok:
			current = next
			tr.tracked++
		case current.Empty():
			current = image.Rect(0, 0, edges.Width, edges.Height)
		}

		c := center(current)
		tr.rx[i], tr.ry[i] = c.X/w, c.Y/h
		tr.size[i] = math.Sqrt(float64(area(current)) / (w * h))
	}
	tr.energy = energy / float64(n)
	return tr, nil
}

// pickBlock chooses the block to follow: the largest on the first frame, afterwards the
// one overlapping the previous region most.
func pickBlock(blocks []Block, prev image.Rectangle, first bool) (image.Rectangle, bool) {
	if len(blocks) == 0 {
		return image.Rectangle{}, false
	}
	if first || prev.Empty() {
		return blocks[0].Rect, true
	}
	best, bestIoU := image.Rectangle{}, 0.0
	for _, b := range blocks {
		if v := iou(b.Rect, prev); v > bestIoU {
			best, bestIoU = b.Rect, v
		}
	}
	return best, bestIoU > 0
}

func edgeCentroid(p similarity.Plane) (float64, float64) {
	var sx, sy, sw float64
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			v := p.At(x, y)
			sx += v * (float64(x) + 0.5)
			sy += v * (float64(y) + 0.5)
			sw += v
		}
	}
	if sw < 1e-9 {
		return 0.5, 0.5
	}
	return sx / sw / float64(p.Width), sy / sw / float64(p.Height)
}

type pointF struct{ X, Y float64 }

func center(r image.Rectangle) pointF {
	return pointF{X: float64(r.Min.X+r.Max.X) / 2, Y: float64(r.Min.Y+r.Max.Y) / 2}
}

func iou(a, b image.Rectangle) float64 {
	inter := area(a.Intersect(b))
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// secondDiff returns xs[i+1] - 2xs[i] + xs[i-1] for every interior i.
func secondDiff(xs []float64) []float64 {
	if len(xs) < 3 {
		return nil
	}
	out := make([]float64, len(xs)-2)
	for i := 1; i < len(xs)-1; i++ {
		out[i-1] = xs[i+1] - 2*xs[i] + xs[i-1]
	}
	return out
}

func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Abs(x)
	}
	return sum / float64(len(xs))
}
