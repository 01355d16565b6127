package analyzer

import (
	"context"
	"image"

	"github.com/ivlev/shotmotion/internal/frame"
	"github.com/ivlev/shotmotion/internal/similarity"
)

// MinTemporalFrames is the shortest sequence a temporal metric is measured on. Shorter
// sequences get a neutral, degraded score.
const MinTemporalFrames = 3

// Sequence is the precomputed view of a frame sequence every analyzer reads: thumbnails,
// their luma planes and Sobel edge magnitudes. It is read-only once built.
type Sequence struct {
	Shape  frame.Shape
	Thumbs []*image.NRGBA
	Luma   []similarity.Plane
	Edges  []similarity.Plane
}

// NewSequence validates frames and builds the analysis planes, checking ctx between frames.
func NewSequence(ctx context.Context, frames []image.Image) (*Sequence, error) {
	shape, err := frame.ValidateSequence(frames)
	if err != nil {
		return nil, err
	}
	seq := &Sequence{
		Shape:  shape,
		Thumbs: make([]*image.NRGBA, len(frames)),
		Luma:   make([]similarity.Plane, len(frames)),
		Edges:  make([]similarity.Plane, len(frames)),
	}
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq.Thumbs[i] = similarity.Thumbnail(f)
		seq.Luma[i] = similarity.Luma(seq.Thumbs[i])
		seq.Edges[i] = sobel(seq.Luma[i])
	}
	return seq, nil
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	return len(s.Luma)
}

// FullRange covers every frame of the sequence.
func (s *Sequence) FullRange() FrameRange {
	end := s.Len() - 1
	if end < 0 {
		end = 0
	}
	return FrameRange{Start: 0, End: end}
}

// MeanLuma returns the average luma of every frame.
func (s *Sequence) MeanLuma() []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Luma {
		out[i] = p.Mean()
	}
	return out
}

// FrameDiffs returns the mean absolute luma difference between each pair of neighbours.
func (s *Sequence) FrameDiffs() []float64 {
	if s.Len() < 2 {
		return nil
	}
	out := make([]float64, s.Len()-1)
	for i := range out {
		out[i] = meanAbsDiff(s.Luma[i], s.Luma[i+1])
	}
	return out
}

// neutral is the score reported when a metric cannot be measured.
func (s *Sequence) neutral(m Metric) CoherenceScore {
	return CoherenceScore{
		Metric:     m,
		Score:      1.0,
		Confidence: 0.3,
		FrameRange: s.FullRange(),
		Degraded:   true,
		Details:    "too few frames for temporal comparison",
	}
}

func meanAbsDiff(a, b similarity.Plane) float64 {
	n := len(a.Pix)
	if len(b.Pix) < n {
		n = len(b.Pix)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a.Pix[i] - b.Pix[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(n)
}
