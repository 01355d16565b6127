// Package similarity holds the pairwise frame metrics shared by the camera system and the
// coherence analyzers. All metrics work on downscaled thumbnails and return values in [0,1].
package similarity

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/ivlev/shotmotion/internal/frame"
)

const (
	// ThumbnailSize is the longest side of the thumbnails metrics are computed on.
	ThumbnailSize = 128

	ssimWindow = 8
	colorBins  = 32

	// Weights of the lighting score: brightness agreement and contrast agreement.
	lightingMeanWeight     = 0.7
	lightingContrastWeight = 0.3
)

var (
	ssimC1 = math.Pow(0.01*255, 2)
	ssimC2 = math.Pow(0.03*255, 2)
)

// Transition holds the four pairwise scores between two frames.
type Transition struct {
	PixelSimilarity      float64 `yaml:"pixel_similarity"`
	StructuralSimilarity float64 `yaml:"structural_similarity"`
	ColorConsistency     float64 `yaml:"color_consistency"`
	LightingConsistency  float64 `yaml:"lighting_consistency"`
}

// Min returns the weakest of the four scores.
func (t Transition) Min() float64 {
	return math.Min(math.Min(t.PixelSimilarity, t.StructuralSimilarity), math.Min(t.ColorConsistency, t.LightingConsistency))
}

// Plane is a single-channel float raster, row major.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

func (p Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Mean is the average sample value.
func (p Plane) Mean() float64 {
	return Mean(p.Pix)
}

// Thumbnail downsamples img so that its longest side is at most ThumbnailSize.
// Smaller images are copied unchanged into NRGBA.
func Thumbnail(img image.Image) *image.NRGBA {
	return imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Box)
}

// Luma converts img to a Rec.601 luma plane.
func Luma(img *image.NRGBA) Plane {
	b := img.Bounds()
	p := Plane{Width: b.Dx(), Height: b.Dy(), Pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < p.Width; x++ {
			px := row[x*4 : x*4+3]
			p.Pix[y*p.Width+x] = 0.299*float64(px[0]) + 0.587*float64(px[1]) + 0.114*float64(px[2])
		}
	}
	return p
}

// CompareFrames scores the transition from a to b. Frames of different sizes are compared
// at the thumbnail size of a.
func CompareFrames(a, b image.Image) (Transition, error) {
	if a == nil || b == nil {
		return Transition{}, frame.ErrNilFrame
	}
	if a.Bounds().Empty() || b.Bounds().Empty() {
		return Transition{}, fmt.Errorf("%w: empty frame", frame.ErrShapeMismatch)
	}
	ta := Thumbnail(a)
	tb := Thumbnail(b)
	if ta.Bounds().Size() != tb.Bounds().Size() {
		tb = imaging.Resize(b, ta.Bounds().Dx(), ta.Bounds().Dy(), imaging.Box)
	}
	return CompareThumbnails(ta, tb), nil
}

// CompareThumbnails scores two thumbnails of equal size.
func CompareThumbnails(a, b *image.NRGBA) Transition {
	la, lb := Luma(a), Luma(b)
	return Transition{
		PixelSimilarity:      PixelSimilarity(a, b),
		StructuralSimilarity: StructuralSimilarity(la, lb),
		ColorConsistency:     ColorConsistency(a, b),
		LightingConsistency:  LightingConsistency(la, lb),
	}
}

// PixelSimilarity is 1 minus the mean absolute RGB difference, normalized to [0,1].
func PixelSimilarity(a, b *image.NRGBA) float64 {
	w, h := commonSize(a, b)
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride:]
		rb := b.Pix[y*b.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				sum += math.Abs(float64(ra[x*4+c]) - float64(rb[x*4+c]))
			}
		}
	}
	mae := sum / float64(w*h*3)
	return Clamp01(1 - mae/255)
}

// StructuralSimilarity is the mean SSIM over non-overlapping 8x8 luma windows.
// Planes smaller than one window are scored as a single window.
func StructuralSimilarity(a, b Plane) float64 {
	w, h := minInt(a.Width, b.Width), minInt(a.Height, b.Height)
	if w == 0 || h == 0 {
		return 0
	}
	win := ssimWindow
	if w < win || h < win {
		return Clamp01(ssimWindowScore(a, b, 0, 0, w, h))
	}
	total, n := 0.0, 0
	for y := 0; y+win <= h; y += win {
		for x := 0; x+win <= w; x += win {
			total += ssimWindowScore(a, b, x, y, win, win)
			n++
		}
	}
	return Clamp01(total / float64(n))
}

func ssimWindowScore(a, b Plane, x0, y0, w, h int) float64 {
	n := float64(w * h)
	var sa, sb float64
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			sa += a.At(x, y)
			sb += b.At(x, y)
		}
	}
	ma, mb := sa/n, sb/n
	var va, vb, cov float64
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			da, db := a.At(x, y)-ma, b.At(x, y)-mb
			va += da * da
			vb += db * db
			cov += da * db
		}
	}
	va /= n
	vb /= n
	cov /= n
	return ((2*ma*mb + ssimC1) * (2*cov + ssimC2)) /
		((ma*ma + mb*mb + ssimC1) * (va + vb + ssimC2))
}

// ColorHistogram returns normalized per-channel histograms of the RGB channels, bins per
// channel, concatenated R then G then B. Samples are split linearly between the two nearest
// bin centres, so a one-level change moves at most 1/binWidth of the mass.
func ColorHistogram(img *image.NRGBA, bins int) []float64 {
	hist := make([]float64, 3*bins)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return hist
	}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				lo, hi, frac := SoftBin(row[x*4+c], bins)
				hist[c*bins+lo] += 1 - frac
				hist[c*bins+hi] += frac
			}
		}
	}
	total := float64(w * h)
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// SoftBin locates v between the centres of its two nearest bins out of bins equal-width
// bins over [0,255]. The sample weighs 1-frac in lo and frac in hi. Below the first centre
// and above the last one lo == hi.
func SoftBin(v uint8, bins int) (lo, hi int, frac float64) {
	width := 256 / float64(bins)
	pos := (float64(v)+0.5)/width - 0.5
	if pos <= 0 {
		return 0, 0, 0
	}
	if pos >= float64(bins-1) {
		return bins - 1, bins - 1, 0
	}
	lo = int(pos)
	return lo, lo + 1, pos - float64(lo)
}

// HistogramIntersection is the sum of bin-wise minima of two histograms that each sum to
// the same mass. Identical distributions score that mass.
func HistogramIntersection(a, b []float64) float64 {
	sum := 0.0
	for i := 0; i < len(a) && i < len(b); i++ {
		sum += math.Min(a[i], b[i])
	}
	return sum
}

// ColorConsistency is the average per-channel histogram intersection of a and b.
func ColorConsistency(a, b *image.NRGBA) float64 {
	ha := ColorHistogram(a, colorBins)
	hb := ColorHistogram(b, colorBins)
	return Clamp01(HistogramIntersection(ha, hb) / 3)
}

// LightingConsistency compares overall brightness and contrast of two luma planes.
func LightingConsistency(a, b Plane) float64 {
	ma, mb := Mean(a.Pix), Mean(b.Pix)
	sa, sb := StdDev(a.Pix), StdDev(b.Pix)
	brightness := 1 - math.Abs(ma-mb)/255
	contrast := 1.0
	if hi := math.Max(sa, sb); hi > 1e-9 {
		contrast = math.Min(sa, sb) / hi
	}
	return Clamp01(lightingMeanWeight*brightness + lightingContrastWeight*contrast)
}

// LuminanceHistogram is the normalized 256-bin luminance histogram of img.
func LuminanceHistogram(img image.Image) [256]float64 {
	return imaging.Histogram(img)
}

func commonSize(a, b *image.NRGBA) (int, int) {
	return minInt(a.Bounds().Dx(), b.Bounds().Dx()), minInt(a.Bounds().Dy(), b.Bounds().Dy())
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
