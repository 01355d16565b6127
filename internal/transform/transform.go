// Package transform renders camera poses onto still frames as 2D affine warps.
//
// Every movement type is reduced to a Viewport (shift, scale and roll of the visible window)
// and the window is resampled bilinearly. Samples that fall outside the source are clamped
// to the nearest edge pixel.
package transform

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/ivlev/shotmotion/internal/frame"
	"github.com/ivlev/shotmotion/internal/motion"
	"github.com/ivlev/shotmotion/internal/system"
)

// maxPaddedArea bounds how much larger than the source a padded copy may be, in multiples
// of the source area. Wider windows read through a clamped view instead.
const maxPaddedArea = 4

// TransformError reports which frame of a sequence could not be transformed.
type TransformError struct {
	Frame int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform frame %d: %v", e.Frame, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Transformer holds the geometry used to turn poses into viewports.
// The zero value uses DefaultSubjectDistance.
type Transformer struct {
	SubjectDistance float64
}

// New returns a Transformer with default geometry.
func New() Transformer {
	return Transformer{SubjectDistance: DefaultSubjectDistance}
}

func (t Transformer) subjectDistance() float64 {
	if t.SubjectDistance > 0 {
		return t.SubjectDistance
	}
	return DefaultSubjectDistance
}

// Apply renders src as seen from pos, for a move of type mt that started at ref.
// The result has the bounds and pixel layout of src.
func (t Transformer) Apply(src image.Image, mt motion.MovementType, ref, pos motion.CameraPosition) (draw.Image, error) {
	v, err := t.ViewportFor(mt, ref, pos)
	if err != nil {
		return nil, err
	}
	return t.Warp(src, v)
}

// Warp resamples src through viewport v.
func (t Transformer) Warp(src image.Image, v Viewport) (draw.Image, error) {
	if src == nil {
		return nil, frame.ErrNilFrame
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if v.IsIdentity() {
		return frame.Clone(src), nil
	}

	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty frame", frame.ErrShapeMismatch)
	}
	w, h := float64(b.Dx()), float64(b.Dy())

	// Window center in source coordinates and output center in destination coordinates.
	cwx := float64(b.Min.X) + w/2 + v.ShiftX*w
	cwy := float64(b.Min.Y) + h/2 + v.ShiftY*w
	dcx := float64(b.Min.X) + w/2
	dcy := float64(b.Min.Y) + h/2

	theta := v.Roll * math.Pi / 180
	sin, cos := math.Sincos(theta)
	a, bb := v.Scale*cos, v.Scale*sin
	d, e := -v.Scale*sin, v.Scale*cos
	s2d := f64.Aff3{
		a, bb, dcx - (a*cwx + bb*cwy),
		d, e, dcy - (d*cwx + e*cwy),
	}

	need := sourceFootprint(b, cwx, cwy, dcx, dcy, v.Scale, sin, cos)
	dst := frame.NewLike(src, b)

	if need.In(b) {
		draw.BiLinear.Transform(dst, s2d, src, b, draw.Src, nil)
		return dst, nil
	}

	if frame.ShapeOf(src).BitDepth == 8 && area(need) <= maxPaddedArea*area(b) {
		padded := padEdges(src, need)
		draw.BiLinear.Transform(dst, s2d, padded, need, draw.Src, nil)
		system.PutImage(padded)
		return dst, nil
	}

	draw.BiLinear.Transform(dst, s2d, clampedImage{src: src, view: need}, need, draw.Src, nil)
	return dst, nil
}

// sourceFootprint is the source rectangle the destination frame maps back onto, widened by
// two pixels so bilinear taps at the border stay inside it.
func sourceFootprint(b image.Rectangle, cwx, cwy, dcx, dcy, scale, sin, cos float64) image.Rectangle {
	corners := [4][2]float64{
		{float64(b.Min.X), float64(b.Min.Y)},
		{float64(b.Max.X), float64(b.Min.Y)},
		{float64(b.Min.X), float64(b.Max.Y)},
		{float64(b.Max.X), float64(b.Max.Y)},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		ux, uy := (c[0]-dcx)/scale, (c[1]-dcy)/scale
		sx := cwx + cos*ux - sin*uy
		sy := cwy + sin*ux + cos*uy
		minX, maxX = math.Min(minX, sx), math.Max(maxX, sx)
		minY, maxY = math.Min(minY, sy), math.Max(maxY, sy)
	}
	r := image.Rect(
		int(math.Floor(minX))-2, int(math.Floor(minY))-2,
		int(math.Ceil(maxX))+2, int(math.Ceil(maxY))+2,
	)
	return r.Union(b)
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

// padEdges copies src into a pooled RGBA covering r and replicates the border pixels
// outwards over the rest of it.
func padEdges(src image.Image, r image.Rectangle) *image.RGBA {
	b := src.Bounds()
	dst := system.GetImage(r)
	draw.Draw(dst, b, src, b.Min, draw.Src)

	// Rows inside the source: extend left and right.
	for y := b.Min.Y; y < b.Max.Y; y++ {
		left := dst.RGBAAt(b.Min.X, y)
		right := dst.RGBAAt(b.Max.X-1, y)
		for x := r.Min.X; x < b.Min.X; x++ {
			dst.SetRGBA(x, y, left)
		}
		for x := b.Max.X; x < r.Max.X; x++ {
			dst.SetRGBA(x, y, right)
		}
	}

	// Rows above and below: copy the nearest full padded row.
	rowLen := r.Dx() * 4
	top := dst.PixOffset(r.Min.X, b.Min.Y)
	bottom := dst.PixOffset(r.Min.X, b.Max.Y-1)
	for y := r.Min.Y; y < b.Min.Y; y++ {
		off := dst.PixOffset(r.Min.X, y)
		copy(dst.Pix[off:off+rowLen], dst.Pix[top:top+rowLen])
	}
	for y := b.Max.Y; y < r.Max.Y; y++ {
		off := dst.PixOffset(r.Min.X, y)
		copy(dst.Pix[off:off+rowLen], dst.Pix[bottom:bottom+rowLen])
	}
	return dst
}

// clampedImage extends src infinitely by edge replication, reporting view as its bounds.
type clampedImage struct {
	src  image.Image
	view image.Rectangle
}

func (c clampedImage) ColorModel() color.Model {
	return c.src.ColorModel()
}

func (c clampedImage) Bounds() image.Rectangle {
	return c.view
}

func (c clampedImage) At(x, y int) color.Color {
	b := c.src.Bounds()
	x = clampInt(x, b.Min.X, b.Max.X-1)
	y = clampInt(y, b.Min.Y, b.Max.Y-1)
	return c.src.At(x, y)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
