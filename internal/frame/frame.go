package frame

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

var (
	// ErrEmptySequence is returned when an operation receives no frames.
	ErrEmptySequence = errors.New("empty frame sequence")
	// ErrShapeMismatch is returned when frames in one sequence differ in size or pixel layout.
	ErrShapeMismatch = errors.New("frame shape mismatch")
	// ErrNilFrame is returned when a sequence contains a nil image.
	ErrNilFrame = errors.New("nil frame")
)

// Shape describes the raster layout of a frame: height x width x channels at a given bit depth.
type Shape struct {
	Width    int
	Height   int
	Channels int
	BitDepth int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d@%dbit", s.Height, s.Width, s.Channels, s.BitDepth)
}

// ShapeOf reports the shape of img as it is stored by NewLike.
// Gray images are single channel, everything else is handled as four channels. The concrete
// type is not part of the shape: *image.RGBA, *image.YCbCr and *image.Paletted frames of one
// size compare equal, and YCbCr or Paletted frames come back from a warp as *image.RGBA.
func ShapeOf(img image.Image) Shape {
	b := img.Bounds()
	s := Shape{Width: b.Dx(), Height: b.Dy(), Channels: 4, BitDepth: 8}
	switch img.(type) {
	case *image.Gray:
		s.Channels = 1
	case *image.Gray16:
		s.Channels = 1
		s.BitDepth = 16
	case *image.RGBA64, *image.NRGBA64:
		s.BitDepth = 16
	}
	return s
}

// ValidateSequence checks that frames is non-empty and that every frame shares the shape of
// the first one.
func ValidateSequence(frames []image.Image) (Shape, error) {
	if len(frames) == 0 {
		return Shape{}, ErrEmptySequence
	}
	if frames[0] == nil {
		return Shape{}, fmt.Errorf("%w at index 0", ErrNilFrame)
	}
	want := ShapeOf(frames[0])
	if want.Width == 0 || want.Height == 0 {
		return Shape{}, fmt.Errorf("%w: frame 0 has zero area", ErrShapeMismatch)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] == nil {
			return Shape{}, fmt.Errorf("%w at index %d", ErrNilFrame, i)
		}
		if got := ShapeOf(frames[i]); got != want {
			return Shape{}, fmt.Errorf("%w: frame %d is %s, want %s", ErrShapeMismatch, i, got, want)
		}
	}
	return want, nil
}

// NewLike allocates an empty image covering r with the same pixel layout as img.
// Paletted, YCbCr and other read-only layouts map to *image.RGBA.
func NewLike(img image.Image, r image.Rectangle) draw.Image {
	switch img.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.NRGBA:
		return image.NewNRGBA(r)
	case *image.RGBA64:
		return image.NewRGBA64(r)
	case *image.NRGBA64:
		return image.NewNRGBA64(r)
	default:
		return image.NewRGBA(r)
	}
}

// Clone returns a deep copy of img in the layout chosen by NewLike.
func Clone(img image.Image) draw.Image {
	b := img.Bounds()
	dst := NewLike(img, b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	return dst
}
