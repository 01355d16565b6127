// Package interp turns sparse keyframes into a frame sequence of the requested length.
// The neural interpolation backend lives outside this repository; CrossDissolve is the
// deterministic stand-in the pipeline uses when it is not available.
package interp

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/ivlev/shotmotion/internal/frame"
	"github.com/ivlev/shotmotion/internal/motion"
)

// Interpolator produces n frames spanning keyframes, first to last.
type Interpolator interface {
	Interpolate(ctx context.Context, keyframes []image.Image, n int) ([]image.Image, error)
}

// CrossDissolve blends linearly between neighbouring keyframes.
type CrossDissolve struct{}

// Resample is CrossDissolve without cancellation.
func Resample(keyframes []image.Image, n int) ([]image.Image, error) {
	return CrossDissolve{}.Interpolate(context.Background(), keyframes, n)
}

// Interpolate places keyframe j at output position j*(n-1)/(k-1) and dissolves between
// neighbours. Output frames keep the pixel layout of the keyframes.
func (CrossDissolve) Interpolate(ctx context.Context, keyframes []image.Image, n int) ([]image.Image, error) {
	if _, err := frame.ValidateSequence(keyframes); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: frame count must be at least 1, got %d", motion.ErrInvalidConfiguration, n)
	}

	k := len(keyframes)
	out := make([]image.Image, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if k == 1 || n == 1 {
			out[i] = frame.Clone(keyframes[0])
			continue
		}
		pos := float64(i) * float64(k-1) / float64(n-1)
		j := int(math.Floor(pos))
		if j >= k-1 {
			out[i] = frame.Clone(keyframes[k-1])
			continue
		}
		alpha := pos - float64(j)
		out[i] = blend(keyframes[j], keyframes[j+1], alpha)
	}
	return out, nil
}

func blend(a, b image.Image, alpha float64) image.Image {
	const eps = 1e-9
	if alpha < eps {
		return frame.Clone(a)
	}
	if alpha > 1-eps {
		return frame.Clone(b)
	}
	mixed := imaging.Overlay(a, b, a.Bounds().Min, alpha)
	bounds := a.Bounds()
	dst := frame.NewLike(a, bounds)
	draw.Draw(dst, bounds, mixed, image.Point{}, draw.Src)
	return dst
}
