// Package renderer turns a per-frame viewport track into an ffmpeg zoompan filter, so a
// single still keyframe can be rendered at source resolution by ffmpeg instead of warping
// every frame in memory.
package renderer

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/shotmotion/internal/transform"
)

// ErrUnsupported marks tracks zoompan cannot express: rolled windows and windows larger
// than the source.
var ErrUnsupported = errors.New("viewport track not expressible as zoompan")

// CameraState is the window at one output frame, in source pixels.
type CameraState struct {
	Frame int
	X     float64 // window center
	Y     float64
	Zoom  float64 // 1.0 = full frame
}

// StateFor converts a viewport into a window over a width x height source.
func StateFor(frame int, v transform.Viewport, width, height int) (CameraState, error) {
	if math.Abs(v.Roll) > 1e-9 {
		return CameraState{}, fmt.Errorf("%w: frame %d rolls by %.3f degrees", ErrUnsupported, frame, v.Roll)
	}
	if v.Scale < 1-1e-9 {
		return CameraState{}, fmt.Errorf("%w: frame %d zooms out to %.3f", ErrUnsupported, frame, v.Scale)
	}
	w := float64(width)
	return CameraState{
		Frame: frame,
		X:     w/2 + v.ShiftX*w,
		Y:     float64(height)/2 + v.ShiftY*w,
		Zoom:  math.Max(1, v.Scale),
	}, nil
}

// Keyframes reduces a track to the states where linear interpolation between the kept
// neighbours would be off by more than tolerance pixels (window center) or tolerance/100
// (zoom). The first and last frame are always kept.
func Keyframes(track []transform.Viewport, width, height int, tolerance float64) ([]CameraState, error) {
	if len(track) == 0 {
		return nil, errors.New("empty viewport track")
	}
	states := make([]CameraState, len(track))
	for i, v := range track {
		s, err := StateFor(i, v, width, height)
		if err != nil {
			return nil, err
		}
		states[i] = s
	}

	keep := make([]bool, len(states))
	keep[0], keep[len(states)-1] = true, true
	simplify(states, 0, len(states)-1, tolerance, keep)

	out := make([]CameraState, 0, len(states))
	for i, s := range states {
		if keep[i] {
			out = append(out, s)
		}
	}
	return out, nil
}

// simplify keeps the state farthest from the chord between lo and hi, recursively, while
// that distance exceeds tolerance.
func simplify(states []CameraState, lo, hi int, tolerance float64, keep []bool) {
	if hi-lo < 2 {
		return
	}
	worst, at := 0.0, -1
	for i := lo + 1; i < hi; i++ {
		d := deviation(InterpolateKeyframes([]CameraState{states[lo], states[hi]}, float64(i)), states[i])
		if d > worst {
			worst, at = d, i
		}
	}
	if at < 0 || worst <= tolerance {
		return
	}
	keep[at] = true
	simplify(states, lo, at, tolerance, keep)
	simplify(states, at, hi, tolerance, keep)
}

func deviation(a, b CameraState) float64 {
	return math.Max(math.Hypot(a.X-b.X, a.Y-b.Y), 100*math.Abs(a.Zoom-b.Zoom))
}

// InterpolateKeyframes calculates the camera state at a (fractional) frame by linear
// interpolation between keyframes, holding the ends.
func InterpolateKeyframes(keyframes []CameraState, frame float64) CameraState {
	if len(keyframes) == 0 {
		return CameraState{Zoom: 1.0}
	}

	first, last := keyframes[0], keyframes[len(keyframes)-1]
	if frame <= float64(first.Frame) {
		return first
	}
	if frame >= float64(last.Frame) {
		return last
	}

	// Find surrounding keyframes
	prev, next := first, last
	for i := 0; i < len(keyframes)-1; i++ {
		if frame >= float64(keyframes[i].Frame) && frame < float64(keyframes[i+1].Frame) {
			prev, next = keyframes[i], keyframes[i+1]
			break
		}
	}

	t := (frame - float64(prev.Frame)) / float64(next.Frame-prev.Frame)
	return CameraState{
		Frame: int(math.Round(frame)),
		X:     lerp(prev.X, next.X, t),
		Y:     lerp(prev.Y, next.Y, t),
		Zoom:  lerp(prev.Zoom, next.Zoom, t),
	}
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
