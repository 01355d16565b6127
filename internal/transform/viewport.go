package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/ivlev/shotmotion/internal/motion"
)

const (
	// DefaultSubjectDistance is the assumed camera-to-subject distance in scene units.
	// DOLLY and TRACK displacements are measured against it.
	DefaultSubjectDistance = 4.0
	// SensorWidth is the 35mm-equivalent sensor width focal lengths refer to.
	SensorWidth = 36.0

	minScale = 1e-3
	maxScale = 1e3
	// Dolly moves are stopped at a tenth of the subject distance so the scale stays finite.
	minDollyDistanceRatio = 0.1
	maxAngle              = 85.0
)

// ErrNonFinite is returned when a pose or viewport contains NaN or Inf.
var ErrNonFinite = errors.New("non-finite camera parameters")

// Viewport is the 2D window a camera pose selects out of a source frame.
// Shifts are fractions of the frame width (both axes, so pixels stay square), Scale is
// the magnification about the window center and Roll rotates the window in degrees.
type Viewport struct {
	ShiftX float64 `yaml:"shift_x"`
	ShiftY float64 `yaml:"shift_y"`
	Scale  float64 `yaml:"scale"`
	Roll   float64 `yaml:"roll"`
}

// Identity is the viewport showing the frame unchanged.
func Identity() Viewport {
	return Viewport{Scale: 1}
}

// IsIdentity reports whether applying v leaves a frame unchanged.
func (v Viewport) IsIdentity() bool {
	const eps = 1e-9
	return math.Abs(v.ShiftX) < eps && math.Abs(v.ShiftY) < eps &&
		math.Abs(v.Scale-1) < eps && math.Abs(v.Roll) < eps
}

// Compose stacks o on top of v: shifts and roll add, scales multiply.
func (v Viewport) Compose(o Viewport) Viewport {
	return Viewport{
		ShiftX: v.ShiftX + o.ShiftX,
		ShiftY: v.ShiftY + o.ShiftY,
		Scale:  v.Scale * o.Scale,
		Roll:   v.Roll + o.Roll,
	}
}

// Validate rejects non-finite fields and scales outside [1e-3, 1e3].
func (v Viewport) Validate() error {
	for _, f := range []float64{v.ShiftX, v.ShiftY, v.Scale, v.Roll} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: viewport %+v", ErrNonFinite, v)
		}
	}
	if v.Scale < minScale || v.Scale > maxScale {
		return fmt.Errorf("viewport scale %v outside [%v, %v]", v.Scale, minScale, maxScale)
	}
	return nil
}

type viewportFunc func(t Transformer, ref, pos motion.CameraPosition) Viewport

// viewportFuncs is indexed by motion.MovementType.
var viewportFuncs = [...]viewportFunc{
	motion.Static: staticViewport,
	motion.Pan:    panViewport,
	motion.Tilt:   tiltViewport,
	motion.Zoom:   zoomViewport,
	motion.Dolly:  dollyViewport,
	motion.Track:  trackViewport,
}

// A movement type without a viewport function fails to compile.
var _ = [1]struct{}{}[len(viewportFuncs)-motion.NumMovementTypes]

// ViewportFor maps an absolute pose to the window it shows, relative to the reference pose
// the shot starts from. Zoom on the pose is an absolute magnification of the source frame.
func (t Transformer) ViewportFor(mt motion.MovementType, ref, pos motion.CameraPosition) (Viewport, error) {
	if !mt.Valid() {
		return Viewport{}, fmt.Errorf("%w: movement type %d", motion.ErrInvalidConfiguration, int(mt))
	}
	if !ref.IsFinite() || !pos.IsFinite() {
		return Viewport{}, ErrNonFinite
	}
	v := viewportFuncs[mt](t, ref, pos)
	if err := v.Validate(); err != nil {
		return Viewport{}, err
	}
	return v, nil
}

func staticViewport(Transformer, motion.CameraPosition, motion.CameraPosition) Viewport {
	return Identity()
}

func panViewport(_ Transformer, ref, pos motion.CameraPosition) Viewport {
	return Viewport{
		ShiftX: angleShift(pos.Yaw-ref.Yaw, pos.FocalLength),
		Scale:  pos.Zoom,
		Roll:   pos.Roll - ref.Roll,
	}
}

func tiltViewport(_ Transformer, ref, pos motion.CameraPosition) Viewport {
	// Pitching up moves the window towards the top of the frame.
	return Viewport{
		ShiftY: -angleShift(pos.Pitch-ref.Pitch, pos.FocalLength),
		Scale:  pos.Zoom,
		Roll:   pos.Roll - ref.Roll,
	}
}

func zoomViewport(_ Transformer, ref, pos motion.CameraPosition) Viewport {
	scale := pos.Zoom
	if ref.FocalLength > 0 {
		scale *= pos.FocalLength / ref.FocalLength
	}
	return Viewport{Scale: scale, Roll: pos.Roll - ref.Roll}
}

// dollyViewport approximates moving towards the subject plane by the pinhole magnification
// D / (D - dz). Parallax between depths is not modelled.
func dollyViewport(t Transformer, ref, pos motion.CameraPosition) Viewport {
	d := t.subjectDistance()
	remaining := math.Max(d-(pos.Z-ref.Z), minDollyDistanceRatio*d)
	return Viewport{Scale: pos.Zoom * d / remaining, Roll: pos.Roll - ref.Roll}
}

// trackViewport shifts the window by the sideways displacement projected onto the
// subject plane.
func trackViewport(t Transformer, ref, pos motion.CameraPosition) Viewport {
	k := focalOrDefault(pos.FocalLength) / SensorWidth / t.subjectDistance()
	return Viewport{
		ShiftX: k * (pos.X - ref.X),
		ShiftY: -k * (pos.Y - ref.Y),
		Scale:  pos.Zoom,
		Roll:   pos.Roll - ref.Roll,
	}
}

// angleShift converts a rotation in degrees to a window shift in frame widths.
func angleShift(deg, focal float64) float64 {
	deg = math.Max(-maxAngle, math.Min(maxAngle, deg))
	return math.Tan(deg*math.Pi/180) * focalOrDefault(focal) / SensorWidth
}

func focalOrDefault(f float64) float64 {
	if f <= 0 {
		return motion.DefaultFocalLength
	}
	return f
}
