package motion

import "math"

const (
	// DefaultFocalLength is the 35mm-equivalent focal length used when a position omits one.
	DefaultFocalLength = 50.0

	// rotationWeight converts degrees into scene units for the motion magnitude (30 deg ~ 1 unit).
	rotationWeight = 1.0 / 30.0
	zoomWeight     = 1.0
)

// CameraPosition represents the camera pose at a specific moment
type CameraPosition struct {
	X           float64 `yaml:"x" toml:"x"`
	Y           float64 `yaml:"y" toml:"y"`
	Z           float64 `yaml:"z" toml:"z"`
	Pitch       float64 `yaml:"pitch" toml:"pitch"` // degrees
	Yaw         float64 `yaml:"yaw" toml:"yaw"`     // degrees
	Roll        float64 `yaml:"roll" toml:"roll"`   // degrees
	Zoom        float64 `yaml:"zoom" toml:"zoom"`   // 1.0 = no zoom
	FocalLength float64 `yaml:"focal_length" toml:"focal_length"`
}

// DefaultPosition is the origin pose with no zoom and a normal lens.
func DefaultPosition() CameraPosition {
	return CameraPosition{Zoom: 1.0, FocalLength: DefaultFocalLength}
}

// Normalized fills an unset zoom or focal length with the defaults.
// Plan files commonly omit both.
func (p CameraPosition) Normalized() CameraPosition {
	if p.Zoom == 0 {
		p.Zoom = 1.0
	}
	if p.FocalLength == 0 {
		p.FocalLength = DefaultFocalLength
	}
	return p
}

// IsFinite reports whether every field is a finite number.
func (p CameraPosition) IsFinite() bool {
	for _, v := range p.fields() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p CameraPosition) fields() [8]float64 {
	return [8]float64{p.X, p.Y, p.Z, p.Pitch, p.Yaw, p.Roll, p.Zoom, p.FocalLength}
}

// Lerp interpolates every field of the pose between a and b.
func Lerp(a, b CameraPosition, t float64) CameraPosition {
	return CameraPosition{
		X:           lerp(a.X, b.X, t),
		Y:           lerp(a.Y, b.Y, t),
		Z:           lerp(a.Z, b.Z, t),
		Pitch:       lerp(a.Pitch, b.Pitch, t),
		Yaw:         lerp(a.Yaw, b.Yaw, t),
		Roll:        lerp(a.Roll, b.Roll, t),
		Zoom:        lerp(a.Zoom, b.Zoom, t),
		FocalLength: lerp(a.FocalLength, b.FocalLength, t),
	}
}

// Delta returns the per-field difference p - ref. Zoom is returned as a ratio.
func (p CameraPosition) Delta(ref CameraPosition) CameraPosition {
	zoom := 1.0
	if ref.Zoom != 0 {
		zoom = p.Zoom / ref.Zoom
	}
	return CameraPosition{
		X:           p.X - ref.X,
		Y:           p.Y - ref.Y,
		Z:           p.Z - ref.Z,
		Pitch:       p.Pitch - ref.Pitch,
		Yaw:         p.Yaw - ref.Yaw,
		Roll:        p.Roll - ref.Roll,
		Zoom:        zoom,
		FocalLength: p.FocalLength - ref.FocalLength,
	}
}

// Offset applies a delta produced by Delta on top of p.
func (p CameraPosition) Offset(d CameraPosition) CameraPosition {
	return CameraPosition{
		X:           p.X + d.X,
		Y:           p.Y + d.Y,
		Z:           p.Z + d.Z,
		Pitch:       p.Pitch + d.Pitch,
		Yaw:         p.Yaw + d.Yaw,
		Roll:        p.Roll + d.Roll,
		Zoom:        p.Zoom * d.Zoom,
		FocalLength: p.FocalLength + d.FocalLength,
	}
}

// magnitude is the scalar distance of p from ref: translation norm plus weighted rotation
// and zoom change.
func magnitude(p, ref CameraPosition) float64 {
	dx, dy, dz := p.X-ref.X, p.Y-ref.Y, p.Z-ref.Z
	dp, dyaw, dr := p.Pitch-ref.Pitch, p.Yaw-ref.Yaw, p.Roll-ref.Roll
	translation := math.Sqrt(dx*dx + dy*dy + dz*dz)
	rotation := math.Sqrt(dp*dp + dyaw*dyaw + dr*dr)
	return translation + rotationWeight*rotation + zoomWeight*math.Abs(p.Zoom-ref.Zoom)
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
