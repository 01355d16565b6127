package motion

import (
	"fmt"
	"math"
)

// MaxCurveSamples bounds the number of samples a single curve may hold.
const MaxCurveSamples = 100000

// MotionCurve is the per-frame sampled trajectory of a camera move. All slices have the same
// length. A curve is built once and must not be modified afterwards.
type MotionCurve struct {
	FrameRate     float64          `yaml:"frame_rate"`
	Timestamps    []float64        `yaml:"timestamps"`
	Positions     []CameraPosition `yaml:"positions"`
	Velocities    []float64        `yaml:"velocities"`
	Accelerations []float64        `yaml:"accelerations"`
	EasingValues  []float64        `yaml:"easing_values"`
}

// MotionStats summarizes a curve.
type MotionStats struct {
	PeakVelocity     float64 `yaml:"peak_velocity"`
	MeanVelocity     float64 `yaml:"mean_velocity"`
	PeakAcceleration float64 `yaml:"peak_acceleration"`
	PathLength       float64 `yaml:"path_length"`
	Displacement     float64 `yaml:"displacement"`
}

// NominalFrameCount is the sample count for a move of duration seconds at frameRate:
// round(duration * frameRate), never less than 2.
func NominalFrameCount(duration, frameRate float64) int {
	n := int(math.Round(duration * frameRate))
	if n < 2 {
		n = 2
	}
	return n
}

// BuildCurve samples spec at frameRate over its nominal frame count.
func BuildCurve(spec MovementSpec, frameRate float64) (*MotionCurve, error) {
	if err := validateFrameRate(frameRate); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return BuildCurveSamples(spec, frameRate, NominalFrameCount(spec.Duration, frameRate))
}

// BuildCurveSamples samples spec with exactly n samples spaced 1/frameRate apart. The whole
// move (including holds) is spread across the n samples, so n may differ from the nominal
// count when a clip is retimed.
func BuildCurveSamples(spec MovementSpec, frameRate float64, n int) (*MotionCurve, error) {
	if err := validateFrameRate(frameRate); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if n < 2 || n > MaxCurveSamples {
		return nil, fmt.Errorf("%w: sample count must be in [2,%d], got %d", ErrInvalidConfiguration, MaxCurveSamples, n)
	}

	positions := make([]CameraPosition, n)
	eased := make([]float64, n)
	for i := 0; i < n; i++ {
		positions[i], eased[i] = spec.Sample(float64(i) / float64(n-1))
	}

	return NewCurve(frameRate, positions, eased)
}

// NewCurve assembles a curve from sampled positions and eased progress values and derives
// velocity and acceleration from them.
func NewCurve(frameRate float64, positions []CameraPosition, easing []float64) (*MotionCurve, error) {
	if err := validateFrameRate(frameRate); err != nil {
		return nil, err
	}
	if len(positions) == 0 || len(positions) != len(easing) {
		return nil, fmt.Errorf("%w: need equal, non-zero position and easing counts, got %d and %d",
			ErrInvalidConfiguration, len(positions), len(easing))
	}

	n := len(positions)
	dt := 1.0 / frameRate
	c := &MotionCurve{
		FrameRate:     frameRate,
		Timestamps:    make([]float64, n),
		Positions:     append([]CameraPosition(nil), positions...),
		Velocities:    make([]float64, n),
		Accelerations: make([]float64, n),
		EasingValues:  append([]float64(nil), easing...),
	}

	mag := make([]float64, n)
	for i := range positions {
		c.Timestamps[i] = float64(i) * dt
		mag[i] = magnitude(positions[i], positions[0])
	}

	// Backward first difference; sample 0 takes the value of sample 1.
	for i := 1; i < n; i++ {
		c.Velocities[i] = (mag[i] - mag[i-1]) / dt
	}
	if n > 1 {
		c.Velocities[0] = c.Velocities[1]
	}

	// Central second difference. Curves shorter than three samples have no curvature and keep
	// zero acceleration.
	if n >= 3 {
		for i := 1; i < n-1; i++ {
			c.Accelerations[i] = (mag[i+1] - 2*mag[i] + mag[i-1]) / (dt * dt)
		}
		c.Accelerations[0] = c.Accelerations[1]
		c.Accelerations[n-1] = c.Accelerations[n-2]
	}

	return c, nil
}

// Progress maps sample i of n to normalized progress, pinned to 0 during the leading hold
// and to 1 during the trailing hold.
func Progress(i, n int, holdStart, holdEnd float64) float64 {
	if n <= 1 {
		return 0
	}
	return progressAt(float64(i)/float64(n-1), holdStart, holdEnd)
}

func progressAt(u, holdStart, holdEnd float64) float64 {
	if u <= holdStart {
		return 0
	}
	if u >= 1-holdEnd {
		return 1
	}
	span := 1 - holdStart - holdEnd
	if span <= 0 {
		return 1
	}
	return clamp01((u - holdStart) / span)
}

// Sample returns the pose and eased progress of s at normalized time u in [0,1].
func (s MovementSpec) Sample(u float64) (CameraPosition, float64) {
	e := s.Easing.Apply(progressAt(clamp01(u), s.HoldStart, s.HoldEnd))
	return Lerp(s.Start, s.End, e), e
}

// Len returns the number of samples.
func (c *MotionCurve) Len() int {
	return len(c.Timestamps)
}

// Span is the time between the first and the last sample.
func (c *MotionCurve) Span() float64 {
	if c.Len() == 0 {
		return 0
	}
	return c.Timestamps[c.Len()-1] - c.Timestamps[0]
}

// Stats computes aggregate motion statistics.
func (c *MotionCurve) Stats() MotionStats {
	var s MotionStats
	n := c.Len()
	if n == 0 {
		return s
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		v := math.Abs(c.Velocities[i])
		sum += v
		s.PeakVelocity = math.Max(s.PeakVelocity, v)
		s.PeakAcceleration = math.Max(s.PeakAcceleration, math.Abs(c.Accelerations[i]))
		if i > 0 {
			s.PathLength += magnitude(c.Positions[i], c.Positions[i-1])
		}
	}
	s.MeanVelocity = sum / float64(n)
	s.Displacement = magnitude(c.Positions[n-1], c.Positions[0])
	return s
}

func validateFrameRate(frameRate float64) error {
	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		return fmt.Errorf("%w: frame rate must be positive, got %v", ErrInvalidConfiguration, frameRate)
	}
	return nil
}
