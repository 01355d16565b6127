package motion

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidConfiguration marks caller errors: bad durations, frame rates, hold fractions or
// poses. These are never retried.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// MovementType is the kind of camera move. Each type drives a different frame warp.
type MovementType int

const (
	Static MovementType = iota
	Pan
	Tilt
	Zoom
	Dolly
	Track
	numMovementTypes
)

var movementNames = [...]string{"static", "pan", "tilt", "zoom", "dolly", "track"}

var _ = [1]struct{}{}[len(movementNames)-int(numMovementTypes)]

// NumMovementTypes is the number of movement types; dispatch tables are sized with it.
const NumMovementTypes = int(numMovementTypes)

// MovementTypes lists every movement type.
func MovementTypes() []MovementType {
	out := make([]MovementType, 0, numMovementTypes)
	for t := Static; t < numMovementTypes; t++ {
		out = append(out, t)
	}
	return out
}

func (t MovementType) Valid() bool {
	return t >= 0 && t < numMovementTypes
}

func (t MovementType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("movement(%d)", int(t))
	}
	return movementNames[t]
}

func (t MovementType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown movement type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *MovementType) UnmarshalText(text []byte) error {
	parsed, err := ParseMovementType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseMovementType parses a case-insensitive movement name.
func ParseMovementType(s string) (MovementType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range movementNames {
		if name == key {
			return MovementType(i), nil
		}
	}
	return Static, fmt.Errorf("%w: unknown movement type %q", ErrInvalidConfiguration, s)
}

// MovementSpec describes one camera move from Start to End over Duration seconds.
// HoldStart and HoldEnd are fractions of the duration spent pinned at the start and end pose.
type MovementSpec struct {
	Type      MovementType   `yaml:"type" toml:"type"`
	Start     CameraPosition `yaml:"start" toml:"start"`
	End       CameraPosition `yaml:"end" toml:"end"`
	Duration  float64        `yaml:"duration" toml:"duration"`
	Easing    Easing         `yaml:"easing" toml:"easing"`
	HoldStart float64        `yaml:"hold_start,omitempty" toml:"hold_start,omitempty"`
	HoldEnd   float64        `yaml:"hold_end,omitempty" toml:"hold_end,omitempty"`
}

// Validate checks durations, hold fractions and pose finiteness.
func (s MovementSpec) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: unknown movement type %d", ErrInvalidConfiguration, int(s.Type))
	}
	if !s.Easing.Valid() {
		return fmt.Errorf("%w: unknown easing %d", ErrInvalidConfiguration, int(s.Easing))
	}
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidConfiguration, s.Duration)
	}
	if !inUnit(s.HoldStart) || !inUnit(s.HoldEnd) {
		return fmt.Errorf("%w: hold fractions must be in [0,1], got start=%v end=%v",
			ErrInvalidConfiguration, s.HoldStart, s.HoldEnd)
	}
	if s.HoldStart+s.HoldEnd > 1.0+1e-9 {
		return fmt.Errorf("%w: hold_start + hold_end must not exceed 1, got %v",
			ErrInvalidConfiguration, s.HoldStart+s.HoldEnd)
	}
	poses := []struct {
		name string
		p    CameraPosition
	}{{"start", s.Start}, {"end", s.End}}
	for _, pose := range poses {
		name, p := pose.name, pose.p
		if !p.IsFinite() {
			return fmt.Errorf("%w: %s position has non-finite fields", ErrInvalidConfiguration, name)
		}
		if p.Zoom <= 0 || p.FocalLength <= 0 {
			return fmt.Errorf("%w: %s position needs positive zoom and focal length, got zoom=%v focal=%v",
				ErrInvalidConfiguration, name, p.Zoom, p.FocalLength)
		}
	}
	return nil
}

// Normalized returns a copy with default zoom and focal length filled in on both poses.
func (s MovementSpec) Normalized() MovementSpec {
	s.Start = s.Start.Normalized()
	s.End = s.End.Normalized()
	return s
}

// WithEasing returns a copy of s using e.
func (s MovementSpec) WithEasing(e Easing) MovementSpec {
	s.Easing = e
	return s
}

// WithHold returns a copy of s with the given hold fractions.
func (s MovementSpec) WithHold(start, end float64) MovementSpec {
	s.HoldStart = start
	s.HoldEnd = end
	return s
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func newSpec(t MovementType, start, end CameraPosition, duration float64) MovementSpec {
	return MovementSpec{Type: t, Start: start, End: end, Duration: duration, Easing: EaseInOut}
}

// NewPan pans between two yaw angles (degrees).
func NewPan(fromYaw, toYaw, duration float64) MovementSpec {
	start, end := DefaultPosition(), DefaultPosition()
	start.Yaw, end.Yaw = fromYaw, toYaw
	return newSpec(Pan, start, end, duration)
}

// NewTilt tilts between two pitch angles (degrees).
func NewTilt(fromPitch, toPitch, duration float64) MovementSpec {
	start, end := DefaultPosition(), DefaultPosition()
	start.Pitch, end.Pitch = fromPitch, toPitch
	return newSpec(Tilt, start, end, duration)
}

// NewZoom zooms between two magnification factors.
func NewZoom(fromZoom, toZoom, duration float64) MovementSpec {
	start, end := DefaultPosition(), DefaultPosition()
	start.Zoom, end.Zoom = fromZoom, toZoom
	return newSpec(Zoom, start, end, duration)
}

// NewDolly moves the camera along the optical axis between two Z positions.
func NewDolly(fromZ, toZ, duration float64) MovementSpec {
	start, end := DefaultPosition(), DefaultPosition()
	start.Z, end.Z = fromZ, toZ
	return newSpec(Dolly, start, end, duration)
}

// NewTrack moves the camera sideways between two X positions.
func NewTrack(fromX, toX, duration float64) MovementSpec {
	start, end := DefaultPosition(), DefaultPosition()
	start.X, end.X = fromX, toX
	return newSpec(Track, start, end, duration)
}

// NewStatic holds the default pose for duration seconds.
func NewStatic(duration float64) MovementSpec {
	return MovementSpec{Type: Static, Start: DefaultPosition(), End: DefaultPosition(), Duration: duration, Easing: Linear}
}

// BlendMode controls how the movements of a CompoundMovement are combined.
type BlendMode int

const (
	// Additive plays every movement over the same frame window and sums their effects.
	Additive BlendMode = iota
	// Sequential plays the movements back to back, splitting the window by duration.
	Sequential
	numBlendModes
)

var blendModeNames = [...]string{"additive", "sequential"}

var _ = [1]struct{}{}[len(blendModeNames)-int(numBlendModes)]

func (m BlendMode) Valid() bool {
	return m >= 0 && m < numBlendModes
}

func (m BlendMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("blend(%d)", int(m))
	}
	return blendModeNames[m]
}

func (m BlendMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown blend mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *BlendMode) UnmarshalText(text []byte) error {
	key := strings.ToLower(strings.TrimSpace(string(text)))
	if key == "" {
		*m = Additive
		return nil
	}
	for i, name := range blendModeNames {
		if name == key {
			*m = BlendMode(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown blend mode %q", ErrInvalidConfiguration, string(text))
}

// CompoundMovement combines several movements over one shot (for example pan + zoom).
type CompoundMovement struct {
	Movements []MovementSpec `yaml:"movements" toml:"movements"`
	BlendMode BlendMode      `yaml:"blend_mode" toml:"blend_mode"`
}

// Validate checks every movement and the blend mode.
func (c CompoundMovement) Validate() error {
	if len(c.Movements) == 0 {
		return fmt.Errorf("%w: compound movement has no movements", ErrInvalidConfiguration)
	}
	if !c.BlendMode.Valid() {
		return fmt.Errorf("%w: unknown blend mode %d", ErrInvalidConfiguration, int(c.BlendMode))
	}
	for i, m := range c.Movements {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("movement %d: %w", i, err)
		}
	}
	return nil
}

// Duration is the longest movement for additive blends and the sum for sequential ones.
func (c CompoundMovement) Duration() float64 {
	total := 0.0
	for _, m := range c.Movements {
		if c.BlendMode == Sequential {
			total += m.Duration
		} else {
			total = math.Max(total, m.Duration)
		}
	}
	return total
}

// Normalized returns a copy with default zoom and focal length filled in on every pose.
func (c CompoundMovement) Normalized() CompoundMovement {
	out := CompoundMovement{BlendMode: c.BlendMode, Movements: make([]MovementSpec, len(c.Movements))}
	for i, m := range c.Movements {
		out.Movements[i] = m.Normalized()
	}
	return out
}
