package director

import (
	"errors"
	"fmt"

	"github.com/ivlev/shotmotion/internal/motion"
)

// PlanVersion is written into new plans.
const PlanVersion = "1.0"

// Plan is a batch of shots to render and validate.
type Plan struct {
	Version   string  `yaml:"version" toml:"version"`
	FrameRate float64 `yaml:"frame_rate,omitempty" toml:"frame_rate,omitempty"`
	Shots     []Shot  `yaml:"shots" toml:"shots"`
}

// Shot is one keyframe source plus the camera movement applied to it. Exactly one of
// Movement, Compound and Auto is set; Auto asks the director to suggest a movement from
// the salient regions of the first keyframe.
type Shot struct {
	ID        int     `yaml:"id" toml:"id"`
	Input     string  `yaml:"input" toml:"input"`
	Duration  float64 `yaml:"duration" toml:"duration"` // seconds
	FrameRate float64 `yaml:"frame_rate,omitempty" toml:"frame_rate,omitempty"`
	// Keyframes limits how many frames are taken from Input; 0 takes all.
	Keyframes int                      `yaml:"keyframes,omitempty" toml:"keyframes,omitempty"`
	Movement  *motion.MovementSpec     `yaml:"movement,omitempty" toml:"movement,omitempty"`
	Compound  *motion.CompoundMovement `yaml:"compound,omitempty" toml:"compound,omitempty"`
	Auto      bool                     `yaml:"auto,omitempty" toml:"auto,omitempty"`
	// Regions records the salient regions an automatic movement was framed on.
	Regions []Rectangle `yaml:"regions,omitempty" toml:"regions,omitempty"`
}

// Rectangle represents a bounding box
type Rectangle struct {
	X int `yaml:"x" toml:"x"`
	Y int `yaml:"y" toml:"y"`
	W int `yaml:"w" toml:"w"`
	H int `yaml:"h" toml:"h"`
}

// ErrInvalidPlan marks structural problems in a plan file.
var ErrInvalidPlan = errors.New("invalid plan")

// Validate checks every shot. Movement durations are not required to match the shot
// duration: a movement is retimed over the frames it is given.
func (p *Plan) Validate() error {
	if len(p.Shots) == 0 {
		return fmt.Errorf("%w: no shots", ErrInvalidPlan)
	}
	if p.FrameRate < 0 {
		return fmt.Errorf("%w: negative frame rate %v", ErrInvalidPlan, p.FrameRate)
	}
	ids := make(map[int]bool, len(p.Shots))
	for i, s := range p.Shots {
		if ids[s.ID] {
			return fmt.Errorf("%w: shot %d: duplicate id %d", ErrInvalidPlan, i, s.ID)
		}
		ids[s.ID] = true
		if err := s.Validate(); err != nil {
			return fmt.Errorf("shot %d: %w", s.ID, err)
		}
	}
	return nil
}

func (s Shot) Validate() error {
	if s.Input == "" {
		return fmt.Errorf("%w: missing input", ErrInvalidPlan)
	}
	if !(s.Duration > 0) {
		return fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidPlan, s.Duration)
	}
	if s.FrameRate < 0 || s.Keyframes < 0 {
		return fmt.Errorf("%w: negative frame rate or keyframe count", ErrInvalidPlan)
	}
	set := 0
	for _, ok := range []bool{s.Movement != nil, s.Compound != nil, s.Auto} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one of movement, compound or auto must be set", ErrInvalidPlan)
	}
	switch {
	case s.Movement != nil:
		return s.Movement.Normalized().Validate()
	case s.Compound != nil:
		return s.Compound.Normalized().Validate()
	}
	return nil
}

// FrameRateFor resolves the frame rate of s: the shot's own, then the plan's, then fallback.
func (p *Plan) FrameRateFor(s Shot, fallback float64) float64 {
	switch {
	case s.FrameRate > 0:
		return s.FrameRate
	case p.FrameRate > 0:
		return p.FrameRate
	}
	return fallback
}

// Kind names the movement of s for logs and reports.
func (s Shot) Kind() string {
	switch {
	case s.Movement != nil:
		return s.Movement.Type.String()
	case s.Compound != nil:
		return fmt.Sprintf("compound(%d, %s)", len(s.Compound.Movements), s.Compound.BlendMode)
	case s.Auto:
		return "auto"
	}
	return "none"
}
