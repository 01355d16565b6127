// Package camera applies camera movements to frame sequences.
//
// The System never returns a Go error from ApplyMovement or ApplyCompoundMovement: failures
// are reported through Result.Success and Result.ErrorMessage, and a failed call never
// carries partially transformed frames.
package camera

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/shotmotion/internal/frame"
	"github.com/ivlev/shotmotion/internal/logging"
	"github.com/ivlev/shotmotion/internal/motion"
	"github.com/ivlev/shotmotion/internal/similarity"
	"github.com/ivlev/shotmotion/internal/transform"
)

// Metadata describes the movement that produced a Result.
type Metadata struct {
	MovementType        string             `yaml:"movement_type"`
	Duration            float64            `yaml:"duration"`
	FrameRate           float64            `yaml:"frame_rate"`
	FrameCount          int                `yaml:"frame_count"`
	NominalFrameCount   int                `yaml:"nominal_frame_count"`
	Retimed             bool               `yaml:"retimed"`
	Easing              string             `yaml:"easing,omitempty"`
	Stats               motion.MotionStats `yaml:"stats"`
	CompoundMovement    bool               `yaml:"compound_movement"`
	BlendMode           string             `yaml:"blend_mode,omitempty"`
	IndividualMovements []Metadata         `yaml:"individual_movements,omitempty"`
}

// Result is the outcome of applying a movement to a frame sequence.
// MotionCurve has one sample per transformed frame, except for a single-frame input: the
// curve then keeps its two end samples so velocity stays defined, and the frame shows the
// first one.
type Result struct {
	Success           bool                `yaml:"success"`
	TransformedFrames []image.Image       `yaml:"-"`
	MotionCurve       *motion.MotionCurve `yaml:"-"`
	// Viewports holds the window applied to each frame.
	Viewports    []transform.Viewport `yaml:"-"`
	Metadata     Metadata             `yaml:"metadata"`
	ErrorMessage string               `yaml:"error_message,omitempty"`
	// Err keeps the cause of a failure for errors.Is / errors.As.
	Err error `yaml:"-"`
}

// System orchestrates curve building and per-frame transforms. It holds no per-call state
// and is safe for concurrent use.
type System struct {
	Transformer transform.Transformer
	logger      *logrus.Logger
}

// NewSystem returns a System with default transform geometry. A nil logger discards output.
func NewSystem(logger *logrus.Logger) *System {
	return &System{Transformer: transform.New(), logger: logging.OrDiscard(logger)}
}

// ApplyMovement transforms every frame with the matching sample of the curve built for spec.
// The curve always has one sample per frame (two for a single frame). When the frame count
// differs from round(duration * frameRate) the move is spread over the frames that were
// given and Metadata.Retimed is set. Sequences longer than motion.MaxCurveSamples frames
// are rejected as an invalid configuration.
func (s *System) ApplyMovement(ctx context.Context, frames []image.Image, spec motion.MovementSpec, frameRate float64) *Result {
	if _, err := frame.ValidateSequence(frames); err != nil {
		return s.fail(spec.Type.String(), fmt.Errorf("%w: %w", motion.ErrInvalidConfiguration, err))
	}
	spec = spec.Normalized()

	nominal, err := nominalCount(spec.Duration, frameRate)
	if err != nil {
		return s.fail(spec.Type.String(), err)
	}
	curve, err := motion.BuildCurveSamples(spec, frameRate, sampleCount(len(frames)))
	if err != nil {
		return s.fail(spec.Type.String(), err)
	}

	out := make([]image.Image, len(frames))
	viewports := make([]transform.Viewport, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return s.fail(spec.Type.String(), fmt.Errorf("cancelled before frame %d: %w", i, err))
		}
		v, err := s.Transformer.ViewportFor(spec.Type, spec.Start, curve.Positions[i])
		if err != nil {
			return s.fail(spec.Type.String(), &transform.TransformError{Frame: i, Err: err})
		}
		img, err := s.Transformer.Warp(f, v)
		if err != nil {
			return s.fail(spec.Type.String(), &transform.TransformError{Frame: i, Err: err})
		}
		out[i], viewports[i] = img, v
	}

	meta := Metadata{
		MovementType:      spec.Type.String(),
		Duration:          spec.Duration,
		FrameRate:         frameRate,
		FrameCount:        len(frames),
		NominalFrameCount: nominal,
		Retimed:           len(frames) != nominal,
		Easing:            spec.Easing.String(),
		Stats:             curve.Stats(),
	}

	s.logger.WithFields(logrus.Fields{
		"movement": meta.MovementType,
		"frames":   meta.FrameCount,
		"retimed":  meta.Retimed,
	}).Debug("movement applied")

	return &Result{Success: true, TransformedFrames: out, MotionCurve: curve, Viewports: viewports, Metadata: meta}
}

// ApplyCompoundMovement applies several movements over one frame window.
//
// Additive blends run every movement from the first frame, each over its own duration;
// shorter movements hold their end pose. Sequential blends run them back to back.
// In both modes the per-movement viewports are composed frame by frame, so a pan and a
// zoom played together show a panning, zooming window.
func (s *System) ApplyCompoundMovement(ctx context.Context, frames []image.Image, compound motion.CompoundMovement, frameRate float64) *Result {
	label := compoundLabel(compound)
	if _, err := frame.ValidateSequence(frames); err != nil {
		return s.fail(label, fmt.Errorf("%w: %w", motion.ErrInvalidConfiguration, err))
	}
	compound = compound.Normalized()
	if err := compound.Validate(); err != nil {
		return s.fail(label, err)
	}

	total := compound.Duration()
	nominal, err := nominalCount(total, frameRate)
	if err != nil {
		return s.fail(label, err)
	}

	individual := make([]Metadata, len(compound.Movements))
	for k, m := range compound.Movements {
		c, err := motion.BuildCurve(m, frameRate)
		if err != nil {
			return s.fail(label, fmt.Errorf("movement %d: %w", k, err))
		}
		individual[k] = Metadata{
			MovementType:      m.Type.String(),
			Duration:          m.Duration,
			FrameRate:         frameRate,
			FrameCount:        c.Len(),
			NominalFrameCount: c.Len(),
			Easing:            m.Easing.String(),
			Stats:             c.Stats(),
		}
	}

	n := sampleCount(len(frames))
	positions := make([]motion.CameraPosition, n)
	eased := make([]float64, n)
	viewports := make([]transform.Viewport, n)
	for i := 0; i < n; i++ {
		t := total * float64(i) / float64(n-1)
		pos, e, v, err := s.compoundSample(compound, t)
		if err != nil {
			return s.fail(label, &transform.TransformError{Frame: i, Err: err})
		}
		positions[i], eased[i], viewports[i] = pos, e, v
	}

	curve, err := motion.NewCurve(frameRate, positions, eased)
	if err != nil {
		return s.fail(label, err)
	}

	out := make([]image.Image, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return s.fail(label, fmt.Errorf("cancelled before frame %d: %w", i, err))
		}
		img, err := s.Transformer.Warp(f, viewports[i])
		if err != nil {
			return s.fail(label, &transform.TransformError{Frame: i, Err: err})
		}
		out[i] = img
	}

	meta := Metadata{
		MovementType:        label,
		Duration:            total,
		FrameRate:           frameRate,
		FrameCount:          len(frames),
		NominalFrameCount:   nominal,
		Retimed:             len(frames) != nominal,
		Stats:               curve.Stats(),
		CompoundMovement:    true,
		BlendMode:           compound.BlendMode.String(),
		IndividualMovements: individual,
	}

	s.logger.WithFields(logrus.Fields{
		"movement": label,
		"blend":    meta.BlendMode,
		"frames":   meta.FrameCount,
	}).Debug("compound movement applied")

	return &Result{Success: true, TransformedFrames: out, MotionCurve: curve, Viewports: viewports[:len(frames)], Metadata: meta}
}

// compoundSample evaluates every movement at shot time t and combines them. The combined
// pose is the first start pose offset by every movement's delta from its own start, and
// the combined progress is the mean of the individual eased progress values.
func (s *System) compoundSample(c motion.CompoundMovement, t float64) (motion.CameraPosition, float64, transform.Viewport, error) {
	pos := c.Movements[0].Start
	view := transform.Identity()
	progress := 0.0
	offset := 0.0
	for _, m := range c.Movements {
		local := t
		if c.BlendMode == motion.Sequential {
			local = t - offset
			offset += m.Duration
		}
		p, e := m.Sample(local / m.Duration)
		v, err := s.Transformer.ViewportFor(m.Type, m.Start, p)
		if err != nil {
			return motion.CameraPosition{}, 0, transform.Viewport{}, err
		}
		view = view.Compose(v)
		pos = pos.Offset(p.Delta(m.Start))
		progress += e
	}
	return pos, progress / float64(len(c.Movements)), view, nil
}

// ValidateFrameTransition scores how smoothly frame b follows frame a.
func (s *System) ValidateFrameTransition(a, b image.Image) (similarity.Transition, error) {
	return similarity.CompareFrames(a, b)
}

func (s *System) fail(movement string, err error) *Result {
	s.logger.WithFields(logrus.Fields{
		"movement": movement,
	}).WithError(err).Warn("movement failed")
	return &Result{
		Success:      false,
		Metadata:     Metadata{MovementType: movement},
		ErrorMessage: err.Error(),
		Err:          err,
	}
}

func nominalCount(duration, frameRate float64) (int, error) {
	if !(frameRate > 0) || math.IsInf(frameRate, 0) {
		return 0, fmt.Errorf("%w: frame rate must be positive, got %v", motion.ErrInvalidConfiguration, frameRate)
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("%w: duration must be positive, got %v", motion.ErrInvalidConfiguration, duration)
	}
	return motion.NominalFrameCount(duration, frameRate), nil
}

func sampleCount(frames int) int {
	if frames < 2 {
		return 2
	}
	return frames
}

func compoundLabel(c motion.CompoundMovement) string {
	names := make([]string, len(c.Movements))
	for i, m := range c.Movements {
		names[i] = m.Type.String()
	}
	if len(names) == 0 {
		return "compound"
	}
	return strings.Join(names, "+")
}
