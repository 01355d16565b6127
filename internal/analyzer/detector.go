package analyzer

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// Block represents a detected region of interest in an image
type Block struct {
	Rect       image.Rectangle
	Confidence float64 // 0.0-1.0
	// Energy is the mean edge magnitude inside Rect.
	Energy float64
}

// Detector is the interface for salient-region strategies.
type Detector interface {
	Detect(img image.Image) ([]Block, error)
	DetectPlane(p similarity.Plane) []Block
}

// Metric is one coherence axis a sequence is scored on.
type Metric int

const (
	CharacterStability Metric = iota
	LightingConsistency
	ColorPalette
	ArtifactFreedom
	// NumMetrics is the number of metrics, not a metric.
	NumMetrics
)

var metricNames = [...]string{
	"character_stability",
	"lighting_consistency",
	"color_palette",
	"artifact_freedom",
}

var _ = [1]struct{}{}[len(metricNames)-int(NumMetrics)]

// Metrics lists every metric in declaration order.
func Metrics() []Metric {
	out := make([]Metric, 0, NumMetrics)
	for m := CharacterStability; m < NumMetrics; m++ {
		out = append(out, m)
	}
	return out
}

func (m Metric) Valid() bool {
	return m >= 0 && m < NumMetrics
}

func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Metric) UnmarshalText(text []byte) error {
	key := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range metricNames {
		if name == key {
			*m = Metric(i)
			return nil
		}
	}
	return fmt.Errorf("unknown metric %q", string(text))
}

// FrameRange is an inclusive range of frame indices.
type FrameRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

// CoherenceScore is one analyzer's verdict on a sequence.
type CoherenceScore struct {
	Metric     Metric     `yaml:"metric"`
	Score      float64    `yaml:"score"`
	Confidence float64    `yaml:"confidence"`
	FrameRange FrameRange `yaml:"frame_range"`
	// Degraded is set when the sequence was too short to measure and Score is a neutral value.
	Degraded bool   `yaml:"degraded,omitempty"`
	Details  string `yaml:"details,omitempty"`
}

// ArtifactType names a defect signature.
type ArtifactType int

const (
	Flicker ArtifactType = iota
	Ghosting
	WarpDiscontinuity
	FrozenFrame
	ColorShift
	numArtifactTypes
)

var artifactNames = [...]string{
	"flicker",
	"ghosting",
	"warp_discontinuity",
	"frozen_frame",
	"color_shift",
}

var _ = [1]struct{}{}[len(artifactNames)-int(numArtifactTypes)]

// ArtifactTypes lists every artifact type.
func ArtifactTypes() []ArtifactType {
	out := make([]ArtifactType, 0, numArtifactTypes)
	for a := Flicker; a < numArtifactTypes; a++ {
		out = append(out, a)
	}
	return out
}

func (a ArtifactType) Valid() bool {
	return a >= 0 && a < numArtifactTypes
}

func (a ArtifactType) String() string {
	if !a.Valid() {
		return fmt.Sprintf("artifact(%d)", int(a))
	}
	return artifactNames[a]
}

func (a ArtifactType) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("unknown artifact type %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *ArtifactType) UnmarshalText(text []byte) error {
	key := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range artifactNames {
		if name == key {
			*a = ArtifactType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown artifact type %q", string(text))
}

// ArtifactDetection is one located defect.
type ArtifactDetection struct {
	Type         ArtifactType `yaml:"type"`
	Severity     float64      `yaml:"severity"`
	Confidence   float64      `yaml:"confidence"`
	FrameIndices []int        `yaml:"frame_indices"`
	Description  string       `yaml:"description"`
}

// Analyzer scores a sequence on a single metric. Implementations keep no state between
// calls.
type Analyzer interface {
	Metric() Metric
	Analyze(ctx context.Context, seq *Sequence) (CoherenceScore, error)
}
