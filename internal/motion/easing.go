package motion

import (
	"fmt"
	"math"
	"strings"
)

// Easing selects the progress remapping used between the start and end pose.
type Easing int

const (
	Linear Easing = iota
	EaseIn
	EaseOut
	EaseInOut
	EaseInCubic
	EaseOutCubic
	EaseInOutCubic
	EaseInOutSine
	numEasings
)

// easingFuncs is indexed by Easing and must list every value in declaration order.
var easingFuncs = [...]func(float64) float64{
	linear,
	easeInQuad,
	easeOutQuad,
	easeInOutQuad,
	easeInCubic,
	easeOutCubic,
	easeInOutCubic,
	easeInOutSine,
}

var easingNames = [...]string{
	"linear",
	"ease_in",
	"ease_out",
	"ease_in_out",
	"ease_in_cubic",
	"ease_out_cubic",
	"ease_in_out_cubic",
	"ease_in_out_sine",
}

// Compile-time guard: adding an Easing without a function and a name breaks the build.
var (
	_ = [1]struct{}{}[len(easingFuncs)-int(numEasings)]
	_ = [1]struct{}{}[len(easingNames)-int(numEasings)]
)

// Easings lists every supported easing family.
func Easings() []Easing {
	out := make([]Easing, 0, numEasings)
	for e := Linear; e < numEasings; e++ {
		out = append(out, e)
	}
	return out
}

// Valid reports whether e is a known easing.
func (e Easing) Valid() bool {
	return e >= 0 && e < numEasings
}

// Apply maps linear progress t to eased progress. The result is clamped to [0,1].
func (e Easing) Apply(t float64) float64 {
	if !e.Valid() {
		return clamp01(t)
	}
	return clamp01(easingFuncs[e](clamp01(t)))
}

func (e Easing) String() string {
	if !e.Valid() {
		return fmt.Sprintf("easing(%d)", int(e))
	}
	return easingNames[e]
}

func (e Easing) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("unknown easing %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Easing) UnmarshalText(text []byte) error {
	parsed, err := ParseEasing(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEasing accepts snake_case, kebab-case and camelCase spellings ("ease_in_out",
// "ease-in-out", "easeInOut").
func ParseEasing(s string) (Easing, error) {
	key := compactName(s)
	if key == "" {
		return Linear, nil
	}
	for i, name := range easingNames {
		if compactName(name) == key {
			return Easing(i), nil
		}
	}
	return Linear, fmt.Errorf("%w: unknown easing %q", ErrInvalidConfiguration, s)
}

func compactName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

func linear(t float64) float64 {
	return t
}

func easeInQuad(t float64) float64 {
	return t * t
}

func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func easeInCubic(t float64) float64 {
	return t * t * t
}

func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func easeInOutSine(t float64) float64 {
	return -(math.Cos(math.Pi*t) - 1) / 2
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
