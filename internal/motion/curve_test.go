package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEasingFamiliesAreMonotoneAndBounded(t *testing.T) {
	for _, e := range Easings() {
		t.Run(e.String(), func(t *testing.T) {
			prev := e.Apply(0)
			assert.InDelta(t, 0.0, prev, 1e-12)
			for i := 1; i <= 200; i++ {
				v := e.Apply(float64(i) / 200)
				assert.GreaterOrEqual(t, v, prev-1e-12, "step %d", i)
				assert.True(t, v >= 0 && v <= 1, "value %v out of range", v)
				prev = v
			}
			assert.InDelta(t, 1.0, prev, 1e-9)
		})
	}
}

func TestParseEasing(t *testing.T) {
	tests := []struct {
		in   string
		want Easing
	}{
		{"linear", Linear},
		{"ease_in_out", EaseInOut},
		{"ease-in-out", EaseInOut},
		{"easeInOut", EaseInOut},
		{"EASE_OUT_CUBIC", EaseOutCubic},
		{"", Linear},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEasing(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseEasing("bounce")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestBuildCurveLinearHasUniformSteps(t *testing.T) {
	spec := NewPan(0, 30, 1).WithEasing(Linear)
	c, err := BuildCurve(spec, 24)
	require.NoError(t, err)
	require.Equal(t, 24, c.Len())

	deltas := make([]float64, 0, c.Len()-1)
	for i := 1; i < c.Len(); i++ {
		deltas = append(deltas, c.EasingValues[i]-c.EasingValues[i-1])
	}
	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	assert.Less(t, variance, 1e-6)
}

func TestBuildCurveTimestamps(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		fps      float64
		want     int
	}{
		{"one second at 24", 1, 24, 24},
		{"two seconds at 30", 2, 30, 60},
		{"short clip rounds up to two", 0.01, 24, 2},
		{"fractional fps", 1.5, 29.97, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := BuildCurve(NewZoom(1, 2, tt.duration), tt.fps)
			require.NoError(t, err)
			require.Equal(t, tt.want, c.Len())
			for i := 1; i < c.Len(); i++ {
				assert.InDelta(t, 1/tt.fps, c.Timestamps[i]-c.Timestamps[i-1], 1e-9)
			}
			assert.InDelta(t, float64(tt.want-1)/tt.fps, c.Span(), 1e-9)
		})
	}
}

func TestBuildCurveEasingValuesContract(t *testing.T) {
	for _, e := range Easings() {
		spec := NewTilt(-10, 10, 0.5).WithEasing(e).WithHold(0.2, 0.1)
		c, err := BuildCurve(spec, 24)
		require.NoError(t, err)
		assert.LessOrEqual(t, c.EasingValues[0], 0.1, e.String())
		assert.GreaterOrEqual(t, c.EasingValues[c.Len()-1], 0.5, e.String())
		for i := 1; i < c.Len(); i++ {
			assert.GreaterOrEqual(t, c.EasingValues[i], c.EasingValues[i-1], "%s step %d", e, i)
		}
	}
}

func TestBuildCurveHolds(t *testing.T) {
	spec := NewTrack(0, 1, 1).WithEasing(Linear).WithHold(0.25, 0.25)
	c, err := BuildCurveSamples(spec, 24, 21)
	require.NoError(t, err)

	// u = i/20, so samples 0..5 sit in the leading hold and 15..20 in the trailing one.
	for i := 0; i <= 5; i++ {
		assert.Equal(t, 0.0, c.EasingValues[i], "sample %d", i)
		assert.Equal(t, 0.0, c.Positions[i].X)
	}
	for i := 15; i <= 20; i++ {
		assert.Equal(t, 1.0, c.EasingValues[i], "sample %d", i)
	}
	assert.InDelta(t, 0.5, c.EasingValues[10], 1e-9)
}

func TestBuildCurveStaticIsStill(t *testing.T) {
	c, err := BuildCurve(NewStatic(1), 24)
	require.NoError(t, err)
	require.Equal(t, 24, c.Len())
	for i := 0; i < c.Len(); i++ {
		assert.Equal(t, DefaultPosition(), c.Positions[i])
		assert.Zero(t, c.Velocities[i])
		assert.Zero(t, c.Accelerations[i])
	}
	stats := c.Stats()
	assert.Zero(t, stats.PeakVelocity)
	assert.Zero(t, stats.PathLength)
}

func TestBuildCurveDollyIsStrictlyIncreasing(t *testing.T) {
	c, err := BuildCurve(NewDolly(0, 2, 2), 24)
	require.NoError(t, err)
	require.Equal(t, 48, c.Len())
	for i := 1; i < c.Len(); i++ {
		assert.Greater(t, c.Positions[i].Z, c.Positions[i-1].Z, "sample %d", i)
	}
	assert.InDelta(t, 0.0, c.Positions[0].Z, 1e-12)
	assert.InDelta(t, 2.0, c.Positions[47].Z, 1e-12)

	stats := c.Stats()
	assert.InDelta(t, 2.0, stats.Displacement, 1e-9)
	assert.InDelta(t, 2.0, stats.PathLength, 1e-9)
	assert.Greater(t, stats.PeakVelocity, stats.MeanVelocity)
}

func TestShortCurveHasZeroAcceleration(t *testing.T) {
	c, err := BuildCurveSamples(NewPan(0, 45, 1), 24, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, c.Accelerations)
	assert.Equal(t, c.Velocities[1], c.Velocities[0])
	assert.False(t, math.IsNaN(c.Velocities[0]))
}

func TestBuildCurveRejectsInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		spec MovementSpec
		fps  float64
	}{
		{"zero duration", NewPan(0, 10, 0), 24},
		{"negative duration", NewPan(0, 10, -1), 24},
		{"zero fps", NewPan(0, 10, 1), 0},
		{"negative fps", NewPan(0, 10, 1), -24},
		{"nan fps", NewPan(0, 10, 1), math.NaN()},
		{"holds exceed one", NewPan(0, 10, 1).WithHold(0.6, 0.5), 24},
		{"negative hold", NewPan(0, 10, 1).WithHold(-0.1, 0), 24},
		{"nan pose", MovementSpec{Type: Pan, Start: CameraPosition{Yaw: math.NaN(), Zoom: 1, FocalLength: 50}, End: DefaultPosition(), Duration: 1}, 24},
		{"zero zoom", MovementSpec{Type: Zoom, Start: CameraPosition{FocalLength: 50}, End: DefaultPosition(), Duration: 1}, 24},
		{"unknown type", MovementSpec{Type: MovementType(42), Start: DefaultPosition(), End: DefaultPosition(), Duration: 1}, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCurve(tt.spec, tt.fps)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestCompoundDuration(t *testing.T) {
	c := CompoundMovement{Movements: []MovementSpec{NewPan(0, 10, 1), NewZoom(1, 2, 2)}}
	assert.Equal(t, 2.0, c.Duration())
	c.BlendMode = Sequential
	assert.Equal(t, 3.0, c.Duration())

	require.NoError(t, c.Validate())
	c.Movements = append(c.Movements, NewPan(0, 10, 0))
	err := c.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "movement 2")
}

func TestDeltaOffsetRoundTrip(t *testing.T) {
	a := CameraPosition{X: 1, Yaw: 10, Zoom: 1.5, FocalLength: 50}
	b := CameraPosition{X: 3, Yaw: -5, Pitch: 2, Zoom: 3, FocalLength: 35}
	got := a.Offset(b.Delta(a))
	assert.InDelta(t, b.X, got.X, 1e-12)
	assert.InDelta(t, b.Yaw, got.Yaw, 1e-12)
	assert.InDelta(t, b.Pitch, got.Pitch, 1e-12)
	assert.InDelta(t, b.Zoom, got.Zoom, 1e-12)
	assert.InDelta(t, b.FocalLength, got.FocalLength, 1e-12)
}
