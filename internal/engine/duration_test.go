package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/motion"
)

func TestScaleDurations(t *testing.T) {
	durations := []float64{2, 3, 5, 2.5, 4, 1.5, 3, 2, 6, 1}
	total := 100.0 // A
	fade := 0.5    // F

	got := ScaleDurations(durations, total, fade, 0)
	require.Len(t, got, len(durations))

	// sum(D_i) - (N-1)*F should equal A
	assert.InDelta(t, total, ReelLength(got, fade), 1e-9)

	// Relative lengths are kept.
	for i := 1; i < len(got); i++ {
		assert.InDelta(t, durations[i]/durations[0], got[i]/got[0], 1e-9)
	}
	assert.Equal(t, 2.0, durations[0], "input must not be modified")
}

func TestScaleDurationsSnapsToFrames(t *testing.T) {
	fps := 24.0
	durations := []float64{1, 1.3, 0.7}
	got := ScaleDurations(durations, 10, 0.25, fps)

	for i, d := range got {
		frames := d * fps
		assert.InDelta(t, math.Round(frames), frames, 1e-9, "clip %d", i)
	}
	// At most half a frame of drift per clip.
	assert.InDelta(t, 10, ReelLength(got, 0.25), float64(len(got))*0.5/fps)
}

func TestScaleDurationsEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		durations []float64
		total     float64
		want      []float64
	}{
		{"no clips", nil, 10, []float64{}},
		{"no target keeps input", []float64{1, 2}, 0, []float64{1, 2}},
		{"single clip takes the whole reel", []float64{3}, 7, []float64{7}},
		{"zero lengths are left alone", []float64{0, 0}, 5, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScaleDurations(tt.durations, tt.total, 0.5, 0))
		})
	}
}

func TestScaleDurationsNeverDropsAClip(t *testing.T) {
	got := ScaleDurations([]float64{0.001, 10}, 2, 0, 24)
	assert.InDelta(t, 1.0/24, got[0], 1e-12)
}

func TestFitFade(t *testing.T) {
	tests := []struct {
		name      string
		durations []float64
		fade      float64
		want      float64
	}{
		{"fits", []float64{2, 3}, 0.5, 0.5},
		{"shortened for short clip", []float64{2, 0.6, 3}, 0.8, 0.3},
		{"equal to shortest clip", []float64{1, 1}, 1, 0.5},
		{"single clip has no transitions", []float64{0.2}, 1, 1},
		{"disabled", []float64{0.2, 0.1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FitFade(tt.durations, tt.fade), 1e-12)
		})
	}
}

func TestFitPlanDuration(t *testing.T) {
	static := motion.NewStatic(1)
	plan := &director.Plan{
		FrameRate: 10,
		Shots: []director.Shot{
			{ID: 1, Input: "pattern:a", Duration: 1, Movement: &static},
			{ID: 2, Input: "pattern:b", Duration: 3, Movement: &static},
		},
	}

	FitPlanDuration(plan, 7.5, 0.5, 24)

	assert.InDelta(t, 2.0, plan.Shots[0].Duration, 1e-9)
	assert.InDelta(t, 6.0, plan.Shots[1].Duration, 1e-9)
	require.NoError(t, plan.Validate())
}
