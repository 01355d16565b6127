package director

import (
	"image"
	"image/color"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/motion"
	"github.com/ivlev/shotmotion/internal/transform"
)

func TestSuggestMovementFramesLeadingRegion(t *testing.T) {
	director := NewDirector(1280, 720)

	// Create test blocks
	blocks := []analyzer.Block{
		{Rect: image.Rect(50, 150, 300, 250), Confidence: 0.9},
		{Rect: image.Rect(840, 60, 1160, 240), Confidence: 0.8},
	}

	compound, err := director.SuggestMovement(blocks, 4)
	require.NoError(t, err)
	require.NoError(t, compound.Validate())
	assert.Equal(t, motion.Additive, compound.BlendMode)

	// The leading block in reading order is the top-right one (y=60).
	types := map[motion.MovementType]motion.MovementSpec{}
	for _, m := range compound.Movements {
		types[m.Type] = m
		assert.Equal(t, 4.0, m.Duration)
	}
	require.Contains(t, types, motion.Pan)
	require.Contains(t, types, motion.Tilt)
	require.Contains(t, types, motion.Zoom)
	assert.Greater(t, types[motion.Pan].End.Yaw, 0.0, "region is right of center")
	assert.Greater(t, types[motion.Tilt].End.Pitch, 0.0, "region is above center")
	assert.InDelta(t, 3.0, types[motion.Zoom].End.Zoom, 1e-9)

	// The final viewport centers the region.
	tr := transform.New()
	v := transform.Identity()
	for _, m := range compound.Movements {
		vp, err := tr.ViewportFor(m.Type, m.Start, m.End)
		require.NoError(t, err)
		v = v.Compose(vp)
	}
	assert.InDelta(t, (1000.0-640)/1280, v.ShiftX, 1e-9)
	assert.InDelta(t, (150.0-360)/1280, v.ShiftY, 1e-9)
}

func TestSuggestMovementCenteredFullFrame(t *testing.T) {
	director := NewDirector(200, 100)
	compound, err := director.SuggestMovement([]analyzer.Block{{Rect: image.Rect(0, 0, 200, 100)}}, 2)
	require.NoError(t, err)
	require.Len(t, compound.Movements, 1)
	assert.Equal(t, motion.Static, compound.Movements[0].Type)

	_, err = director.SuggestMovement(nil, 2)
	assert.Error(t, err)
}

func TestRegionsFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 320, 180))
	for y := 20; y < 80; y++ {
		for x := 200; x < 300; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	director := NewDirector(320, 180)
	blocks, err := director.Regions(img)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	compound, err := director.SuggestMovement(blocks, 3)
	require.NoError(t, err)
	for _, m := range compound.Movements {
		if m.Type == motion.Pan {
			assert.Greater(t, m.End.Yaw, 0.0)
		}
	}
}

func TestGeneratePlan(t *testing.T) {
	director := NewDirector(1280, 720)
	blocks := []analyzer.Block{
		{Rect: image.Rect(50, 150, 300, 250), Confidence: 0.9},
		{Rect: image.Rect(50, 50, 200, 100), Confidence: 0.8},
	}

	plan, err := director.GeneratePlan(blocks, "test.png", 10.0, 24)
	require.NoError(t, err)
	require.NoError(t, plan.Validate())

	assert.Equal(t, PlanVersion, plan.Version)
	require.Len(t, plan.Shots, 2)
	assert.Equal(t, "test.png", plan.Shots[0].Input)
	// Reading order puts the upper block first.
	assert.Equal(t, Rectangle{X: 50, Y: 50, W: 150, H: 50}, plan.Shots[0].Regions[0])
	// 10s over two regions is clamped to MaxDwell.
	assert.Equal(t, 3.0, plan.Shots[0].Duration)

	for i, s := range plan.Shots {
		t.Logf("Shot %d: %s, %.1fs", i, s.Kind(), s.Duration)
	}
}

func TestPlanWriteRead(t *testing.T) {
	pan := motion.NewPan(0, 30, 1).WithHold(0.1, 0)
	compound := motion.CompoundMovement{
		Movements: []motion.MovementSpec{motion.NewZoom(1, 1.5, 2), motion.NewTilt(0, 5, 2).WithEasing(motion.EaseOutCubic)},
		BlendMode: motion.Sequential,
	}
	plan := &Plan{
		Version:   PlanVersion,
		FrameRate: 24,
		Shots: []Shot{
			{ID: 1, Input: "keyframes/a.png", Duration: 1, Movement: &pan},
			{ID: 2, Input: "pattern:qr", Duration: 4, Compound: &compound, FrameRate: 30},
			{ID: 3, Input: "/abs/board.pdf", Duration: 2, Auto: true, Keyframes: 3},
		},
	}

	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "plan"+ext)
			require.NoError(t, WritePlan(plan, path))

			got, err := ReadPlan(path)
			require.NoError(t, err)

			require.Len(t, got.Shots, 3)
			assert.Equal(t, filepath.Join(dir, "keyframes/a.png"), got.Shots[0].Input)
			assert.Equal(t, "pattern:qr", got.Shots[1].Input)
			assert.Equal(t, "/abs/board.pdf", got.Shots[2].Input)

			require.NotNil(t, got.Shots[0].Movement)
			assert.Equal(t, pan, *got.Shots[0].Movement)
			require.NotNil(t, got.Shots[1].Compound)
			assert.Equal(t, compound, *got.Shots[1].Compound)
			assert.True(t, got.Shots[2].Auto)
			assert.Equal(t, 3, got.Shots[2].Keyframes)

			assert.Equal(t, 24.0, got.FrameRateFor(got.Shots[0], 12))
			assert.Equal(t, 30.0, got.FrameRateFor(got.Shots[1], 12))
		})
	}
}

func TestPlanValidate(t *testing.T) {
	zoom := motion.NewZoom(1, 2, 1)
	bad := motion.NewZoom(1, 2, -1)
	tests := []struct {
		name string
		shot Shot
	}{
		{"missing input", Shot{ID: 1, Duration: 1, Auto: true}},
		{"zero duration", Shot{ID: 1, Input: "a.png", Auto: true}},
		{"no movement", Shot{ID: 1, Input: "a.png", Duration: 1}},
		{"two movements", Shot{ID: 1, Input: "a.png", Duration: 1, Auto: true, Movement: &zoom}},
		{"invalid movement", Shot{ID: 1, Input: "a.png", Duration: 1, Movement: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Plan{Version: PlanVersion, Shots: []Shot{tt.shot}}).Validate()
			assert.Error(t, err)
		})
	}

	dup := &Plan{Shots: []Shot{
		{ID: 1, Input: "a.png", Duration: 1, Auto: true},
		{ID: 1, Input: "b.png", Duration: 1, Auto: true},
	}}
	assert.ErrorIs(t, dup.Validate(), ErrInvalidPlan)
	assert.ErrorIs(t, (&Plan{}).Validate(), ErrInvalidPlan)
}

func TestGeneratePlanPath(t *testing.T) {
	path := GeneratePlanPath("plans", "")
	assert.True(t, strings.HasPrefix(path, filepath.Join("plans", "plan_")), path)
	assert.Equal(t, ".yaml", filepath.Ext(path))
	assert.Equal(t, ".toml", filepath.Ext(GeneratePlanPath("plans", ".toml")))
}

func TestShiftAngleInvertsPanGeometry(t *testing.T) {
	for _, shift := range []float64{-0.3, 0, 0.1, 0.45} {
		yaw := shiftAngle(shift)
		back := math.Tan(yaw*math.Pi/180) * motion.DefaultFocalLength / transform.SensorWidth
		assert.InDelta(t, shift, back, 1e-9)
	}
}
