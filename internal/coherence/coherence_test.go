package coherence

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/frame"
)

func scene(w, h, x int, bg uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			v := bg
			if px >= x && px < x+24 && py >= 16 && py < 40 {
				v = 255
			}
			img.SetRGBA(px, py, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

func panning(n int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = scene(96, 64, 20+i, 40)
	}
	return frames
}

func TestIdenticalFramesAreCoherent(t *testing.T) {
	f := scene(96, 64, 30, 40)
	frames := []image.Image{f, f, f, f, f, f, f, f}

	got, err := NewEngine(nil).AnalyzeSequenceCoherence(context.Background(), frames, DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, got.OverallScore, 1e-6)
	assert.Empty(t, got.DetectedArtifacts)
	assert.Empty(t, got.Recommendations)
	assert.Equal(t, 8, got.FrameCount)
	assert.Len(t, got.MetricScores, len(analyzer.Metrics()))
	assert.GreaterOrEqual(t, got.ProcessingTime.Nanoseconds(), int64(0))
	assert.True(t, got.Passed(0.7))
}

func TestFlickeringSequenceGetsRecommendations(t *testing.T) {
	frames := make([]image.Image, 12)
	for i := range frames {
		bg := uint8(60)
		if i%2 == 1 {
			bg = 110
		}
		frames[i] = scene(96, 64, 30, bg)
	}
	cfg := DefaultConfig()

	got, err := NewEngine(nil).AnalyzeSequenceCoherence(context.Background(), frames, cfg)
	require.NoError(t, err)

	assert.Less(t, got.OverallScore, cfg.CoherenceThreshold)
	require.NotEmpty(t, got.Recommendations)
	for _, r := range got.Recommendations {
		assert.GreaterOrEqual(t, len(r), 10, r)
	}
	require.NotEmpty(t, got.DetectedArtifacts)
	assert.Equal(t, analyzer.Flicker, got.DetectedArtifacts[0].Type)
	for _, a := range got.DetectedArtifacts {
		assert.NotEmpty(t, a.Description)
		for _, idx := range a.FrameIndices {
			assert.True(t, idx >= 0 && idx < len(frames))
		}
	}
}

func TestScoresStayInRange(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 16} {
		got, err := NewEngine(nil).AnalyzeSequenceCoherence(context.Background(), panning(n), DefaultConfig())
		require.NoError(t, err)
		assert.True(t, got.OverallScore >= 0 && got.OverallScore <= 1)
		assert.Equal(t, n, got.FrameCount)
		for _, s := range got.MetricScores {
			assert.True(t, s.Score >= 0 && s.Score <= 1, s.Metric.String())
			assert.True(t, s.Confidence >= 0 && s.Confidence <= 1, s.Metric.String())
			assert.LessOrEqual(t, s.FrameRange.Start, s.FrameRange.End)
			assert.Less(t, s.FrameRange.End, n)
			assert.Equal(t, n < analyzer.MinTemporalFrames, s.Degraded)
		}
		if got.OverallScore < DefaultConfig().CoherenceThreshold {
			assert.NotEmpty(t, got.Recommendations)
		}
	}
}

func TestAnalysisIsDeterministic(t *testing.T) {
	frames := panning(10)
	frames[6] = scene(96, 64, 70, 40)
	engine := NewEngine(nil)

	first, err := engine.AnalyzeSequenceCoherence(context.Background(), frames, DefaultConfig())
	require.NoError(t, err)
	second, err := engine.AnalyzeSequenceCoherence(context.Background(), frames, DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, first.OverallScore, second.OverallScore, 1e-12)
	assert.Equal(t, first.DetectedArtifacts, second.DetectedArtifacts)
	assert.Equal(t, first.Recommendations, second.Recommendations)
}

func TestAdvancedAnalysisToggle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableAdvancedAnalysis = false

	got, err := NewEngine(nil).AnalyzeSequenceCoherence(context.Background(), panning(6), cfg)
	require.NoError(t, err)

	require.Len(t, got.MetricScores, 3)
	_, ok := got.Score(analyzer.CharacterStability)
	assert.False(t, ok)
	for _, a := range got.DetectedArtifacts {
		assert.NotEqual(t, analyzer.Ghosting, a.Type)
	}
}

func TestInvalidInput(t *testing.T) {
	engine := NewEngine(nil)
	ctx := context.Background()

	_, err := engine.AnalyzeSequenceCoherence(ctx, nil, DefaultConfig())
	assert.ErrorIs(t, err, frame.ErrEmptySequence)

	mixed := []image.Image{scene(96, 64, 0, 0), scene(64, 64, 0, 0)}
	_, err = engine.AnalyzeSequenceCoherence(ctx, mixed, DefaultConfig())
	assert.ErrorIs(t, err, frame.ErrShapeMismatch)

	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"zero artifact threshold", func(c *Config) { c.ArtifactThreshold = 0 }},
		{"artifact threshold of one", func(c *Config) { c.ArtifactThreshold = 1 }},
		{"negative coherence threshold", func(c *Config) { c.CoherenceThreshold = -0.1 }},
		{"coherence threshold above one", func(c *Config) { c.CoherenceThreshold = 1.5 }},
		{"weak threshold of one", func(c *Config) { c.WeakMetricThreshold = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			_, err := engine.AnalyzeSequenceCoherence(ctx, panning(4), cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil).AnalyzeSequenceCoherence(ctx, panning(6), DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecommendations(t *testing.T) {
	cfg := DefaultConfig()
	analysis := &SequenceCoherenceAnalysis{
		OverallScore: 0.5,
		MetricScores: []analyzer.CoherenceScore{
			{Metric: analyzer.LightingConsistency, Score: 0.4},
			{Metric: analyzer.ColorPalette, Score: 0.9},
			{Metric: analyzer.CharacterStability, Score: 1, Degraded: true},
		},
		DetectedArtifacts: []analyzer.ArtifactDetection{
			{Type: analyzer.FrozenFrame, FrameIndices: []int{3, 4}},
			{Type: analyzer.FrozenFrame, FrameIndices: []int{3, 4}},
		},
	}
	recs := recommend(analysis, cfg)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "lighting_consistency")
	assert.Contains(t, recs[1], "frames 3-4")

	// Nothing specific to say but still below target.
	fallback := recommend(&SequenceCoherenceAnalysis{OverallScore: 0.6}, cfg)
	require.Len(t, fallback, 1)
	assert.Contains(t, fallback[0], "overall 0.60")

	assert.Empty(t, recommend(&SequenceCoherenceAnalysis{OverallScore: 0.95}, cfg))
}

func TestValidateFrameTransition(t *testing.T) {
	f := scene(96, 64, 30, 40)
	got, err := NewEngine(nil).ValidateFrameTransition(f, f)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.PixelSimilarity, 1e-9)
	assert.InDelta(t, 1.0, got.StructuralSimilarity, 1e-6)
	assert.InDelta(t, 1.0, got.ColorConsistency, 1e-9)
	assert.InDelta(t, 1.0, got.LightingConsistency, 1e-9)
}

func TestOneLevelFlickerKeepsPalette(t *testing.T) {
	frames := make([]image.Image, 8)
	for i := range frames {
		g := image.NewGray(image.Rect(0, 0, 96, 64))
		for j := range g.Pix {
			g.Pix[j] = uint8(127 + i%2)
		}
		frames[i] = g
	}
	got, err := NewEngine(nil).AnalyzeSequenceCoherence(context.Background(), frames, DefaultConfig())
	require.NoError(t, err)

	palette, ok := got.Score(analyzer.ColorPalette)
	require.True(t, ok)
	assert.Greater(t, palette.Score, 0.9, palette.Details)
	for _, r := range got.Recommendations {
		assert.NotContains(t, r, "Colour palette")
	}
}

func TestEngineLogsSummary(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	_, err := NewEngine(logger).AnalyzeSequenceCoherence(context.Background(), panning(4), DefaultConfig())
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.DebugLevel, entry.Level)
	assert.Equal(t, 4, entry.Data["frames"])
}
