package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotmotion/internal/motion"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, motion.EaseInOut, cfg.Easing())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "shotmotion.yaml", `
motion:
  frame_rate: 30
  default_easing: ease-out-cubic
coherence:
  enable_advanced_analysis: false
  artifact_threshold: 0.4
  coherence_threshold: 0.8
runner:
  workers: 3
  output_dir: renders
  encode_preview: true
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Motion.FrameRate)
	assert.Equal(t, motion.EaseOutCubic, cfg.Easing())
	assert.False(t, cfg.Coherence.EnableAdvancedAnalysis)
	assert.Equal(t, 0.4, cfg.Coherence.ArtifactThreshold)
	assert.Equal(t, 0.8, cfg.Coherence.CoherenceThreshold)
	assert.Equal(t, 0.7, cfg.Coherence.WeakMetricThreshold)
	assert.Equal(t, 3, cfg.Runner.Workers)
	assert.Equal(t, "renders", cfg.Runner.OutputDir)
	assert.True(t, cfg.Runner.EncodePreview)
	assert.Equal(t, "json", cfg.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Export, cfg.Export)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "shotmotion.toml", `
[motion]
frame_rate = 25.0

[export]
video_encoder = "libx264"
quality = 18
reel = true
transition_type = "fade"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Motion.FrameRate)
	assert.Equal(t, "libx264", cfg.Export.VideoEncoder)
	assert.Equal(t, 18, cfg.Export.Quality)
	assert.True(t, cfg.Export.Reel)
	assert.Equal(t, "fade", cfg.Export.TransitionType)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SHOTMOTION_COHERENCE_ARTIFACT_THRESHOLD", "0.55")
	t.Setenv("SHOTMOTION_RUNNER_WORKERS", "6")
	t.Setenv("SHOTMOTION_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Coherence.ArtifactThreshold)
	assert.Equal(t, 6, cfg.Runner.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero frame rate", "motion:\n  frame_rate: 0\n"},
		{"unknown easing", "motion:\n  default_easing: wobble\n"},
		{"artifact threshold out of range", "coherence:\n  artifact_threshold: 1.2\n"},
		{"coherence threshold zero", "coherence:\n  coherence_threshold: 0\n"},
		{"negative workers", "runner:\n  workers: -1\n"},
		{"quality out of range", "export:\n  quality: 300\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"malformed yaml", "motion: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "shotmotion.yaml", tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
