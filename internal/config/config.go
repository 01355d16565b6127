// Package config loads shotmotion settings from defaults, an optional YAML or TOML file
// and SHOTMOTION_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ivlev/shotmotion/internal/coherence"
	"github.com/ivlev/shotmotion/internal/motion"
)

// EnvPrefix prefixes every environment override, e.g. SHOTMOTION_RUNNER_WORKERS.
const EnvPrefix = "SHOTMOTION"

type Config struct {
	Motion    MotionConfig     `mapstructure:"motion"`
	Coherence coherence.Config `mapstructure:"coherence"`
	Runner    RunnerConfig     `mapstructure:"runner"`
	Export    ExportConfig     `mapstructure:"export"`
	Log       LogConfig        `mapstructure:"log"`
}

type MotionConfig struct {
	FrameRate     float64 `mapstructure:"frame_rate"`
	DefaultEasing string  `mapstructure:"default_easing"`
	// Detector selects the salient-region detector used for movement suggestions.
	Detector string `mapstructure:"detector"`
}

type RunnerConfig struct {
	Workers       int    `mapstructure:"workers"`
	OutputDir     string `mapstructure:"output_dir"`
	WriteFrames   bool   `mapstructure:"write_frames"`
	EncodePreview bool   `mapstructure:"encode_preview"`
	MetricsFile   string `mapstructure:"metrics_file"`
	ShowStats     bool   `mapstructure:"show_stats"`
	// DPI is the raster resolution for storyboard PDF pages.
	DPI int `mapstructure:"dpi"`
}

// ExportConfig controls preview encoding. An empty VideoEncoder picks the best available
// H.264 encoder at run time.
type ExportConfig struct {
	VideoEncoder   string  `mapstructure:"video_encoder"`
	Quality        int     `mapstructure:"quality"`
	Preset         string  `mapstructure:"preset"`
	Reel           bool    `mapstructure:"reel"`
	TransitionType string  `mapstructure:"transition_type"`
	FadeDuration   float64 `mapstructure:"fade_duration"`
	// StillRender lets ffmpeg render single-keyframe shots from the still at source
	// resolution with a zoompan filter instead of encoding the warped frames.
	StillRender bool `mapstructure:"still_render"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration. With an empty path it looks for shotmotion.{yaml,toml} in
// the working directory and ./configs and carries on with defaults when none exists; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shotmotion")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	return &Config{
		Motion:    MotionConfig{FrameRate: 24, DefaultEasing: "ease_in_out", Detector: "contrast"},
		Coherence: coherence.DefaultConfig(),
		Runner:    RunnerConfig{OutputDir: "output", DPI: 150},
		Export:    ExportConfig{Quality: 23, Preset: "medium", TransitionType: "none", FadeDuration: 0.5},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("motion.frame_rate", d.Motion.FrameRate)
	v.SetDefault("motion.default_easing", d.Motion.DefaultEasing)
	v.SetDefault("motion.detector", d.Motion.Detector)

	v.SetDefault("coherence.enable_advanced_analysis", d.Coherence.EnableAdvancedAnalysis)
	v.SetDefault("coherence.artifact_threshold", d.Coherence.ArtifactThreshold)
	v.SetDefault("coherence.coherence_threshold", d.Coherence.CoherenceThreshold)
	v.SetDefault("coherence.weak_metric_threshold", d.Coherence.WeakMetricThreshold)

	v.SetDefault("runner.workers", d.Runner.Workers)
	v.SetDefault("runner.output_dir", d.Runner.OutputDir)
	v.SetDefault("runner.write_frames", d.Runner.WriteFrames)
	v.SetDefault("runner.encode_preview", d.Runner.EncodePreview)
	v.SetDefault("runner.metrics_file", d.Runner.MetricsFile)
	v.SetDefault("runner.show_stats", d.Runner.ShowStats)
	v.SetDefault("runner.dpi", d.Runner.DPI)

	v.SetDefault("export.video_encoder", d.Export.VideoEncoder)
	v.SetDefault("export.quality", d.Export.Quality)
	v.SetDefault("export.preset", d.Export.Preset)
	v.SetDefault("export.reel", d.Export.Reel)
	v.SetDefault("export.transition_type", d.Export.TransitionType)
	v.SetDefault("export.fade_duration", d.Export.FadeDuration)
	v.SetDefault("export.still_render", d.Export.StillRender)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if !(c.Motion.FrameRate > 0) {
		return fmt.Errorf("motion.frame_rate must be positive, got %v", c.Motion.FrameRate)
	}
	if _, err := motion.ParseEasing(c.Motion.DefaultEasing); err != nil {
		return fmt.Errorf("motion.default_easing: %w", err)
	}
	if err := c.Coherence.Validate(); err != nil {
		return fmt.Errorf("coherence: %w", err)
	}
	if c.Runner.Workers < 0 {
		return fmt.Errorf("runner.workers must not be negative, got %d", c.Runner.Workers)
	}
	if c.Runner.DPI <= 0 {
		return fmt.Errorf("runner.dpi must be positive, got %d", c.Runner.DPI)
	}
	if c.Export.Quality < 0 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be in [0,100], got %d", c.Export.Quality)
	}
	if c.Export.FadeDuration < 0 {
		return fmt.Errorf("export.fade_duration must not be negative, got %v", c.Export.FadeDuration)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Easing returns the parsed default easing. Validate guarantees it parses.
func (c *Config) Easing() motion.Easing {
	e, _ := motion.ParseEasing(c.Motion.DefaultEasing)
	return e
}
