package coherence

import "fmt"

// Config holds the knobs of one coherence analysis. It is passed into every call; there are
// no package-level defaults to mutate.
type Config struct {
	// EnableAdvancedAnalysis turns on region tracking (character stability) and ghosting
	// detection. Disabling it skips the stability metric and renormalizes the weights.
	EnableAdvancedAnalysis bool `mapstructure:"enable_advanced_analysis" yaml:"enable_advanced_analysis" toml:"enable_advanced_analysis"`
	// ArtifactThreshold is the minimum severity an artifact must reach to be reported.
	ArtifactThreshold float64 `mapstructure:"artifact_threshold" yaml:"artifact_threshold" toml:"artifact_threshold"`
	// CoherenceThreshold is the overall score below which recommendations are mandatory.
	CoherenceThreshold float64 `mapstructure:"coherence_threshold" yaml:"coherence_threshold" toml:"coherence_threshold"`
	// WeakMetricThreshold is the per-metric score below which a metric gets its own
	// recommendation. Zero means the coherence threshold.
	WeakMetricThreshold float64 `mapstructure:"weak_metric_threshold" yaml:"weak_metric_threshold,omitempty" toml:"weak_metric_threshold"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EnableAdvancedAnalysis: true,
		ArtifactThreshold:      0.3,
		CoherenceThreshold:     0.7,
		WeakMetricThreshold:    0.7,
	}
}

// Validate checks that both thresholds lie strictly between 0 and 1.
func (c Config) Validate() error {
	if !(c.ArtifactThreshold > 0 && c.ArtifactThreshold < 1) {
		return fmt.Errorf("%w: artifact threshold %v not in (0,1)", ErrInvalidConfig, c.ArtifactThreshold)
	}
	if !(c.CoherenceThreshold > 0 && c.CoherenceThreshold < 1) {
		return fmt.Errorf("%w: coherence threshold %v not in (0,1)", ErrInvalidConfig, c.CoherenceThreshold)
	}
	if c.WeakMetricThreshold < 0 || c.WeakMetricThreshold >= 1 {
		return fmt.Errorf("%w: weak metric threshold %v not in [0,1)", ErrInvalidConfig, c.WeakMetricThreshold)
	}
	return nil
}

func (c Config) weakThreshold() float64 {
	if c.WeakMetricThreshold == 0 {
		return c.CoherenceThreshold
	}
	return c.WeakMetricThreshold
}
