package analyzer

import "fmt"

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "thumbnail":
		return NewThumbnailDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}

// NewThumbnailDetector is a contrast detector tuned for analysis thumbnails, where regions
// are a few dozen pixels across.
func NewThumbnailDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:     36,
		EdgeThreshold:    40.0,
		DilateKernel:     3,
		DilateIterations: 1,
	}
}

// Options configures the analyzers built by NewAnalyzer.
type Options struct {
	// ArtifactThreshold is the minimum severity an artifact must reach to be reported.
	ArtifactThreshold float64
	// Advanced enables the expensive checks: ghosting detection and region tracking.
	Advanced bool
}

type analyzerFactory func(Options) Analyzer

// analyzerFactories is indexed by Metric.
var analyzerFactories = [...]analyzerFactory{
	CharacterStability:  func(Options) Analyzer { return NewCharacterStabilityTracker() },
	LightingConsistency: func(Options) Analyzer { return NewLightingConsistencyAnalyzer() },
	ColorPalette:        func(Options) Analyzer { return NewColorPaletteAnalyzer() },
	ArtifactFreedom:     func(o Options) Analyzer { return NewArtifactDetector(o.ArtifactThreshold, o.Advanced) },
}

var _ = [1]struct{}{}[len(analyzerFactories)-int(NumMetrics)]

// NewAnalyzer builds the analyzer for metric m.
func NewAnalyzer(m Metric, opts Options) (Analyzer, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown metric %d", int(m))
	}
	return analyzerFactories[m](opts), nil
}
