// Package coherence scores frame sequences for temporal consistency.
//
// The Engine runs the per-metric analyzers over one precomputed Sequence, combines their
// scores with fixed weights and turns weak metrics and detected artifacts into remediation
// advice. Scores are deterministic for equal input and configuration.
package coherence

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/logging"
	"github.com/ivlev/shotmotion/internal/similarity"
)

// ErrInvalidConfig is returned for thresholds outside their allowed range.
var ErrInvalidConfig = errors.New("invalid coherence configuration")

// weights is indexed by analyzer.Metric and sums to 1.
var weights = [...]float64{
	analyzer.CharacterStability:  0.30,
	analyzer.LightingConsistency: 0.25,
	analyzer.ColorPalette:        0.25,
	analyzer.ArtifactFreedom:     0.20,
}

var _ = [1]struct{}{}[len(weights)-int(analyzer.NumMetrics)]

// SequenceCoherenceAnalysis is the verdict on one frame sequence.
type SequenceCoherenceAnalysis struct {
	OverallScore      float64                      `yaml:"overall_score"`
	MetricScores      []analyzer.CoherenceScore    `yaml:"metric_scores"`
	DetectedArtifacts []analyzer.ArtifactDetection `yaml:"detected_artifacts"`
	Recommendations   []string                     `yaml:"recommendations"`
	ProcessingTime    time.Duration                `yaml:"processing_time"`
	FrameCount        int                          `yaml:"frame_count"`
}

// Score returns the score recorded for m.
func (a *SequenceCoherenceAnalysis) Score(m analyzer.Metric) (analyzer.CoherenceScore, bool) {
	for _, s := range a.MetricScores {
		if s.Metric == m {
			return s, true
		}
	}
	return analyzer.CoherenceScore{}, false
}

// Passed reports whether the overall score reaches threshold.
func (a *SequenceCoherenceAnalysis) Passed(threshold float64) bool {
	return a.OverallScore >= threshold
}

// Engine is stateless apart from its logger and safe for concurrent use.
type Engine struct {
	logger *logrus.Logger
}

// NewEngine returns an Engine. A nil logger discards output.
func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{logger: logging.OrDiscard(logger)}
}

// AnalyzeSequenceCoherence scores frames on every enabled metric. Empty or mixed-shape
// sequences are rejected; sequences of one or two frames get neutral, degraded scores.
// Finding nothing wrong is a successful result.
func (e *Engine) AnalyzeSequenceCoherence(ctx context.Context, frames []image.Image, cfg Config) (*SequenceCoherenceAnalysis, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seq, err := analyzer.NewSequence(ctx, frames)
	if err != nil {
		return nil, fmt.Errorf("prepare sequence: %w", err)
	}

	opts := analyzer.Options{ArtifactThreshold: cfg.ArtifactThreshold, Advanced: cfg.EnableAdvancedAnalysis}
	result := &SequenceCoherenceAnalysis{
		FrameCount:        len(frames),
		DetectedArtifacts: []analyzer.ArtifactDetection{},
	}

	var weighted, total float64
	for _, m := range analyzer.Metrics() {
		if m == analyzer.CharacterStability && !cfg.EnableAdvancedAnalysis {
			continue
		}
		score, found, err := e.run(ctx, seq, m, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		result.MetricScores = append(result.MetricScores, score)
		result.DetectedArtifacts = append(result.DetectedArtifacts, found...)
		weighted += weights[m] * score.Score
		total += weights[m]
	}
	if total > 0 {
		result.OverallScore = similarity.Clamp01(weighted / total)
	}
	result.Recommendations = recommend(result, cfg)
	result.ProcessingTime = time.Since(start)

	e.logger.WithFields(logrus.Fields{
		"frames":    result.FrameCount,
		"overall":   result.OverallScore,
		"artifacts": len(result.DetectedArtifacts),
		"advanced":  cfg.EnableAdvancedAnalysis,
		"elapsed":   result.ProcessingTime,
	}).Debug("coherence analysis complete")

	return result, nil
}

// run scores one metric; the artifact metric also returns its detections.
func (e *Engine) run(ctx context.Context, seq *analyzer.Sequence, m analyzer.Metric, opts analyzer.Options) (analyzer.CoherenceScore, []analyzer.ArtifactDetection, error) {
	a, err := analyzer.NewAnalyzer(m, opts)
	if err != nil {
		return analyzer.CoherenceScore{}, nil, err
	}
	if d, ok := a.(*analyzer.ArtifactDetector); ok {
		return d.Inspect(ctx, seq)
	}
	score, err := a.Analyze(ctx, seq)
	return score, nil, err
}

// ValidateFrameTransition compares two frames on the four pairwise similarity axes.
func (e *Engine) ValidateFrameTransition(a, b image.Image) (similarity.Transition, error) {
	return similarity.CompareFrames(a, b)
}
