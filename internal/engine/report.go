package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/shotmotion/internal/camera"
	"github.com/ivlev/shotmotion/internal/coherence"
	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/system"
)

// Report is the outcome of one RunPlan call.
type Report struct {
	RunID     uuid.UUID        `yaml:"run_id"`
	StartedAt time.Time        `yaml:"started_at"`
	Elapsed   time.Duration    `yaml:"elapsed"`
	Workers   int              `yaml:"workers"`
	Resources system.Resources `yaml:"resources"`
	Succeeded int              `yaml:"succeeded"`
	Failed    int              `yaml:"failed"`
	// Passed counts successful shots whose overall coherence reached the threshold.
	Passed   int           `yaml:"passed"`
	ReelPath string        `yaml:"reel_path,omitempty"`
	ReelTime time.Duration `yaml:"reel_time,omitempty"`
	Shots    []ShotReport  `yaml:"shots"`
}

// ShotReport describes one shot, successful or not.
type ShotReport struct {
	ID         int                                  `yaml:"id"`
	Input      string                               `yaml:"input"`
	Kind       string                               `yaml:"kind"`
	Duration   float64                              `yaml:"duration"`
	FrameRate  float64                              `yaml:"frame_rate"`
	FrameCount int                                  `yaml:"frame_count"`
	Success    bool                                 `yaml:"success"`
	Error      string                               `yaml:"error,omitempty"`
	Passed     bool                                 `yaml:"passed"`
	Movement   *camera.Metadata                     `yaml:"movement,omitempty"`
	Regions    []director.Rectangle                 `yaml:"regions,omitempty"`
	Coherence  *coherence.SequenceCoherenceAnalysis `yaml:"coherence,omitempty"`
	FramesDir  string                               `yaml:"frames_dir,omitempty"`
	Preview    string                               `yaml:"preview,omitempty"`
	// StillRendered is set when ffmpeg rendered the preview from the source still.
	StillRendered bool                     `yaml:"still_rendered,omitempty"`
	Timings       map[string]time.Duration `yaml:"timings"`
}

func (r *Report) tally() {
	r.Succeeded, r.Failed, r.Passed = 0, 0, 0
	for _, s := range r.Shots {
		if !s.Success {
			r.Failed++
			continue
		}
		r.Succeeded++
		if s.Passed {
			r.Passed++
		}
	}
}

// StageTotal sums the time every shot spent in stage.
func (r *Report) StageTotal(stage string) time.Duration {
	var total time.Duration
	for _, s := range r.Shots {
		total += s.Timings[stage]
	}
	return total
}

// Frames is the number of frames produced by successful shots.
func (r *Report) Frames() int {
	n := 0
	for _, s := range r.Shots {
		if s.Success {
			n += s.FrameCount
		}
	}
	return n
}

// Write stores the report as YAML, creating the parent directory.
func (r *Report) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadReport loads a report written by Write.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}

// Summary renders the performance block printed with -stats. Stage times are summed over
// shots, so with several workers they exceed the wall-clock total.
func (r *Report) Summary() string {
	fps := 0.0
	if s := r.Elapsed.Seconds(); s > 0 {
		fps = float64(r.Frames()) / s
	}
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Run: %s\n"+
			"Shots: %d ok / %d failed / %d passed coherence\n"+
			"Total Time: %.2fs (workers: %d)\n"+
			"Loading: %.2fs\n"+
			"Interpolation: %.2fs\n"+
			"Camera Movement: %.2fs\n"+
			"Coherence Analysis: %.2fs\n"+
			"Export: %.2fs\n"+
			"Reel: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		r.RunID, r.Succeeded, r.Failed, r.Passed,
		r.Elapsed.Seconds(), r.Workers,
		r.StageTotal(StageLoad).Seconds(),
		r.StageTotal(StageInterpolate).Seconds(),
		r.StageTotal(StageMovement).Seconds(),
		r.StageTotal(StageCoherence).Seconds(),
		r.StageTotal(StageExport).Seconds(),
		r.ReelTime.Seconds(),
		fps,
	)
}

// AppendBenchmark adds a one-line entry for this run to the benchmark log at path.
func (r *Report) AppendBenchmark(path, plan string) error {
	entry := fmt.Sprintf("[%s] Run: %s | Plan: %s | Shots: %d | Frames: %d | Total: %.2fs | Movement: %.2fs | Coherence: %.2fs\n",
		r.StartedAt.Format("2006-01-02 15:04:05"),
		r.RunID,
		filepath.Base(plan),
		len(r.Shots),
		r.Frames(),
		r.Elapsed.Seconds(),
		r.StageTotal(StageMovement).Seconds(),
		r.StageTotal(StageCoherence).Seconds(),
	)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
