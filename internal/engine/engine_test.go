package engine

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/shotmotion/internal/config"
	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/motion"
	"github.com/ivlev/shotmotion/internal/video"
)

const pattern = "pattern:test?frames=3&width=96&height=64&step=2"

type fakeExporter struct {
	mu      sync.Mutex
	encoded map[string]video.EncodeParams
	clips   []string
	reel    video.ReelParams
}

func (f *fakeExporter) Encode(_ context.Context, frames []image.Image, path string, params video.EncodeParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.encoded == nil {
		f.encoded = map[string]video.EncodeParams{}
	}
	f.encoded[path] = params
	return os.WriteFile(path, []byte("clip"), 0644)
}

func (f *fakeExporter) Concatenate(_ context.Context, clipPaths []string, finalPath, _ string, params video.ReelParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = clipPaths
	f.reel = params
	return os.WriteFile(finalPath, []byte("reel"), 0644)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Motion.FrameRate = 10
	cfg.Runner.Workers = 2
	cfg.Runner.OutputDir = t.TempDir()
	return cfg
}

func testPlan() *director.Plan {
	pan := motion.NewPan(0, 5, 1).WithEasing(motion.EaseInOut)
	compound := motion.CompoundMovement{
		Movements: []motion.MovementSpec{motion.NewTilt(0, -3, 1), motion.NewZoom(1, 1.2, 1)},
		BlendMode: motion.Additive,
	}
	return &director.Plan{
		Version: director.PlanVersion,
		Shots: []director.Shot{
			{ID: 1, Input: pattern, Duration: 1, Movement: &pan},
			{ID: 2, Input: pattern, Duration: 1.2, Compound: &compound},
			{ID: 3, Input: pattern, Duration: 0.8, Auto: true},
		},
	}
}

func TestRunPlanProcessesEveryShot(t *testing.T) {
	runner := NewRunner(testConfig(t), nil)

	report, err := runner.RunPlan(context.Background(), testPlan())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.RunID)
	assert.Equal(t, 2, report.Workers)
	assert.Equal(t, 3, report.Succeeded)
	assert.Zero(t, report.Failed)
	require.Len(t, report.Shots, 3)

	wantFrames := []int{10, 12, 8}
	for i, s := range report.Shots {
		assert.Equal(t, i+1, s.ID, "shots keep plan order")
		assert.True(t, s.Success, s.Error)
		assert.Equal(t, wantFrames[i], s.FrameCount)
		assert.Equal(t, 10.0, s.FrameRate)
		require.NotNil(t, s.Movement)
		require.NotNil(t, s.Coherence)
		assert.Equal(t, wantFrames[i], s.Coherence.FrameCount)
		assert.True(t, s.Coherence.OverallScore >= 0 && s.Coherence.OverallScore <= 1)
		assert.Equal(t, s.Coherence.Passed(0.7), s.Passed)
		for _, stage := range []string{StageLoad, StageInterpolate, StageMovement, StageCoherence} {
			assert.Contains(t, s.Timings, stage)
		}
		assert.NotContains(t, s.Timings, StageExport)
	}
	assert.Equal(t, "pan", report.Shots[0].Movement.MovementType)
	assert.True(t, report.Shots[1].Movement.CompoundMovement)
	assert.Equal(t, "auto", report.Shots[2].Kind)
	assert.Equal(t, 30, report.Frames())
}

func TestRunPlanRecordsFailures(t *testing.T) {
	runner := NewRunner(testConfig(t), nil)
	plan := testPlan()
	plan.Shots[1].Input = filepath.Join(t.TempDir(), "missing.png")

	report, err := runner.RunPlan(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	failed := report.Shots[1]
	assert.False(t, failed.Success)
	assert.True(t, strings.HasPrefix(failed.Error, StageLoad+":"), failed.Error)
	assert.Nil(t, failed.Coherence)
}

func TestRunPlanFailsWhenEveryShotFails(t *testing.T) {
	runner := NewRunner(testConfig(t), nil)
	plan := testPlan()
	for i := range plan.Shots {
		plan.Shots[i].Input = "pattern:bad?frames=zero"
	}

	report, err := runner.RunPlan(context.Background(), plan)
	assert.ErrorIs(t, err, ErrAllShotsFailed)
	require.NotNil(t, report)
	assert.Equal(t, 3, report.Failed)
}

func TestRunPlanRejectsInvalidPlan(t *testing.T) {
	_, err := NewRunner(testConfig(t), nil).RunPlan(context.Background(), &director.Plan{})
	assert.ErrorIs(t, err, director.ErrInvalidPlan)
}

func TestRunPlanCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewRunner(testConfig(t), nil).RunPlan(ctx, testPlan())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	for _, s := range report.Shots {
		assert.False(t, s.Success)
	}
}

func TestRunPlanExports(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runner.WriteFrames = true
	cfg.Runner.EncodePreview = true
	cfg.Export.VideoEncoder = "libx264"
	cfg.Export.Reel = true
	cfg.Export.TransitionType = "fade"
	cfg.Export.FadeDuration = 2
	exporter := &fakeExporter{}
	runner := NewRunner(cfg, nil)
	runner.Exporter = exporter

	report, err := runner.RunPlan(context.Background(), testPlan())
	require.NoError(t, err)

	out := cfg.Runner.OutputDir
	for _, s := range report.Shots {
		require.True(t, s.Success, s.Error)
		pngs, err := filepath.Glob(filepath.Join(s.FramesDir, "frame_*.png"))
		require.NoError(t, err)
		assert.Len(t, pngs, s.FrameCount)
		assert.FileExists(t, s.Preview)
		assert.Contains(t, s.Timings, StageExport)

		params := exporter.encoded[s.Preview]
		assert.Equal(t, 10.0, params.FPS)
		assert.Equal(t, "libx264", params.Encoder)
		assert.Equal(t, cfg.Export.Quality, params.Quality)
	}

	assert.Equal(t, filepath.Join(out, "reel.mp4"), report.ReelPath)
	assert.Equal(t, []string{
		filepath.Join(out, "shot_001.mp4"),
		filepath.Join(out, "shot_002.mp4"),
		filepath.Join(out, "shot_003.mp4"),
	}, exporter.clips)
	assert.InDeltaSlice(t, []float64{1, 1.2, 0.8}, exporter.reel.Durations, 1e-9)
	// The shortest clip is 0.8s, so the 2s fade is halved relative to it.
	assert.InDelta(t, 0.4, exporter.reel.FadeDuration, 1e-9)
	assert.Equal(t, "fade", exporter.reel.TransitionType)
}

func TestRunPlanWritesMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runner.MetricsFile = filepath.Join(cfg.Runner.OutputDir, "shotmotion.prom")
	plan := testPlan()
	plan.Shots[0].Input = "missing.png"

	_, err := NewRunner(cfg, nil).RunPlan(context.Background(), plan)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.Runner.MetricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `shotmotion_shots_total{status="ok"} 2`)
	assert.Contains(t, text, `shotmotion_shots_total{status="failed"} 1`)
	assert.Contains(t, text, `shotmotion_frames_transformed_total 20`)
}

func TestRunPlanReportsProgress(t *testing.T) {
	runner := NewRunner(testConfig(t), nil)
	var mu sync.Mutex
	var seen []int
	runner.Progress = func(done, total int, shot ShotReport) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	}

	_, err := runner.RunPlan(context.Background(), testPlan())
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestRunPlanLogsRunID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	report, err := NewRunner(testConfig(t), logger).RunPlan(context.Background(), testPlan())
	require.NoError(t, err)

	var started, finished bool
	for _, e := range hook.AllEntries() {
		switch e.Message {
		case "run started":
			started = true
			assert.Equal(t, report.RunID.String(), e.Data["run_id"])
		case "run finished":
			finished = true
			assert.Equal(t, 3, e.Data["succeeded"])
		}
	}
	assert.True(t, started)
	assert.True(t, finished)
}

func TestReportRoundTrip(t *testing.T) {
	report, err := NewRunner(testConfig(t), nil).RunPlan(context.Background(), testPlan())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reports", "report.yaml")
	require.NoError(t, report.Write(path))

	got, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, got.RunID)
	assert.Equal(t, report.Succeeded, got.Succeeded)
	require.Len(t, got.Shots, 3)
	for i := range got.Shots {
		assert.InDelta(t, report.Shots[i].Coherence.OverallScore, got.Shots[i].Coherence.OverallScore, 1e-9)
		assert.Equal(t, report.Shots[i].Coherence.DetectedArtifacts, got.Shots[i].Coherence.DetectedArtifacts)
		assert.Equal(t, report.Shots[i].Timings, got.Shots[i].Timings)
		assert.Equal(t, report.Shots[i].Movement.MovementType, got.Shots[i].Movement.MovementType)
	}
}

func TestReportSummaryAndBenchmark(t *testing.T) {
	report, err := NewRunner(testConfig(t), nil).RunPlan(context.Background(), testPlan())
	require.NoError(t, err)

	summary := report.Summary()
	assert.Contains(t, summary, "PERFORMANCE REPORT")
	assert.Contains(t, summary, report.RunID.String())
	assert.Contains(t, summary, "Shots: 3 ok / 0 failed")

	path := filepath.Join(t.TempDir(), "benchmark.log")
	require.NoError(t, report.AppendBenchmark(path, "plans/demo.yaml"))
	require.NoError(t, report.AppendBenchmark(path, "plans/demo.yaml"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Plan: demo.yaml | Shots: 3 | Frames: 30")
}

type fakeStillExporter struct {
	fakeExporter
	filters map[string]string
}

func (f *fakeStillExporter) RenderStill(_ context.Context, still image.Image, filter string, frames int, path string, _ video.EncodeParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.filters == nil {
		f.filters = map[string]string{}
	}
	f.filters[path] = filter
	return os.WriteFile(path, []byte("still"), 0644)
}

func TestRunPlanRendersStills(t *testing.T) {
	cfg := testConfig(t)
	cfg.Runner.EncodePreview = true
	cfg.Export.VideoEncoder = "libx264"
	cfg.Export.StillRender = true
	exporter := &fakeStillExporter{}
	runner := NewRunner(cfg, nil)
	runner.Exporter = exporter

	still := "pattern:still?frames=1&width=96&height=64"
	pan := motion.NewPan(0, 5, 1)
	roll := motion.NewPan(0, 5, 1)
	roll.End.Roll = 10
	plan := &director.Plan{Shots: []director.Shot{
		{ID: 1, Input: still, Duration: 1, Movement: &pan},
		{ID: 2, Input: pattern, Duration: 1, Movement: &pan},
		{ID: 3, Input: still, Duration: 1, Movement: &roll},
	}}

	report, err := runner.RunPlan(context.Background(), plan)
	require.NoError(t, err)
	for _, s := range report.Shots {
		require.True(t, s.Success, s.Error)
	}

	// A single keyframe goes through zoompan.
	first := report.Shots[0]
	assert.True(t, first.StillRendered)
	filter := exporter.filters[first.Preview]
	assert.Contains(t, filter, "zoompan=")
	assert.Contains(t, filter, "d=10")
	assert.Contains(t, filter, "s=96x64")

	// Several keyframes are encoded frame by frame.
	assert.False(t, report.Shots[1].StillRendered)
	assert.Contains(t, exporter.encoded, report.Shots[1].Preview)

	// zoompan cannot roll, so the warped frames are encoded instead.
	assert.False(t, report.Shots[2].StillRendered)
	assert.Contains(t, exporter.encoded, report.Shots[2].Preview)
}
