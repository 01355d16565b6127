// Package engine runs shot plans: every shot is loaded, interpolated, moved through the
// camera system and scored for coherence, with optional frame dumps and preview encodes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/camera"
	"github.com/ivlev/shotmotion/internal/coherence"
	"github.com/ivlev/shotmotion/internal/config"
	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/interp"
	"github.com/ivlev/shotmotion/internal/logging"
	"github.com/ivlev/shotmotion/internal/metrics"
	"github.com/ivlev/shotmotion/internal/motion"
	"github.com/ivlev/shotmotion/internal/renderer"
	"github.com/ivlev/shotmotion/internal/source"
	"github.com/ivlev/shotmotion/internal/system"
	"github.com/ivlev/shotmotion/internal/transform"
	"github.com/ivlev/shotmotion/internal/video"
)

// ErrAllShotsFailed is returned, together with the report, when no shot of a plan succeeded.
var ErrAllShotsFailed = errors.New("all shots failed")

// perShotBytes is the working set budgeted per worker when sizing the pool: a few hundred
// full-HD RGBA frames plus analysis thumbnails.
const perShotBytes = 512 << 20

// Stage names used in shot timings and the stage duration metric.
const (
	StageLoad        = "load"
	StageInterpolate = "interpolate"
	StageMovement    = "movement"
	StageCoherence   = "coherence"
	StageExport      = "export"
)

// Runner executes plans. Its collaborators are exported so callers and tests can swap them.
type Runner struct {
	Config       *config.Config
	Camera       *camera.System
	Coherence    *coherence.Engine
	Interpolator interp.Interpolator
	Exporter     video.Exporter
	Metrics      *metrics.Recorder
	// Progress, when set, is called once per finished shot. Calls may come from several
	// goroutines.
	Progress func(done, total int, shot ShotReport)

	logger *logrus.Logger
}

// NewRunner wires the default collaborators: cross-dissolve interpolation, ffmpeg export and
// a fresh metrics registry. A nil logger discards output.
func NewRunner(cfg *config.Config, logger *logrus.Logger) *Runner {
	logger = logging.OrDiscard(logger)
	return &Runner{
		Config:       cfg,
		Camera:       camera.NewSystem(logger),
		Coherence:    coherence.NewEngine(logger),
		Interpolator: interp.CrossDissolve{},
		Exporter:     video.NewFFmpegExporter(),
		Metrics:      metrics.NewRecorder(),
		logger:       logger,
	}
}

// RunPlan processes every shot of plan with bounded parallelism. A failing shot is recorded
// in its ShotReport; the run itself fails only on cancellation, on reel or metrics export
// errors, or when every shot failed.
func (r *Runner) RunPlan(ctx context.Context, plan *director.Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: started,
		Workers:   system.RecommendedWorkers(r.Config.Runner.Workers, perShotBytes),
		Resources: system.Snapshot(),
		Shots:     make([]ShotReport, len(plan.Shots)),
	}
	log := r.logger.WithField("run_id", report.RunID.String())
	log.WithFields(logrus.Fields{
		"shots":   len(plan.Shots),
		"workers": report.Workers,
	}).Info("run started")

	encoder := ""
	if r.Config.Runner.EncodePreview {
		encoder = r.Config.Export.VideoEncoder
		if encoder == "" {
			encoder = system.GetBestH264Encoder(ctx)
		}
	}

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(report.Workers)
	for i, shot := range plan.Shots {
		g.Go(func() error {
			sr := r.runShot(gctx, plan, shot, encoder)
			report.Shots[i] = sr
			if r.Progress != nil {
				r.Progress(int(done.Add(1)), len(plan.Shots), sr)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return report, err
	}

	report.tally()

	if r.Config.Export.Reel && r.Config.Runner.EncodePreview {
		reelStart := time.Now()
		path, err := r.buildReel(ctx, plan, report, encoder)
		if err != nil {
			return report, fmt.Errorf("build reel: %w", err)
		}
		report.ReelPath = path
		report.ReelTime = time.Since(reelStart)
	}

	if path := r.Config.Runner.MetricsFile; path != "" {
		if err := r.Metrics.WriteTextfile(path); err != nil {
			return report, fmt.Errorf("write metrics: %w", err)
		}
	}

	report.Elapsed = time.Since(started)
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"passed":    report.Passed,
		"elapsed":   report.Elapsed,
	}).Info("run finished")

	if report.Succeeded == 0 {
		return report, ErrAllShotsFailed
	}
	return report, nil
}

// runShot never returns an error; failures land in the report.
func (r *Runner) runShot(ctx context.Context, plan *director.Plan, shot director.Shot, encoder string) ShotReport {
	fps := plan.FrameRateFor(shot, r.Config.Motion.FrameRate)
	sr := ShotReport{
		ID:        shot.ID,
		Input:     shot.Input,
		Kind:      shot.Kind(),
		Duration:  shot.Duration,
		FrameRate: fps,
		Timings:   map[string]time.Duration{},
	}
	log := r.logger.WithFields(logrus.Fields{"shot": shot.ID, "input": shot.Input})

	fail := func(stage string, err error) ShotReport {
		sr.Error = fmt.Sprintf("%s: %v", stage, err)
		r.Metrics.RecordShot(false)
		log.WithError(err).WithField("stage", stage).Warn("shot failed")
		return sr
	}
	timed := func(stage string, start time.Time) {
		d := time.Since(start)
		sr.Timings[stage] = d
		r.Metrics.RecordStage(stage, d)
	}

	start := time.Now()
	keyframes, err := r.loadKeyframes(shot)
	if err != nil {
		return fail(StageLoad, err)
	}
	timed(StageLoad, start)

	start = time.Now()
	frames, err := r.Interpolator.Interpolate(ctx, keyframes, motion.NominalFrameCount(shot.Duration, fps))
	if err != nil {
		return fail(StageInterpolate, err)
	}
	timed(StageInterpolate, start)

	start = time.Now()
	var result *camera.Result
	switch {
	case shot.Movement != nil:
		result = r.Camera.ApplyMovement(ctx, frames, *shot.Movement, fps)
	case shot.Compound != nil:
		result = r.Camera.ApplyCompoundMovement(ctx, frames, *shot.Compound, fps)
	default:
		compound, regions, err := r.suggest(keyframes[0], shot.Duration)
		if err != nil {
			return fail(StageMovement, err)
		}
		sr.Regions = regions
		result = r.Camera.ApplyCompoundMovement(ctx, frames, compound, fps)
	}
	if !result.Success {
		r.Metrics.RecordMovementFailure(result.Metadata.MovementType)
		return fail(StageMovement, errors.New(result.ErrorMessage))
	}
	sr.Movement = &result.Metadata
	sr.FrameCount = len(result.TransformedFrames)
	r.Metrics.RecordFrames(sr.FrameCount)
	timed(StageMovement, start)

	start = time.Now()
	analysis, err := r.Coherence.AnalyzeSequenceCoherence(ctx, result.TransformedFrames, r.Config.Coherence)
	if err != nil {
		return fail(StageCoherence, err)
	}
	sr.Coherence = analysis
	sr.Passed = analysis.Passed(r.Config.Coherence.CoherenceThreshold)
	for _, s := range analysis.MetricScores {
		r.Metrics.RecordScore(s.Metric.String(), s.Score)
	}
	for _, a := range analysis.DetectedArtifacts {
		r.Metrics.RecordArtifact(a.Type.String())
	}
	r.Metrics.RecordOverall(analysis.OverallScore)
	timed(StageCoherence, start)

	if r.Config.Runner.WriteFrames || r.Config.Runner.EncodePreview {
		start = time.Now()
		if err := r.export(ctx, &sr, keyframes, result, fps, encoder); err != nil {
			return fail(StageExport, err)
		}
		timed(StageExport, start)
	}

	sr.Success = true
	r.Metrics.RecordShot(true)
	log.WithFields(logrus.Fields{
		"frames":    sr.FrameCount,
		"overall":   analysis.OverallScore,
		"artifacts": len(analysis.DetectedArtifacts),
		"passed":    sr.Passed,
	}).Debug("shot complete")
	return sr
}

func (r *Runner) loadKeyframes(shot director.Shot) ([]image.Image, error) {
	src, err := source.Open(shot.Input, r.Config.Runner.DPI)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return source.LoadKeyframes(src, shot.Keyframes)
}

// suggest asks the director for a movement framing the salient regions of keyframe. Frames
// without usable regions get a slow push-in instead.
func (r *Runner) suggest(keyframe image.Image, duration float64) (motion.CompoundMovement, []director.Rectangle, error) {
	b := keyframe.Bounds()
	d := director.NewDirector(b.Dx(), b.Dy())
	d.Easing = r.Config.Easing()
	detector, err := analyzer.NewDetector(r.Config.Motion.Detector)
	if err != nil {
		return motion.CompoundMovement{}, nil, err
	}
	d.Detector = detector

	blocks, err := d.Regions(keyframe)
	if err != nil {
		return motion.CompoundMovement{}, nil, err
	}
	compound, err := d.SuggestMovement(blocks, duration)
	if err != nil {
		r.logger.WithError(err).Debug("no movement suggested, using push-in")
		push := motion.NewZoom(1, pushInZoom, duration).WithEasing(d.Easing)
		return motion.CompoundMovement{Movements: []motion.MovementSpec{push}, BlendMode: motion.Additive}, nil, nil
	}

	regions := make([]director.Rectangle, len(blocks))
	for i, blk := range blocks {
		regions[i] = director.Rectangle{X: blk.Rect.Min.X, Y: blk.Rect.Min.Y, W: blk.Rect.Dx(), H: blk.Rect.Dy()}
	}
	return compound, regions, nil
}

const pushInZoom = 1.1

func (r *Runner) export(ctx context.Context, sr *ShotReport, keyframes []image.Image, result *camera.Result, fps float64, encoder string) error {
	out := r.Config.Runner.OutputDir
	name := fmt.Sprintf("shot_%03d", sr.ID)
	frames := result.TransformedFrames

	if r.Config.Runner.WriteFrames {
		dir := filepath.Join(out, name)
		if _, err := video.WritePNGSequence(ctx, frames, dir, "frame"); err != nil {
			return err
		}
		sr.FramesDir = dir
	}

	if !r.Config.Runner.EncodePreview {
		return nil
	}
	if r.Exporter == nil {
		return errors.New("no exporter configured")
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	path := filepath.Join(out, name+".mp4")
	params := video.EncodeParams{
		FPS:     fps,
		Encoder: encoder,
		Quality: r.Config.Export.Quality,
		Preset:  r.Config.Export.Preset,
	}

	if still, ok := r.Exporter.(video.StillRenderer); ok && r.Config.Export.StillRender && len(keyframes) == 1 {
		filter, err := stillFilter(keyframes[0], result.Viewports, fps)
		if err == nil {
			if err := still.RenderStill(ctx, keyframes[0], filter, len(frames), path, params); err != nil {
				return err
			}
			sr.Preview, sr.StillRendered = path, true
			return nil
		}
		r.logger.WithError(err).WithField("shot", sr.ID).Debug("still render not possible, encoding frames")
	}

	if err := r.Exporter.Encode(ctx, frames, path, params); err != nil {
		return err
	}
	sr.Preview = path
	return nil
}

// stillTolerance is how far, in source pixels, the zoompan path may stray from the
// sampled viewport track.
const stillTolerance = 0.5

func stillFilter(still image.Image, track []transform.Viewport, fps float64) (string, error) {
	b := still.Bounds()
	keys, err := renderer.Keyframes(track, b.Dx(), b.Dy(), stillTolerance)
	if err != nil {
		return "", err
	}
	// yuv420p needs even output dimensions.
	return renderer.ZoomPanFilter(keys, len(track), b.Dx()&^1, b.Dy()&^1, fps), nil
}

// buildReel joins the previews of successful shots in plan order.
func (r *Runner) buildReel(ctx context.Context, plan *director.Plan, report *Report, encoder string) (string, error) {
	var clips []string
	var durations []float64
	for _, s := range report.Shots {
		if s.Preview == "" {
			continue
		}
		clips = append(clips, s.Preview)
		durations = append(durations, float64(s.FrameCount)/s.FrameRate)
	}
	if len(clips) == 0 {
		return "", nil
	}

	tmp, err := os.MkdirTemp("", "shotmotion_")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	fade := FitFade(durations, r.Config.Export.FadeDuration)
	if fade != r.Config.Export.FadeDuration {
		r.logger.WithFields(logrus.Fields{
			"requested": r.Config.Export.FadeDuration,
			"used":      fade,
		}).Warn("transition shortened for a short clip")
	}

	path := filepath.Join(r.Config.Runner.OutputDir, "reel.mp4")
	params := video.ReelParams{
		EncodeParams: video.EncodeParams{
			FPS:     plan.FrameRateFor(director.Shot{}, r.Config.Motion.FrameRate),
			Encoder: encoder,
			Quality: r.Config.Export.Quality,
			Preset:  r.Config.Export.Preset,
		},
		TransitionType: r.Config.Export.TransitionType,
		FadeDuration:   fade,
		Durations:      durations,
	}
	if err := r.Exporter.Concatenate(ctx, clips, path, tmp, params); err != nil {
		return "", err
	}
	return path, nil
}
