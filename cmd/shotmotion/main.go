package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/config"
	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/engine"
	"github.com/ivlev/shotmotion/internal/logging"
	"github.com/ivlev/shotmotion/internal/source"
	"github.com/ivlev/shotmotion/internal/system"
	"github.com/ivlev/shotmotion/internal/video"
)

func main() {
	planPtr := flag.String("plan", "", "Shot plan (.yaml/.toml). Default: newest plan in plans/")
	configPtr := flag.String("config", "", "Config file. Default: shotmotion.{yaml,toml} in . or ./configs")
	outPtr := flag.String("out", "", "Output directory (overrides runner.output_dir)")
	workersPtr := flag.Int("workers", -1, "Shots processed in parallel (0: auto from CPU and memory)")
	previewPtr := flag.Bool("preview", false, "Encode an mp4 preview per shot")
	framesPtr := flag.Bool("frames", false, "Write transformed frames as PNG")
	reelPtr := flag.Bool("reel", false, "Join previews into reel.mp4 (implies -preview)")
	statsPtr := flag.Bool("stats", false, "Print a performance report and append it to benchmark.log")
	durationPtr := flag.Float64("duration", 0, "Retime the plan so the reel lasts this many seconds")
	reportPtr := flag.String("report", "", "Report path. Default: <out>/report_<timestamp>.yaml")
	generatePtr := flag.String("generate", "", "Write a plan framing the salient regions of this keyframe source and exit ('latest': newest file in input/)")
	generateDurPtr := flag.Float64("generate-duration", 9, "Total duration of a generated plan (seconds)")
	flag.Parse()

	cfg, err := config.Load(*configPtr)
	if err != nil {
		log.Fatalf("[-] Config error: %v", err)
	}
	applyFlags(cfg, *outPtr, *workersPtr, *previewPtr, *framesPtr, *reelPtr, *statsPtr)

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	system.InitResourceLimits(logger)

	for _, d := range []string{"input", "plans", cfg.Runner.OutputDir} {
		os.MkdirAll(d, 0755)
	}

	if *generatePtr != "" {
		input := *generatePtr
		if input == "latest" {
			latest, err := system.FindLatestKeyframe("input")
			if err != nil {
				log.Fatalf("[-] Error: %v. Put a keyframe into input/", err)
			}
			input = latest
			fmt.Printf("[*] Selected keyframe: %s\n", input)
		}
		if err := generatePlan(cfg, input, *generateDurPtr); err != nil {
			log.Fatalf("[-] Plan generation failed: %v", err)
		}
		return
	}

	planPath := *planPtr
	if planPath == "" {
		latest, err := system.FindLatestPlan("plans")
		if err != nil {
			log.Fatalf("[-] Error: %v. Put a plan into plans/ or pass -plan", err)
		}
		planPath = latest
		fmt.Printf("[*] Selected plan: %s\n", planPath)
	}

	plan, err := director.ReadPlan(planPath)
	if err != nil {
		log.Fatalf("[-] Plan error: %v", err)
	}
	if *durationPtr > 0 {
		engine.FitPlanDuration(plan, *durationPtr, cfg.Export.FadeDuration, cfg.Motion.FrameRate)
		fmt.Printf("[*] Plan retimed to %.2fs\n", *durationPtr)
	}

	if cfg.Runner.EncodePreview && !video.NewFFmpegExporter().Available() {
		fmt.Println("[!] ffmpeg not found, previews disabled")
		cfg.Runner.EncodePreview = false
	}

	fmt.Println("--- [SHOTMOTION] ---")
	fmt.Printf("[*] Plan: %s | Shots: %d\n", planPath, len(plan.Shots))
	fmt.Printf("[*] Frame rate: %.2f | Output: %s\n", cfg.Motion.FrameRate, cfg.Runner.OutputDir)
	fmt.Println("--------------------")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := engine.NewRunner(cfg, logger)
	runner.Progress = func(done, total int, shot engine.ShotReport) {
		if !shot.Success {
			fmt.Printf("[!] Shot %d failed: %s\n", shot.ID, shot.Error)
			return
		}
		fmt.Printf("[>] Ready: %d/%d (shot %d, coherence %.2f)\n", done, total, shot.ID, shot.Coherence.OverallScore)
	}

	report, runErr := runner.RunPlan(ctx, plan)
	if report == nil {
		log.Fatalf("[-] Run failed: %v", runErr)
	}

	reportPath := *reportPtr
	if reportPath == "" {
		reportPath = filepath.Join(cfg.Runner.OutputDir, fmt.Sprintf("report_%s.yaml", time.Now().Format("2006-01-02_15-04-05")))
	}
	if err := report.Write(reportPath); err != nil {
		fmt.Printf("[!] Could not write report: %v\n", err)
	}

	for _, s := range report.Shots {
		if s.Success && !s.Passed {
			fmt.Printf("[!] Shot %d below coherence threshold (%.2f)\n", s.ID, s.Coherence.OverallScore)
			for _, r := range s.Coherence.Recommendations {
				fmt.Printf("    - %s\n", r)
			}
		}
	}

	if cfg.Runner.ShowStats {
		fmt.Print(report.Summary())
		if err := report.AppendBenchmark("benchmark.log", planPath); err != nil {
			fmt.Printf("[!] Could not write benchmark.log: %v\n", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, engine.ErrAllShotsFailed) {
			log.Fatalf("[-] Every shot failed. Report: %s", reportPath)
		}
		log.Fatalf("[-] Run error: %v", runErr)
	}
	fmt.Printf("[+++] Done! %d/%d shots passed coherence. Report: %s\n", report.Passed, len(report.Shots), reportPath)
	if report.ReelPath != "" {
		fmt.Printf("[+++] Reel: %s\n", report.ReelPath)
	}
}

// applyFlags lets explicit command-line flags win over the loaded configuration.
func applyFlags(cfg *config.Config, out string, workers int, preview, frames, reel, stats bool) {
	if out != "" {
		cfg.Runner.OutputDir = out
	}
	if workers >= 0 {
		cfg.Runner.Workers = workers
	}
	if preview || reel {
		cfg.Runner.EncodePreview = true
	}
	if reel {
		cfg.Export.Reel = true
	}
	if frames {
		cfg.Runner.WriteFrames = true
	}
	if stats {
		cfg.Runner.ShowStats = true
	}
}

// generatePlan renders the first frame of input, finds its salient regions and writes a
// plan with one shot per region.
func generatePlan(cfg *config.Config, input string, total float64) error {
	fmt.Println("[*] Plan generation mode...")
	src, err := source.Open(input, cfg.Runner.DPI)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := src.RenderFrame(0)
	if err != nil {
		return fmt.Errorf("render first frame: %w", err)
	}

	d := director.NewDirector(img.Bounds().Dx(), img.Bounds().Dy())
	d.Easing = cfg.Easing()
	if d.Detector, err = analyzer.NewDetector(cfg.Motion.Detector); err != nil {
		return err
	}
	blocks, err := d.Regions(img)
	if err != nil {
		return err
	}
	fmt.Printf("[*] Regions found: %d\n", len(blocks))

	// Plan inputs resolve against the plan's directory, so file inputs are stored absolute.
	if !strings.HasPrefix(input, source.PatternPrefix) {
		if input, err = filepath.Abs(input); err != nil {
			return err
		}
	}
	plan, err := d.GeneratePlan(blocks, input, total, cfg.Motion.FrameRate)
	if err != nil {
		return err
	}

	path := director.GeneratePlanPath("plans", ".yaml")
	if err := director.WritePlan(plan, path); err != nil {
		return err
	}
	fmt.Printf("[+++] Done! Plan saved: %s\n", path)
	return nil
}
