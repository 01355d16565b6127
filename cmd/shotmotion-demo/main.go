// Command shotmotion-demo runs the whole pipeline on a synthetic storyboard slide: region
// detection, movement suggestion, camera movement and coherence analysis. It leaves the
// slide and a plan that reproduces the shot in plans/.
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/ivlev/shotmotion/internal/camera"
	"github.com/ivlev/shotmotion/internal/coherence"
	"github.com/ivlev/shotmotion/internal/director"
	"github.com/ivlev/shotmotion/internal/interp"
	"github.com/ivlev/shotmotion/internal/logging"
	"github.com/ivlev/shotmotion/internal/motion"
)

const (
	width     = 960
	height    = 540
	keyframes = 6
	frameRate = 24.0
	duration  = 1.0
)

func main() {
	ctx := context.Background()
	logger := logging.New("warn", "text")
	slidePath := filepath.Join("plans", "demo_slide.png")
	planPath := director.GeneratePlanPath("plans", ".yaml")

	fmt.Println("=== Camera Motion Demo ===")
	fmt.Printf("Output: %s\n\n", planPath)

	fmt.Println("[1/5] Creating synthetic keyframes...")
	keys := make([]image.Image, keyframes)
	for i := range keys {
		keys[i] = createSlide(width, height, i*3)
	}
	if err := os.MkdirAll(filepath.Dir(slidePath), 0755); err != nil {
		log.Fatalf("Failed to create plans directory: %v", err)
	}
	if err := savePNG(slidePath, keys[0]); err != nil {
		log.Fatalf("Failed to save slide: %v", err)
	}
	fmt.Printf("✓ %d keyframes (%dx%d), first saved to %s\n\n", keyframes, width, height, slidePath)

	fmt.Println("[2/5] Interpolating...")
	frames, err := interp.CrossDissolve{}.Interpolate(ctx, keys, motion.NominalFrameCount(duration, frameRate))
	if err != nil {
		log.Fatalf("Failed to interpolate: %v", err)
	}
	fmt.Printf("✓ %d frames\n\n", len(frames))

	fmt.Println("[3/5] Detecting regions and suggesting a movement...")
	d := director.NewDirector(width, height)
	blocks, err := d.Regions(keys[0])
	if err != nil {
		log.Fatalf("Failed to detect regions: %v", err)
	}
	for i, block := range blocks {
		fmt.Printf("  Region %d: %v (confidence: %.2f)\n", i+1, block.Rect, block.Confidence)
	}
	compound, err := d.SuggestMovement(blocks, duration)
	if err != nil {
		log.Fatalf("Failed to suggest movement: %v", err)
	}
	for _, m := range compound.Movements {
		fmt.Printf("  %s %.2f -> %.2f over %.1fs (%s)\n", m.Type, startValue(m), endValue(m), m.Duration, m.Easing)
	}
	fmt.Println()

	fmt.Println("[4/5] Applying camera movements...")
	system := camera.NewSystem(logger)
	suggested := system.ApplyCompoundMovement(ctx, frames, compound, frameRate)
	pan := system.ApplyMovement(ctx, frames, motion.NewPan(0, 30, duration), frameRate)
	for _, res := range []*camera.Result{suggested, pan} {
		if !res.Success {
			log.Fatalf("Movement failed: %s", res.ErrorMessage)
		}
		m := res.Metadata
		fmt.Printf("✓ %s: %d frames, peak velocity %.3f, path %.3f\n",
			m.MovementType, m.FrameCount, m.Stats.PeakVelocity, m.Stats.PathLength)
	}
	fmt.Println()

	fmt.Println("[5/5] Analyzing coherence...")
	engine := coherence.NewEngine(logger)
	cfg := coherence.DefaultConfig()
	for _, res := range []*camera.Result{suggested, pan} {
		analysis, err := engine.AnalyzeSequenceCoherence(ctx, res.TransformedFrames, cfg)
		if err != nil {
			log.Fatalf("Failed to analyze: %v", err)
		}
		printAnalysis(res.Metadata.MovementType, analysis, cfg)
	}

	plan := &director.Plan{
		Version:   director.PlanVersion,
		FrameRate: frameRate,
		Shots: []director.Shot{
			{ID: 1, Input: filepath.Base(slidePath), Duration: duration, Compound: &compound},
			{ID: 2, Input: filepath.Base(slidePath), Duration: duration, Auto: true},
		},
	}
	if err := director.WritePlan(plan, planPath); err != nil {
		log.Fatalf("Failed to write plan: %v", err)
	}

	fmt.Println("\n✅ Demo completed successfully!")
	fmt.Printf("📄 Run the plan: shotmotion -plan %s -stats\n", planPath)
}

func printAnalysis(label string, a *coherence.SequenceCoherenceAnalysis, cfg coherence.Config) {
	verdict := "PASS"
	if !a.Passed(cfg.CoherenceThreshold) {
		verdict = "FAIL"
	}
	fmt.Printf("  %s: overall %.3f [%s] in %s\n", label, a.OverallScore, verdict, a.ProcessingTime)
	for _, s := range a.MetricScores {
		fmt.Printf("    %-22s %.3f (confidence %.2f)\n", s.Metric, s.Score, s.Confidence)
	}
	for _, art := range a.DetectedArtifacts {
		fmt.Printf("    ! %s\n", art.Description)
	}
	for _, r := range a.Recommendations {
		fmt.Printf("    - %s\n", r)
	}
}

func startValue(m motion.MovementSpec) float64 {
	return component(m.Type, m.Start)
}

func endValue(m motion.MovementSpec) float64 {
	return component(m.Type, m.End)
}

// component picks the coordinate a movement type animates.
func component(t motion.MovementType, p motion.CameraPosition) float64 {
	switch t {
	case motion.Pan:
		return p.Yaw
	case motion.Tilt:
		return p.Pitch
	case motion.Zoom:
		return p.Zoom
	case motion.Dolly:
		return p.Z
	case motion.Track:
		return p.X
	}
	return 0
}

// createSlide draws a storyboard-like slide; the content blocks sit drift pixels lower
// than on the first keyframe.
func createSlide(w, h, drift int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillRect(img, 0, 0, w, h, color.RGBA{R: 240, G: 240, B: 236, A: 255})

	// title
	fillRect(img, 100, 50, 760, 125, color.RGBA{R: 50, G: 50, B: 60, A: 255})
	// subtitle
	fillRect(img, 100, 150, 760, 190, color.RGBA{R: 80, G: 80, B: 90, A: 255})
	// content
	fillRect(img, 100, 225+drift, 450, 350+drift, color.RGBA{R: 60, G: 90, B: 140, A: 255})
	fillRect(img, 510, 225+drift, 860, 350+drift, color.RGBA{R: 140, G: 70, B: 60, A: 255})
	// footer
	fillRect(img, 100, 475, 860, 510, color.RGBA{R: 100, G: 100, B: 100, A: 255})
	return img
}

func fillRect(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	b := img.Bounds()
	for y := max(y1, b.Min.Y); y < min(y2, b.Max.Y); y++ {
		for x := max(x1, b.Min.X); x < min(x2, b.Max.X); x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
