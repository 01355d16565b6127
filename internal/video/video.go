// Package video exports shot previews: PNG frame sequences and ffmpeg-encoded clips,
// optionally joined into a reel.
package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ivlev/shotmotion/internal/system"
)

// EncodeParams controls one clip encode.
type EncodeParams struct {
	FPS     float64
	Encoder string // ffmpeg encoder name, e.g. libx264
	Quality int
	Preset  string
}

// ReelParams controls joining clips. Durations are the clip lengths in seconds, needed to
// place crossfades.
type ReelParams struct {
	EncodeParams
	TransitionType string
	FadeDuration   float64
	Durations      []float64
}

type Exporter interface {
	Encode(ctx context.Context, frames []image.Image, path string, params EncodeParams) error
	Concatenate(ctx context.Context, clipPaths []string, finalPath string, tmpDir string, params ReelParams) error
}

// FFmpegExporter drives the ffmpeg binary found on PATH.
type FFmpegExporter struct {
	Binary string
}

func NewFFmpegExporter() *FFmpegExporter {
	return &FFmpegExporter{Binary: "ffmpeg"}
}

// Available reports whether the ffmpeg binary can be found.
func (e *FFmpegExporter) Available() bool {
	_, err := exec.LookPath(e.binary())
	return err == nil
}

func (e *FFmpegExporter) binary() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

// Encode pipes frames as raw RGBA into ffmpeg. All frames must share the size of the first.
func (e *FFmpegExporter) Encode(ctx context.Context, frames []image.Image, path string, params EncodeParams) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}
	size := frames[0].Bounds().Size()
	return e.pipe(ctx, buildEncodeArgs(size.X, size.Y, path, params), frames)
}

// StillRenderer renders a movement over a single still with an ffmpeg filter, at the
// still's own resolution.
type StillRenderer interface {
	RenderStill(ctx context.Context, still image.Image, filter string, frames int, path string, params EncodeParams) error
}

// RenderStill feeds one raw frame to ffmpeg and lets filter (typically zoompan with
// d=frames) produce the clip.
func (e *FFmpegExporter) RenderStill(ctx context.Context, still image.Image, filter string, frames int, path string, params EncodeParams) error {
	if still == nil {
		return fmt.Errorf("no still to render")
	}
	if frames < 1 {
		return fmt.Errorf("frame count must be positive, got %d", frames)
	}
	size := still.Bounds().Size()
	return e.pipe(ctx, buildStillArgs(size.X, size.Y, filter, frames, path, params), []image.Image{still})
}

// pipe runs ffmpeg with args and streams frames into its stdin.
func (e *FFmpegExporter) pipe(ctx context.Context, args []string, frames []image.Image) error {
	size := frames[0].Bounds().Size()
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	for i, f := range frames {
		if f.Bounds().Size() != size {
			stdin.Close()
			cmd.Wait()
			return fmt.Errorf("frame %d is %v, expected %v", i, f.Bounds().Size(), size)
		}
		if err := writeRawRGBA(stdin, f); err != nil {
			stdin.Close()
			cmd.Wait()
			return fmt.Errorf("write raw error: %w", err)
		}
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, stderr.String())
	}

	return nil
}

func buildStillArgs(w, h int, filter string, frames int, path string, params EncodeParams) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-i", "-",
		"-vf", filter,
		"-frames:v", fmt.Sprintf("%d", frames),
		"-pix_fmt", "yuv420p",
		"-c:v", encoderOrDefault(params.Encoder),
	}
	args = append(args, qualityArgs(params)...)
	return append(args, path)
}

func buildEncodeArgs(w, h int, path string, params EncodeParams) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", formatFloat(params.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", encoderOrDefault(params.Encoder),
	}
	args = append(args, qualityArgs(params)...)
	return append(args, path)
}

// qualityArgs maps the quality knob onto the rate control of each encoder.
func qualityArgs(params EncodeParams) []string {
	switch encoderOrDefault(params.Encoder) {
	case "h264_videotoolbox":
		// VideoToolbox has no CRF; quality is a bitrate in 100 kbit/s steps.
		return []string{"-b:v", fmt.Sprintf("%dk", params.Quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", params.Quality)}
	default: // libx264
		preset := params.Preset
		if preset == "" {
			preset = "medium"
		}
		return []string{"-crf", fmt.Sprintf("%d", params.Quality), "-preset", preset}
	}
}

func encoderOrDefault(name string) string {
	if name == "" {
		return "libx264"
	}
	return name
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// writeRawRGBA writes img as tightly packed RGBA rows, converting through a pooled buffer
// when img is not already laid out that way.
func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		buf := system.GetImage(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		defer system.PutImage(buf)
		draw.Draw(buf, buf.Bounds(), img, bounds.Min, draw.Src)
		rgba = buf
	}
	_, err := w.Write(rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}

// Concatenate joins clips into finalPath: a stream copy when no transition is set, an
// xfade chain otherwise.
func (e *FFmpegExporter) Concatenate(ctx context.Context, clipPaths []string, finalPath string, tmpDir string, params ReelParams) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}
	if !useTransitions(params, len(clipPaths)) {
		concatFilePath := filepath.Join(tmpDir, "inputs.txt")
		f, err := os.Create(concatFilePath)
		if err != nil {
			return err
		}
		for _, p := range clipPaths {
			absPath, _ := filepath.Abs(p)
			fmt.Fprintf(f, "file '%s'\n", absPath)
		}
		f.Close()

		cmd := exec.CommandContext(ctx, e.binary(), "-y",
			"-f", "concat", "-safe", "0", "-i", concatFilePath,
			"-c", "copy", finalPath,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("ffmpeg concat error: %v, output: %s", err, string(out))
		}
		return nil
	}

	args := buildReelArgs(clipPaths, finalPath, params)
	cmd := exec.CommandContext(ctx, e.binary(), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg xfade error: %v, output: %s", err, string(out))
	}
	return nil
}

func useTransitions(params ReelParams, clips int) bool {
	return params.TransitionType != "" && params.TransitionType != "none" && clips > 1 && params.FadeDuration > 0
}

// buildReelArgs chains xfade filters; each fade starts FadeDuration before the end of
// the reel built so far.
func buildReelArgs(clipPaths []string, finalPath string, params ReelParams) []string {
	args := []string{"-y"}
	for _, p := range clipPaths {
		args = append(args, "-i", p)
	}

	var filterGraph strings.Builder
	lastOut := "[0:v]"
	currentOffset := 0.0
	for i := 1; i < len(clipPaths); i++ {
		duration := 0.0
		if i-1 < len(params.Durations) {
			duration = params.Durations[i-1]
		}
		currentOffset += duration - params.FadeDuration

		outName := fmt.Sprintf("[v%d]", i)
		fmt.Fprintf(&filterGraph, "%s[%d:v]xfade=transition=%s:duration=%s:offset=%s%s;",
			lastOut, i, params.TransitionType, formatFloat(params.FadeDuration), formatFloat(currentOffset), outName)
		lastOut = outName
	}

	args = append(args, "-filter_complex", strings.TrimSuffix(filterGraph.String(), ";"))
	args = append(args, "-map", lastOut)
	args = append(args, "-c:v", encoderOrDefault(params.Encoder), "-pix_fmt", "yuv420p")
	args = append(args, qualityArgs(params.EncodeParams)...)
	return append(args, finalPath)
}

// WritePNGSequence writes frames as prefix_0000.png ... into dir and returns the paths.
func WritePNGSequence(ctx context.Context, frames []image.Image, dir, prefix string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(frames))
	for i, img := range frames {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%04d.png", prefix, i))
		if err := writePNG(path, img); err != nil {
			return paths, fmt.Errorf("frame %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
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
