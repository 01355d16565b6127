// Package director turns salient regions of a keyframe into camera movements and shot
// plans.
package director

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ivlev/shotmotion/internal/analyzer"
	"github.com/ivlev/shotmotion/internal/motion"
)

// Director frames salient regions of a viewport with pan, tilt and zoom moves.
type Director struct {
	ViewportWidth  int
	ViewportHeight int
	MinDwell       float64 // Minimum time per region (seconds)
	MaxDwell       float64 // Maximum time per region (seconds)
	Easing         motion.Easing
	Detector       analyzer.Detector
}

// NewDirector creates a new Director with default settings
func NewDirector(viewportWidth, viewportHeight int) *Director {
	return &Director{
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
		MinDwell:       1.0,
		MaxDwell:       3.0,
		Easing:         motion.EaseInOut,
		Detector:       analyzer.NewContrastDetector(),
	}
}

// Regions runs the detector on img.
func (d *Director) Regions(img image.Image) ([]analyzer.Block, error) {
	blocks, err := d.Detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detect regions: %w", err)
	}
	return blocks, nil
}

// SuggestMovement proposes an additive pan/tilt + zoom that starts on the full view and
// ends framed on the leading region in reading order. Components too small to notice are
// left out; when nothing remains the shot is static.
func (d *Director) SuggestMovement(blocks []analyzer.Block, duration float64) (motion.CompoundMovement, error) {
	if len(blocks) == 0 {
		return motion.CompoundMovement{}, fmt.Errorf("no blocks detected")
	}
	if d.ViewportWidth <= 0 || d.ViewportHeight <= 0 {
		return motion.CompoundMovement{}, fmt.Errorf("invalid viewport %dx%d", d.ViewportWidth, d.ViewportHeight)
	}
	lead := d.sortBlocks(blocks)[0]
	return d.frame(lead.Rect, duration), nil
}

// frame builds the movement that centers rect and zooms until it fills the viewport.
func (d *Director) frame(rect image.Rectangle, duration float64) motion.CompoundMovement {
	c := d.calculateCenter(rect)
	w := float64(d.ViewportWidth)
	shiftX := (float64(c.X) - float64(d.ViewportWidth)/2) / w
	shiftY := (float64(c.Y) - float64(d.ViewportHeight)/2) / w

	yaw := shiftAngle(shiftX)
	pitch := -shiftAngle(shiftY)
	zoom := d.calculateZoom(rect)

	var moves []motion.MovementSpec
	if math.Abs(yaw) >= minAngle {
		moves = append(moves, motion.NewPan(0, yaw, duration))
	}
	if math.Abs(pitch) >= minAngle {
		moves = append(moves, motion.NewTilt(0, pitch, duration))
	}
	if zoom >= minZoom {
		moves = append(moves, motion.NewZoom(1, zoom, duration))
	}
	if len(moves) == 0 {
		moves = append(moves, motion.NewStatic(duration))
	}
	for i := range moves {
		if moves[i].Type != motion.Static {
			moves[i] = moves[i].WithEasing(d.Easing).WithHold(0.1, 0.2)
		}
	}
	return motion.CompoundMovement{Movements: moves, BlendMode: motion.Additive}
}

const (
	minAngle = 0.5  // degrees
	minZoom  = 1.02 // magnification
)

// shiftAngle inverts the pan geometry of the transformer: the rotation, in degrees, that
// moves the window by shift frame widths at the default focal length.
func shiftAngle(shift float64) float64 {
	const sensorWidth = 36.0
	return math.Atan(shift*sensorWidth/motion.DefaultFocalLength) * 180 / math.Pi
}

// GeneratePlan creates a plan with one shot per region, each framing its region from the
// full view of input. Regions are visited in reading order.
func (d *Director) GeneratePlan(blocks []analyzer.Block, input string, totalDuration, frameRate float64) (*Plan, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no blocks detected")
	}

	// Sort blocks in reading order (top-to-bottom, left-to-right)
	sortedBlocks := d.sortBlocks(blocks)
	dwellTime := d.calculateDwellTime(totalDuration, len(sortedBlocks))

	plan := &Plan{Version: PlanVersion, FrameRate: frameRate}
	for i, block := range sortedBlocks {
		compound := d.frame(block.Rect, dwellTime)
		plan.Shots = append(plan.Shots, Shot{
			ID:       i + 1,
			Input:    input,
			Duration: dwellTime,
			Compound: &compound,
			Regions:  []Rectangle{toRectangle(block.Rect)},
		})
	}
	return plan, nil
}

// sortBlocks sorts blocks in reading order (Western: top-to-bottom, left-to-right)
func (d *Director) sortBlocks(blocks []analyzer.Block) []analyzer.Block {
	sorted := make([]analyzer.Block, len(blocks))
	copy(sorted, blocks)

	sort.SliceStable(sorted, func(i, j int) bool {
		// Threshold for "same row" (20 pixels)
		threshold := 20

		yDiff := sorted[i].Rect.Min.Y - sorted[j].Rect.Min.Y
		if abs(yDiff) > threshold {
			return sorted[i].Rect.Min.Y < sorted[j].Rect.Min.Y
		}

		// Same row, sort by X
		return sorted[i].Rect.Min.X < sorted[j].Rect.Min.X
	})

	return sorted
}

// calculateDwellTime splits totalDuration between regions within [MinDwell, MaxDwell].
func (d *Director) calculateDwellTime(totalDuration float64, blockCount int) float64 {
	dwellTime := totalDuration / float64(blockCount)

	// Clamp to min/max
	if dwellTime < d.MinDwell {
		dwellTime = d.MinDwell
	}
	if dwellTime > d.MaxDwell {
		dwellTime = d.MaxDwell
	}

	return dwellTime
}

// calculateZoom determines zoom level to fit block in viewport
func (d *Director) calculateZoom(block image.Rectangle) float64 {
	padding := 0.9 // Use 90% of viewport

	viewportW := float64(d.ViewportWidth) * padding
	viewportH := float64(d.ViewportHeight) * padding

	blockW := float64(block.Dx())
	blockH := float64(block.Dy())

	if blockW == 0 || blockH == 0 {
		return 1.0
	}

	// Use the smaller scale to ensure block fits
	zoom := math.Min(viewportW/blockW, viewportH/blockH)

	// Clamp zoom to reasonable range
	return math.Max(1.0, math.Min(3.0, zoom))
}

// calculateCenter finds the center point of a rectangle
func (d *Director) calculateCenter(rect image.Rectangle) image.Point {
	return image.Point{
		X: rect.Min.X + rect.Dx()/2,
		Y: rect.Min.Y + rect.Dy()/2,
	}
}

func toRectangle(r image.Rectangle) Rectangle {
	return Rectangle{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// Rect converts back to an image rectangle.
func (r Rectangle) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// abs returns absolute value of an integer
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
