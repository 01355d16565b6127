package analyzer

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/ivlev/shotmotion/internal/similarity"
)

// ContrastDetector implements edge-based region detection using Sobel operator
type ContrastDetector struct {
	MinBlockArea     int     // Minimum area in pixels²
	EdgeThreshold    float64 // Gradient magnitude threshold
	DilateKernel     int
	DilateIterations int
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:     500,  // ~22x22 pixels minimum
		EdgeThreshold:    30.0, // Moderate sensitivity
		DilateKernel:     5,
		DilateIterations: 2,
	}
}

// Detect finds regions of interest in img, in img's coordinate space.
func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	if img == nil {
		return nil, errors.New("contrast detector: nil image")
	}
	blocks := d.DetectPlane(similarity.Luma(imaging.Clone(img)))
	origin := img.Bounds().Min
	for i := range blocks {
		blocks[i].Rect = blocks[i].Rect.Add(origin)
	}
	return blocks, nil
}

// DetectPlane finds regions of interest in a luma plane, largest first.
func (d *ContrastDetector) DetectPlane(p similarity.Plane) []Block {
	edges := sobel(p)
	m := thresholdMask(edges, d.EdgeThreshold)
	m = dilate(m, d.DilateKernel, d.DilateIterations)

	blocks := []Block{}
	for _, rect := range findContours(m) {
		if rect.Dx()*rect.Dy() < d.MinBlockArea {
			continue
		}
		energy := meanInside(edges, rect)
		blocks = append(blocks, Block{
			Rect:       rect,
			Confidence: 0.5 + 0.5*math.Min(1, energy/(4*d.EdgeThreshold)),
			Energy:     energy,
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		ai, aj := area(blocks[i].Rect), area(blocks[j].Rect)
		if ai != aj {
			return ai > aj
		}
		if blocks[i].Rect.Min.Y != blocks[j].Rect.Min.Y {
			return blocks[i].Rect.Min.Y < blocks[j].Rect.Min.Y
		}
		return blocks[i].Rect.Min.X < blocks[j].Rect.Min.X
	})
	return blocks
}

// sobel returns the gradient magnitude of p. The one-pixel border is left at zero.
func sobel(p similarity.Plane) similarity.Plane {
	out := similarity.Plane{Width: p.Width, Height: p.Height, Pix: make([]float64, len(p.Pix))}
	for y := 1; y < p.Height-1; y++ {
		for x := 1; x < p.Width-1; x++ {
			tl, tc, tr := p.At(x-1, y-1), p.At(x, y-1), p.At(x+1, y-1)
			ml, mr := p.At(x-1, y), p.At(x+1, y)
			bl, bc, br := p.At(x-1, y+1), p.At(x, y+1), p.At(x+1, y+1)

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			out.Pix[y*p.Width+x] = math.Sqrt(gx*gx + gy*gy)
		}
	}
	return out
}

// mask is a binary raster.
type mask struct {
	w, h int
	on   []bool
}

func (m mask) at(x, y int) bool {
	return m.on[y*m.w+x]
}

func thresholdMask(p similarity.Plane, threshold float64) mask {
	m := mask{w: p.Width, h: p.Height, on: make([]bool, len(p.Pix))}
	for i, v := range p.Pix {
		m.on[i] = v > threshold
	}
	return m
}

// dilate performs morphological dilation to connect nearby edges
func dilate(m mask, kernelSize, iterations int) mask {
	half := kernelSize / 2
	for iter := 0; iter < iterations; iter++ {
		next := mask{w: m.w, h: m.h, on: make([]bool, len(m.on))}
		for y := 0; y < m.h; y++ {
			for x := 0; x < m.w; x++ {
				next.on[y*m.w+x] = anyInWindow(m, x, y, half)
			}
		}
		m = next
	}
	return m
}

func anyInWindow(m mask, cx, cy, half int) bool {
	for y := cy - half; y <= cy+half; y++ {
		if y < 0 || y >= m.h {
			continue
		}
		for x := cx - half; x <= cx+half; x++ {
			if x >= 0 && x < m.w && m.at(x, y) {
				return true
			}
		}
	}
	return false
}

// findContours finds bounding rectangles of connected regions
func findContours(m mask) []image.Rectangle {
	visited := make([]bool, len(m.on))
	contours := []image.Rectangle{}
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if m.at(x, y) && !visited[y*m.w+x] {
				contours = append(contours, floodFill(m, visited, x, y))
			}
		}
	}
	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func floodFill(m mask, visited []bool, startX, startY int) image.Rectangle {
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x, y := p.X, p.Y
		if x < 0 || x >= m.w || y < 0 || y >= m.h {
			continue
		}
		idx := y*m.w + x
		if visited[idx] || !m.on[idx] {
			continue
		}
		visited[idx] = true

		minX, maxX = minInt(minX, x), maxInt(maxX, x)
		minY, maxY = minInt(minY, y), maxInt(maxY, y)

		stack = append(stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}

func meanInside(p similarity.Plane, r image.Rectangle) float64 {
	if r.Empty() {
		return 0
	}
	sum := 0.0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += p.At(x, y)
		}
	}
	return sum / float64(area(r))
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
