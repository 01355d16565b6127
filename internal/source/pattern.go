package source

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

// PatternSource renders synthetic calibration keyframes: a QR code encoding the label and
// frame index on a gradient background. The code drifts right by Step pixels per frame, so
// every frame is unique and the true motion is known.
type PatternSource struct {
	Label  string
	Frames int
	Width  int
	Height int
	Step   int
}

// NewPatternSource parses "label?frames=6&width=640&height=360&step=8". Omitted values
// take those defaults.
func NewPatternSource(spec string) (*PatternSource, error) {
	label, query, _ := strings.Cut(spec, "?")
	if label == "" {
		label = "calibration"
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", spec, err)
	}

	p := &PatternSource{Label: label, Frames: 6, Width: 640, Height: 360, Step: 8}
	fields := []struct {
		key string
		dst *int
		min int
	}{
		{"frames", &p.Frames, 1},
		{"width", &p.Width, 64},
		{"height", &p.Height, 64},
		{"step", &p.Step, 0},
	}
	for _, f := range fields {
		raw := values.Get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < f.min {
			return nil, fmt.Errorf("pattern %q: %s must be an integer >= %d", spec, f.key, f.min)
		}
		*f.dst = v
	}
	return p, nil
}

func (p *PatternSource) FrameCount() int {
	return p.Frames
}

func (p *PatternSource) FrameDimensions(index int) (int, int, error) {
	if index < 0 || index >= p.Frames {
		return 0, 0, fmt.Errorf("frame %d out of range [0,%d)", index, p.Frames)
	}
	return p.Width, p.Height, nil
}

func (p *PatternSource) RenderFrame(index int) (image.Image, error) {
	if index < 0 || index >= p.Frames {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", index, p.Frames)
	}

	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(40 + 120*x/p.Width),
				G: uint8(60 + 100*y/p.Height),
				B: 150,
				A: 255,
			})
		}
	}

	code, err := qrcode.New(fmt.Sprintf("%s:%d", p.Label, index), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode pattern frame %d: %w", index, err)
	}
	size := p.Height / 2
	qr := code.Image(size)

	x := p.Width/4 + index*p.Step
	y := (p.Height - size) / 2
	draw.Draw(img, image.Rect(x, y, x+size, y+size), qr, qr.Bounds().Min, draw.Src)
	return img, nil
}

func (p *PatternSource) Close() error {
	return nil
}
