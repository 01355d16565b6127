// Package source loads keyframes from storyboard PDFs, image files and synthetic
// calibration patterns.
package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// Source is an indexed set of keyframes.
type Source interface {
	FrameCount() int
	FrameDimensions(index int) (width, height int, err error)
	RenderFrame(index int) (image.Image, error)
	Close() error
}

// PatternPrefix selects a PatternSource in Open, e.g. "pattern:calibration?frames=6".
const PatternPrefix = "pattern:"

// Open picks the source for input: a pattern spec, a PDF storyboard, or an image file,
// directory or glob.
func Open(input string, dpi int) (Source, error) {
	switch {
	case strings.HasPrefix(input, PatternPrefix):
		return NewPatternSource(strings.TrimPrefix(input, PatternPrefix))
	case strings.EqualFold(filepath.Ext(input), ".pdf"):
		return NewFitzPDFSource(input, dpi)
	}
	if sniffed, err := sniff(input); err == nil && sniffed == "pdf" {
		return NewFitzPDFSource(input, dpi)
	}
	return NewImageSource(input)
}

// LoadKeyframes renders up to limit frames (all when limit is 0) and brings every frame to
// the size of the first one, cropping around the center where aspect ratios differ.
func LoadKeyframes(src Source, limit int) ([]image.Image, error) {
	n := src.FrameCount()
	if limit > 0 && limit < n {
		n = limit
	}
	if n == 0 {
		return nil, fmt.Errorf("source has no frames")
	}

	frames := make([]image.Image, 0, n)
	var size image.Point
	for i := 0; i < n; i++ {
		img, err := src.RenderFrame(i)
		if err != nil {
			return nil, fmt.Errorf("render frame %d: %w", i, err)
		}
		if i == 0 {
			size = img.Bounds().Size()
		} else if img.Bounds().Size() != size {
			img = imaging.Fill(img, size.X, size.Y, imaging.Center, imaging.Lanczos)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// FitzPDFSource renders storyboard pages with MuPDF.
type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (f *FitzPDFSource) FrameCount() int {
	return f.doc.NumPage()
}

// FrameDimensions returns the page size in pixels at the source DPI.
func (f *FitzPDFSource) FrameDimensions(index int) (int, int, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	// Bounds are in points (1/72 inch).
	scale := float64(f.dpi) / 72
	return int(float64(rect.Dx())*scale + 0.5), int(float64(rect.Dy())*scale + 0.5), nil
}

// RenderFrame opens its own document handle so pages can be rendered from several
// goroutines; a fitz.Document is not safe for concurrent use.
func (f *FitzPDFSource) RenderFrame(index int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(f.dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
