package source

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image, format string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	switch format {
	case "png":
		require.NoError(t, png.Encode(f, img))
	case "jpeg":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	case "webp":
		require.NoError(t, webp.Encode(f, img, &webp.Options{Lossless: true}))
	}
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "01.png"), solid(40, 30, color.RGBA{255, 0, 0, 255}), "png")
	writeImage(t, filepath.Join(dir, "02.webp"), solid(40, 30, color.RGBA{0, 255, 0, 255}), "webp")
	// Content decides the format, not the extension.
	writeImage(t, filepath.Join(dir, "03.png"), solid(40, 30, color.RGBA{0, 0, 255, 255}), "jpeg")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644))

	src, err := NewImageSource(dir)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 3, src.FrameCount())
	for i := 0; i < src.FrameCount(); i++ {
		w, h, err := src.FrameDimensions(i)
		require.NoError(t, err)
		assert.Equal(t, 40, w)
		assert.Equal(t, 30, h)

		img, err := src.RenderFrame(i)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(40, 30), img.Bounds().Size())
	}

	img, err := src.RenderFrame(1)
	require.NoError(t, err)
	r, g, _, _ := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	assert.Equal(t, uint32(255), g>>8)

	_, err = src.RenderFrame(3)
	assert.Error(t, err)
}

func TestImageSourceGlobAndErrors(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "a.png"), solid(8, 8, color.RGBA{A: 255}), "png")
	writeImage(t, filepath.Join(dir, "b.png"), solid(8, 8, color.RGBA{A: 255}), "png")

	src, err := NewImageSource(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png")}, src.Paths())

	_, err = NewImageSource(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "x.txt"), []byte("hello"), 0o644))
	_, err = NewImageSource(empty)
	assert.Error(t, err)
}

func TestPatternSource(t *testing.T) {
	src, err := Open("pattern:calib?frames=4&width=160&height=120&step=5", 0)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 4, src.FrameCount())
	w, h, err := src.FrameDimensions(0)
	require.NoError(t, err)
	assert.Equal(t, 160, w)
	assert.Equal(t, 120, h)

	first, err := src.RenderFrame(0)
	require.NoError(t, err)
	second, err := src.RenderFrame(1)
	require.NoError(t, err)
	assert.Equal(t, first.Bounds(), second.Bounds())
	assert.NotEqual(t, first.(*image.RGBA).Pix, second.(*image.RGBA).Pix)

	_, err = src.RenderFrame(4)
	assert.Error(t, err)
}

func TestPatternSpecErrors(t *testing.T) {
	for _, spec := range []string{"x?frames=0", "x?width=abc", "x?height=10", "x?%zz"} {
		_, err := NewPatternSource(spec)
		assert.Error(t, err, spec)
	}
	p, err := NewPatternSource("")
	require.NoError(t, err)
	assert.Equal(t, "calibration", p.Label)
	assert.Equal(t, 6, p.Frames)
}

func TestLoadKeyframesNormalizesSize(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "01.png"), solid(64, 48, color.RGBA{10, 20, 30, 255}), "png")
	writeImage(t, filepath.Join(dir, "02.png"), solid(100, 100, color.RGBA{10, 20, 30, 255}), "png")
	writeImage(t, filepath.Join(dir, "03.png"), solid(64, 48, color.RGBA{10, 20, 30, 255}), "png")

	src, err := Open(dir, 150)
	require.NoError(t, err)

	frames, err := LoadKeyframes(src, 0)
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.Equal(t, image.Pt(64, 48), f.Bounds().Size())
	}

	limited, err := LoadKeyframes(src, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestOpenMissingPDF(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "board.pdf"), 150)
	assert.Error(t, err)
}
