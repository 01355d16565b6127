package source

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/chai2010/webp"
	"github.com/h2non/filetype"
)

// ImageSource serves PNG, JPEG and WebP keyframes. Formats are detected from file
// content, not extensions.
type ImageSource struct {
	paths []string
}

// NewImageSource accepts a single file, a directory (files sorted by name) or a glob.
func NewImageSource(path string) (*ImageSource, error) {
	var candidates []string
	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				candidates = append(candidates, filepath.Join(path, entry.Name()))
			}
		}
	case err == nil:
		candidates = []string{path}
	default:
		matches, globErr := filepath.Glob(path)
		if globErr != nil || len(matches) == 0 {
			return nil, err
		}
		candidates = matches
	}

	var paths []string
	for _, p := range candidates {
		if kind, err := sniff(p); err == nil && decoders[kind] != nil {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no png, jpeg or webp images in %s", path)
	}
	sort.Strings(paths)

	return &ImageSource{paths: paths}, nil
}

type decoder struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

// decoders is keyed by the filetype extension name.
var decoders = map[string]*decoder{
	"png":  {png.Decode, png.DecodeConfig},
	"jpg":  {jpeg.Decode, jpeg.DecodeConfig},
	"webp": {webp.Decode, webp.DecodeConfig},
}

// sniff returns the content type of path as a filetype extension ("png", "jpg", "pdf").
func sniff(path string) (string, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return "", err
	}
	if kind == filetype.Unknown {
		return "", fmt.Errorf("unknown file type: %s", path)
	}
	return kind.Extension, nil
}

func (s *ImageSource) FrameCount() int {
	return len(s.paths)
}

// Paths lists the keyframe files in frame order.
func (s *ImageSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

func (s *ImageSource) FrameDimensions(index int) (int, int, error) {
	var cfg image.Config
	err := s.open(index, func(d *decoder, r io.Reader) error {
		var err error
		cfg, err = d.config(r)
		return err
	})
	return cfg.Width, cfg.Height, err
}

func (s *ImageSource) RenderFrame(index int) (image.Image, error) {
	var img image.Image
	err := s.open(index, func(d *decoder, r io.Reader) error {
		var err error
		img, err = d.decode(r)
		return err
	})
	return img, err
}

func (s *ImageSource) open(index int, fn func(*decoder, io.Reader) error) error {
	if index < 0 || index >= len(s.paths) {
		return fmt.Errorf("frame %d out of range [0,%d)", index, len(s.paths))
	}
	path := s.paths[index]
	kind, err := sniff(path)
	if err != nil {
		return err
	}
	d := decoders[kind]
	if d == nil {
		return fmt.Errorf("unsupported image type %s: %s", kind, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fn(d, f); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (s *ImageSource) Close() error {
	return nil
}
