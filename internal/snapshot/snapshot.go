// Package snapshot encodes rendered frames as PNG files.
package snapshot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Options controls how a frame is written.
type Options struct {
	// Scale is the integer upscale factor. Values below 1 mean 1.
	Scale int

	// Label, if not empty, is drawn in the top-left corner.
	Label string

	// LabelSize is the label font size in pixels. Zero means 12.
	LabelSize float64
}

const (
	defaultLabelSize = 12
	labelMargin      = 4
)

var (
	fontOnce   sync.Once
	parsedFont *opentype.Font
	fontErr    error
)

func regularFont() (*opentype.Font, error) {
	fontOnce.Do(func() {
		parsedFont, fontErr = opentype.Parse(goregular.TTF)
	})
	return parsedFont, fontErr
}

// Render returns img scaled by opts.Scale with opts.Label drawn over it.
// Scaling uses nearest-neighbour sampling so cell edges stay sharp.
func Render(img image.Image, opts Options) (*image.RGBA, error) {
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, src.Dx()*scale, src.Dy()*scale))
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	} else {
		xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	}
	if opts.Label != "" {
		if err := drawLabel(dst, opts.Label, opts.LabelSize); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func drawLabel(dst *image.RGBA, label string, size float64) error {
	if size <= 0 {
		size = defaultLabelSize
	}
	f, err := regularFont()
	if err != nil {
		return fmt.Errorf("parse label font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create label face: %w", err)
	}
	defer func() {
		_ = face.Close()
	}()

	m := face.Metrics()
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
		Face: face,
	}
	width := drawer.MeasureString(label)
	height := m.Ascent + m.Descent

	// Dim the area behind the text.
	bg := image.Rect(0, 0,
		labelMargin*2+width.Ceil(),
		labelMargin*2+height.Ceil())
	draw.Draw(dst, bg.Intersect(dst.Bounds()),
		image.NewUniform(color.RGBA{A: 0xa0}), image.Point{}, draw.Over)

	drawer.Dot = fixed.Point26_6{
		X: fixed.I(labelMargin),
		Y: fixed.I(labelMargin) + m.Ascent,
	}
	drawer.DrawString(label)
	return nil
}

// Write renders img with opts and encodes it to w as PNG.
func Write(w io.Writer, img image.Image, opts Options) error {
	out, err := Render(img, opts)
	if err != nil {
		return err
	}
	if err := png.Encode(w, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// WriteFile writes img to path, creating parent directories as needed.
func WriteFile(path string, img image.Image, opts Options) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return Write(f, img, opts)
}

// Name returns the file name of the snapshot taken after tick showing
// generation step. Paused ticks repeat a step, so the tick keeps names
// unique.
func Name(tick, step uint64) string {
	return fmt.Sprintf("gpulife_t%08d_s%08d.png", tick, step)
}
