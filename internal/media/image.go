// Package media holds the decoded image sample every scorer works on, plus the
// decoding, resizing and evidence-encoding helpers around it.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/straja-ai/fakescan/internal/inference"
)

// MaxPixels bounds decoded images so a hostile header cannot force a huge allocation.
const MaxPixels = 100_000_000

// Image is a decoded still image: interleaved 8-bit RGB, row-major,
// len(Pix) == 3*Width*Height.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewImage allocates a black image of the given size.
func NewImage(width, height int) *Image {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Image{Width: width, Height: height, Pix: make([]uint8, 3*width*height)}
}

// Validate reports whether the image satisfies the shape invariant that all
// heuristics and classifiers rely on.
func (im *Image) Validate() error {
	if im == nil {
		return errors.New("image is nil")
	}
	if im.Width <= 0 || im.Height <= 0 {
		return fmt.Errorf("image has empty dimensions %dx%d", im.Width, im.Height)
	}
	if want := 3 * im.Width * im.Height; len(im.Pix) != want {
		return fmt.Errorf("image buffer has %d bytes, want %d for 3-channel %dx%d", len(im.Pix), want, im.Width, im.Height)
	}
	return nil
}

// RGB returns the channel values at (x, y).
func (im *Image) RGB(x, y int) (r, g, b uint8) {
	i := 3 * (y*im.Width + x)
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// Set writes the channel values at (x, y).
func (im *Image) Set(x, y int, r, g, b uint8) {
	i := 3 * (y*im.Width + x)
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// Gray converts to single-channel intensity with the ITU-R 601 weights in
// 14-bit fixed point, matching OpenCV's RGB2GRAY rounding.
func (im *Image) Gray() []uint8 {
	out := make([]uint8, im.Width*im.Height)
	for i := range out {
		p := im.Pix[3*i:]
		out[i] = uint8((uint32(p[0])*4899 + uint32(p[1])*9617 + uint32(p[2])*1868 + 1<<13) >> 14)
	}
	return out
}

// ToRGBA converts to a standard library image for encoding, hashing and resizing.
func (im *Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for i, j := 0, 0; i < len(im.Pix); i, j = i+3, j+4 {
		dst.Pix[j] = im.Pix[i]
		dst.Pix[j+1] = im.Pix[i+1]
		dst.Pix[j+2] = im.Pix[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst
}

// FromImage converts any decoded image to RGB, dropping alpha without
// premultiplying, the way a "convert to RGB" step does.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.RGBA:
		for y := 0; y < out.Height; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < out.Width; x++ {
				c := color.RGBA{R: row[4*x], G: row[4*x+1], B: row[4*x+2], A: row[4*x+3]}
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				out.Set(x, y, n.R, n.G, n.B)
			}
		}
	case *image.NRGBA:
		for y := 0; y < out.Height; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < out.Width; x++ {
				out.Set(x, y, row[4*x], row[4*x+1], row[4*x+2])
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				n := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				out.Set(x, y, n.R, n.G, n.B)
			}
		}
	}
	return out
}

// Decode parses JPEG or PNG bytes into an Image. Any failure is reported as
// inference.ErrInvalidMedia.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image: %w", inference.ErrInvalidMedia)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %v: %w", err, inference.ErrInvalidMedia)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("image dimensions %dx%d out of range: %w", cfg.Width, cfg.Height, inference.ErrInvalidMedia)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %v: %w", err, inference.ErrInvalidMedia)
	}
	img := FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, inference.ErrInvalidMedia)
	}
	return img, nil
}
