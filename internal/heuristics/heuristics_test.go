package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/fakescan/internal/media"
)

func filled(w, h int, r, g, b uint8) *media.Image {
	img := media.NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, r, g, b)
		}
	}
	return img
}

func inRange(t *testing.T, s Scores) {
	t.Helper()
	for name, v := range map[string]float64{
		"texture":   s.Texture,
		"color":     s.Color,
		"boundary":  s.Boundary,
		"eye_glint": s.EyeGlint,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestUniformImages(t *testing.T) {
	ext := NewStandard(Params{})

	black := ext.Extract(filled(16, 16, 0, 0, 0))
	inRange(t, black)
	assert.Equal(t, Scores{}, black)

	white := ext.Extract(filled(16, 16, 255, 255, 255))
	inRange(t, white)
	assert.Equal(t, 0.0, white.Texture)
	assert.Equal(t, 0.0, white.Color)
	assert.Equal(t, 0.0, white.Boundary)
	assert.Equal(t, 1.0, white.EyeGlint)
}

func TestSinglePixelVariance(t *testing.T) {
	img := filled(9, 9, 0, 0, 0)
	img.Set(4, 4, 255, 255, 255)

	s := NewStandard(DefaultParams()).Extract(img)
	inRange(t, s)
	assert.Greater(t, s.Texture, 0.0)
	assert.Equal(t, 1.0, s.EyeGlint)
	assert.Equal(t, 0.0, s.Color)
}

func TestSinglePixelImage(t *testing.T) {
	s := NewStandard(DefaultParams()).Extract(filled(1, 1, 10, 200, 30))
	inRange(t, s)
	assert.Equal(t, 0.0, s.Texture)
	assert.Equal(t, 0.0, s.Boundary)
}

func TestColorAnomaly(t *testing.T) {
	// pure red: |255-0| + |255-0| + |0-0| = 510 -> clamped
	assert.Equal(t, 1.0, ColorAnomaly(filled(4, 4, 255, 0, 0)))
	assert.InDelta(t, 60.0/255, ColorAnomaly(filled(4, 4, 30, 0, 0)), 1e-12)
	assert.Equal(t, 0.0, ColorAnomaly(filled(4, 4, 90, 90, 90)))
}

func TestTextureCheckerboardSaturates(t *testing.T) {
	img := media.NewImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, 255, 255, 255)
			}
		}
	}
	assert.Equal(t, 1.0, Texture(img))
}

func TestLaplacianVarianceKnownValue(t *testing.T) {
	// Reflect-101 borders mirror the centre into both sides of each edge
	// pixel, so edges see 2c and corners see nothing.
	gray := []uint8{
		0, 0, 0,
		0, 10, 0,
		0, 0, 0,
	}
	resp := []float64{0, 20, 0, 20, -40, 20, 0, 20, 0}
	var sum, sq float64
	for _, v := range resp {
		sum += v
	}
	mean := sum / 9
	for _, v := range resp {
		sq += (v - mean) * (v - mean)
	}
	assert.InDelta(t, sq/9, laplacianVariance(gray, 3, 3), 1e-9)
}

func TestBoundaryDetectsVerticalEdge(t *testing.T) {
	img := media.NewImage(10, 10)
	for y := 0; y < 10; y++ {
		for x := 5; x < 10; x++ {
			img.Set(x, y, 255, 255, 255)
		}
	}
	edges := canny(img, 100, 200)
	count := 0
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if edges[y*10+x] {
				count++
				assert.Contains(t, []int{4, 5}, x, "edge off the step at x=%d", x)
			}
		}
	}
	assert.Equal(t, 10, count, "one edge pixel per row")
	assert.InDelta(t, 0.1, BoundaryArtifact(img), 1e-12)
}

func TestExtractorsPanicOnMalformedImage(t *testing.T) {
	bad := &media.Image{Width: 2, Height: 2, Pix: make([]uint8, 3)}
	assert.Panics(t, func() { Texture(bad) })
	assert.Panics(t, func() { ColorAnomaly(bad) })
	assert.Panics(t, func() { BoundaryArtifact(bad) })
	assert.Panics(t, func() { EyeGlint(bad) })
	assert.Panics(t, func() { NewStandard(DefaultParams()).Extract(nil) })
}

func TestNewReturnsWorkingExtractor(t *testing.T) {
	ext := New(DefaultParams())
	require.NotNil(t, ext)
	inRange(t, ext.Extract(filled(4, 4, 12, 34, 56)))
}
