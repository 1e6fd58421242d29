// Package heuristics computes the four hand-crafted visual signals that are
// fused with the classifier probability: texture, colour anomaly, boundary
// artifacts and eye glint. Every score is a deterministic function of the
// pixels and lies in [0,1].
package heuristics

import (
	"fmt"
	"math"

	"github.com/straja-ai/fakescan/internal/media"
)

// Params are the tunable constants of the extractors.
type Params struct {
	// TextureCeiling is the Laplacian variance that maps to a texture score of 1.
	TextureCeiling float64
	CannyLow       float64
	CannyHigh      float64
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{TextureCeiling: 500, CannyLow: 100, CannyHigh: 200}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.TextureCeiling <= 0 {
		p.TextureCeiling = d.TextureCeiling
	}
	if p.CannyLow <= 0 && p.CannyHigh <= 0 {
		p.CannyLow, p.CannyHigh = d.CannyLow, d.CannyHigh
	}
	return p
}

// Scores holds one value per heuristic.
type Scores struct {
	Texture  float64 `json:"texture"`
	Color    float64 `json:"color"`
	Boundary float64 `json:"boundary"`
	EyeGlint float64 `json:"eye_glint"`
}

// Extractor computes all heuristic scores for one image.
type Extractor interface {
	Extract(img *media.Image) Scores
}

// Standard is the pure Go extractor.
type Standard struct {
	Params Params
}

// NewStandard returns a pure Go extractor with p (zero fields take defaults).
func NewStandard(p Params) *Standard {
	return &Standard{Params: p.withDefaults()}
}

// Extract runs the four heuristics. It panics on a malformed image.
func (s *Standard) Extract(img *media.Image) Scores {
	mustValid(img)
	p := s.Params.withDefaults()
	gray := img.Gray()
	return Scores{
		Texture:  textureFromGray(gray, img.Width, img.Height, p.TextureCeiling),
		Color:    ColorAnomaly(img),
		Boundary: boundaryArtifact(img, p.CannyLow, p.CannyHigh),
		EyeGlint: glintFromGray(gray),
	}
}

// Texture is the Laplacian variance of the gray image over the default
// ceiling. Smooth, over-processed skin scores low.
func Texture(img *media.Image) float64 {
	mustValid(img)
	return textureFromGray(img.Gray(), img.Width, img.Height, DefaultParams().TextureCeiling)
}

// ColorAnomaly measures how far the per-channel means drift apart.
func ColorAnomaly(img *media.Image) float64 {
	mustValid(img)
	var sr, sg, sb float64
	for i := 0; i < len(img.Pix); i += 3 {
		sr += float64(img.Pix[i])
		sg += float64(img.Pix[i+1])
		sb += float64(img.Pix[i+2])
	}
	n := float64(img.Width * img.Height)
	r, g, b := sr/n, sg/n, sb/n
	return clamp01((math.Abs(r-g) + math.Abs(r-b) + math.Abs(g-b)) / 255)
}

// BoundaryArtifact is the fraction of pixels Canny marks as edges with the
// default thresholds.
func BoundaryArtifact(img *media.Image) float64 {
	mustValid(img)
	p := DefaultParams()
	return boundaryArtifact(img, p.CannyLow, p.CannyHigh)
}

// EyeGlint is the brightest gray intensity over 255.
func EyeGlint(img *media.Image) float64 {
	mustValid(img)
	return glintFromGray(img.Gray())
}

func textureFromGray(gray []uint8, w, h int, ceiling float64) float64 {
	return clamp01(laplacianVariance(gray, w, h) / ceiling)
}

func boundaryArtifact(img *media.Image, low, high float64) float64 {
	edges := canny(img, low, high)
	count := 0
	for _, e := range edges {
		if e {
			count++
		}
	}
	return clamp01(float64(count) / float64(len(edges)))
}

func glintFromGray(gray []uint8) float64 {
	var max uint8
	for _, v := range gray {
		if v > max {
			max = v
		}
	}
	return float64(max) / 255
}

func mustValid(img *media.Image) {
	if err := img.Validate(); err != nil {
		panic(fmt.Sprintf("heuristics: %v", err))
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
