// Package fusion combines the classifier probability with the heuristic
// scores into one fake likelihood and turns it into a labeled verdict.
package fusion

import (
	"fmt"
	"math"

	"github.com/straja-ai/fakescan/internal/heuristics"
	"github.com/straja-ai/fakescan/internal/inference"
)

// DefaultThreshold is the fused score at and above which an image is FAKE.
const DefaultThreshold = 0.5

// Weights are the coefficients of the weighted sum. Texture and eye glint
// count as evidence of authenticity and enter the sum inverted.
type Weights struct {
	Classifier float64 `yaml:"classifier" json:"classifier"`
	Texture    float64 `yaml:"texture" json:"texture"`
	Color      float64 `yaml:"color" json:"color"`
	Boundary   float64 `yaml:"boundary" json:"boundary"`
	EyeGlint   float64 `yaml:"eye_glint" json:"eye_glint"`
}

// DefaultWeights is the calibrated weighting; it sums to exactly 1.
var DefaultWeights = Weights{
	Classifier: 0.55,
	Texture:    0.15,
	Color:      0.10,
	Boundary:   0.10,
	EyeGlint:   0.10,
}

// Sum adds the weights.
func (w Weights) Sum() float64 {
	return w.Classifier + w.Texture + w.Color + w.Boundary + w.EyeGlint
}

// IsZero reports whether no weight is set.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Validate checks that every weight is non-negative and the total is 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"classifier": w.Classifier,
		"texture":    w.Texture,
		"color":      w.Color,
		"boundary":   w.Boundary,
		"eye_glint":  w.EyeGlint,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %v", sum)
	}
	return nil
}

// Breakdown keeps the raw component values that went into a score.
type Breakdown struct {
	Classifier float64 `json:"classifier"`
	Texture    float64 `json:"texture"`
	Color      float64 `json:"color"`
	Boundary   float64 `json:"boundary"`
	EyeGlint   float64 `json:"eye_glint"`
}

// Result is one fused score with its inputs.
type Result struct {
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Fuse combines p and s with DefaultWeights.
func Fuse(p float64, s heuristics.Scores) Result {
	return DefaultWeights.Fuse(p, s)
}

// Fuse computes the weighted sum clamped to [0,1]. The breakdown records the
// inputs as given, before inversion.
func (w Weights) Fuse(p float64, s heuristics.Scores) Result {
	score := w.Classifier*p +
		w.Texture*(1-s.Texture) +
		w.Color*s.Color +
		w.Boundary*s.Boundary +
		w.EyeGlint*(1-s.EyeGlint)
	return Result{
		Score: Clamp(score),
		Breakdown: Breakdown{
			Classifier: p,
			Texture:    s.Texture,
			Color:      s.Color,
			Boundary:   s.Boundary,
			EyeGlint:   s.EyeGlint,
		},
	}
}

// Clamp limits v to [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Label is FAKE when score >= threshold.
func Label(score, threshold float64) inference.Label {
	if score >= threshold {
		return inference.LabelFake
	}
	return inference.LabelReal
}
