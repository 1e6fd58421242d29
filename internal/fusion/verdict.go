package fusion

import (
	"math"

	"github.com/straja-ai/fakescan/internal/inference"
)

// ImageVerdict is the labeled result for a still image. Percentages are
// rounded to two decimals.
type ImageVerdict struct {
	Label inference.Label `json:"label"`
	// Confidence is the fused score as a percentage.
	Confidence float64 `json:"confidence"`
	// Probability is the confidence in the reported label.
	Probability float64 `json:"probability"`
	// AuthenticProbability is 100 - Probability.
	AuthenticProbability float64 `json:"authentic_probability"`
}

// NewImageVerdict labels a fused score.
func NewImageVerdict(score, threshold float64) ImageVerdict {
	score = Clamp(score)
	label := Label(score, threshold)

	prob := score * 100
	if label == inference.LabelReal {
		prob = (1 - score) * 100
	}
	prob = Round2(prob)
	return ImageVerdict{
		Label:                label,
		Confidence:           Round2(score * 100),
		Probability:          prob,
		AuthenticProbability: Round2(100 - prob),
	}
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
