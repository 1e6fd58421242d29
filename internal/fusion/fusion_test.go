package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/fakescan/internal/heuristics"
	"github.com/straja-ai/fakescan/internal/inference"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	assert.Equal(t, 1.0, DefaultWeights.Sum())
	require.NoError(t, DefaultWeights.Validate())
}

func TestWeightsValidate(t *testing.T) {
	w := DefaultWeights
	w.Color = 0.2
	assert.Error(t, w.Validate())

	w = DefaultWeights
	w.Classifier, w.Texture = 0.75, -0.05
	assert.Error(t, w.Validate())

	assert.True(t, Weights{}.IsZero())
	assert.False(t, DefaultWeights.IsZero())
}

func TestFuseCorners(t *testing.T) {
	allFake := Fuse(1, heuristics.Scores{Texture: 0, Color: 1, Boundary: 1, EyeGlint: 0})
	assert.Equal(t, 1.0, allFake.Score)

	allReal := Fuse(0, heuristics.Scores{Texture: 1, Color: 0, Boundary: 0, EyeGlint: 1})
	assert.Equal(t, 0.0, allReal.Score)
}

func TestFuseBreakdownKeepsRawInputs(t *testing.T) {
	s := heuristics.Scores{Texture: 0.2, Color: 0.3, Boundary: 0.4, EyeGlint: 0.9}
	r := Fuse(0.8, s)

	assert.Equal(t, Breakdown{Classifier: 0.8, Texture: 0.2, Color: 0.3, Boundary: 0.4, EyeGlint: 0.9}, r.Breakdown)
	want := 0.55*0.8 + 0.15*0.8 + 0.10*0.3 + 0.10*0.4 + 0.10*0.1
	assert.InDelta(t, want, r.Score, 1e-12)
}

func TestFuseClampsOutOfRangeSum(t *testing.T) {
	w := Weights{Classifier: 1.0001}
	assert.Equal(t, 1.0, w.Fuse(1, heuristics.Scores{Texture: 1, EyeGlint: 1}).Score)
	assert.Equal(t, 1.0, Clamp(1.0001))
	assert.Equal(t, 0.0, Clamp(-0.2))
}

func TestLabelThreshold(t *testing.T) {
	assert.Equal(t, inference.LabelFake, Label(0.5, DefaultThreshold))
	assert.Equal(t, inference.LabelReal, Label(0.4999, DefaultThreshold))
	assert.Equal(t, inference.LabelFake, Label(1, DefaultThreshold))
}

func TestNewImageVerdict(t *testing.T) {
	cases := []struct {
		score      float64
		label      inference.Label
		confidence float64
		prob       float64
	}{
		{0.5, inference.LabelFake, 50, 50},
		{0.8731, inference.LabelFake, 87.31, 87.31},
		{0.2, inference.LabelReal, 20, 80},
		{0.1234, inference.LabelReal, 12.34, 87.66},
		{0, inference.LabelReal, 0, 100},
		{1, inference.LabelFake, 100, 100},
	}
	for _, tc := range cases {
		v := NewImageVerdict(tc.score, DefaultThreshold)
		assert.Equal(t, tc.label, v.Label, "score %v", tc.score)
		assert.InDelta(t, tc.confidence, v.Confidence, 1e-9, "score %v", tc.score)
		assert.InDelta(t, tc.prob, v.Probability, 1e-9, "score %v", tc.score)
		assert.InDelta(t, 100, v.Probability+v.AuthenticProbability, 1e-9, "score %v", tc.score)
	}
}
