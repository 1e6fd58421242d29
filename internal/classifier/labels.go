package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/straja-ai/fakescan/internal/inference"
)

// loadLabels reads a label list. Accepted forms: a JSON array, an id→label
// object, or a model config.json carrying "id2label".
func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseLabels(data)
}

func parseLabels(data []byte) ([]string, error) {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err == nil && len(cfg.ID2Label) > 0 {
		return labelsFromIDMap(cfg.ID2Label)
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return labelsFromIDMap(m)
}

func labelsFromIDMap(m map[string]string) ([]string, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("label map is empty")
	}
	out := make([]string, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, err)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// fakeIndex finds the class holding fake probability mass. An explicit
// label name wins; otherwise the first label that parses as FAKE; index 1
// for unnamed binary heads.
func fakeIndex(labels []string, fakeLabel string) (int, error) {
	if fakeLabel != "" {
		for i, l := range labels {
			if strings.EqualFold(l, fakeLabel) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("fake label %q not in %v", fakeLabel, labels)
	}
	for i, l := range labels {
		if lbl, err := inference.ParseLabel(l); err == nil && lbl == inference.LabelFake {
			return i, nil
		}
	}
	if len(labels) == 2 || len(labels) == 0 {
		return 1, nil
	}
	return 0, fmt.Errorf("cannot tell which of %v is the fake class; set fake_label", labels)
}

// Score is one ranked class of a classifier output.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// rankScores pairs probabilities with labels, highest first. Unnamed
// classes are called LABEL_<i>.
func rankScores(probs []float32, labels []string) []Score {
	out := make([]Score, len(probs))
	for i, p := range probs {
		name := fmt.Sprintf("LABEL_%d", i)
		if i < len(labels) && labels[i] != "" {
			name = labels[i]
		}
		out[i] = Score{Label: name, Score: float64(p)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
