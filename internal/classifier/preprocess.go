package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/straja-ai/fakescan/internal/media"
)

// preprocessorConfig is the subset of a Hugging Face
// preprocessor_config.json the models need.
type preprocessorConfig struct {
	DoResize      *bool           `json:"do_resize"`
	DoRescale     *bool           `json:"do_rescale"`
	DoNormalize   *bool           `json:"do_normalize"`
	RescaleFactor float64         `json:"rescale_factor"`
	ImageMean     []float64       `json:"image_mean"`
	ImageStd      []float64       `json:"image_std"`
	Size          json.RawMessage `json:"size"`
	SamplingRate  int             `json:"sampling_rate"`
}

// imagePreprocess is the resolved image normalization.
type imagePreprocess struct {
	Width, Height int
	Rescale       float64
	Mean, Std     [3]float64
}

func defaultImagePreprocess(size int) imagePreprocess {
	if size <= 0 {
		size = 224
	}
	return imagePreprocess{
		Width:   size,
		Height:  size,
		Rescale: 1.0 / 255,
		Mean:    [3]float64{0.5, 0.5, 0.5},
		Std:     [3]float64{0.5, 0.5, 0.5},
	}
}

func loadPreprocessorConfig(path string) (*preprocessorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg preprocessorConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// imagePreprocessFrom merges a preprocessor config over the defaults. size
// overrides whatever the config says when > 0.
func imagePreprocessFrom(cfg *preprocessorConfig, size int) (imagePreprocess, error) {
	p := defaultImagePreprocess(size)
	if cfg == nil {
		return p, nil
	}
	if size <= 0 && len(cfg.Size) > 0 {
		w, h, err := parseSize(cfg.Size)
		if err != nil {
			return p, err
		}
		p.Width, p.Height = w, h
	}
	if cfg.DoRescale != nil && !*cfg.DoRescale {
		p.Rescale = 1
	} else if cfg.RescaleFactor > 0 {
		p.Rescale = cfg.RescaleFactor
	}
	if cfg.DoNormalize != nil && !*cfg.DoNormalize {
		p.Mean = [3]float64{0, 0, 0}
		p.Std = [3]float64{1, 1, 1}
		return p, nil
	}
	if len(cfg.ImageMean) == 3 {
		copy(p.Mean[:], cfg.ImageMean)
	}
	if len(cfg.ImageStd) == 3 {
		copy(p.Std[:], cfg.ImageStd)
	}
	for c, s := range p.Std {
		if s == 0 {
			return p, fmt.Errorf("image_std[%d] is zero", c)
		}
	}
	return p, nil
}

// parseSize accepts 224, {"height":224,"width":224} and {"shortest_edge":224}.
func parseSize(raw json.RawMessage) (int, int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n, n, nil
	}
	var m struct {
		Height       int `json:"height"`
		Width        int `json:"width"`
		ShortestEdge int `json:"shortest_edge"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, 0, fmt.Errorf("parse size: %w", err)
	}
	if m.Height > 0 && m.Width > 0 {
		return m.Width, m.Height, nil
	}
	if m.ShortestEdge > 0 {
		return m.ShortestEdge, m.ShortestEdge, nil
	}
	return 0, 0, fmt.Errorf("size %s has no usable dimensions", string(raw))
}

// fillCHW resizes img to the model input and writes normalized planar
// channels into dst, which must hold 3*Width*Height values.
func (p imagePreprocess) fillCHW(img *media.Image, dst []float32) {
	if img.Width != p.Width || img.Height != p.Height {
		img = media.Resize(img, p.Width, p.Height)
	}
	plane := p.Width * p.Height
	for i := 0; i < plane; i++ {
		px := img.Pix[3*i : 3*i+3]
		for c := 0; c < 3; c++ {
			dst[c*plane+i] = float32((float64(px[c])*p.Rescale - p.Mean[c]) / p.Std[c])
		}
	}
}

// normalizeWaveform applies zero-mean unit-variance normalization in place.
func normalizeWaveform(x []float32) {
	if len(x) == 0 {
		return
	}
	var mean float64
	for _, v := range x {
		mean += float64(v)
	}
	mean /= float64(len(x))
	var variance float64
	for _, v := range x {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(x))
	scale := 1 / math.Sqrt(variance+1e-7)
	for i, v := range x {
		x[i] = float32((float64(v) - mean) * scale)
	}
}
