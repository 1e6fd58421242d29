// Package audio produces a verdict for an audio clip straight from the
// audio classifier. There is no heuristic fusion on this path.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/straja-ai/fakescan/internal/classifier"
	"github.com/straja-ai/fakescan/internal/ffmpeg"
	"github.com/straja-ai/fakescan/internal/fusion"
	"github.com/straja-ai/fakescan/internal/inference"
)

// ProcessingErrorMessage is reported when the bytes cannot be decoded.
const ProcessingErrorMessage = "Could not process audio file"

// Decoder turns encoded audio into mono float32 PCM at sampleRate.
type Decoder interface {
	Decode(ctx context.Context, data []byte, sampleRate int) ([]float32, error)
}

// FFmpegDecoder decodes with an ffmpeg.Executor.
type FFmpegDecoder struct {
	Exec *ffmpeg.Executor
	// MaxSeconds truncates long clips when > 0.
	MaxSeconds float64
}

func (d FFmpegDecoder) Decode(ctx context.Context, data []byte, sampleRate int) ([]float32, error) {
	return d.Exec.DecodeAudio(ctx, data, sampleRate, d.MaxSeconds)
}

// Models supplies the audio classifier; *classifier.Registry satisfies it.
type Models interface {
	Audio(ctx context.Context) (classifier.AudioClassifier, error)
}

// Verdict is the top-ranked class of the audio classifier.
type Verdict struct {
	Verdict inference.Label `json:"verdict"`
	// Confidence is the top class score in [0,1].
	Confidence float64            `json:"confidence"`
	RawScores  []classifier.Score `json:"raw_scores"`
}

// Detector classifies audio clips.
type Detector struct {
	decoder    Decoder
	models     Models
	sampleRate int
	logger     *slog.Logger
}

// NewDetector wires a decoder to the audio model. sampleRate is the
// fallback for models that report no rate of their own; <= 0 uses
// classifier.DefaultSampleRate.
func NewDetector(decoder Decoder, models Models, sampleRate int, logger *slog.Logger) *Detector {
	if sampleRate <= 0 {
		sampleRate = classifier.DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{decoder: decoder, models: models, sampleRate: sampleRate, logger: logger}
}

// Classify decodes data at the model's sample rate and returns the
// top-ranked verdict. Decode failures wrap inference.ErrAudioProcessing;
// model failures wrap inference.ErrModelUnavailable. No partial verdict is
// ever returned.
func (d *Detector) Classify(ctx context.Context, data []byte) (*Verdict, error) {
	model, err := d.models.Audio(ctx)
	if err != nil {
		return nil, err
	}
	rate := model.SampleRate()
	if rate <= 0 {
		rate = d.sampleRate
	}

	samples, err := d.decoder.Decode(ctx, data, rate)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, inference.ErrAudioProcessing) {
			return nil, err
		}
		return nil, fmt.Errorf("decode audio: %v: %w", err, inference.ErrAudioProcessing)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("decode audio: no samples: %w", inference.ErrAudioProcessing)
	}

	scores, err := model.Classify(ctx, samples)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("classify audio: %v: %w", err, inference.ErrModelUnavailable)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("classify audio: empty result: %w", inference.ErrModelUnavailable)
	}

	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	v := &Verdict{
		Verdict:    verdictLabel(top.Label),
		Confidence: top.Score,
		RawScores:  scores,
	}
	d.logger.Info("audio analysis complete",
		"verdict", v.Verdict,
		"confidence", v.Confidence,
		"samples", len(samples),
		"seconds", float64(len(samples))/float64(rate),
	)
	return v, nil
}

// CheckTool is the tool-call form of Classify. It always returns a
// human-readable line and never panics.
func (d *Detector) CheckTool(ctx context.Context, data []byte) (out string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audio tool panicked", "panic", r)
			out = fmt.Sprintf("Error: %v", r)
		}
	}()

	v, err := d.Classify(ctx, data)
	if err != nil {
		return ToolError(err)
	}
	return ToolMessage(v)
}

// ToolMessage formats a verdict as the tool's success line.
func ToolMessage(v *Verdict) string {
	return fmt.Sprintf("ANALYSIS COMPLETE: The audio is %s (%s%% confidence).", v.Verdict, formatPercent(v.Confidence))
}

// ToolError formats a Classify error as the tool's failure line.
func ToolError(err error) string {
	if errors.Is(err, inference.ErrAudioProcessing) {
		return "Error: " + ProcessingErrorMessage
	}
	return "Error: " + err.Error()
}

// verdictLabel maps a model label onto REAL/FAKE, upper-casing anything
// unrecognised.
func verdictLabel(raw string) inference.Label {
	if l, err := inference.ParseLabel(raw); err == nil {
		return l
	}
	return inference.Label(strings.ToUpper(strings.TrimSpace(raw)))
}

// formatPercent renders score*100 rounded to two decimals, always with a
// fractional part ("99.8", "100.0").
func formatPercent(score float64) string {
	s := strconv.FormatFloat(fusion.Round2(score*100), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
