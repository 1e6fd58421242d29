// Package video extends single-image scoring to clips: it pulls frames from a
// FrameSource, scores each one, flags suspicious frames as evidence and
// summarizes the run into a ClipVerdict.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/straja-ai/fakescan/internal/fusion"
	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
)

// NoFramesMessage is the user-facing detail when nothing decoded.
const NoFramesMessage = "No valid video frames."

// FrameSource yields decoded frames in presentation order. Next returns
// io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (*media.Image, error)
	Close() error
}

// Scorer maps one frame to a fake probability in [0,1].
type Scorer interface {
	ScoreFrame(ctx context.Context, img *media.Image) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, img *media.Image) (float64, error)

func (f ScorerFunc) ScoreFrame(ctx context.Context, img *media.Image) (float64, error) {
	return f(ctx, img)
}

// State is the position of an aggregation run.
type State int

const (
	StateInit State = iota
	StateStreaming
	StateEarlyStop
	StateExhausted
	StateSummarized
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateStreaming:
		return "streaming"
	case StateEarlyStop:
		return "early_stop"
	case StateExhausted:
		return "exhausted"
	case StateSummarized:
		return "summarized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Policy controls sampling and labeling of a clip.
type Policy struct {
	// MaxFrames caps how many frames are scored.
	MaxFrames int
	// SuspiciousThreshold is the per-frame probability (0..1) at and above
	// which a frame is kept as evidence.
	SuspiciousThreshold float64
	// FakeThresholdPercent is the mean frame percentage at and above which
	// the clip is FAKE.
	FakeThresholdPercent float64
	// Workers > 1 scores frames concurrently.
	Workers int
	// DedupeEvidence drops suspicious frames whose dHash is within
	// DedupeDistance of an earlier evidence frame.
	DedupeEvidence bool
	DedupeDistance int
}

// DefaultPolicy returns the calibrated policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxFrames:            31,
		SuspiciousThreshold:  0.70,
		FakeThresholdPercent: 50,
		Workers:              1,
		DedupeDistance:       10,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxFrames <= 0 {
		p.MaxFrames = d.MaxFrames
	}
	if p.SuspiciousThreshold <= 0 {
		p.SuspiciousThreshold = d.SuspiciousThreshold
	}
	if p.FakeThresholdPercent <= 0 {
		p.FakeThresholdPercent = d.FakeThresholdPercent
	}
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	if p.DedupeDistance <= 0 {
		p.DedupeDistance = d.DedupeDistance
	}
	return p
}

// FrameRecord is the score of one frame. Image is retained only for
// suspicious frames.
type FrameRecord struct {
	Index       int          `json:"index"`
	Probability float64      `json:"-"`
	Confidence  float64      `json:"confidence"`
	Suspicious  bool         `json:"suspicious"`
	Image       *media.Image `json:"-"`
}

// ClipVerdict summarizes a clip.
type ClipVerdict struct {
	Label inference.Label
	// Confidence is the mean frame percentage rounded to two decimals.
	Confidence float64
	// Frames holds every scored frame in index order.
	Frames []FrameRecord
	// Evidence holds the suspicious frames in index order.
	Evidence       []FrameRecord
	FramesAnalyzed int
	// Termination is StateEarlyStop or StateExhausted.
	Termination State
	Timings     inference.Timings
}

// Aggregate runs the frame loop. The source is always closed before
// Aggregate returns.
func Aggregate(ctx context.Context, src FrameSource, scorer Scorer, p Policy) (verdict *ClipVerdict, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			verdict, err = nil, fmt.Errorf("close frame source: %w", cerr)
		}
	}()

	p = p.withDefaults()
	var (
		frames []FrameRecord
		term   State
	)
	if p.Workers > 1 {
		frames, term, err = scoreConcurrent(ctx, src, scorer, p)
	} else {
		frames, term, err = scoreSequential(ctx, src, scorer, p)
	}
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", NoFramesMessage, inference.ErrInvalidMedia)
	}
	return summarize(frames, term, p), nil
}

func scoreSequential(ctx context.Context, src FrameSource, scorer Scorer, p Policy) ([]FrameRecord, State, error) {
	frames := make([]FrameRecord, 0, p.MaxFrames)
	for {
		if len(frames) == p.MaxFrames {
			return frames, probeRemaining(ctx, src), nil
		}
		img, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return frames, StateExhausted, nil
		}
		if err != nil {
			return nil, StateStreaming, frameError(len(frames), err)
		}
		rec, err := scoreFrame(ctx, scorer, len(frames), img, p)
		if err != nil {
			return nil, StateStreaming, err
		}
		frames = append(frames, rec)
	}
}

func scoreFrame(ctx context.Context, scorer Scorer, idx int, img *media.Image, p Policy) (FrameRecord, error) {
	if err := ctx.Err(); err != nil {
		return FrameRecord{}, err
	}
	prob, err := scorer.ScoreFrame(ctx, img)
	if err != nil {
		return FrameRecord{}, fmt.Errorf("score frame %d: %w", idx, err)
	}
	prob = fusion.Clamp(prob)
	rec := FrameRecord{
		Index:       idx,
		Probability: prob,
		Confidence:  fusion.Round2(prob * 100),
		Suspicious:  prob >= p.SuspiciousThreshold,
	}
	if rec.Suspicious {
		rec.Image = img
	}
	return rec, nil
}

// probeRemaining pulls one more frame to tell a capped run from a stream
// that ended exactly at the cap.
func probeRemaining(ctx context.Context, src FrameSource) State {
	if _, err := src.Next(ctx); errors.Is(err, io.EOF) {
		return StateExhausted
	}
	return StateEarlyStop
}

func frameError(idx int, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, inference.ErrInvalidMedia) {
		return fmt.Errorf("read frame %d: %w", idx, err)
	}
	return fmt.Errorf("read frame %d: %v: %w", idx, err, inference.ErrInvalidMedia)
}

func summarize(frames []FrameRecord, term State, p Policy) *ClipVerdict {
	var sum float64
	var evidence []FrameRecord
	for _, f := range frames {
		sum += f.Probability * 100
		if f.Suspicious {
			evidence = append(evidence, f)
		}
	}
	mean := sum / float64(len(frames))
	if p.DedupeEvidence {
		evidence = dedupe(evidence, p.DedupeDistance)
	}
	label := inference.LabelReal
	if mean >= p.FakeThresholdPercent {
		label = inference.LabelFake
	}
	return &ClipVerdict{
		Label:          label,
		Confidence:     fusion.Round2(mean),
		Frames:         frames,
		Evidence:       evidence,
		FramesAnalyzed: len(frames),
		Termination:    term,
	}
}
