// Package analyzer dispatches an uploaded file to the image or video
// pipeline and builds the report for it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/straja-ai/fakescan/internal/classifier"
	"github.com/straja-ai/fakescan/internal/events"
	"github.com/straja-ai/fakescan/internal/fusion"
	"github.com/straja-ai/fakescan/internal/heuristics"
	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
	"github.com/straja-ai/fakescan/internal/telemetry"
	"github.com/straja-ai/fakescan/internal/video"
)

// Models supplies the image classifier; *classifier.Registry satisfies it.
type Models interface {
	Image(ctx context.Context) (classifier.ImageClassifier, error)
}

// Options configures an Analyzer. Zero values take the calibrated defaults.
type Options struct {
	Models      Models
	Extractor   heuristics.Extractor
	Frames      FrameOpener
	Weights     fusion.Weights
	Threshold   float64
	Policy      video.Policy
	TempDir     string
	JPEGQuality int
	Telemetry   *telemetry.Provider
	Events      *events.Emitter
	Logger      *slog.Logger
}

// Analyzer runs one analysis per call and holds no per-request state.
type Analyzer struct {
	models      Models
	extractor   heuristics.Extractor
	frames      FrameOpener
	weights     fusion.Weights
	threshold   float64
	policy      video.Policy
	tempDir     string
	jpegQuality int
	tel         *telemetry.Provider
	events      *events.Emitter
	logger      *slog.Logger
}

// New builds an Analyzer. Models is required; Frames is required for video.
func New(opts Options) (*Analyzer, error) {
	if opts.Models == nil {
		return nil, errors.New("analyzer: models are required")
	}
	a := &Analyzer{
		models:      opts.Models,
		extractor:   opts.Extractor,
		frames:      opts.Frames,
		weights:     opts.Weights,
		threshold:   opts.Threshold,
		policy:      opts.Policy,
		tempDir:     opts.TempDir,
		jpegQuality: opts.JPEGQuality,
		tel:         opts.Telemetry,
		events:      opts.Events,
		logger:      opts.Logger,
	}
	if a.extractor == nil {
		a.extractor = heuristics.New(heuristics.DefaultParams())
	}
	if a.weights.IsZero() {
		a.weights = fusion.DefaultWeights
	}
	if err := a.weights.Validate(); err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	if a.threshold <= 0 {
		a.threshold = fusion.DefaultThreshold
	}
	if a.policy.MaxFrames <= 0 {
		a.policy.MaxFrames = video.DefaultPolicy().MaxFrames
	}
	if a.jpegQuality <= 0 {
		a.jpegQuality = media.DefaultJPEGQuality
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "analyzer")
	return a, nil
}

// AnalyzeFile dispatches on the filename extension. Unsupported extensions
// fail with inference.ErrUnsupportedMedia before anything is decoded.
func (a *Analyzer) AnalyzeFile(ctx context.Context, filename string, data []byte) (*Result, error) {
	kind, err := KindOf(filename)
	if err != nil {
		a.finish(ctx, filename, "unsupported", nil, err, time.Now())
		return nil, err
	}
	switch kind {
	case inference.FileTypeVideo:
		return a.AnalyzeVideo(ctx, filename, data)
	default:
		return a.AnalyzeImage(ctx, filename, data)
	}
}

// AnalyzeImage scores a single JPEG or PNG.
func (a *Analyzer) AnalyzeImage(ctx context.Context, filename string, data []byte) (res *Result, err error) {
	start := time.Now()
	ctx, span := a.tel.StartSpan(ctx, "fakescan.analyze_image",
		attribute.Int("fakescan.upload_bytes", len(data)))
	defer span.End()
	defer func() { a.finish(ctx, filename, inference.FileTypeImage, res, err, start) }()

	var timings inference.Timings
	t0 := time.Now()
	img, err := media.Decode(data)
	timings.Decode = time.Since(t0)
	if err != nil {
		return nil, err
	}

	clf, err := a.models.Image(ctx)
	if err != nil {
		return nil, err
	}
	fused, stage, err := a.fuse(ctx, clf, img)
	if err != nil {
		return nil, err
	}
	timings.Add(stage)
	timings.Total = time.Since(start)

	v := fusion.NewImageVerdict(fused.Score, a.threshold)
	return &Result{
		FileType: inference.FileTypeImage,
		Image: &ImageReport{
			Label:                v.Label,
			Confidence:           v.Confidence,
			AuthenticProbability: v.AuthenticProbability,
			Probability:          v.Probability,
			SuspiciousFrames:     []string{},
			FileType:             inference.FileTypeImage,
			Filename:             filename,
			Breakdown:            fused.Breakdown,
			Provenance:           media.ExtractProvenance(data),
		},
		Timings: timings,
	}, nil
}

// AnalyzeVideo stages data in a temp file, scores up to Policy.MaxFrames
// frames and summarizes them. The temp file and decoder are released on
// every path.
func (a *Analyzer) AnalyzeVideo(ctx context.Context, filename string, data []byte) (res *Result, err error) {
	start := time.Now()
	ctx, span := a.tel.StartSpan(ctx, "fakescan.analyze_video",
		attribute.Int("fakescan.upload_bytes", len(data)))
	defer span.End()
	defer func() { a.finish(ctx, filename, inference.FileTypeVideo, res, err, start) }()

	if a.frames == nil {
		return nil, errors.New("analyzer: no frame decoder configured")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", video.NoFramesMessage, inference.ErrInvalidMedia)
	}
	clf, err := a.models.Image(ctx)
	if err != nil {
		return nil, err
	}

	path, cleanup, err := a.stage(filename, data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	src, err := a.frames.OpenFrames(ctx, path, a.policy.MaxFrames)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, inference.ErrInvalidMedia) {
			return nil, err
		}
		return nil, fmt.Errorf("open video: %v: %w", err, inference.ErrInvalidMedia)
	}

	scorer := &frameScorer{a: a, clf: clf}
	clip, err := video.Aggregate(ctx, src, scorer, a.policy)
	if err != nil {
		return nil, err
	}
	a.tel.RecordFrames(ctx, clip.FramesAnalyzed)

	evidence := make([]string, 0, len(clip.Evidence))
	for _, f := range clip.Evidence {
		uri, err := media.JPEGDataURI(f.Image, a.jpegQuality)
		if err != nil {
			return nil, fmt.Errorf("encode evidence frame %d: %w", f.Index, err)
		}
		evidence = append(evidence, uri)
	}

	timings := scorer.timings()
	timings.Total = time.Since(start)
	return &Result{
		FileType: inference.FileTypeVideo,
		Video: &VideoReport{
			Label:                clip.Label,
			Confidence:           clip.Confidence,
			SuspiciousFrames:     evidence,
			FileType:             inference.FileTypeVideo,
			Filename:             filename,
			TotalFramesAnalyzed:  clip.FramesAnalyzed,
			SuspiciousFrameCount: len(evidence),
			Frames:               clip.Frames,
		},
		Termination: clip.Termination,
		Timings:     timings,
	}, nil
}

// ScoreImage runs the single-image pipeline and returns the fused result.
func (a *Analyzer) ScoreImage(ctx context.Context, img *media.Image) (fusion.Result, error) {
	clf, err := a.models.Image(ctx)
	if err != nil {
		return fusion.Result{}, err
	}
	res, _, err := a.fuse(ctx, clf, img)
	return res, err
}

func (a *Analyzer) fuse(ctx context.Context, clf classifier.ImageClassifier, img *media.Image) (fusion.Result, inference.Timings, error) {
	var t inference.Timings
	if err := img.Validate(); err != nil {
		return fusion.Result{}, t, fmt.Errorf("%v: %w", err, inference.ErrInvalidMedia)
	}

	t0 := time.Now()
	scores := a.extractor.Extract(img)
	t.Heuristics = time.Since(t0)

	t0 = time.Now()
	p, err := clf.FakeProbability(ctx, img)
	t.Classifier = time.Since(t0)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fusion.Result{}, t, err
		}
		return fusion.Result{}, t, fmt.Errorf("image classifier: %v: %w", err, inference.ErrModelUnavailable)
	}
	a.tel.RecordClassifierInference(ctx, classifier.ModelImage, t.Classifier)
	if !validProbability(p) {
		return fusion.Result{}, t, fmt.Errorf("image classifier returned probability %v: %w", p, inference.ErrModelUnavailable)
	}

	return a.weights.Fuse(p, scores), t, nil
}

// probabilityTolerance absorbs float drift from softmax; anything further
// outside [0,1] means the model is broken.
const probabilityTolerance = 1e-6

func validProbability(p float64) bool {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return false
	}
	return p >= -probabilityTolerance && p <= 1+probabilityTolerance
}

// stage writes data to a temp file keeping the original extension so the
// demuxer can use it as a hint.
func (a *Analyzer) stage(filename string, data []byte) (string, func(), error) {
	ext := strings.ToLower(filepath.Ext(filename))
	f, err := os.CreateTemp(a.tempDir, "fakescan-*"+ext)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("remove temp file failed", "path", path, "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return path, cleanup, nil
}

// finish logs, records metrics and emits the analysis event.
func (a *Analyzer) finish(ctx context.Context, filename string, kind inference.FileType, res *Result, err error, start time.Time) {
	elapsed := time.Since(start)
	outcome := events.OutcomeOK
	label := ""
	if err != nil {
		outcome = events.OutcomeError
	} else if res != nil {
		label = string(res.Label())
	}
	a.tel.RecordAnalysis(ctx, string(kind), label, outcome, elapsed)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.SafeAttributes(
		attribute.String("fakescan.file_type", string(kind)),
		attribute.String("fakescan.outcome", outcome),
		attribute.String("fakescan.label", label),
	)...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
	}

	params := events.BuildParams{
		RequestID: RequestIDFrom(ctx),
		FileType:  kind,
		Filename:  filename,
		Err:       err,
	}
	if res != nil {
		params.Label = res.Label()
		params.Confidence = res.Confidence()
		params.Timings = res.Timings
		if res.Video != nil {
			params.Video = &events.VideoSummary{
				FramesAnalyzed:   res.Video.TotalFramesAnalyzed,
				SuspiciousFrames: res.Video.SuspiciousFrameCount,
				Termination:      res.Termination.String(),
			}
		}
		if res.Image != nil && res.Image.Provenance != nil {
			params.Provenance = res.Image.Provenance.GeneratorHint
		}
	} else {
		params.Timings.Total = elapsed
	}
	ev := events.BuildEvent(params)
	events.LogEvent(a.logger, ev)
	a.events.Emit(ctx, ev)
}

// frameScorer adapts the image pipeline to video.Scorer and accumulates
// stage timings across workers.
type frameScorer struct {
	a   *Analyzer
	clf classifier.ImageClassifier

	mu sync.Mutex
	t  inference.Timings
}

func (s *frameScorer) ScoreFrame(ctx context.Context, img *media.Image) (float64, error) {
	res, t, err := s.a.fuse(ctx, s.clf, img)
	s.mu.Lock()
	s.t.Add(t)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}

func (s *frameScorer) timings() inference.Timings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}
