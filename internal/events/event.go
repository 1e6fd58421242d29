// Package events publishes one record per finished analysis to pluggable
// sinks without blocking the request path.
package events

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/redact"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

type TimingMs struct {
	Decode     float64 `json:"decode"`
	Heuristics float64 `json:"heuristics"`
	Classifier float64 `json:"classifier"`
	Total      float64 `json:"total"`
}

// VideoSummary is present only for video analyses.
type VideoSummary struct {
	FramesAnalyzed   int    `json:"frames_analyzed"`
	SuspiciousFrames int    `json:"suspicious_frames"`
	Termination      string `json:"termination"`
}

// Event is the canonical analysis record. It never carries media bytes.
type Event struct {
	Version    string        `json:"version"`
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	RequestID  string        `json:"request_id"`
	FileType   string        `json:"file_type"`
	Filename   string        `json:"filename"`
	Outcome    string        `json:"outcome"`
	Label      string        `json:"label,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Error      string        `json:"error,omitempty"`
	Video      *VideoSummary `json:"video,omitempty"`
	Provenance string        `json:"provenance,omitempty"`
	TimingMs   TimingMs      `json:"timing_ms"`
}

// BuildParams collects inputs needed to assemble an analysis event.
type BuildParams struct {
	RequestID  string
	FileType   inference.FileType
	Filename   string
	Label      inference.Label
	Confidence float64
	Err        error
	Video      *VideoSummary
	Provenance string
	Timings    inference.Timings
}

// BuildEvent creates the event for one analysis.
func BuildEvent(params BuildParams) *Event {
	ev := &Event{
		Version:    "1",
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		RequestID:  ensureRequestID(params.RequestID),
		FileType:   string(params.FileType),
		Filename:   redact.String(truncate(params.Filename, 255)),
		Outcome:    OutcomeOK,
		Video:      params.Video,
		Provenance: params.Provenance,
		TimingMs: TimingMs{
			Decode:     durationMillis(params.Timings.Decode),
			Heuristics: durationMillis(params.Timings.Heuristics),
			Classifier: durationMillis(params.Timings.Classifier),
			Total:      durationMillis(params.Timings.Total),
		},
	}
	if params.Err != nil {
		ev.Outcome = OutcomeError
		ev.Error = redact.String(params.Err.Error())
		return ev
	}
	ev.Label = string(params.Label)
	ev.Confidence = params.Confidence
	return ev
}

// LogEvent writes a one-line summary of the event.
func LogEvent(logger *slog.Logger, ev *Event) {
	if ev == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"request_id", ev.RequestID,
		"file_type", ev.FileType,
		"filename", ev.Filename,
		"outcome", ev.Outcome,
		"total_ms", ev.TimingMs.Total,
	}
	if ev.Outcome == OutcomeError {
		logger.Warn("analysis failed", append(attrs, "error", ev.Error)...)
		return
	}
	attrs = append(attrs, "label", ev.Label, "confidence", ev.Confidence)
	if ev.Video != nil {
		attrs = append(attrs, "frames", ev.Video.FramesAnalyzed, "suspicious", ev.Video.SuspiciousFrames)
	}
	logger.Info("analysis complete", attrs...)
}

func ensureRequestID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
