package inference

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Label is the binary verdict shared by the image, video and audio paths.
type Label string

const (
	LabelReal Label = "REAL"
	LabelFake Label = "FAKE"
)

func (l Label) String() string { return string(l) }

// ParseLabel maps a classifier label name onto a Label.
// Model label maps disagree on naming, so the common synonyms are accepted.
func ParseLabel(raw string) (Label, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "real", "bonafide", "bona-fide", "bona_fide", "authentic", "genuine", "human":
		return LabelReal, nil
	case "fake", "spoof", "deepfake", "synthetic", "generated", "ai":
		return LabelFake, nil
	default:
		return "", fmt.Errorf("unrecognised label %q", raw)
	}
}

// FileType is the media family an upload was dispatched to.
type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeVideo FileType = "video"
	FileTypeAudio FileType = "audio"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w") and the HTTP
// layer maps them with errors.Is.
var (
	// ErrUnsupportedMedia: the file extension is not recognised; nothing was decoded.
	ErrUnsupportedMedia = errors.New("unsupported media")
	// ErrInvalidMedia: the extension was recognised but no frame or image decoded.
	ErrInvalidMedia = errors.New("invalid media")
	// ErrModelUnavailable: a learned model failed to load or to run.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrAudioProcessing: audio bytes could not be decoded into a waveform.
	ErrAudioProcessing = errors.New("audio processing failed")
)

// Timings holds latency measurements for the stages of one analysis.
type Timings struct {
	Decode     time.Duration
	Heuristics time.Duration
	Classifier time.Duration
	Total      time.Duration
}

// Add accumulates per-frame stage timings into t.
func (t *Timings) Add(other Timings) {
	if t == nil {
		return
	}
	t.Decode += other.Decode
	t.Heuristics += other.Heuristics
	t.Classifier += other.Classifier
}
