package analyzer

import (
	"github.com/straja-ai/fakescan/internal/fusion"
	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
	"github.com/straja-ai/fakescan/internal/video"
)

// ImageReport is the response body for a still image.
type ImageReport struct {
	Label                inference.Label    `json:"label"`
	Confidence           float64            `json:"confidence"`
	AuthenticProbability float64            `json:"authentic_probability"`
	Probability          float64            `json:"probability"`
	SuspiciousFrames     []string           `json:"suspicious_frames"`
	FileType             inference.FileType `json:"file_type"`
	Filename             string             `json:"filename"`
	Breakdown            fusion.Breakdown   `json:"breakdown"`
	Provenance           *media.Provenance  `json:"provenance,omitempty"`
}

// VideoReport is the response body for a clip. SuspiciousFrames holds JPEG
// data URIs in frame order.
type VideoReport struct {
	Label                inference.Label     `json:"label"`
	Confidence           float64             `json:"confidence"`
	SuspiciousFrames     []string            `json:"suspicious_frames"`
	FileType             inference.FileType  `json:"file_type"`
	Filename             string              `json:"filename"`
	TotalFramesAnalyzed  int                 `json:"total_frames_analyzed"`
	SuspiciousFrameCount int                 `json:"suspicious_frame_count"`
	Frames               []video.FrameRecord `json:"frames"`
}

// Result is the outcome of one analysis. Exactly one of Image and Video is set.
type Result struct {
	FileType    inference.FileType
	Image       *ImageReport
	Video       *VideoReport
	Termination video.State
	Timings     inference.Timings
}

// Body returns the report to serialize.
func (r *Result) Body() any {
	if r.Video != nil {
		return r.Video
	}
	return r.Image
}

// Label returns the verdict label of whichever report is set.
func (r *Result) Label() inference.Label {
	if r.Video != nil {
		return r.Video.Label
	}
	if r.Image != nil {
		return r.Image.Label
	}
	return ""
}

func (r *Result) Confidence() float64 {
	if r.Video != nil {
		return r.Video.Confidence
	}
	if r.Image != nil {
		return r.Image.Confidence
	}
	return 0
}
