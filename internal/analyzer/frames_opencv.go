//go:build gocv

package analyzer

import (
	"context"
	"fmt"
	"io"

	"gocv.io/x/gocv"

	"github.com/straja-ai/fakescan/internal/ffmpeg"
	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
	"github.com/straja-ai/fakescan/internal/video"
)

// NewFrameOpener returns the OpenCV decoder; ffmpeg stays in use for audio.
func NewFrameOpener(*ffmpeg.Executor) FrameOpener {
	return OpenCVFrames{}
}

// OpenCVFrames decodes with gocv.VideoCapture.
type OpenCVFrames struct{}

func (OpenCVFrames) OpenFrames(_ context.Context, path string, _ int) (video.FrameSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %v: %w", err, inference.ErrInvalidMedia)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open capture: %w", inference.ErrInvalidMedia)
	}
	return &captureSource{vc: vc, bgr: gocv.NewMat(), rgb: gocv.NewMat()}, nil
}

type captureSource struct {
	vc  *gocv.VideoCapture
	bgr gocv.Mat
	rgb gocv.Mat
}

func (s *captureSource) Next(ctx context.Context) (*media.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := s.vc.Read(&s.bgr); !ok || s.bgr.Empty() {
		return nil, io.EOF
	}
	w, h := s.bgr.Cols(), s.bgr.Rows()
	if w*h > media.MaxPixels {
		return nil, fmt.Errorf("frame dimensions %dx%d out of range: %w", w, h, inference.ErrInvalidMedia)
	}
	gocv.CvtColor(s.bgr, &s.rgb, gocv.ColorBGRToRGB)
	buf := s.rgb.ToBytes()
	img := media.NewImage(w, h)
	copy(img.Pix, buf)
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, inference.ErrInvalidMedia)
	}
	return img, nil
}

func (s *captureSource) Close() error {
	s.bgr.Close()
	s.rgb.Close()
	return s.vc.Close()
}
