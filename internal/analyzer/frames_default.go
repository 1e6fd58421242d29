//go:build !gocv

package analyzer

import "github.com/straja-ai/fakescan/internal/ffmpeg"

// NewFrameOpener returns the frame decoder for this build.
func NewFrameOpener(exec *ffmpeg.Executor) FrameOpener {
	return FFmpegFrames{Exec: exec}
}
