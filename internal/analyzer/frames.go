package analyzer

import (
	"context"

	"github.com/straja-ai/fakescan/internal/ffmpeg"
	"github.com/straja-ai/fakescan/internal/video"
)

// FrameOpener opens a decoded frame stream over a video file on disk.
type FrameOpener interface {
	OpenFrames(ctx context.Context, path string, maxFrames int) (video.FrameSource, error)
}

// FFmpegFrames decodes with an ffmpeg child process bound to ctx.
type FFmpegFrames struct {
	Exec *ffmpeg.Executor
}

func (f FFmpegFrames) OpenFrames(ctx context.Context, path string, maxFrames int) (video.FrameSource, error) {
	s, err := f.Exec.OpenFrames(ctx, path, maxFrames)
	if err != nil {
		return nil, err
	}
	return s, nil
}
