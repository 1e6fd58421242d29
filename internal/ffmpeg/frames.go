package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/media"
)

// FrameStream reads raw rgb24 frames of a fixed size from a reader, usually
// the stdout of an ffmpeg process.
type FrameStream struct {
	r      io.Reader
	width  int
	height int
	frames int

	cmd    *exec.Cmd
	cancel context.CancelFunc
	stderr *bytes.Buffer

	closeOnce sync.Once
	closeErr  error
	done      bool
}

// NewFrameStream wraps r. It is the building block of OpenFrames and is
// useful on its own for piped input.
func NewFrameStream(r io.Reader, width, height int) *FrameStream {
	return &FrameStream{r: r, width: width, height: height}
}

// OpenFrames starts ffmpeg decoding path to rgb24 and returns a stream of at
// most maxFrames+1 frames. The extra frame lets callers tell a capped clip
// from one that ended exactly at the cap.
func (e *Executor) OpenFrames(ctx context.Context, path string, maxFrames int) (*FrameStream, error) {
	info, err := e.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.Width*info.Height > media.MaxPixels {
		return nil, fmt.Errorf("video dimensions %dx%d out of range: %w", info.Width, info.Height, inference.ErrInvalidMedia)
	}

	args := []string{"-v", "error", "-nostdin", "-noautorotate", "-i", path}
	if maxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(maxFrames+1))
	}
	args = append(args, "-an", "-f", "rawvideo", "-pix_fmt", "rgb24", "-")

	pctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(pctx, e.FFmpegPath, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Debug("ffmpeg frame decode started", "width", info.Width, "height", info.Height, "codec", info.CodecName, "fps", info.FPS())
	}

	s := NewFrameStream(bufio.NewReaderSize(stdout, 1<<20), info.Width, info.Height)
	s.cmd, s.cancel, s.stderr = cmd, cancel, stderr
	return s, nil
}

// Next returns the next frame or io.EOF. A truncated final frame counts as
// the end of the stream.
func (s *FrameStream) Next(ctx context.Context) (*media.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}
	img := media.NewImage(s.width, s.height)
	_, err := io.ReadFull(s.r, img.Pix)
	if err == nil {
		s.frames++
		return img, nil
	}
	s.done = true
	// A cancelled context kills ffmpeg, which also ends the read early; that
	// is never a clean end of stream.
	if cerr := ctx.Err(); cerr != nil {
		_ = s.wait()
		return nil, cerr
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		if werr := s.wait(); werr != nil && s.frames == 0 {
			return nil, fmt.Errorf("ffmpeg failed: %v, output: %s: %w", werr, strings.TrimSpace(s.stderr.String()), inference.ErrInvalidMedia)
		}
		return nil, io.EOF
	}
	return nil, fmt.Errorf("read frame: %w", err)
}

// Frames returns how many complete frames were read.
func (s *FrameStream) Frames() int { return s.frames }

func (s *FrameStream) wait() error {
	if s.cmd == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.cmd.Wait()
		s.cancel()
	})
	return s.closeErr
}

// Close stops ffmpeg if it is still running. Stopping a process early is not
// an error.
func (s *FrameStream) Close() error {
	if s.cmd == nil {
		if c, ok := s.r.(io.Closer); ok {
			return c.Close()
		}
		return nil
	}
	if !s.done {
		s.cancel()
	}
	_ = s.wait()
	return nil
}
