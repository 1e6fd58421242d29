// Package ffmpeg decodes video frames and audio waveforms by running the
// ffmpeg and ffprobe binaries. Every process is bound to the caller's context.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/straja-ai/fakescan/internal/inference"
)

// Executor runs ffmpeg/ffprobe.
type Executor struct {
	FFmpegPath  string
	FFprobePath string
	// TempDir is where audio uploads are staged; "" uses the OS default.
	TempDir string
	Logger  *slog.Logger
}

// New returns an Executor; empty paths fall back to the binaries on PATH.
func New(ffmpegPath, ffprobePath string) *Executor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Executor{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Logger: slog.Default()}
}

// Available reports whether both binaries can be found.
func (e *Executor) Available() error {
	for _, bin := range []string{e.FFmpegPath, e.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// StreamInfo describes the first video stream of a file.
type StreamInfo struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	CodecName    string  `json:"codec_name"`
	AvgFrameRate string  `json:"avg_frame_rate"`
	Duration     float64 `json:"-"`
}

// FPS parses AvgFrameRate ("30000/1001"); 0 when unknown.
func (s StreamInfo) FPS() float64 {
	num, den, ok := strings.Cut(s.AvgFrameRate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		CodecName    string `json:"codec_name"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

func parseProbe(data []byte) (StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output: %v: %w", err, inference.ErrInvalidMedia)
	}
	if len(out.Streams) == 0 {
		return StreamInfo{}, fmt.Errorf("no video stream: %w", inference.ErrInvalidMedia)
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return StreamInfo{}, fmt.Errorf("video stream has no dimensions: %w", inference.ErrInvalidMedia)
	}
	info := StreamInfo{Width: s.Width, Height: s.Height, CodecName: s.CodecName, AvgFrameRate: s.AvgFrameRate}
	if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// Probe reads the dimensions of the first video stream.
func (e *Executor) Probe(ctx context.Context, path string) (StreamInfo, error) {
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_name,avg_frame_rate,duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StreamInfo{}, ctxErr
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return StreamInfo{}, fmt.Errorf("run ffprobe: %w", err)
		}
		return StreamInfo{}, fmt.Errorf("ffprobe failed: %v, output: %s: %w", err, strings.TrimSpace(stderr.String()), inference.ErrInvalidMedia)
	}
	return parseProbe(out)
}
