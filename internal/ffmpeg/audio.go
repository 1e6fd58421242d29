package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/straja-ai/fakescan/internal/inference"
)

// DecodeAudio converts an encoded audio file to mono float32 PCM at
// sampleRate. maxSeconds > 0 truncates the waveform. Any decode failure
// wraps inference.ErrAudioProcessing.
func (e *Executor) DecodeAudio(ctx context.Context, data []byte, sampleRate int, maxSeconds float64) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio: %w", inference.ErrAudioProcessing)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	// Containers like mp4/m4a need a seekable input, so stage to disk.
	tmp, err := os.CreateTemp(e.TempDir, "fakescan-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	args := []string{"-v", "error", "-nostdin", "-i", tmp.Name()}
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.FormatFloat(maxSeconds, 'f', -1, 64))
	}
	args = append(args, "-vn", "-ac", "1", "-ar", strconv.Itoa(sampleRate), "-f", "f32le", "-")

	cmd := exec.CommandContext(ctx, e.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("ffmpeg failed: %v, output: %s: %w", err, strings.TrimSpace(stderr.String()), inference.ErrAudioProcessing)
	}
	samples, err := ParsePCM(out)
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// ParsePCM decodes little-endian float32 samples. Empty input is an error.
func ParsePCM(raw []byte) ([]float32, error) {
	n := len(raw) / 4
	if n == 0 {
		return nil, fmt.Errorf("no audio samples decoded: %w", inference.ErrAudioProcessing)
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return samples, nil
}
