package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/straja-ai/fakescan/internal/inference"
)

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":640,"height":360,"codec_name":"h264","avg_frame_rate":"30000/1001","duration":"4.004"}]}`))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Width != 640 || info.Height != 360 || info.CodecName != "h264" {
		t.Fatalf("unexpected info %+v", info)
	}
	if fps := info.FPS(); math.Abs(fps-29.97) > 0.01 {
		t.Fatalf("fps = %v", fps)
	}
	if info.Duration != 4.004 {
		t.Fatalf("duration = %v", info.Duration)
	}
}

func TestParseProbeRejectsMissingStream(t *testing.T) {
	for _, raw := range []string{`{"streams":[]}`, `{"streams":[{"width":0,"height":0}]}`, `not json`} {
		if _, err := parseProbe([]byte(raw)); !errors.Is(err, inference.ErrInvalidMedia) {
			t.Fatalf("parseProbe(%q) err = %v, want ErrInvalidMedia", raw, err)
		}
	}
}

func TestFrameStreamReadsWholeFrames(t *testing.T) {
	// two full 2x1 frames plus a truncated third
	raw := []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
		13, 14,
	}
	s := NewFrameStream(bytes.NewReader(raw), 2, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		img, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Width != 2 || img.Height != 1 || img.Pix[0] != byte(1+6*i) {
			t.Fatalf("frame %d: unexpected pixels %v", i, img.Pix)
		}
	}
	if _, err := s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("truncated frame: err = %v, want io.EOF", err)
	}
	if _, err := s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("after end: err = %v, want io.EOF", err)
	}
	if s.Frames() != 2 {
		t.Fatalf("Frames() = %d", s.Frames())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFrameStreamHonoursContext(t *testing.T) {
	s := NewFrameStream(bytes.NewReader(make([]byte, 12)), 2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestFrameStreamCancelledMidStreamIsNotEOF(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewFrameStream(pr, 2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = pw.Write(make([]byte, 6))
	}()
	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx)
		errc <- err
	}()
	// The decoder is killed on cancellation, so the pending read sees EOF.
	time.Sleep(50 * time.Millisecond)
	cancel()
	_ = pw.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Next did not return after cancellation")
	}
	if s.Frames() != 1 {
		t.Fatalf("Frames() = %d, want 1", s.Frames())
	}
}

func TestFrameStreamCancelledProcess(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One 2x2 rgb24 frame, then a stall.
	cmd := exec.CommandContext(ctx, "sh", "-c", "head -c 12 /dev/zero; exec sleep 5")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("stdout: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := NewFrameStream(stdout, 2, 2)
	s.cmd, s.cancel, s.stderr = cmd, cancel, &bytes.Buffer{}
	defer s.Close()

	if _, err := s.Next(ctx); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	time.AfterFunc(100*time.Millisecond, cancel)
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestParsePCM(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-0.25))
	samples, err := ParsePCM(raw)
	if err != nil {
		t.Fatalf("ParsePCM: %v", err)
	}
	if len(samples) != 2 || samples[0] != 0.5 || samples[1] != -0.25 {
		t.Fatalf("samples = %v", samples)
	}
	if _, err := ParsePCM([]byte{1, 2}); !errors.Is(err, inference.ErrAudioProcessing) {
		t.Fatalf("short input err = %v", err)
	}
}

func TestDecodeAudioRejectsEmpty(t *testing.T) {
	e := New("", "")
	if _, err := e.DecodeAudio(context.Background(), nil, 16000, 0); !errors.Is(err, inference.ErrAudioProcessing) {
		t.Fatalf("err = %v, want ErrAudioProcessing", err)
	}
}

func requireFFmpeg(t *testing.T) *Executor {
	t.Helper()
	e := New("", "")
	if err := e.Available(); err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}
	return e
}

func TestDecodeAudioGarbage(t *testing.T) {
	e := requireFFmpeg(t)
	e.TempDir = t.TempDir()
	_, err := e.DecodeAudio(context.Background(), []byte("this is not audio"), 16000, 0)
	if !errors.Is(err, inference.ErrAudioProcessing) {
		t.Fatalf("err = %v, want ErrAudioProcessing", err)
	}
	entries, _ := os.ReadDir(e.TempDir)
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestOpenFramesGeneratedClip(t *testing.T) {
	e := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command(e.FFmpegPath, "-v", "error", "-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-pix_fmt", "yuv420p", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip: %v: %s", err, out)
	}

	ctx := context.Background()
	s, err := e.OpenFrames(ctx, path, 3)
	if err != nil {
		t.Fatalf("OpenFrames: %v", err)
	}
	defer s.Close()

	n := 0
	for {
		img, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if img.Width != 64 || img.Height != 48 {
			t.Fatalf("frame size %dx%d", img.Width, img.Height)
		}
		n++
	}
	if n != 4 {
		t.Fatalf("read %d frames, want cap+1 = 4", n)
	}
}

func TestOpenFramesRejectsNonVideo(t *testing.T) {
	e := requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "bad.mp4")
	if err := os.WriteFile(path, []byte("not a video"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := e.OpenFrames(context.Background(), path, 31); !errors.Is(err, inference.ErrInvalidMedia) {
		t.Fatalf("err = %v, want ErrInvalidMedia", err)
	}
}
