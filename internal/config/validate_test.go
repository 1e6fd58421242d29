package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/straja-ai/fakescan/internal/fusion"
)

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server.addr",
		},
		{
			name:   "weights do not sum to one",
			mutate: func(c *Config) { c.Scoring.Weights.Classifier = 0.6 },
			want:   "scoring.weights",
		},
		{
			name:   "negative weight",
			mutate: func(c *Config) { c.Scoring.Weights = fusion.Weights{Classifier: 1.1, Texture: -0.1} },
			want:   ">= 0",
		},
		{
			name:   "threshold above one",
			mutate: func(c *Config) { c.Scoring.FakeThreshold = 1.5 },
			want:   "fake_threshold",
		},
		{
			name:   "canny thresholds inverted",
			mutate: func(c *Config) { c.Scoring.CannyLow, c.Scoring.CannyHigh = 200, 100 },
			want:   "canny",
		},
		{
			name:   "suspicious threshold out of range",
			mutate: func(c *Config) { c.Video.SuspiciousThreshold = 2 },
			want:   "suspicious_threshold",
		},
		{
			name:   "jpeg quality out of range",
			mutate: func(c *Config) { c.Video.JPEGQuality = 101 },
			want:   "jpeg_quality",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name:   "telemetry without endpoint",
			mutate: func(c *Config) { c.Telemetry.Enabled = true },
			want:   "endpoint",
		},
		{
			name: "webhook sink without url",
			mutate: func(c *Config) {
				c.Events.Sinks = []EventSinkConfig{{Type: "webhook"}}
			},
			want: "missing url",
		},
		{
			name: "webhook sink bad scheme",
			mutate: func(c *Config) {
				c.Events.Sinks = []EventSinkConfig{{Type: "webhook", URL: "ftp://example.com/hook"}}
			},
			want: "http or https",
		},
		{
			name: "unknown sink type",
			mutate: func(c *Config) {
				c.Events.Sinks = []EventSinkConfig{{Type: "kafka"}}
			},
			want: "unknown type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}

	cfg.Events.Sinks = []EventSinkConfig{
		{Type: "file_jsonl", Path: "/tmp/events.jsonl"},
		{Type: "webhook", URL: "http://127.0.0.1:9000/events"},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected sinks to be valid, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("expected default addr :8000, got %q", cfg.Server.Addr)
	}
	if cfg.Scoring.Weights != fusion.DefaultWeights {
		t.Fatalf("expected default weights, got %+v", cfg.Scoring.Weights)
	}
	if cfg.Video.MaxFrames != 31 || cfg.Video.SuspiciousThreshold != 0.70 {
		t.Fatalf("unexpected video defaults: %+v", cfg.Video)
	}
	if len(cfg.Server.CORSAllowedOrigins) != 1 || cfg.Server.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors default, got %v", cfg.Server.CORSAllowedOrigins)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fakescan.yaml")
	body := `
server:
  addr: ":9090"
  request_timeout: 30s
models:
  preload: true
  image:
    path: /models/vit/model.onnx
    fake_label: Fake
scoring:
  weights: {classifier: 0.6, texture: 0.1, color: 0.1, boundary: 0.1, eye_glint: 0.1}
video:
  max_frames: 10
  dedupe_evidence: true
events:
  sinks:
    - type: file_jsonl
      path: /var/log/fakescan/events.jsonl
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RequestTimeout != 30*time.Second {
		t.Fatalf("server section not applied: %+v", cfg.Server)
	}
	if !cfg.Models.Preload || cfg.Models.Image.FakeLabel != "Fake" {
		t.Fatalf("models section not applied: %+v", cfg.Models)
	}
	if cfg.Scoring.Weights.Classifier != 0.6 {
		t.Fatalf("weights not applied: %+v", cfg.Scoring.Weights)
	}
	if cfg.Scoring.FakeThreshold != fusion.DefaultThreshold {
		t.Fatalf("expected default threshold, got %v", cfg.Scoring.FakeThreshold)
	}

	p := cfg.VideoPolicy()
	if p.MaxFrames != 10 || !p.DedupeEvidence || p.DedupeDistance != 10 {
		t.Fatalf("unexpected policy: %+v", p)
	}
	cc := cfg.Classifier()
	if cc.Image.Path != "/models/vit/model.onnx" || cc.Audio.SampleRate != 16000 {
		t.Fatalf("unexpected classifier config: %+v", cc)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}

func TestEventSettings(t *testing.T) {
	cfg := Default()
	cfg.Events.Workers = 3
	cfg.Events.Sinks = []EventSinkConfig{
		{Type: "webhook", URL: "https://hooks.example.com/fakescan", Headers: map[string]string{"X-Webhook-Secret": "s"}, Timeout: time.Second},
	}

	specs := cfg.EventSinks()
	if len(specs) != 1 || specs[0].Type != "webhook" || specs[0].Headers["X-Webhook-Secret"] != "s" || specs[0].Timeout != time.Second {
		t.Fatalf("unexpected sink specs: %+v", specs)
	}

	ec := cfg.EmitterSettings(nil)
	if ec.Workers != 3 || ec.QueueSize != 1000 || ec.ShutdownTimeout != 2*time.Second {
		t.Fatalf("unexpected emitter settings: %+v", ec)
	}
}
