package config

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/straja-ai/fakescan/internal/classifier"
	"github.com/straja-ai/fakescan/internal/events"
	"github.com/straja-ai/fakescan/internal/fusion"
	"github.com/straja-ai/fakescan/internal/heuristics"
	"github.com/straja-ai/fakescan/internal/media"
	"github.com/straja-ai/fakescan/internal/telemetry"
	"github.com/straja-ai/fakescan/internal/video"
)

// Config holds fakescan configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Models    ModelsConfig    `yaml:"models"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Video     VideoConfig     `yaml:"video"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
}

type ServerConfig struct {
	Addr                string        `yaml:"addr"` // HTTP listen address, e.g. ":8000"
	MaxUploadBytes      int64         `yaml:"max_upload_bytes"`
	MaxInFlightRequests int           `yaml:"max_in_flight_requests"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	CORSAllowedOrigins  []string      `yaml:"cors_allowed_origins"`
	TempDir             string        `yaml:"temp_dir"` // empty means os.TempDir()
}

type ModelsConfig struct {
	// ONNXRuntimeLibrary overrides ONNXRUNTIME_SHARED_LIBRARY_PATH and probing.
	ONNXRuntimeLibrary string           `yaml:"onnxruntime_library"`
	Preload            bool             `yaml:"preload"`
	Image              ImageModelConfig `yaml:"image"`
	Audio              AudioModelConfig `yaml:"audio"`
}

type ImageModelConfig struct {
	Path             string `yaml:"path"`
	LabelsPath       string `yaml:"labels_path"`
	PreprocessorPath string `yaml:"preprocessor_path"`
	FakeLabel        string `yaml:"fake_label"`
	InputSize        int    `yaml:"input_size"`
	Sessions         int    `yaml:"sessions"`
	IntraThreads     int    `yaml:"intra_threads"`
	InterThreads     int    `yaml:"inter_threads"`
}

type AudioModelConfig struct {
	Path             string  `yaml:"path"`
	LabelsPath       string  `yaml:"labels_path"`
	PreprocessorPath string  `yaml:"preprocessor_path"`
	SampleRate       int     `yaml:"sample_rate"`
	MaxSeconds       float64 `yaml:"max_seconds"`
	Sessions         int     `yaml:"sessions"`
	IntraThreads     int     `yaml:"intra_threads"`
	InterThreads     int     `yaml:"inter_threads"`
}

type ScoringConfig struct {
	Weights        fusion.Weights `yaml:"weights"`
	FakeThreshold  float64        `yaml:"fake_threshold"`
	TextureCeiling float64        `yaml:"texture_ceiling"`
	CannyLow       float64        `yaml:"canny_low"`
	CannyHigh      float64        `yaml:"canny_high"`
}

type VideoConfig struct {
	MaxFrames            int     `yaml:"max_frames"`
	SuspiciousThreshold  float64 `yaml:"suspicious_threshold"`
	FakeThresholdPercent float64 `yaml:"fake_threshold_percent"`
	Workers              int     `yaml:"workers"`
	DedupeEvidence       bool    `yaml:"dedupe_evidence"`
	DedupeDistance       int     `yaml:"dedupe_distance"`
	JPEGQuality          int     `yaml:"jpeg_quality"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Protocol       string `yaml:"protocol"` // grpc | http
	Service        string `yaml:"service"`
	Version        string `yaml:"version"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

type EventsConfig struct {
	QueueSize       int               `yaml:"queue_size"`
	Workers         int               `yaml:"workers"`
	ShutdownTimeout time.Duration     `yaml:"shutdown_timeout"`
	Sinks           []EventSinkConfig `yaml:"sinks"`
}

type EventSinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 200 << 20
	}
	if cfg.Server.MaxInFlightRequests <= 0 {
		cfg.Server.MaxInFlightRequests = 8
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 2 * time.Minute
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 2 * time.Minute
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 4 * time.Minute
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.Models.Image.Path == "" {
		cfg.Models.Image.Path = "models/image/model.onnx"
	}
	if cfg.Models.Image.Sessions <= 0 {
		cfg.Models.Image.Sessions = 1
	}
	if cfg.Models.Audio.Path == "" {
		cfg.Models.Audio.Path = "models/audio/model.onnx"
	}
	if cfg.Models.Audio.SampleRate <= 0 {
		cfg.Models.Audio.SampleRate = classifier.DefaultSampleRate
	}
	if cfg.Models.Audio.MaxSeconds <= 0 {
		cfg.Models.Audio.MaxSeconds = 30
	}
	if cfg.Models.Audio.Sessions <= 0 {
		cfg.Models.Audio.Sessions = 1
	}

	if cfg.Scoring.Weights.IsZero() {
		cfg.Scoring.Weights = fusion.DefaultWeights
	}
	if cfg.Scoring.FakeThreshold <= 0 {
		cfg.Scoring.FakeThreshold = fusion.DefaultThreshold
	}
	hp := heuristics.DefaultParams()
	if cfg.Scoring.TextureCeiling <= 0 {
		cfg.Scoring.TextureCeiling = hp.TextureCeiling
	}
	if cfg.Scoring.CannyLow <= 0 && cfg.Scoring.CannyHigh <= 0 {
		cfg.Scoring.CannyLow, cfg.Scoring.CannyHigh = hp.CannyLow, hp.CannyHigh
	}

	vp := video.DefaultPolicy()
	if cfg.Video.MaxFrames <= 0 {
		cfg.Video.MaxFrames = vp.MaxFrames
	}
	if cfg.Video.SuspiciousThreshold <= 0 {
		cfg.Video.SuspiciousThreshold = vp.SuspiciousThreshold
	}
	if cfg.Video.FakeThresholdPercent <= 0 {
		cfg.Video.FakeThresholdPercent = vp.FakeThresholdPercent
	}
	if cfg.Video.Workers <= 0 {
		cfg.Video.Workers = vp.Workers
	}
	if cfg.Video.DedupeDistance <= 0 {
		cfg.Video.DedupeDistance = vp.DedupeDistance
	}
	if cfg.Video.JPEGQuality <= 0 {
		cfg.Video.JPEGQuality = media.DefaultJPEGQuality
	}

	if cfg.FFmpeg.FFmpegPath == "" {
		cfg.FFmpeg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFmpeg.FFprobePath == "" {
		cfg.FFmpeg.FFprobePath = "ffprobe"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = "fakescan"
	}

	if cfg.Events.QueueSize <= 0 {
		cfg.Events.QueueSize = 1000
	}
	if cfg.Events.Workers <= 0 {
		cfg.Events.Workers = 1
	}
	if cfg.Events.ShutdownTimeout <= 0 {
		cfg.Events.ShutdownTimeout = 2 * time.Second
	}
}

// Classifier maps the models section onto the registry configuration.
func (c *Config) Classifier() classifier.Config {
	img, aud := c.Models.Image, c.Models.Audio
	return classifier.Config{
		LibraryPath: c.Models.ONNXRuntimeLibrary,
		Image: classifier.ImageConfig{
			Path:             img.Path,
			LabelsPath:       img.LabelsPath,
			PreprocessorPath: img.PreprocessorPath,
			FakeLabel:        img.FakeLabel,
			InputSize:        img.InputSize,
			Runtime: classifier.RuntimeSettings{
				Sessions:     img.Sessions,
				IntraThreads: img.IntraThreads,
				InterThreads: img.InterThreads,
			},
		},
		Audio: classifier.AudioConfig{
			Path:             aud.Path,
			LabelsPath:       aud.LabelsPath,
			PreprocessorPath: aud.PreprocessorPath,
			SampleRate:       aud.SampleRate,
			Runtime: classifier.RuntimeSettings{
				Sessions:     aud.Sessions,
				IntraThreads: aud.IntraThreads,
				InterThreads: aud.InterThreads,
			},
		},
	}
}

// HeuristicParams returns the extractor constants.
func (c *Config) HeuristicParams() heuristics.Params {
	return heuristics.Params{
		TextureCeiling: c.Scoring.TextureCeiling,
		CannyLow:       c.Scoring.CannyLow,
		CannyHigh:      c.Scoring.CannyHigh,
	}
}

// VideoPolicy returns the clip aggregation policy.
func (c *Config) VideoPolicy() video.Policy {
	return video.Policy{
		MaxFrames:            c.Video.MaxFrames,
		SuspiciousThreshold:  c.Video.SuspiciousThreshold,
		FakeThresholdPercent: c.Video.FakeThresholdPercent,
		Workers:              c.Video.Workers,
		DedupeEvidence:       c.Video.DedupeEvidence,
		DedupeDistance:       c.Video.DedupeDistance,
	}
}

func (c *Config) TelemetrySettings() telemetry.Config {
	t := c.Telemetry
	return telemetry.Config{
		Enabled:        t.Enabled,
		Endpoint:       t.Endpoint,
		Protocol:       t.Protocol,
		Service:        t.Service,
		Version:        t.Version,
		MetricsEnabled: t.MetricsEnabled,
	}
}

func (c *Config) LogSettings() telemetry.LogConfig {
	return telemetry.LogConfig{Level: c.Logging.Level, Format: c.Logging.Format}
}

// EventSinks converts the configured sinks for events.BuildSinks.
func (c *Config) EventSinks() []events.SinkSpec {
	specs := make([]events.SinkSpec, 0, len(c.Events.Sinks))
	for _, s := range c.Events.Sinks {
		specs = append(specs, events.SinkSpec{
			Type:    s.Type,
			Path:    s.Path,
			URL:     s.URL,
			Headers: s.Headers,
			Timeout: s.Timeout,
		})
	}
	return specs
}

func (c *Config) EmitterSettings(logger *slog.Logger) events.EmitterConfig {
	return events.EmitterConfig{
		QueueSize:       c.Events.QueueSize,
		Workers:         c.Events.Workers,
		ShutdownTimeout: c.Events.ShutdownTimeout,
		Logger:          logger,
	}
}
