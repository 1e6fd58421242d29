package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be > 0")
	}
	if cfg.Server.MaxInFlightRequests <= 0 {
		return errors.New("server.max_in_flight_requests must be > 0")
	}

	if err := validateModelsConfig(cfg.Models); err != nil {
		return err
	}

	if err := validateScoringConfig(cfg.Scoring); err != nil {
		return err
	}

	if err := validateVideoConfig(cfg.Video); err != nil {
		return err
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	if err := validateEventsConfig(cfg.Events); err != nil {
		return err
	}

	return nil
}

func validateModelsConfig(m ModelsConfig) error {
	if strings.TrimSpace(m.Image.Path) == "" {
		return errors.New("models.image.path must be set")
	}
	if strings.TrimSpace(m.Audio.Path) == "" {
		return errors.New("models.audio.path must be set")
	}
	if m.Image.InputSize < 0 {
		return fmt.Errorf("models.image.input_size must be >= 0, got %d", m.Image.InputSize)
	}
	if m.Audio.SampleRate <= 0 {
		return fmt.Errorf("models.audio.sample_rate must be > 0, got %d", m.Audio.SampleRate)
	}
	return nil
}

func validateScoringConfig(s ScoringConfig) error {
	if err := s.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if s.FakeThreshold <= 0 || s.FakeThreshold > 1 {
		return fmt.Errorf("scoring.fake_threshold must be in (0,1], got %v", s.FakeThreshold)
	}
	if s.TextureCeiling <= 0 {
		return fmt.Errorf("scoring.texture_ceiling must be > 0, got %v", s.TextureCeiling)
	}
	if s.CannyLow < 0 || s.CannyHigh < s.CannyLow {
		return fmt.Errorf("scoring.canny_low/canny_high must satisfy 0 <= low <= high, got %v/%v", s.CannyLow, s.CannyHigh)
	}
	return nil
}

func validateVideoConfig(v VideoConfig) error {
	if v.MaxFrames <= 0 {
		return fmt.Errorf("video.max_frames must be > 0, got %d", v.MaxFrames)
	}
	if v.SuspiciousThreshold <= 0 || v.SuspiciousThreshold > 1 {
		return fmt.Errorf("video.suspicious_threshold must be in (0,1], got %v", v.SuspiciousThreshold)
	}
	if v.FakeThresholdPercent <= 0 || v.FakeThresholdPercent > 100 {
		return fmt.Errorf("video.fake_threshold_percent must be in (0,100], got %v", v.FakeThresholdPercent)
	}
	if v.JPEGQuality < 1 || v.JPEGQuality > 100 {
		return fmt.Errorf("video.jpeg_quality must be in [1,100], got %d", v.JPEGQuality)
	}
	return nil
}

func validateLoggingConfig(l LoggingConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	return nil
}

func validateEventsConfig(e EventsConfig) error {
	if len(e.Sinks) == 0 {
		return nil
	}
	for i, s := range e.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("events sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("events sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("events sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("events sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("events sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
