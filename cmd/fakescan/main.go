package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straja-ai/fakescan/internal/analyzer"
	"github.com/straja-ai/fakescan/internal/audio"
	"github.com/straja-ai/fakescan/internal/classifier"
	"github.com/straja-ai/fakescan/internal/config"
	"github.com/straja-ai/fakescan/internal/events"
	"github.com/straja-ai/fakescan/internal/ffmpeg"
	"github.com/straja-ai/fakescan/internal/heuristics"
	"github.com/straja-ai/fakescan/internal/server"
	"github.com/straja-ai/fakescan/internal/telemetry"
)

const usage = `usage: fakescan <command> [flags]

commands:
  serve            run the HTTP service (default)
  analyze <file>   score an image or video and print the JSON report
  audio <file>     classify an audio clip and print the verdict line
  bench <image>    measure image scoring latency
`

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "analyze":
		err = runAnalyze(args)
	case "audio":
		err = runAudio(args)
	case "bench":
		err = runBench(args)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("fakescan %s: %v", cmd, err)
	}
}

// app is the wired set of collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tel      *telemetry.Provider
	models   *classifier.Registry
	exec     *ffmpeg.Executor
	emitter  *events.Emitter
	analyzer *analyzer.Analyzer
	audio    *audio.Detector
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp wires models, heuristics, ffmpeg, telemetry and events from cfg.
// withEvents is false for one-shot commands so nothing is delivered to sinks.
func newApp(ctx context.Context, cfg *config.Config, withEvents bool) (*app, error) {
	logger := telemetry.InitLogger(cfg.LogSettings())

	tel, err := telemetry.NewProvider(ctx, cfg.TelemetrySettings())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, tel: tel}
	a.models = classifier.NewRegistry(cfg.Classifier(), tel.RecordModelLoad)

	a.exec = ffmpeg.New(cfg.FFmpeg.FFmpegPath, cfg.FFmpeg.FFprobePath)
	a.exec.TempDir = cfg.Server.TempDir
	a.exec.Logger = logger
	if err := a.exec.Available(); err != nil {
		logger.Warn("ffmpeg unavailable; video and audio analysis will fail", "error", err)
	}

	if withEvents {
		sinks, err := events.BuildSinks(cfg.EventSinks())
		if err != nil {
			tel.Shutdown(ctx)
			return nil, fmt.Errorf("build event sinks: %w", err)
		}
		if len(sinks) > 0 {
			ec := cfg.EmitterSettings(logger)
			ec.Observe = tel.RecordEventDelivery
			a.emitter = events.NewEmitter(ec, sinks)
			logger.Info("analysis events enabled", "sinks", len(sinks))
		}
	}

	a.analyzer, err = analyzer.New(analyzer.Options{
		Models:      a.models,
		Extractor:   heuristics.New(cfg.HeuristicParams()),
		Frames:      analyzer.NewFrameOpener(a.exec),
		Weights:     cfg.Scoring.Weights,
		Threshold:   cfg.Scoring.FakeThreshold,
		Policy:      cfg.VideoPolicy(),
		TempDir:     cfg.Server.TempDir,
		JPEGQuality: cfg.Video.JPEGQuality,
		Telemetry:   tel,
		Events:      a.emitter,
		Logger:      logger,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init analyzer: %w", err)
	}

	decoder := audio.FFmpegDecoder{Exec: a.exec, MaxSeconds: cfg.Models.Audio.MaxSeconds}
	a.audio = audio.NewDetector(decoder, a.models, cfg.Models.Audio.SampleRate, logger)
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.emitter.Close(ctx)
	a.tel.Shutdown(ctx)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addrFlag := fs.String("addr", "", "HTTP listen address (overrides config)")
	configPath := fs.String("config", "fakescan.yaml", "Path to fakescan config file")
	shutdownTimeout := fs.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown timeout")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	// A missing model at startup is fatal only when preloading is requested;
	// otherwise requests that need it get 503 until it loads.
	if cfg.Models.Preload {
		if err := a.models.Preload(ctx); err != nil {
			return fmt.Errorf("preload models: %w", err)
		}
	}

	addr := cfg.Server.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	srv := server.New(cfg, server.Deps{
		Analyzer:  a.analyzer,
		Audio:     a.audio,
		Models:    a.models,
		Telemetry: a.tel,
		Logger:    a.logger,
	})
	return srv.Start(ctx, addr, *shutdownTimeout)
}
