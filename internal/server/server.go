// Package server exposes the analyzers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/straja-ai/fakescan/internal/analyzer"
	"github.com/straja-ai/fakescan/internal/audio"
	"github.com/straja-ai/fakescan/internal/classifier"
	"github.com/straja-ai/fakescan/internal/config"
	"github.com/straja-ai/fakescan/internal/console"
	"github.com/straja-ai/fakescan/internal/telemetry"
)

// MediaAnalyzer scores an uploaded image or video; *analyzer.Analyzer
// satisfies it.
type MediaAnalyzer interface {
	AnalyzeFile(ctx context.Context, filename string, data []byte) (*analyzer.Result, error)
}

// AudioClassifier classifies an uploaded audio clip; *audio.Detector
// satisfies it.
type AudioClassifier interface {
	Classify(ctx context.Context, data []byte) (*audio.Verdict, error)
}

// ModelStatus reports model readiness; *classifier.Registry satisfies it.
type ModelStatus interface {
	Status() []classifier.ModelStatus
}

// Deps are the collaborators a Server dispatches to.
type Deps struct {
	Analyzer  MediaAnalyzer
	Audio     AudioClassifier
	Models    ModelStatus
	Telemetry *telemetry.Provider
	Logger    *slog.Logger
}

// Server is the fakescan HTTP front end.
type Server struct {
	mux      *http.ServeMux
	handler  http.Handler
	cfg      *config.Config
	analyzer MediaAnalyzer
	audio    AudioClassifier
	models   ModelStatus
	tel      *telemetry.Provider
	logger   *slog.Logger
	inFlight chan struct{}
	results  *resultStore

	httpServer *http.Server
}

// New creates a new server with all routes registered.
func New(cfg *config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		analyzer: deps.Analyzer,
		audio:    deps.Audio,
		models:   deps.Models,
		tel:      deps.Telemetry,
		logger:   logger.With("component", "server"),
		inFlight: make(chan struct{}, max(cfg.Server.MaxInFlightRequests, 1)),
		results:  newResultStore(30 * time.Minute),
	}

	// Routes
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /robots.txt", handleRobots)
	s.mux.Handle("POST /analyze", s.limit(http.HandlerFunc(s.handleAnalyze)))
	s.mux.Handle("POST /analyze/audio", s.limit(http.HandlerFunc(s.handleAnalyzeAudio)))
	s.mux.HandleFunc("GET /analyses/{id}", s.handleAnalysisStatus)
	if h := s.tel.MetricsHandler(); h != nil {
		s.mux.Handle("GET /metrics", h)
	}

	// Serve console
	s.mux.Handle("/console/", console.Handler())
	s.mux.Handle("/console", http.RedirectHandler("/console/", http.StatusMovedPermanently))

	var h http.Handler = s.mux
	h = s.cors(h)
	h = s.recoverer(h)
	h = s.withRequestID(h)
	s.handler = otelhttp.NewHandler(h, "fakescan",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Start(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	if addr == "" {
		addr = s.cfg.Server.Addr
	}
	sc := s.cfg.Server
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("fakescan listening", "addr", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down", "timeout", shutdownTimeout)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, "ok")
}

type readyResponse struct {
	Status string                   `json:"status"`
	Models []classifier.ModelStatus `json:"models"`
}

// handleReady reports model load state. Models load lazily, so "not loaded
// yet" is ready; a model whose last load failed is not.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ready", Models: []classifier.ModelStatus{}}
	status := http.StatusOK
	if s.models != nil {
		resp.Models = s.models.Status()
	}
	for _, m := range resp.Models {
		if m.Error != "" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

const robotsTxt = "User-agent: *\nDisallow: /\n"

func handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(robotsTxt))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
