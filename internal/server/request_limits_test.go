package server

import (
	"bytes"
	"net/http"
	"testing"
)

func TestAnalyze_BlocksLargeBody(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.MaxUploadBytes = 512
	s := newTestServer(t, cfg, &stubModels{clf: constClassifier{p: 0.5}}, nil)

	req := multipartRequest(t, "/analyze", "big.png", bytes.Repeat([]byte("a"), 4096), nil)
	rr := serve(s, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAnalyze_BlocksWhenInFlightLimitReached(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Server.MaxInFlightRequests = 1
	s := newTestServer(t, cfg, &stubModels{clf: constClassifier{p: 0.5}}, nil)

	s.inFlight <- struct{}{}
	rr := serve(s, multipartRequest(t, "/analyze", "face.png", pngBytes(t), nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}

	<-s.inFlight
	rr = serve(s, multipartRequest(t, "/analyze", "face.png", pngBytes(t), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once a slot is free, got %d", rr.Code)
	}
}

func TestAnalyze_RequiresFile(t *testing.T) {
	s := newTestServer(t, newTestConfig(t), &stubModels{}, nil)

	rr := serve(s, multipartRequest(t, "/analyze", "", nil, map[string]string{"sample_fps": "1"}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestAnalyze_RejectsBadSampleFPS(t *testing.T) {
	s := newTestServer(t, newTestConfig(t), &stubModels{clf: constClassifier{p: 0.5}}, nil)

	rr := serve(s, multipartRequest(t, "/analyze", "face.png", pngBytes(t), map[string]string{"sample_fps": "fast"}))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestAnalyze_RejectsGet(t *testing.T) {
	s := newTestServer(t, newTestConfig(t), &stubModels{}, nil)
	rr := serve(s, httptestRequest(http.MethodGet, "/analyze"))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
