package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/straja-ai/fakescan/internal/analyzer"
	"github.com/straja-ai/fakescan/internal/audio"
	"github.com/straja-ai/fakescan/internal/inference"
)

// multipartMemory is how much of a form is buffered in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

var errMissingFile = errors.New("missing file")

type upload struct {
	filename string
	data     []byte
}

// readUpload parses the multipart form and returns the "file" part.
func (s *Server) readUpload(r *http.Request) (*upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingFile
		}
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return &upload{filename: hdr.Filename, data: data}, nil
}

// writeUploadError answers a form that could not be read.
func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case isTooLarge(err):
		writeDetail(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.Is(err, errMissingFile):
		writeDetail(w, http.StatusUnprocessableEntity, "Field 'file' is required")
	default:
		writeDetail(w, http.StatusBadRequest, "Malformed multipart body")
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := analyzer.RequestIDFrom(ctx)
	defer cleanupForm(r)

	up, err := s.readUpload(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	// sample_fps is reserved: validated and logged, not used by the sampler.
	var sampleFPS float64
	if raw := strings.TrimSpace(r.FormValue("sample_fps")); raw != "" {
		sampleFPS, err = strconv.ParseFloat(raw, 64)
		if err != nil || sampleFPS < 0 {
			writeDetail(w, http.StatusUnprocessableEntity, "sample_fps must be a non-negative number")
			return
		}
	}

	kind, _ := analyzer.KindOf(up.filename)
	s.logger.Info("analyze request",
		"request_id", requestID,
		"filename", up.filename,
		"file_type", kind,
		"bytes", len(up.data),
		"sample_fps", sampleFPS,
	)

	s.results.Start(requestID, up.filename)
	res, err := s.analyzer.AnalyzeFile(ctx, up.filename, up.data)
	if err != nil {
		status, detail := statusFor(err, kind)
		s.results.Fail(requestID, detail)
		if status >= http.StatusInternalServerError {
			s.logger.Error("analysis failed", "request_id", requestID, "status", status, "error", err)
		}
		writeDetail(w, status, detail)
		return
	}
	s.results.Complete(requestID, res)
	writeJSON(w, http.StatusOK, res.Body())
}

type audioResponse struct {
	*audio.Verdict
	Message string `json:"message"`
}

type audioErrorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := analyzer.RequestIDFrom(ctx)
	defer cleanupForm(r)

	up, err := s.readUpload(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	if s.audio == nil {
		writeDetail(w, http.StatusServiceUnavailable, "Model unavailable")
		return
	}

	s.results.Start(requestID, up.filename)
	v, err := s.audio.Classify(ctx, up.data)
	if err != nil {
		status, detail := statusFor(err, inference.FileTypeAudio)
		s.results.Fail(requestID, detail)
		if errors.Is(err, inference.ErrAudioProcessing) {
			s.logger.Info("audio rejected", "request_id", requestID, "filename", up.filename, "error", err)
			writeJSON(w, http.StatusUnprocessableEntity, audioErrorBody{Error: audio.ProcessingErrorMessage})
			return
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("audio analysis failed", "request_id", requestID, "status", status, "error", err)
		}
		writeDetail(w, status, detail)
		return
	}
	s.results.CompleteAudio(requestID, v)
	s.logger.Info("audio analysis complete", "request_id", requestID, "verdict", v.Verdict, "confidence", v.Confidence)
	writeJSON(w, http.StatusOK, audioResponse{Verdict: v, Message: audio.ToolMessage(v)})
}

// isTooLarge detects a MaxBytesReader trip; some multipart paths flatten
// the error to text.
func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
