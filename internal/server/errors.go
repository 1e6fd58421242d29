package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/straja-ai/fakescan/internal/audio"
	"github.com/straja-ai/fakescan/internal/inference"
	"github.com/straja-ai/fakescan/internal/video"
)

type detailBody struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailBody{Detail: detail})
}

// statusFor maps an analysis error onto a status code and a client-safe
// detail. Internal error text never reaches the client.
func statusFor(err error, kind inference.FileType) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, inference.ErrUnsupportedMedia):
		return http.StatusBadRequest, "Unsupported file"
	case errors.Is(err, inference.ErrInvalidMedia):
		if kind == inference.FileTypeVideo {
			return http.StatusBadRequest, video.NoFramesMessage
		}
		return http.StatusBadRequest, "Invalid image file"
	case errors.Is(err, inference.ErrAudioProcessing):
		return http.StatusUnprocessableEntity, audio.ProcessingErrorMessage
	case errors.Is(err, inference.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "Model unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Analysis timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
