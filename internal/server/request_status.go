package server

import (
	"net/http"
	"strings"
)

// handleAnalysisStatus reports the summary of a recent analysis by the
// server-minted X-Request-ID returned with it.
func (s *Server) handleAnalysisStatus(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.PathValue("id"))
	if requestID == "" {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	entry, ok := s.results.Get(requestID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
