package server

import (
	"bytes"
	"net/http"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"counters": s.metrics.Snapshot(),
	})
}

func (s *Server) handleSupportBundle(w http.ResponseWriter, r *http.Request) {
	// Build into memory first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := s.support.Build(r.Context(), &buf); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("support.bundle")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="support-bundle.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
