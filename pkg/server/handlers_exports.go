package server

import (
	"net/http"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
)

func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.store.Export(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.derive")
	respond(w, http.StatusOK, export)
}

func (s *Server) handleExportStore(w http.ResponseWriter, r *http.Request) {
	result, err := s.exports.Store(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.store")
	respond(w, http.StatusOK, map[string]any{
		"saved_path": result.SavedPath,
	})
}

func (s *Server) handleExportList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.exports.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.list")
	respond(w, http.StatusOK, map[string]any{"exports": ids})
}

func (s *Server) handleExportGet(w http.ResponseWriter, r *http.Request) {
	export, err := s.exports.Get(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.get")
	respond(w, http.StatusOK, export)
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = exports.FormatMarkdown
	}

	doc, mediaType, err := s.exports.Download(r.Context(), model.SessionID(r.PathValue("id")), format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.download")
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

func (s *Server) handleExportRestore(w http.ResponseWriter, r *http.Request) {
	session, err := s.exports.Restore(r.Context(), model.SessionID(r.PathValue("id")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("exports.restore")
	respond(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"segments":   session.SerializedSegments(),
		"restored":   true,
	})
}
