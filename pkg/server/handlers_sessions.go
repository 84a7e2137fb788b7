package server

import (
	"net/http"
	"strings"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

func sessionBody(session *model.Session) map[string]any {
	return map[string]any{
		"session_id": session.ID,
		"language":   session.Language,
		"created_at": session.CreatedAt,
		"segments":   session.SerializedSegments(),
		"metadata":   session.Metadata(),
		"buffered":   len(session.AudioBuffer),
	}
}

type createSessionRequest struct {
	SessionID string   `json:"session_id"`
	Language  string   `json:"language"`
	Title     string   `json:"title"`
	Agenda    []string `json:"agenda"`
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.store.Create(model.SessionID(req.SessionID), req.Language, req.Title, req.Agenda)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.create")
	respond(w, http.StatusOK, sessionBody(session))
}

type appendTranscriptRequest struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

func (s *Server) handleSessionAppend(w http.ResponseWriter, r *http.Request) {
	var req appendTranscriptRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.store.AppendTranscript(r.Context(), model.SessionID(req.SessionID), req.Transcript)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.append")
	respond(w, http.StatusOK, map[string]any{
		"session_id":   req.SessionID,
		"segments":     result.Appended,
		"new_speakers": result.NewSpeakers,
	})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Get(model.SessionID(r.PathValue("id")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.get")
	respond(w, http.StatusOK, sessionBody(session))
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))

	sessionRemoved := s.store.Delete(id)
	exportRemoved, err := s.exports.Delete(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !sessionRemoved && !exportRemoved {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	s.count("sessions.delete")
	respond(w, http.StatusOK, map[string]any{
		"session_removed": sessionRemoved,
		"export_removed":  exportRemoved,
	})
}

type updateMetadataRequest struct {
	Title  *string   `json:"title"`
	Agenda *[]string `json:"agenda"`
}

func (s *Server) handleSessionMetadata(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req updateMetadataRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.store.UpdateMetadata(id, req.Title, req.Agenda)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.metadata")
	respond(w, http.StatusOK, map[string]any{
		"session_id": id,
		"metadata":   session.Metadata(),
	})
}

func (s *Server) handleSessionSearch(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		s.respondError(w, r, goerr.Wrap(model.ErrInvalidArgument, "query parameter is required"))
		return
	}

	results, err := s.store.Search(id, query)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.search")
	respond(w, http.StatusOK, map[string]any{
		"session_id": id,
		"query":      query,
		"total":      len(results),
		"results":    results,
	})
}

type labelSpeakerRequest struct {
	SpeakerID   string `json:"speaker_id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleSpeakerLabel(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req labelSpeakerRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.store.Label(id, model.SpeakerID(req.SpeakerID), req.DisplayName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.label")
	respond(w, http.StatusOK, map[string]any{
		"session_id": id,
		"segments":   session.SerializedSegments(),
	})
}

type forgetSpeakerRequest struct {
	SpeakerID     string `json:"speaker_id"`
	RedactionText string `json:"redaction_text"`
}

func (s *Server) handleSpeakerForget(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req forgetSpeakerRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.store.Forget(id, model.SpeakerID(req.SpeakerID), req.RedactionText)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.forget")
	respond(w, http.StatusOK, map[string]any{
		"session_id":        id,
		"scrubbed_segments": result.Scrubbed,
		"segments":          result.Session.SerializedSegments(),
	})
}
