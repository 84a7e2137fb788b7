package server

import (
	"net/http"
	"strconv"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/vad"
	"github.com/m-mizutani/goerr/v2"
)

type appendAudioRequest struct {
	Samples []float64 `json:"samples"`
	TrimTo  *int      `json:"trim_to"`
}

func (s *Server) handleAudioAppend(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req appendAudioRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	buffered, err := s.store.AppendAudio(id, req.Samples, req.TrimTo)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("audio.append")
	respond(w, http.StatusOK, map[string]any{
		"session_id": id,
		"added":      len(req.Samples),
		"buffered":   buffered,
	})
}

func (s *Server) handleAudioGet(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))

	maxSamples := 0
	if v := r.URL.Query().Get("max_samples"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, goerr.Wrap(model.ErrInvalidArgument, "max_samples must be an integer", goerr.V("value", v)))
			return
		}
		maxSamples = n
	}

	samples, buffered, err := s.store.AudioSamples(id, maxSamples)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("audio.get")
	respond(w, http.StatusOK, map[string]any{
		"session_id": id,
		"samples":    samples,
		"buffered":   buffered,
	})
}

type ingestRequest struct {
	Samples        []float64 `json:"samples"`
	Threshold      *float64  `json:"threshold"`
	MinRun         *int      `json:"min_run"`
	TranscriptHint string    `json:"transcript_hint"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req ingestRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.store.Ingest(r.Context(), id, capture.IngestInput{
		Samples:        req.Samples,
		Threshold:      floatOr(req.Threshold, vad.DefaultThreshold),
		MinRun:         intOr(req.MinRun, vad.DefaultMinRun),
		TranscriptHint: req.TranscriptHint,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("audio.ingest")
	respond(w, http.StatusOK, map[string]any{
		"session_id":   id,
		"triggered":    result.Triggered,
		"spans":        result.Spans,
		"segments":     result.Segments,
		"new_speakers": result.NewSpeakers,
	})
}

type processBufferRequest struct {
	Threshold      *float64 `json:"threshold"`
	MinRun         *int     `json:"min_run"`
	TranscriptHint string   `json:"transcript_hint"`
	ClearBuffer    bool     `json:"clear_buffer"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))
	var req processBufferRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := s.store.ProcessBuffer(r.Context(), id, capture.ProcessInput{
		Threshold:      floatOr(req.Threshold, vad.DefaultThreshold),
		MinRun:         intOr(req.MinRun, vad.DefaultMinRun),
		TranscriptHint: req.TranscriptHint,
		ClearBuffer:    req.ClearBuffer,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("audio.process")
	respond(w, http.StatusOK, map[string]any{
		"session_id":   id,
		"triggered":    result.Triggered,
		"spans":        result.Spans,
		"segments":     result.Segments,
		"new_speakers": result.NewSpeakers,
		"buffered":     result.Buffered,
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(r.PathValue("id"))

	maxPoints := 0
	if v := r.URL.Query().Get("max_points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, goerr.Wrap(model.ErrInvalidArgument, "max_points must be an integer", goerr.V("value", v)))
			return
		}
		maxPoints = n
	}

	summary, err := s.store.Summary(r.Context(), id, maxPoints)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	session, err := s.store.Get(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("sessions.summary")
	respond(w, http.StatusOK, map[string]any{
		"session_id":    id,
		"highlight":     summary.Highlight,
		"bullet_points": summary.BulletPoints,
		"metadata":      session.Metadata(),
	})
}
