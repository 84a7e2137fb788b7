package server

import (
	"encoding/base64"
	"net/http"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/vad"
	"github.com/m-mizutani/goerr/v2"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type transcribeRequest struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), req.Content, req.Language)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("transcribe.calls")
	respond(w, http.StatusOK, transcript)
}

type diarizeRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
}

func (s *Server) handleDiarize(w http.ResponseWriter, r *http.Request) {
	var req diarizeRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	transcript, err := s.transcriber.Transcribe(r.Context(), req.Transcript, req.Language)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	segments, err := s.diarizer.Diarize(r.Context(), transcript)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("diarize.calls")
	respond(w, http.StatusOK, map[string]any{
		"transcript_id": "stub",
		"segments":      segments,
	})
}

type summarizeRequest struct {
	Transcript string `json:"transcript"`
	MaxPoints  int    `json:"max_points"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), req.Transcript, req.MaxPoints)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("summarize.calls")
	respond(w, http.StatusOK, summary)
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	audio, err := s.synthesizer.Synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.count("tts.calls")
	respond(w, http.StatusOK, map[string]any{
		"voice":       audio.Voice,
		"encoding":    audio.Encoding,
		"payload_b64": base64.StdEncoding.EncodeToString(audio.Payload),
	})
}

type vadRequest struct {
	Samples   []float64 `json:"samples"`
	Threshold *float64  `json:"threshold"`
	MinRun    *int      `json:"min_run"`
}

func (s *Server) handleVAD(w http.ResponseWriter, r *http.Request) {
	var req vadRequest
	if err := decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	minRun := intOr(req.MinRun, vad.DefaultMinRun)
	if minRun < 1 {
		s.respondError(w, r, goerr.Wrap(model.ErrInvalidArgument, "min_run must be >= 1", goerr.V("minRun", minRun)))
		return
	}

	spans := vad.Detect(req.Samples, floatOr(req.Threshold, vad.DefaultThreshold), minRun)
	s.count("vad.calls")
	respond(w, http.StatusOK, map[string]any{
		"triggered": len(spans) > 0,
		"segments":  spans,
	})
}
