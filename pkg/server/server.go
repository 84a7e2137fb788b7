// Package server exposes the capture engine over HTTP: the stateless
// pipeline endpoints, the session lifecycle API, export management, and the
// operational surface (metrics, support bundle).
package server

import (
	"net/http"
	"time"

	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/metrics"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/giji/pkg/usecase/support"
)

// DefaultRequestIDHeader names the request correlation header.
const DefaultRequestIDHeader = "x-request-id"

// Config carries the runtime settings of the HTTP surface.
type Config struct {
	// APIKey gates every route except /health when non-empty.
	APIKey string

	// AllowedOrigins is the CORS allowlist. Empty disables CORS handling.
	AllowedOrigins []string

	// RequestIDHeader overrides DefaultRequestIDHeader.
	RequestIDHeader string

	// RateLimitPerMinute caps requests per principal. Zero disables the
	// limiter.
	RateLimitPerMinute int
}

// Input contains the collaborators the server routes requests to.
type Input struct {
	Store       *capture.Store
	Exports     *exports.UseCase
	Support     *support.UseCase
	Transcriber interfaces.Transcriber
	Diarizer    interfaces.Diarizer
	Summarizer  interfaces.Summarizer
	Synthesizer interfaces.Synthesizer
	Metrics     *metrics.Registry
}

// Server is the HTTP API server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	limiter *limiter

	store       *capture.Store
	exports     *exports.UseCase
	support     *support.UseCase
	transcriber interfaces.Transcriber
	diarizer    interfaces.Diarizer
	summarizer  interfaces.Summarizer
	synthesizer interfaces.Synthesizer
	metrics     *metrics.Registry
}

// New creates the server and registers its routes.
func New(input Input, config Config) *Server {
	if config.RequestIDHeader == "" {
		config.RequestIDHeader = DefaultRequestIDHeader
	}

	s := &Server{
		config:      config,
		mux:         http.NewServeMux(),
		store:       input.Store,
		exports:     input.Exports,
		support:     input.Support,
		transcriber: input.Transcriber,
		diarizer:    input.Diarizer,
		summarizer:  input.Summarizer,
		synthesizer: input.Synthesizer,
		metrics:     input.Metrics,
	}
	if config.RateLimitPerMinute > 0 {
		s.limiter = newLimiter(config.RateLimitPerMinute, time.Now)
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	s.mux.HandleFunc("POST /diarize", s.handleDiarize)
	s.mux.HandleFunc("POST /summarize", s.handleSummarize)
	s.mux.HandleFunc("POST /tts", s.handleSynthesize)
	s.mux.HandleFunc("POST /vad", s.handleVAD)

	s.mux.HandleFunc("POST /sessions", s.handleSessionCreate)
	s.mux.HandleFunc("POST /sessions/append", s.handleSessionAppend)
	s.mux.HandleFunc("GET /sessions/{id}", s.handleSessionGet)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleSessionDelete)
	s.mux.HandleFunc("PATCH /sessions/{id}/metadata", s.handleSessionMetadata)
	s.mux.HandleFunc("GET /sessions/{id}/search", s.handleSessionSearch)
	s.mux.HandleFunc("POST /sessions/{id}/speakers", s.handleSpeakerLabel)
	s.mux.HandleFunc("POST /sessions/{id}/speakers/forget", s.handleSpeakerForget)
	s.mux.HandleFunc("POST /sessions/{id}/audio", s.handleAudioAppend)
	s.mux.HandleFunc("GET /sessions/{id}/audio", s.handleAudioGet)
	s.mux.HandleFunc("POST /sessions/{id}/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /sessions/{id}/process", s.handleProcess)
	s.mux.HandleFunc("GET /sessions/{id}/summary", s.handleSessionSummary)
	s.mux.HandleFunc("GET /sessions/{id}/export", s.handleSessionExport)
	s.mux.HandleFunc("POST /sessions/{id}/export/store", s.handleExportStore)

	s.mux.HandleFunc("GET /exports", s.handleExportList)
	s.mux.HandleFunc("GET /exports/{id}", s.handleExportGet)
	s.mux.HandleFunc("GET /exports/{id}/download", s.handleExportDownload)
	s.mux.HandleFunc("POST /exports/{id}/restore", s.handleExportRestore)

	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /support/bundle", s.handleSupportBundle)
}

// Handler wraps the route mux in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.rateLimit(h)
	h = s.auth(h)
	h = s.cors(h)
	h = recoverPanic(h)
	h = accessLog(h)
	h = requestID(s.config.RequestIDHeader, h)
	return h
}

func (s *Server) count(name string) {
	if s.metrics != nil {
		s.metrics.Incr(name)
	}
}
