package server_test

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/metrics"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/repository"
	"github.com/m-mizutani/giji/pkg/server"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/giji/pkg/usecase/support"
	"github.com/m-mizutani/gt"
)

type testEnv struct {
	handler  http.Handler
	store    *capture.Store
	registry *metrics.Registry
}

func newTestEnv(t *testing.T, config server.Config) *testEnv {
	t.Helper()

	store := capture.New(capture.NewInput{
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  adapter.NewHeuristicSummarizer(),
	})
	repo := repository.New(t.TempDir())
	registry := metrics.NewRegistry()

	srv := server.New(server.Input{
		Store:       store,
		Exports:     exports.New(store, repo),
		Support:     support.New(store, repo, registry, support.Settings{Language: "fa", APIKey: config.APIKey}),
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  adapter.NewHeuristicSummarizer(),
		Synthesizer: adapter.NewTextSynthesizer(),
		Metrics:     registry,
	}, config)

	return &testEnv{
		handler:  srv.Handler(),
		store:    store,
		registry: registry,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		gt.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var doc map[string]any
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return doc
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, decodeBody(t, rec)["status"], "ok")
	gt.NotEqual(t, rec.Header().Get(server.DefaultRequestIDHeader), "")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodGet, "/health", nil, map[string]string{
		server.DefaultRequestIDHeader: "req-42",
	})
	gt.Equal(t, rec.Header().Get(server.DefaultRequestIDHeader), "req-42")

	env = newTestEnv(t, server.Config{RequestIDHeader: "x-trace"})
	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	gt.NotEqual(t, rec.Header().Get("x-trace"), "")
}

func TestTranscribeEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/transcribe", map[string]any{"content": "  hello world  "}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	doc := decodeBody(t, rec)
	gt.Equal(t, doc["language"], model.DefaultLanguage)
	segments := doc["segments"].([]any)
	gt.A(t, segments).Length(1)
	segment := segments[0].(map[string]any)
	gt.Equal(t, segment["speaker"], "unknown")
	gt.Equal(t, segment["text"], "hello world")
	gt.Equal[any](t, segment["confidence"], float64(1))
}

func TestDiarizeEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/diarize", map[string]any{"transcript": "good morning"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	doc := decodeBody(t, rec)
	gt.Equal(t, doc["transcript_id"], "stub")
	segments := doc["segments"].([]any)
	gt.A(t, segments).Length(1)
	speaker := segments[0].(map[string]any)["speaker"].(string)
	gt.True(t, strings.HasPrefix(speaker, "speaker-"))
}

func TestSummarizeEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/summarize", map[string]any{
		"transcript": "one. two. three.",
		"max_points": 2,
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	doc := decodeBody(t, rec)
	gt.Equal(t, doc["highlight"], "one")
	bullets := doc["bullet_points"].([]any)
	gt.A(t, bullets).Length(2)
}

func TestSynthesizeEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/tts", map[string]any{"text": "hello"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	doc := decodeBody(t, rec)
	gt.Equal(t, doc["voice"], adapter.DefaultVoice)
	gt.Equal(t, doc["encoding"], "text/utf-8")
	payload, err := base64.StdEncoding.DecodeString(doc["payload_b64"].(string))
	gt.NoError(t, err)
	gt.Equal(t, string(payload), "hello")
}

func TestVADEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/vad", map[string]any{
		"samples":   []float64{0.0, 0.02, 0.03, 0.025, 0.0, 0.0, 0.04, 0.04, 0.04},
		"threshold": 0.015,
		"min_run":   2,
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	doc := decodeBody(t, rec)
	gt.Equal(t, doc["triggered"], true)
	segments := doc["segments"].([]any)
	gt.A(t, segments).Length(2)
	first := segments[0].(map[string]any)
	gt.Equal[any](t, first["start_index"], float64(1))
	gt.Equal[any](t, first["end_index"], float64(3))

	rec = env.do(t, http.MethodPost, "/vad", map[string]any{
		"samples": []float64{0.5},
		"min_run": 0,
	}, nil)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
	gt.S(t, decodeBody(t, rec)["detail"].(string)).Contains("min_run must be >= 1")
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{
		"session_id": "standup",
		"language":   "en",
		"title":      "Daily standup",
		"agenda":     []string{"updates"},
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc := decodeBody(t, rec)
	gt.Equal(t, doc["session_id"], "standup")
	gt.Equal(t, doc["language"], "en")
	gt.A(t, doc["segments"].([]any)).Length(0)
	metadata := doc["metadata"].(map[string]any)
	gt.Equal(t, metadata["title"], "Daily standup")

	// Duplicate IDs conflict.
	rec = env.do(t, http.MethodPost, "/sessions", map[string]any{"session_id": "standup"}, nil)
	gt.Equal(t, rec.Code, http.StatusConflict)

	// Append free text through the pipeline.
	rec = env.do(t, http.MethodPost, "/sessions/append", map[string]any{
		"session_id": "standup",
		"transcript": "we shipped the exporter",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.A(t, doc["segments"].([]any)).Length(1)
	gt.A(t, doc["new_speakers"].([]any)).Length(1)

	rec = env.do(t, http.MethodGet, "/sessions/standup", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.A(t, doc["segments"].([]any)).Length(1)
	gt.Equal[any](t, doc["buffered"], float64(0))

	// Metadata is patched field by field.
	rec = env.do(t, http.MethodPatch, "/sessions/standup/metadata", map[string]any{
		"agenda": []string{"updates", "blockers"},
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	metadata = decodeBody(t, rec)["metadata"].(map[string]any)
	gt.Equal(t, metadata["title"], "Daily standup")
	gt.A(t, metadata["agenda"].([]any)).Length(2)

	// Search requires a query.
	rec = env.do(t, http.MethodGet, "/sessions/standup/search", nil, nil)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
	gt.S(t, decodeBody(t, rec)["detail"].(string)).Contains("query")

	rec = env.do(t, http.MethodGet, "/sessions/standup/search?query=EXPORTER", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.Equal[any](t, doc["total"], float64(1))

	rec = env.do(t, http.MethodDelete, "/sessions/standup", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.Equal(t, doc["session_removed"], true)
	gt.Equal(t, doc["export_removed"], false)

	rec = env.do(t, http.MethodGet, "/sessions/standup", nil, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)

	rec = env.do(t, http.MethodDelete, "/sessions/standup", nil, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)
}

func TestSpeakerEndpoints(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{"session_id": "s1"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	_, err := env.store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "my secret plan"},
		{Speaker: "spk-b", Text: "sounds good"},
	})
	gt.NoError(t, err)

	rec = env.do(t, http.MethodPost, "/sessions/s1/speakers", map[string]any{
		"speaker_id":   "spk-a",
		"display_name": "Alice",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	segments := decodeBody(t, rec)["segments"].([]any)
	gt.Equal(t, segments[0].(map[string]any)["speaker_label"], "Alice")

	rec = env.do(t, http.MethodPost, "/sessions/s1/speakers/forget", map[string]any{
		"speaker_id": "spk-a",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc := decodeBody(t, rec)
	gt.Equal[any](t, doc["scrubbed_segments"], float64(1))
	segments = doc["segments"].([]any)
	gt.Equal(t, segments[0].(map[string]any)["text"], model.DefaultRedactionText)
	gt.Equal(t, segments[1].(map[string]any)["text"], "sounds good")
}

func TestAudioFlow(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{"session_id": "s1", "language": "en"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	rec = env.do(t, http.MethodPost, "/sessions/s1/audio", map[string]any{
		"samples": []float64{0.0, 0.02, 0.03, 0.0},
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc := decodeBody(t, rec)
	gt.Equal[any](t, doc["added"], float64(4))
	gt.Equal[any](t, doc["buffered"], float64(4))

	rec = env.do(t, http.MethodGet, "/sessions/s1/audio?max_samples=2", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.A(t, doc["samples"].([]any)).Length(2)
	gt.Equal[any](t, doc["buffered"], float64(4))

	rec = env.do(t, http.MethodPost, "/sessions/s1/audio", map[string]any{
		"samples": []float64{0.1},
		"trim_to": 0,
	}, nil)
	gt.Equal(t, rec.Code, http.StatusBadRequest)
	gt.S(t, decodeBody(t, rec)["detail"].(string)).Contains("trim_to must be positive")

	rec = env.do(t, http.MethodPost, "/sessions/s1/process", map[string]any{
		"threshold":       0.015,
		"min_run":         2,
		"transcript_hint": "standup",
		"clear_buffer":    true,
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.Equal(t, doc["triggered"], true)
	spans := doc["spans"].([]any)
	gt.A(t, spans).Length(1)
	span := spans[0].(map[string]any)
	gt.Equal[any](t, span["start_index"], float64(1))
	gt.Equal[any](t, span["end_index"], float64(2))
	segments := doc["segments"].([]any)
	gt.Equal(t, segments[0].(map[string]any)["text"], "standup: buffer 1-2")
	gt.Equal[any](t, doc["buffered"], float64(0))

	rec = env.do(t, http.MethodPost, "/sessions/s1/ingest", map[string]any{
		"samples":         []float64{0.0, 0.0, 0.03, 0.04, 0.03, 0.0},
		"threshold":       0.02,
		"min_run":         2,
		"transcript_hint": "hello audio",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.Equal(t, doc["triggered"], true)
	segments = doc["segments"].([]any)
	gt.Equal(t, segments[0].(map[string]any)["text"], "hello audio: speech 2-4")

	// Ingest leaves the buffer alone.
	rec = env.do(t, http.MethodGet, "/sessions/s1/audio", nil, nil)
	gt.Equal[any](t, decodeBody(t, rec)["buffered"], float64(0))
}

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{
		"session_id": "s1",
		"language":   "en",
		"title":      "Planning",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	_, err := env.store.Append("s1", []model.Segment{
		{Speaker: "spk-a", Text: "we agreed on the rollout."},
		{Speaker: "spk-b", Text: "ship it."},
	})
	gt.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/sessions/s1/summary?max_points=1", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc := decodeBody(t, rec)
	gt.Equal(t, doc["session_id"], "s1")
	gt.Equal(t, doc["highlight"], "we agreed on the rollout")
	gt.A(t, doc["bullet_points"].([]any)).Length(1)
	gt.Equal(t, doc["metadata"].(map[string]any)["title"], "Planning")
}

func TestExportFlow(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{
		"session_id": "weekly",
		"language":   "en",
		"title":      "Weekly sync",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	_, err := env.store.Append("weekly", []model.Segment{{Speaker: "spk-a", Text: "done."}})
	gt.NoError(t, err)

	// Deriving the manifest does not persist it.
	rec = env.do(t, http.MethodGet, "/sessions/weekly/export", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc := decodeBody(t, rec)
	gt.Equal(t, doc["session_id"], "weekly")

	rec = env.do(t, http.MethodGet, "/exports", nil, nil)
	gt.A(t, decodeBody(t, rec)["exports"].([]any)).Length(0)

	rec = env.do(t, http.MethodPost, "/sessions/weekly/export/store", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, decodeBody(t, rec)["saved_path"].(string)).Contains("weekly.json")

	rec = env.do(t, http.MethodGet, "/exports", nil, nil)
	ids := decodeBody(t, rec)["exports"].([]any)
	gt.A(t, ids).Length(1)
	gt.Equal(t, ids[0], "weekly")

	rec = env.do(t, http.MethodGet, "/exports/weekly", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, decodeBody(t, rec)["session_id"], "weekly")

	rec = env.do(t, http.MethodGet, "/exports/weekly/download", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.S(t, rec.Header().Get("Content-Type")).Contains("text/markdown")
	gt.S(t, rec.Body.String()).Contains("# Weekly sync")

	rec = env.do(t, http.MethodGet, "/exports/weekly/download?format=text", nil, nil)
	gt.S(t, rec.Header().Get("Content-Type")).Contains("text/plain")
	gt.S(t, rec.Body.String()).Contains("spk-a: done.")

	rec = env.do(t, http.MethodGet, "/exports/weekly/download?format=pdf", nil, nil)
	gt.Equal(t, rec.Code, http.StatusBadRequest)

	// Restore replaces the live session from disk.
	gt.True(t, env.store.Delete("weekly"))
	rec = env.do(t, http.MethodPost, "/exports/weekly/restore", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	doc = decodeBody(t, rec)
	gt.Equal(t, doc["restored"], true)
	gt.A(t, doc["segments"].([]any)).Length(1)
	gt.True(t, env.store.Exists("weekly"))

	rec = env.do(t, http.MethodGet, "/exports/missing", nil, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)

	// Deleting the session also removes the stored export.
	rec = env.do(t, http.MethodDelete, "/sessions/weekly", nil, nil)
	doc = decodeBody(t, rec)
	gt.Equal(t, doc["session_removed"], true)
	gt.Equal(t, doc["export_removed"], true)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, server.Config{APIKey: "sekrit"})

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	gt.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/metrics", nil, map[string]string{"x-api-key": "wrong"})
	gt.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = env.do(t, http.MethodGet, "/metrics", nil, map[string]string{"x-api-key": "sekrit"})
	gt.Equal(t, rec.Code, http.StatusOK)

	// Health probes do not need credentials.
	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, server.Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
		gt.Equal(t, rec.Code, http.StatusOK)
	}

	rec := env.do(t, http.MethodGet, "/metrics", nil, nil)
	gt.Equal(t, rec.Code, http.StatusTooManyRequests)
	gt.Equal(t, decodeBody(t, rec)["detail"], "rate limit exceeded")

	// Health stays reachable even when throttled.
	rec = env.do(t, http.MethodGet, "/health", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, server.Config{AllowedOrigins: []string{"https://app.example.com"}})

	rec := env.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://app.example.com"})
	gt.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "https://app.example.com")

	rec = env.do(t, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example.com"})
	gt.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "")

	rec = env.do(t, http.MethodOptions, "/sessions", nil, map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})
	gt.Equal(t, rec.Code, http.StatusNoContent)
	gt.S(t, rec.Header().Get("Access-Control-Allow-Methods")).Contains("POST")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/transcribe", map[string]any{"content": "hi"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/metrics", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	counters := decodeBody(t, rec)["counters"].(map[string]any)
	gt.Equal[any](t, counters["transcribe.calls"], float64(1))
}

func TestSupportBundleEndpoint(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodPost, "/sessions", map[string]any{"session_id": "s1"}, nil)
	gt.Equal(t, rec.Code, http.StatusOK)

	rec = env.do(t, http.MethodGet, "/support/bundle", nil, nil)
	gt.Equal(t, rec.Code, http.StatusOK)
	gt.Equal(t, rec.Header().Get("Content-Type"), "application/zip")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	gt.NoError(t, err)
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"timestamp.txt", "settings.json", "metrics.json", "sessions.json", "exports/index.json"} {
		gt.True(t, names[want])
	}
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	gt.Equal(t, rec.Code, http.StatusBadRequest)
	gt.S(t, decodeBody(t, rec)["detail"].(string)).Contains("invalid request body")
}

func TestUnknownSessionRoutes(t *testing.T) {
	env := newTestEnv(t, server.Config{})

	rec := env.do(t, http.MethodGet, "/sessions/missing", nil, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)

	rec = env.do(t, http.MethodPost, "/sessions/missing/process", map[string]any{}, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)

	rec = env.do(t, http.MethodPost, "/sessions/append", map[string]any{
		"session_id": "missing",
		"transcript": "hello",
	}, nil)
	gt.Equal(t, rec.Code, http.StatusNotFound)
	gt.S(t, decodeBody(t, rec)["detail"].(string)).Contains("unknown session")
}
