package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/repository"
	"github.com/m-mizutani/giji/pkg/service/mcp"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newSession(t *testing.T) (*mcpsdk.ClientSession, *capture.Store) {
	t.Helper()
	ctx := context.Background()

	store := capture.New(capture.NewInput{
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  adapter.NewHeuristicSummarizer(),
	})
	repo := repository.New(t.TempDir())
	exportsUC := exports.New(store, repo)

	server := mcp.New(store, exportsUC, "test").Build()
	handler := mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return server
	}, nil)
	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "giji-test",
		Version: "0.0.1",
	}, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{
		Endpoint: testServer.URL,
	}, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session, store
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.False(t, result.IsError)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)

	var body map[string]any
	gt.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	return body
}

func TestListTools(t *testing.T) {
	session, _ := newSession(t)

	result, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, result.Tools).Length(7)

	names := map[string]bool{}
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"create_session", "append_transcript", "get_session",
		"search_session", "session_summary", "store_export", "list_exports",
	} {
		gt.True(t, names[want])
	}
}

func TestSessionTools(t *testing.T) {
	session, store := newSession(t)

	created := callTool(t, session, "create_session", map[string]any{
		"session_id": "weekly",
		"title":      "Weekly sync",
	})
	gt.Equal(t, created["session_id"], "weekly")
	gt.Equal(t, created["language"], "fa")

	appended := callTool(t, session, "append_transcript", map[string]any{
		"session_id": "weekly",
		"transcript": "we agreed on the rollout plan",
	})
	gt.Equal[any](t, appended["appended"], float64(1))
	gt.A(t, appended["new_speakers"].([]any)).Length(1)

	got := callTool(t, session, "get_session", map[string]any{
		"session_id": "weekly",
	})
	gt.Equal[any](t, got["buffered"], float64(0))
	segments := got["segments"].([]any)
	gt.A(t, segments).Length(1)
	first := segments[0].(map[string]any)
	gt.Equal(t, first["text"], "we agreed on the rollout plan")

	gt.True(t, store.Exists(model.SessionID("weekly")))
}

func TestSearchAndSummaryTools(t *testing.T) {
	session, _ := newSession(t)

	callTool(t, session, "create_session", map[string]any{"session_id": "planning"})
	callTool(t, session, "append_transcript", map[string]any{
		"session_id": "planning",
		"transcript": "one. two. three.",
	})

	found := callTool(t, session, "search_session", map[string]any{
		"session_id": "planning",
		"query":      "TWO",
	})
	gt.Equal[any](t, found["total"], float64(1))

	summary := callTool(t, session, "session_summary", map[string]any{
		"session_id": "planning",
		"max_points": 2,
	})
	gt.Equal(t, summary["highlight"], "one")
	gt.A(t, summary["bullet_points"].([]any)).Length(2)
}

func TestExportTools(t *testing.T) {
	session, _ := newSession(t)

	callTool(t, session, "create_session", map[string]any{"session_id": "retro"})
	callTool(t, session, "append_transcript", map[string]any{
		"session_id": "retro",
		"transcript": "ship it",
	})

	stored := callTool(t, session, "store_export", map[string]any{
		"session_id": "retro",
	})
	gt.S(t, stored["saved_path"].(string)).Contains("retro.json")

	listed := callTool(t, session, "list_exports", map[string]any{})
	ids := listed["exports"].([]any)
	gt.A(t, ids).Length(1)
	gt.Equal(t, ids[0], "retro")
}

func TestToolErrors(t *testing.T) {
	session, _ := newSession(t)

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "get_session",
		Arguments: map[string]any{"session_id": "nope"},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)

	callTool(t, session, "create_session", map[string]any{"session_id": "dup"})
	result, err = session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "create_session",
		Arguments: map[string]any{"session_id": "dup"},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)

	result, err = session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "search_session",
		Arguments: map[string]any{"session_id": "dup", "query": ""},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)
}
