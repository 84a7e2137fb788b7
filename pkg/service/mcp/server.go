// Package mcp exposes the capture engine to MCP-capable agents: session
// lifecycle, transcript search and export tools, served over stdio.
package mcp

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wires the capture store and exports usecase into MCP tools.
type Server struct {
	store   *capture.Store
	exports *exports.UseCase
	version string
}

// New creates a new MCP server
func New(store *capture.Store, exportsUC *exports.UseCase, version string) *Server {
	return &Server{
		store:   store,
		exports: exportsUC,
		version: version,
	}
}

// Run serves MCP over stdio until ctx is canceled.
func (x *Server) Run(ctx context.Context) error {
	if err := x.Build().Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server terminated")
	}
	return nil
}

// Build assembles the SDK server with every tool registered. Split from Run
// so other transports (the tests use the streamable HTTP handler) can serve
// the same tool set.
func (x *Server) Build() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "giji",
		Version: x.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_session",
		Description: "Register a new meeting capture session",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Unique session identifier"},
				"language":   {Type: "string", Description: "Session language tag, defaults to fa"},
				"title":      {Type: "string", Description: "Meeting title"},
				"agenda":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Agenda items"},
			},
			Required: []string{"session_id"},
		},
	}, x.handleCreateSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "append_transcript",
		Description: "Transcribe and diarize free text onto a session timeline",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Target session"},
				"transcript": {Type: "string", Description: "Raw utterance text"},
			},
			Required: []string{"session_id", "transcript"},
		},
	}, x.handleAppendTranscript)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_session",
		Description: "Fetch the current state of a session",
		InputSchema: sessionIDSchema(),
	}, x.handleGetSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_session",
		Description: "Case-insensitive substring search over a session transcript",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Target session"},
				"query":      {Type: "string", Description: "Substring to look for"},
			},
			Required: []string{"session_id", "query"},
		},
	}, x.handleSearchSession)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_summary",
		Description: "Summarize the transcript accumulated on a session",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"session_id": {Type: "string", Description: "Target session"},
				"max_points": {Type: "integer", Description: "Bullet point cap, defaults to 5"},
			},
			Required: []string{"session_id"},
		},
	}, x.handleSessionSummary)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_export",
		Description: "Persist the session export manifest to storage",
		InputSchema: sessionIDSchema(),
	}, x.handleStoreExport)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_exports",
		Description: "List the stored export manifests",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, x.handleListExports)

	return server
}

func sessionIDSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"session_id": {Type: "string", Description: "Target session"},
		},
		Required: []string{"session_id"},
	}
}
