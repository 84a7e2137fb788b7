package mcp

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func textResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to encode tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

type createSessionParams struct {
	SessionID string   `json:"session_id"`
	Language  string   `json:"language,omitempty"`
	Title     string   `json:"title,omitempty"`
	Agenda    []string `json:"agenda,omitempty"`
}

func (x *Server) handleCreateSession(ctx context.Context, req *mcp.CallToolRequest, params *createSessionParams) (*mcp.CallToolResult, any, error) {
	session, err := x.store.Create(model.SessionID(params.SessionID), params.Language, params.Title, params.Agenda)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id": session.ID,
		"language":   session.Language,
		"created_at": session.CreatedAt,
		"metadata":   session.Metadata(),
	})
}

type appendTranscriptParams struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
}

func (x *Server) handleAppendTranscript(ctx context.Context, req *mcp.CallToolRequest, params *appendTranscriptParams) (*mcp.CallToolResult, any, error) {
	result, err := x.store.AppendTranscript(ctx, model.SessionID(params.SessionID), params.Transcript)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id":   params.SessionID,
		"appended":     len(result.Appended),
		"new_speakers": result.NewSpeakers,
	})
}

type sessionIDParams struct {
	SessionID string `json:"session_id"`
}

func (x *Server) handleGetSession(ctx context.Context, req *mcp.CallToolRequest, params *sessionIDParams) (*mcp.CallToolResult, any, error) {
	session, err := x.store.Get(model.SessionID(params.SessionID))
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id": session.ID,
		"language":   session.Language,
		"created_at": session.CreatedAt,
		"segments":   session.SerializedSegments(),
		"metadata":   session.Metadata(),
		"buffered":   len(session.AudioBuffer),
	})
}

type searchSessionParams struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func (x *Server) handleSearchSession(ctx context.Context, req *mcp.CallToolRequest, params *searchSessionParams) (*mcp.CallToolResult, any, error) {
	if params.Query == "" {
		return nil, nil, goerr.Wrap(model.ErrInvalidArgument, "query must not be empty")
	}

	results, err := x.store.Search(model.SessionID(params.SessionID), params.Query)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id": params.SessionID,
		"query":      params.Query,
		"total":      len(results),
		"results":    results,
	})
}

type sessionSummaryParams struct {
	SessionID string `json:"session_id"`
	MaxPoints int    `json:"max_points,omitempty"`
}

func (x *Server) handleSessionSummary(ctx context.Context, req *mcp.CallToolRequest, params *sessionSummaryParams) (*mcp.CallToolResult, any, error) {
	summary, err := x.store.Summary(ctx, model.SessionID(params.SessionID), params.MaxPoints)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id":    params.SessionID,
		"highlight":     summary.Highlight,
		"bullet_points": summary.BulletPoints,
	})
}

func (x *Server) handleStoreExport(ctx context.Context, req *mcp.CallToolRequest, params *sessionIDParams) (*mcp.CallToolResult, any, error) {
	result, err := x.exports.Store(ctx, model.SessionID(params.SessionID))
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{
		"session_id": params.SessionID,
		"saved_path": result.SavedPath,
	})
}

type listExportsParams struct{}

func (x *Server) handleListExports(ctx context.Context, req *mcp.CallToolRequest, params *listExportsParams) (*mcp.CallToolResult, any, error) {
	ids, err := x.exports.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return textResult(map[string]any{"exports": ids})
}
