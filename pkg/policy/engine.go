// Package policy evaluates operator-supplied Rego policies that gate what
// happens to exports: data.retention decides which stored exports the
// retention sweep must keep, and data.privacy directs speaker redaction
// before an export is persisted.
package policy

import (
	"context"
	"time"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine holds the prepared policy queries. A nil *Engine is valid and
// disables every gate, so callers can thread an unconfigured engine through.
type Engine struct {
	retention *rego.PreparedEvalQuery
	privacy   *rego.PreparedEvalQuery
}

// New loads every *.rego file under policyDir. An empty or absent directory
// yields an engine with all gates disabled.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	retention, privacy, err := loadQueries(ctx, policyDir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		retention: retention,
		privacy:   privacy,
	}, nil
}

// RetentionExempt reports whether data.retention.keep is true for the
// export, exempting it from age-based pruning.
func (e *Engine) RetentionExempt(ctx context.Context, export *model.Export) (bool, error) {
	if e == nil || e.retention == nil {
		return false, nil
	}

	rs, err := e.retention.Eval(ctx, rego.EvalInput(buildInput(export)))
	if err != nil {
		return false, goerr.Wrap(err, "failed to evaluate retention policy", goerr.V("sessionID", export.SessionID))
	}

	data := resultDocument(rs)
	if data == nil {
		return false, nil
	}

	keep, _ := data["keep"].(bool)
	return keep, nil
}

// Redaction is a privacy directive: scrub these speakers with the given
// text before the export leaves the process.
type Redaction struct {
	Speakers []model.SpeakerID
	Text     string
}

// Redactions evaluates data.privacy for the export. The "forget" document
// lists speaker IDs to scrub; "redaction_text" optionally overrides the
// replacement text. A nil result means no redaction is required.
func (e *Engine) Redactions(ctx context.Context, export *model.Export) (*Redaction, error) {
	if e == nil || e.privacy == nil {
		return nil, nil
	}

	rs, err := e.privacy.Eval(ctx, rego.EvalInput(buildInput(export)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate privacy policy", goerr.V("sessionID", export.SessionID))
	}

	data := resultDocument(rs)
	if data == nil {
		return nil, nil
	}

	forget, ok := data["forget"].([]any)
	if !ok || len(forget) == 0 {
		return nil, nil
	}

	redaction := &Redaction{
		Text: getString(data, "redaction_text"),
	}
	for _, entry := range forget {
		if id, ok := entry.(string); ok && id != "" {
			redaction.Speakers = append(redaction.Speakers, model.SpeakerID(id))
		}
	}
	if len(redaction.Speakers) == 0 {
		return nil, nil
	}

	return redaction, nil
}

// buildInput flattens an export into the policy input document.
func buildInput(export *model.Export) map[string]any {
	speakers := []string{}
	seen := map[model.SpeakerID]bool{}
	for _, rec := range export.Segments {
		if !seen[rec.Speaker] {
			seen[rec.Speaker] = true
			speakers = append(speakers, string(rec.Speaker))
		}
	}

	return map[string]any{
		"session_id":    string(export.SessionID),
		"created_at":    export.CreatedAt.Format(time.RFC3339),
		"language":      export.Language,
		"title":         export.Title,
		"agenda":        export.Agenda,
		"segment_count": len(export.Segments),
		"speakers":      speakers,
	}
}

func resultDocument(rs rego.ResultSet) map[string]any {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}
	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil
	}
	return data
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
