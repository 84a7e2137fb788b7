package exports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// StoreResult reports a persisted export.
type StoreResult struct {
	Export    *model.Export
	SavedPath string
	Redacted  []model.SpeakerID
}

// Store derives the export of a live session, applies privacy policy
// redactions, and persists the manifest. The saved file is the source of
// truth: mirroring to the archive bucket and the insight sink is
// best-effort and failures there are logged, not returned.
func (x *UseCase) Store(ctx context.Context, id model.SessionID) (*StoreResult, error) {
	export, err := x.store.Export(ctx, id)
	if err != nil {
		return nil, err
	}

	redacted, err := x.applyRedactions(ctx, id, export)
	if err != nil {
		return nil, err
	}
	if len(redacted) > 0 {
		// The redactions changed the live session; derive the manifest again.
		export, err = x.store.Export(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	path, err := x.repo.Save(ctx, export)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	if x.archive != nil {
		if err := x.archiveExport(ctx, export); err != nil {
			logger.Warn("failed to archive export", "sessionID", id, "error", err)
		}
	}
	if x.insight != nil {
		if err := x.insight.InsertExport(ctx, export); err != nil {
			logger.Warn("failed to record export insight", "sessionID", id, "error", err)
		}
	}

	return &StoreResult{
		Export:    export,
		SavedPath: path,
		Redacted:  redacted,
	}, nil
}

// applyRedactions scrubs the speakers the privacy policy names from the
// live session. Returns the redacted speaker IDs.
func (x *UseCase) applyRedactions(ctx context.Context, id model.SessionID, export *model.Export) ([]model.SpeakerID, error) {
	redaction, err := x.policy.Redactions(ctx, export)
	if err != nil {
		return nil, err
	}
	if redaction == nil {
		return nil, nil
	}

	for _, speaker := range redaction.Speakers {
		result, err := x.store.Forget(id, speaker, redaction.Text)
		if err != nil {
			return nil, err
		}
		logging.From(ctx).Info("privacy policy redacted speaker",
			"sessionID", id,
			"speaker", speaker,
			"scrubbed", result.Scrubbed,
		)
	}
	return redaction.Speakers, nil
}

func (x *UseCase) archiveExport(ctx context.Context, export *model.Export) error {
	raw, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal export for archive")
	}

	key := fmt.Sprintf("exports/%s.json", export.SessionID)
	w, err := x.archive.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to open archive object", goerr.V("key", key))
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write archive object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive object", goerr.V("key", key))
	}
	return nil
}
