package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Filesystem stores one JSON document per session under <baseDir>/exports.
type Filesystem struct {
	baseDir string
}

// New creates a filesystem repository rooted at baseDir. The directory is
// created lazily on first save.
func New(baseDir string) *Filesystem {
	return &Filesystem{baseDir: baseDir}
}

func (r *Filesystem) exportDir() string {
	return filepath.Join(r.baseDir, "exports")
}

func (r *Filesystem) exportPath(id model.SessionID) string {
	return filepath.Join(r.exportDir(), string(id)+".json")
}

// validateID rejects session IDs that cannot serve as file names.
func validateID(id model.SessionID) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(string(id), `/\`) {
		return goerr.Wrap(model.ErrInvalidArgument, "session id is not storable", goerr.V("sessionID", id))
	}
	return nil
}

func (r *Filesystem) Save(ctx context.Context, export *model.Export) (string, error) {
	if err := validateID(export.SessionID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.exportDir(), 0o755); err != nil {
		return "", goerr.Wrap(err, "failed to create export directory", goerr.V("dir", r.exportDir()))
	}

	raw, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode export", goerr.V("sessionID", export.SessionID))
	}

	path := r.exportPath(export.SessionID)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", goerr.Wrap(err, "failed to write export file", goerr.V("path", path))
	}

	return path, nil
}

func (r *Filesystem) Load(ctx context.Context, id model.SessionID) (*model.Export, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(r.exportPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(model.ErrExportNotFound, "no stored export", goerr.V("sessionID", id))
		}
		return nil, goerr.Wrap(err, "failed to read export file", goerr.V("sessionID", id))
	}

	return decodeExport(raw)
}

func (r *Filesystem) List(ctx context.Context) ([]model.SessionID, error) {
	entries, err := os.ReadDir(r.exportDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []model.SessionID{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read export directory", goerr.V("dir", r.exportDir()))
	}

	ids := []model.SessionID{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, model.SessionID(strings.TrimSuffix(name, ".json")))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}

func (r *Filesystem) Delete(ctx context.Context, id model.SessionID) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	if err := os.Remove(r.exportPath(id)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to delete export file", goerr.V("sessionID", id))
	}

	return true, nil
}

func (r *Filesystem) Prune(ctx context.Context, maxAgeDays int, now time.Time) ([]model.SessionID, error) {
	ids, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.UTC().AddDate(0, 0, -maxAgeDays)
	removed := []model.SessionID{}
	for _, id := range ids {
		export, err := r.Load(ctx, id)
		if err != nil {
			logging.From(ctx).Warn("skipping unreadable export during prune",
				"sessionID", id, "error", err)
			continue
		}
		if !export.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := r.Delete(ctx, id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}

	// ids were listed sorted, so removed is already in order
	return removed, nil
}

// exportFile is the on-disk layout. Timestamps are kept as strings so that
// zone-less stamps written by older builds still load (treated as UTC).
type exportFile struct {
	SessionID model.SessionID       `json:"session_id"`
	CreatedAt string                `json:"created_at"`
	Language  string                `json:"language"`
	Title     string                `json:"title,omitempty"`
	Agenda    []string              `json:"agenda"`
	Segments  []model.SegmentRecord `json:"segments"`
	Summary   model.Summary         `json:"summary"`
}

func decodeExport(raw []byte) (*model.Export, error) {
	var file exportFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to decode export")
	}

	createdAt, err := parseTimestamp(file.CreatedAt)
	if err != nil {
		return nil, err
	}

	export := &model.Export{
		SessionID: file.SessionID,
		CreatedAt: createdAt,
		Language:  file.Language,
		Title:     file.Title,
		Agenda:    file.Agenda,
		Segments:  file.Segments,
		Summary:   file.Summary,
	}
	if export.Agenda == nil {
		export.Agenda = []string{}
	}
	if export.Segments == nil {
		export.Segments = []model.SegmentRecord{}
	}
	if export.Summary.BulletPoints == nil {
		export.Summary.BulletPoints = []string{}
	}

	return export, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02T15:04:05.999999999", value)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "unparsable export timestamp", goerr.V("value", value))
	}
	return ts.UTC(), nil
}
