// Package support builds the diagnostic bundle operators attach to
// trouble reports: a zip archive of sanitized settings, runtime counters,
// live session IDs and the stored export manifests.
package support

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/giji/pkg/metrics"
	"github.com/m-mizutani/giji/pkg/repository"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Settings is the runtime configuration snapshot included in the bundle.
// The API key value never leaves the process; Build replaces it with
// "REDACTED" when one is configured.
type Settings struct {
	Addr          string `json:"addr"`
	BaseDir       string `json:"base_dir"`
	Language      string `json:"language"`
	PolicyDir     string `json:"policy_dir"`
	RetentionDays int    `json:"retention_days"`
	RateLimit     int    `json:"rate_limit_per_minute"`
	APIKey        string `json:"api_key"`
}

// UseCase is the support bundle usecase
type UseCase struct {
	store    *capture.Store
	repo     repository.Repository
	metrics  *metrics.Registry
	settings Settings
	clock    func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithClock overrides the bundle timestamp source
func WithClock(clock func() time.Time) Option {
	return func(x *UseCase) {
		x.clock = clock
	}
}

// New creates a new support usecase
func New(store *capture.Store, repo repository.Repository, registry *metrics.Registry, settings Settings, opts ...Option) *UseCase {
	uc := &UseCase{
		store:    store,
		repo:     repo,
		metrics:  registry,
		settings: settings,
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Build writes the bundle archive to w.
func (x *UseCase) Build(ctx context.Context, w io.Writer) error {
	zw := zip.NewWriter(w)

	now := x.clock().UTC()
	if err := writeEntry(zw, "timestamp.txt", []byte(now.Format(time.RFC3339)+"\n")); err != nil {
		return err
	}

	settings := x.settings
	if settings.APIKey != "" {
		settings.APIKey = "REDACTED"
	}
	if err := writeJSONEntry(zw, "settings.json", settings); err != nil {
		return err
	}

	if err := writeJSONEntry(zw, "metrics.json", map[string]any{
		"counters": x.metrics.Snapshot(),
	}); err != nil {
		return err
	}

	if err := writeJSONEntry(zw, "sessions.json", map[string]any{
		"active_sessions": x.store.SessionIDs(),
	}); err != nil {
		return err
	}

	ids, err := x.repo.List(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to list exports for bundle")
	}
	if err := writeJSONEntry(zw, "exports/index.json", map[string]any{
		"export_ids": ids,
	}); err != nil {
		return err
	}
	for _, id := range ids {
		export, err := x.repo.Load(ctx, id)
		if err != nil {
			logging.From(ctx).Warn("skipping unreadable export in bundle", "sessionID", id, "error", err)
			continue
		}
		if err := writeJSONEntry(zw, fmt.Sprintf("exports/%s.json", id), export); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize bundle archive")
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return goerr.Wrap(err, "failed to create bundle entry", goerr.V("name", name))
	}
	if _, err := f.Write(data); err != nil {
		return goerr.Wrap(err, "failed to write bundle entry", goerr.V("name", name))
	}
	return nil
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal bundle entry", goerr.V("name", name))
	}
	return writeEntry(zw, name, raw)
}
