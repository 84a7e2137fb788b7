package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/interfaces"
	"github.com/m-mizutani/giji/pkg/policy"
	"github.com/m-mizutani/giji/pkg/repository"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values shared across commands
type config struct {
	// Storage
	storageDir string

	// Policy
	policyDir string

	// Export mirrors
	archiveBucket   string
	bigqueryProject string
	bigqueryDataset string
	bigqueryTable   string

	// Gemini
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Logging
	logLevel  string
	logFormat string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory holding persisted export manifests",
			Value:       "data",
			Sources:     cli.EnvVars("GIJI_STORAGE_DIR"),
			Destination: &cfg.storageDir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("GIJI_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("GIJI_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// policyFlags returns flags for the Rego policy directory
func policyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies for retention and privacy",
			Sources:     cli.EnvVars("GIJI_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// mirrorFlags returns flags for the export mirror destinations
func mirrorFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket mirroring stored exports",
			Sources:     cli.EnvVars("GIJI_ARCHIVE_BUCKET"),
			Destination: &cfg.archiveBucket,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project ID for the BigQuery export mirror",
			Sources:     cli.EnvVars("GIJI_BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset receiving export rows",
			Sources:     cli.EnvVars("GIJI_BIGQUERY_DATASET"),
			Destination: &cfg.bigqueryDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table receiving export rows",
			Sources:     cli.EnvVars("GIJI_BIGQUERY_TABLE"),
			Destination: &cfg.bigqueryTable,
		},
	}
}

// geminiFlags returns flags for Gemini-backed summarization
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini (empty uses the heuristic summarizer)",
			Sources:     cli.EnvVars("GIJI_GEMINI_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GIJI_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model used for summarization",
			Sources:     cli.EnvVars("GIJI_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// setupLogger installs the process-wide logger per the logging flags.
// Command output goes to stdout; logs go to stderr so the MCP stdio
// transport and JSON-emitting commands stay parseable.
func (cfg *config) setupLogger() *slog.Logger {
	logger := logging.New(cfg.logLevel, cfg.logFormat, os.Stderr)
	logging.SetDefault(logger)
	return logger
}

// newRepository creates the file-backed export repository
func (cfg *config) newRepository() (repository.Repository, error) {
	if cfg.storageDir == "" {
		return nil, goerr.New("storage-dir is required")
	}
	return repository.New(cfg.storageDir), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newSummarizer prefers Gemini when configured and falls back to the
// deterministic heuristic summarizer otherwise
func (cfg *config) newSummarizer(ctx context.Context) (interfaces.Summarizer, error) {
	if cfg.geminiProject == "" {
		return adapter.NewHeuristicSummarizer(), nil
	}

	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, err
	}
	return adapter.NewGeminiSummarizer(gemini), nil
}

// newStore creates an in-memory session store with the configured pipeline
func (cfg *config) newStore(ctx context.Context) (*capture.Store, error) {
	summarizer, err := cfg.newSummarizer(ctx)
	if err != nil {
		return nil, err
	}

	return capture.New(capture.NewInput{
		Transcriber: adapter.NewOfflineTranscriber(),
		Diarizer:    adapter.NewHashDiarizer(),
		Summarizer:  summarizer,
	}), nil
}

// newArchive creates the Cloud Storage mirror, or nil when no bucket is set
func (cfg *config) newArchive(ctx context.Context) (adapter.Storage, error) {
	if cfg.archiveBucket == "" {
		return nil, nil
	}

	archive, err := adapter.NewStorage(ctx, cfg.archiveBucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create archive storage")
	}
	return archive, nil
}

// newInsight creates the BigQuery mirror, or nil when no project is set
func (cfg *config) newInsight(ctx context.Context) (adapter.Insight, error) {
	if cfg.bigqueryProject == "" {
		return nil, nil
	}

	var opts []adapter.InsightOption
	if cfg.bigqueryDataset != "" {
		opts = append(opts, adapter.WithInsightDataset(cfg.bigqueryDataset))
	}
	if cfg.bigqueryTable != "" {
		opts = append(opts, adapter.WithInsightTable(cfg.bigqueryTable))
	}

	insight, err := adapter.NewInsight(ctx, cfg.bigqueryProject, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create insight client")
	}
	return insight, nil
}

// newPolicy loads the Rego policy engine, or nil when no directory is set
func (cfg *config) newPolicy(ctx context.Context) (*policy.Engine, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}

	engine, err := policy.New(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policies")
	}
	return engine, nil
}

// newExports assembles the export usecase with every configured mirror
func (cfg *config) newExports(ctx context.Context, store *capture.Store, repo repository.Repository) (*exports.UseCase, error) {
	var opts []exports.Option

	archive, err := cfg.newArchive(ctx)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, exports.WithArchive(archive))
	}

	insight, err := cfg.newInsight(ctx)
	if err != nil {
		return nil, err
	}
	if insight != nil {
		opts = append(opts, exports.WithInsight(insight))
	}

	engine, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}
	if engine != nil {
		opts = append(opts, exports.WithPolicy(engine))
	}

	return exports.New(store, repo, opts...), nil
}
