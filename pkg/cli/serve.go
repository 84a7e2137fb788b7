package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/giji/pkg/adapter"
	"github.com/m-mizutani/giji/pkg/metrics"
	"github.com/m-mizutani/giji/pkg/server"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/support"
	"github.com/m-mizutani/giji/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// fileSettings mirrors the serve flags for the optional --config YAML file.
// Explicitly set flags and environment variables win over file values.
type fileSettings struct {
	Addr                 string   `yaml:"addr"`
	APIKey               string   `yaml:"api_key"`
	RequestIDHeader      string   `yaml:"request_id_header"`
	AllowedOrigins       []string `yaml:"allowed_origins"`
	MaxRequestsPerMinute int      `yaml:"max_requests_per_minute"`
	StorageDir           string   `yaml:"storage_dir"`
	ExportRetentionDays  int      `yaml:"export_retention_days"`
	PolicyDir            string   `yaml:"policy_dir"`
	Language             string   `yaml:"language"`
}

func loadFileSettings(path string) (*fileSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var settings fileSettings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return &settings, nil
}

func serveCommand() *cli.Command {
	var (
		cfg             config
		addr            string
		apiKey          string
		requestIDHeader string
		allowedOrigins  []string
		rateLimit       int64
		retentionDays   int64
		language        string
		configPath      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address",
			Value:       ":8000",
			Sources:     cli.EnvVars("GIJI_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "api-key",
			Usage:       "API key required on every route except /health (empty disables auth)",
			Sources:     cli.EnvVars("GIJI_API_KEY"),
			Destination: &apiKey,
		},
		&cli.StringFlag{
			Name:        "request-id-header",
			Usage:       "Header carrying the request ID",
			Value:       server.DefaultRequestIDHeader,
			Sources:     cli.EnvVars("GIJI_REQUEST_ID_HEADER"),
			Destination: &requestIDHeader,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origins",
			Usage:       "CORS origin allowlist (empty disables CORS handling)",
			Sources:     cli.EnvVars("GIJI_ALLOWED_ORIGINS"),
			Destination: &allowedOrigins,
		},
		&cli.IntFlag{
			Name:        "max-requests-per-minute",
			Usage:       "Per-principal rate limit (0 disables)",
			Value:       0,
			Sources:     cli.EnvVars("GIJI_MAX_REQUESTS_PER_MINUTE"),
			Destination: &rateLimit,
		},
		&cli.IntFlag{
			Name:        "export-retention-days",
			Usage:       "Prune stored exports older than this many days (0 disables)",
			Value:       0,
			Sources:     cli.EnvVars("GIJI_EXPORT_RETENTION_DAYS"),
			Destination: &retentionDays,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "Default transcription language",
			Value:       "fa",
			Sources:     cli.EnvVars("GIJI_LANGUAGE"),
			Destination: &language,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a YAML config file (flags and env vars win)",
			Sources:     cli.EnvVars("GIJI_CONFIG"),
			Destination: &configPath,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)
	flags = append(flags, mirrorFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := cfg.setupLogger()

			if configPath != "" {
				file, err := loadFileSettings(configPath)
				if err != nil {
					return err
				}
				if !c.IsSet("addr") && file.Addr != "" {
					addr = file.Addr
				}
				if !c.IsSet("api-key") && file.APIKey != "" {
					apiKey = file.APIKey
				}
				if !c.IsSet("request-id-header") && file.RequestIDHeader != "" {
					requestIDHeader = file.RequestIDHeader
				}
				if !c.IsSet("allowed-origins") && len(file.AllowedOrigins) > 0 {
					allowedOrigins = file.AllowedOrigins
				}
				if !c.IsSet("max-requests-per-minute") && file.MaxRequestsPerMinute > 0 {
					rateLimit = int64(file.MaxRequestsPerMinute)
				}
				if !c.IsSet("storage-dir") && file.StorageDir != "" {
					cfg.storageDir = file.StorageDir
				}
				if !c.IsSet("export-retention-days") && file.ExportRetentionDays > 0 {
					retentionDays = int64(file.ExportRetentionDays)
				}
				if !c.IsSet("policy-dir") && file.PolicyDir != "" {
					cfg.policyDir = file.PolicyDir
				}
				if !c.IsSet("language") && file.Language != "" {
					language = file.Language
				}
			}

			// Initialize dependencies
			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			summarizer, err := cfg.newSummarizer(ctx)
			if err != nil {
				return err
			}

			transcriber := adapter.NewOfflineTranscriber()
			diarizer := adapter.NewHashDiarizer()
			synthesizer := adapter.NewTextSynthesizer()

			store := capture.New(capture.NewInput{
				Transcriber: transcriber,
				Diarizer:    diarizer,
				Summarizer:  summarizer,
			})

			exportsUC, err := cfg.newExports(ctx, store, repo)
			if err != nil {
				return err
			}

			registry := metrics.NewRegistry()
			supportUC := support.New(store, repo, registry, support.Settings{
				Addr:          addr,
				BaseDir:       cfg.storageDir,
				Language:      language,
				PolicyDir:     cfg.policyDir,
				RetentionDays: int(retentionDays),
				RateLimit:     int(rateLimit),
				APIKey:        apiKey,
			})

			srv := server.New(server.Input{
				Store:       store,
				Exports:     exportsUC,
				Support:     supportUC,
				Transcriber: transcriber,
				Diarizer:    diarizer,
				Summarizer:  summarizer,
				Synthesizer: synthesizer,
				Metrics:     registry,
			}, server.Config{
				APIKey:             apiKey,
				AllowedOrigins:     allowedOrigins,
				RequestIDHeader:    requestIDHeader,
				RateLimitPerMinute: int(rateLimit),
			})

			sweepCtx, stopSweeper := context.WithCancel(logging.With(ctx, logger))
			defer stopSweeper()
			if retentionDays > 0 {
				go exportsUC.RunRetentionSweeper(sweepCtx, time.Hour, int(retentionDays))
			}

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("starting http server",
				"addr", addr,
				"storage_dir", cfg.storageDir,
				"retention_days", retentionDays,
				"rate_limit", rateLimit,
				"auth_enabled", apiKey != "",
			)

			errCh := make(chan error, 1)
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
					return
				}
				errCh <- nil
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case err := <-errCh:
				if err != nil {
					return goerr.Wrap(err, "http server failed")
				}
				return nil
			case <-ctx.Done():
			case sig := <-sigCh:
				logger.Info("shutdown signal received", "signal", sig.String())
			}

			stopSweeper()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down http server")
			}
			if err := <-errCh; err != nil {
				return goerr.Wrap(err, "http server failed")
			}

			logger.Info("http server stopped")
			return nil
		},
	}
}
