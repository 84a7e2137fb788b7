package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func exportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "exports",
		Usage: "Inspect and maintain persisted export manifests",
		Commands: []*cli.Command{
			exportsListCommand(),
			exportsShowCommand(),
			exportsDownloadCommand(),
			exportsRestoreCommand(),
			exportsPruneCommand(),
		},
	}
}

// newExportsUseCase builds the export usecase for maintenance commands.
func newExportsUseCase(ctx context.Context, cfg *config) (*exports.UseCase, error) {
	store, err := cfg.newStore(ctx)
	if err != nil {
		return nil, err
	}

	repo, err := cfg.newRepository()
	if err != nil {
		return nil, err
	}

	return cfg.newExports(ctx, store, repo)
}

func exportsListCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List stored export manifests",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := newExportsUseCase(ctx, &cfg)
			if err != nil {
				return err
			}

			ids, err := uc.List(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list exports")
			}

			for _, id := range ids {
				fmt.Fprintf(c.Root().Writer, "%s\n", id)
			}
			return nil
		},
	}
}

func exportsShowCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID of the manifest to show",
			Sources:     cli.EnvVars("GIJI_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show a stored export manifest",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := newExportsUseCase(ctx, &cfg)
			if err != nil {
				return err
			}

			export, err := uc.Get(ctx, model.SessionID(sessionID))
			if err != nil {
				return goerr.Wrap(err, "failed to load export")
			}

			data, err := json.MarshalIndent(export, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to encode export")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", data)
			return nil
		},
	}
}

func exportsDownloadCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
		format    string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID of the manifest to render",
			Sources:     cli.EnvVars("GIJI_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Output format (markdown or text)",
			Value:       exports.FormatMarkdown,
			Sources:     cli.EnvVars("GIJI_EXPORT_FORMAT"),
			Destination: &format,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "download",
		Usage: "Render a stored export manifest as a document",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := newExportsUseCase(ctx, &cfg)
			if err != nil {
				return err
			}

			doc, _, err := uc.Download(ctx, model.SessionID(sessionID), format)
			if err != nil {
				return goerr.Wrap(err, "failed to render export")
			}

			fmt.Fprint(c.Root().Writer, doc)
			return nil
		},
	}
}

func exportsRestoreCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID of the manifest to restore",
			Sources:     cli.EnvVars("GIJI_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "restore",
		Usage: "Rebuild an in-memory session from a stored manifest",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := newExportsUseCase(ctx, &cfg)
			if err != nil {
				return err
			}

			session, err := uc.Restore(ctx, model.SessionID(sessionID))
			if err != nil {
				return goerr.Wrap(err, "failed to restore session")
			}

			fmt.Fprintf(c.Root().Writer, "restored %s with %d segments\n", session.ID, len(session.Segments))
			return nil
		},
	}
}

func exportsPruneCommand() *cli.Command {
	var (
		cfg        config
		maxAgeDays int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "max-age-days",
			Usage:       "Remove manifests older than this many days",
			Sources:     cli.EnvVars("GIJI_EXPORT_RETENTION_DAYS"),
			Destination: &maxAgeDays,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:  "prune",
		Usage: "Remove stored exports older than the retention window",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.setupLogger()

			uc, err := newExportsUseCase(ctx, &cfg)
			if err != nil {
				return err
			}

			removed, err := uc.Prune(ctx, int(maxAgeDays))
			if err != nil {
				return goerr.Wrap(err, "failed to prune exports")
			}

			for _, id := range removed {
				fmt.Fprintf(c.Root().Writer, "%s\n", id)
			}
			fmt.Fprintf(c.Root().Writer, "removed %d exports\n", len(removed))
			return nil
		},
	}
}
