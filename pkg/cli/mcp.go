package cli

import (
	"context"

	"github.com/m-mizutani/giji/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

// version is embedded at build time via -ldflags.
var version = "dev"

func mcpCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)
	flags = append(flags, mirrorFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve capture tools to MCP clients over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Logs must stay off stdout: the MCP transport owns it.
			cfg.setupLogger()

			store, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			exportsUC, err := cfg.newExports(ctx, store, repo)
			if err != nil {
				return err
			}

			return mcp.New(store, exportsUC, version).Run(ctx)
		},
	}
}
