package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func smokeCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:  "smoke",
		Usage: "Run an in-process end-to-end health check",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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

			report, err := runSmoke(ctx, store, exportsUC)
			if err != nil {
				return goerr.Wrap(err, "smoke test failed")
			}

			out, err := json.MarshalIndent(map[string]any{
				"status": "ok",
				"report": report,
			}, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to encode smoke report")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", out)
			return nil
		},
	}
}

// runSmoke exercises session creation, append + diarization, speaker
// labeling, summary generation, export persistence and retrieval against
// in-process collaborators.
func runSmoke(ctx context.Context, store *capture.Store, exportsUC *exports.UseCase) (map[string]any, error) {
	const sessionID = model.SessionID("smoke-session")
	const transcript = "Ali: salam, khobi? Sara: man khubam."

	session, err := store.Create(sessionID, "fa", "", nil)
	if err != nil {
		return nil, err
	}

	appended, err := store.AppendTranscript(ctx, sessionID, transcript)
	if err != nil {
		return nil, err
	}
	if len(appended.NewSpeakers) == 0 {
		return nil, goerr.New("append discovered no speakers")
	}

	labeled, err := store.Label(sessionID, appended.NewSpeakers[0], "Ali")
	if err != nil {
		return nil, err
	}

	summary, err := store.Summary(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	export, err := store.Export(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stored, err := exportsUC.Store(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ids, err := exportsUC.List(ctx)
	if err != nil {
		return nil, err
	}

	fetched, err := exportsUC.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"session": map[string]any{
			"session_id": session.ID,
			"language":   session.Language,
			"created_at": session.CreatedAt,
		},
		"segments":     labeled.SerializedSegments(),
		"summary":      summary,
		"export":       export,
		"storage_path": stored.SavedPath,
		"exports":      ids,
		"fetched":      fetched,
	}, nil
}
