package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/giji/pkg/model"
	"github.com/m-mizutani/giji/pkg/usecase/capture"
	"github.com/m-mizutani/giji/pkg/usecase/exports"
	"github.com/m-mizutani/giji/pkg/vad"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// demoUtterances seed the console session with a small Persian standup so
// every command has material to work on.
var demoUtterances = []string{
	"سلام همه. امروز درباره محصول جدید صحبت می‌کنیم.",
	"من فکر می‌کنم باید روی کیفیت تمرکز کنیم.",
	"موافقم، همچنین باید زمان‌بندی را رعایت کنیم.",
}

var demoSpeakerNames = []string{"Ali", "Sara", "Nima"}

func demoCommand() *cli.Command {
	var (
		cfg       config
		sessionID string
		language  string
		seed      bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"s"},
			Usage:       "Session ID for the console session",
			Value:       "demo-session",
			Sources:     cli.EnvVars("GIJI_SESSION_ID"),
			Destination: &sessionID,
		},
		&cli.StringFlag{
			Name:        "language",
			Usage:       "Session language",
			Value:       "fa",
			Sources:     cli.EnvVars("GIJI_LANGUAGE"),
			Destination: &language,
		},
		&cli.BoolFlag{
			Name:        "seed",
			Usage:       "Preload the sample utterances and speaker labels",
			Sources:     cli.EnvVars("GIJI_DEMO_SEED"),
			Destination: &seed,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)
	flags = append(flags, geminiFlags(&cfg)...)

	return &cli.Command{
		Name:  "demo",
		Usage: "Interactive console against an in-process session store",
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

			if _, err := store.Create(model.SessionID(sessionID), language, "", nil); err != nil {
				return goerr.Wrap(err, "failed to create demo session")
			}

			console := &demoConsole{
				store:     store,
				exports:   exportsUC,
				sessionID: model.SessionID(sessionID),
				out:       c.Root().Writer,
				spin:      spinner.New(spinner.CharSets[14], 100*time.Millisecond),
			}

			if seed {
				if err := console.seed(ctx); err != nil {
					return goerr.Wrap(err, "failed to seed demo session")
				}
			}

			return console.run(ctx)
		},
	}
}

type demoConsole struct {
	store     *capture.Store
	exports   *exports.UseCase
	sessionID model.SessionID
	out       io.Writer
	spin      *spinner.Spinner
}

// busy shows the spinner while a collaborator call runs.
func (d *demoConsole) busy(label string, fn func() error) error {
	d.spin.Suffix = " " + label
	d.spin.Start()
	err := fn()
	d.spin.Stop()
	return err
}

func (d *demoConsole) seed(ctx context.Context) error {
	for _, utterance := range demoUtterances {
		if err := d.busy("transcribing...", func() error {
			_, err := d.store.AppendTranscript(ctx, d.sessionID, utterance)
			return err
		}); err != nil {
			return err
		}
	}

	session, err := d.store.Get(d.sessionID)
	if err != nil {
		return err
	}

	seen := map[model.SpeakerID]bool{}
	var discovered []model.SpeakerID
	for _, segment := range session.Segments {
		if !seen[segment.Speaker] {
			seen[segment.Speaker] = true
			discovered = append(discovered, segment.Speaker)
		}
	}
	sort.Slice(discovered, func(i, j int) bool { return discovered[i] < discovered[j] })

	for i, speaker := range discovered {
		if i >= len(demoSpeakerNames) {
			break
		}
		if _, err := d.store.Label(d.sessionID, speaker, demoSpeakerNames[i]); err != nil {
			return err
		}
	}

	fmt.Fprintf(d.out, "Seeded %d utterances across %d speakers\n", len(demoUtterances), len(discovered))
	return nil
}

func (d *demoConsole) run(ctx context.Context) error {
	rl, err := readline.New("giji> ")
	if err != nil {
		return goerr.Wrap(err, "failed to open console")
	}
	defer rl.Close()

	fmt.Fprintf(d.out, "Session %q ready. Type 'help' for commands, 'quit' to leave.\n", d.sessionID)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read console input")
		}

		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}

		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}

		if err := d.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Fprintf(d.out, "error: %s\n", err.Error())
		}
	}
}

func (d *demoConsole) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		d.printHelp()
		return nil
	case "append":
		return d.cmdAppend(ctx, args)
	case "label":
		return d.cmdLabel(args)
	case "forget":
		return d.cmdForget(args)
	case "audio":
		return d.cmdAudio(args)
	case "process":
		return d.cmdProcess(ctx, args)
	case "summary":
		return d.cmdSummary(ctx, args)
	case "export":
		return d.cmdExport(ctx)
	case "store":
		return d.cmdStore(ctx)
	case "search":
		return d.cmdSearch(args)
	case "meta":
		return d.cmdMeta(args)
	default:
		return goerr.New("unknown command", goerr.V("command", command))
	}
}

func (d *demoConsole) printHelp() {
	fmt.Fprint(d.out, `Commands:
  append <text>              transcribe and diarize an utterance
  label <speaker> <name>     set a speaker display name
  forget <speaker> [text]    redact a speaker's segments
  audio <v1> <v2> ...        append samples to the audio buffer
  process [threshold] [run]  run VAD over the buffer and ingest speech
  summary [max-points]       summarize the timeline
  export                     print the export manifest
  store                      persist the export manifest
  search <query>             substring search over segments
  meta title <text>          update the session title
  meta agenda <a,b,c>        update the agenda
  quit                       leave the console
`)
}

func (d *demoConsole) cmdAppend(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return goerr.New("usage: append <text>")
	}

	var result *capture.AppendResult
	if err := d.busy("transcribing...", func() error {
		var err error
		result, err = d.store.AppendTranscript(ctx, d.sessionID, strings.Join(args, " "))
		return err
	}); err != nil {
		return err
	}

	for _, segment := range result.Appended {
		fmt.Fprintf(d.out, "[%s] %s\n", segment.Speaker, segment.Text)
	}
	if len(result.NewSpeakers) > 0 {
		fmt.Fprintf(d.out, "new speakers: %s\n", joinSpeakers(result.NewSpeakers))
	}
	return nil
}

func (d *demoConsole) cmdLabel(args []string) error {
	if len(args) < 2 {
		return goerr.New("usage: label <speaker> <name>")
	}

	speaker := model.SpeakerID(args[0])
	name := strings.Join(args[1:], " ")
	if _, err := d.store.Label(d.sessionID, speaker, name); err != nil {
		return err
	}

	fmt.Fprintf(d.out, "labeled %s as %s\n", speaker, name)
	return nil
}

func (d *demoConsole) cmdForget(args []string) error {
	if len(args) == 0 {
		return goerr.New("usage: forget <speaker> [replacement]")
	}

	redaction := ""
	if len(args) > 1 {
		redaction = strings.Join(args[1:], " ")
	}

	result, err := d.store.Forget(d.sessionID, model.SpeakerID(args[0]), redaction)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.out, "scrubbed %d segments\n", result.Scrubbed)
	return nil
}

func (d *demoConsole) cmdAudio(args []string) error {
	if len(args) == 0 {
		return goerr.New("usage: audio <v1> <v2> ...")
	}

	samples := make([]float64, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return goerr.Wrap(err, "invalid sample", goerr.V("sample", arg))
		}
		samples = append(samples, v)
	}

	buffered, err := d.store.AppendAudio(d.sessionID, samples, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(d.out, "buffered %d samples\n", buffered)
	return nil
}

func (d *demoConsole) cmdProcess(ctx context.Context, args []string) error {
	threshold := vad.DefaultThreshold
	minRun := vad.DefaultMinRun

	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return goerr.Wrap(err, "invalid threshold", goerr.V("threshold", args[0]))
		}
		threshold = v
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return goerr.Wrap(err, "invalid min run", goerr.V("min_run", args[1]))
		}
		minRun = v
	}

	var result *capture.ProcessResult
	if err := d.busy("processing buffer...", func() error {
		var err error
		result, err = d.store.ProcessBuffer(ctx, d.sessionID, capture.ProcessInput{
			Threshold:   threshold,
			MinRun:      minRun,
			ClearBuffer: true,
		})
		return err
	}); err != nil {
		return err
	}

	if !result.Triggered {
		fmt.Fprintf(d.out, "no speech detected (%d samples buffered)\n", result.Buffered)
		return nil
	}

	fmt.Fprintf(d.out, "detected %d speech spans\n", len(result.Spans))
	for _, segment := range result.Segments {
		fmt.Fprintf(d.out, "[%s] %s\n", segment.Speaker, segment.Text)
	}
	return nil
}

func (d *demoConsole) cmdSummary(ctx context.Context, args []string) error {
	maxPoints := 0
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return goerr.Wrap(err, "invalid max points", goerr.V("max_points", args[0]))
		}
		maxPoints = v
	}

	var summary *model.Summary
	if err := d.busy("summarizing...", func() error {
		var err error
		summary, err = d.store.Summary(ctx, d.sessionID, maxPoints)
		return err
	}); err != nil {
		return err
	}

	fmt.Fprintf(d.out, "highlight: %s\n", summary.Highlight)
	for _, point := range summary.BulletPoints {
		fmt.Fprintf(d.out, "- %s\n", point)
	}
	return nil
}

func (d *demoConsole) cmdExport(ctx context.Context) error {
	var export *model.Export
	if err := d.busy("deriving export...", func() error {
		var err error
		export, err = d.store.Export(ctx, d.sessionID)
		return err
	}); err != nil {
		return err
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to encode export")
	}
	fmt.Fprintf(d.out, "%s\n", data)
	return nil
}

func (d *demoConsole) cmdStore(ctx context.Context) error {
	var result *exports.StoreResult
	if err := d.busy("persisting export...", func() error {
		var err error
		result, err = d.exports.Store(ctx, d.sessionID)
		return err
	}); err != nil {
		return err
	}

	fmt.Fprintf(d.out, "saved to %s\n", result.SavedPath)
	return nil
}

func (d *demoConsole) cmdSearch(args []string) error {
	if len(args) == 0 {
		return goerr.New("usage: search <query>")
	}

	results, err := d.store.Search(d.sessionID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintf(d.out, "no matches\n")
		return nil
	}
	for _, record := range results {
		label := string(record.Speaker)
		if record.SpeakerLabel != nil {
			label = *record.SpeakerLabel
		}
		fmt.Fprintf(d.out, "[%s] %s\n", label, record.Text)
	}
	return nil
}

func (d *demoConsole) cmdMeta(args []string) error {
	if len(args) < 2 {
		return goerr.New("usage: meta title <text> | meta agenda <a,b,c>")
	}

	var (
		session *model.Session
		err     error
	)
	switch args[0] {
	case "title":
		title := strings.Join(args[1:], " ")
		session, err = d.store.UpdateMetadata(d.sessionID, &title, nil)
	case "agenda":
		agenda := strings.Split(strings.Join(args[1:], " "), ",")
		for i := range agenda {
			agenda[i] = strings.TrimSpace(agenda[i])
		}
		session, err = d.store.UpdateMetadata(d.sessionID, nil, &agenda)
	default:
		return goerr.New("usage: meta title <text> | meta agenda <a,b,c>")
	}
	if err != nil {
		return err
	}

	metadata, err := json.Marshal(session.Metadata())
	if err != nil {
		return goerr.Wrap(err, "failed to encode metadata")
	}
	fmt.Fprintf(d.out, "%s\n", metadata)
	return nil
}

func joinSpeakers(speakers []model.SpeakerID) string {
	parts := make([]string, len(speakers))
	for i, speaker := range speakers {
		parts[i] = string(speaker)
	}
	return strings.Join(parts, ", ")
}
