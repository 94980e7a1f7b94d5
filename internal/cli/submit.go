package cli

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	crpthttp "github.com/wesleyorama2/crpt/internal/http"
	"github.com/wesleyorama2/crpt/internal/metrics"
	"github.com/wesleyorama2/crpt/internal/output"
	"github.com/wesleyorama2/crpt/internal/registry"
	"github.com/wesleyorama2/crpt/internal/submit"
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Submit documents to the registry",
		Long: `Submit one or more goods-introduction documents (JSON or YAML) to the
registry. Documents are sent concurrently but never faster than the
configured limit allows.

  crpt submit --token $TOKEN --capacity 5 --window 1s docs/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSubmit,
	}

	flags := cmd.Flags()
	flags.String("signature", "", "Document signature sent in the Signature header")
	flags.Int("capacity", 0, "Requests allowed per window")
	flags.Duration("window", 0, "Rate limit window")
	flags.Int("concurrency", 0, "Documents in flight at once")
	flags.String("token", "", "Registry bearer token")
	flags.String("base-url", "", "Registry base URL")
	flags.Bool("no-validate", false, "Skip schema validation before sending")
	flags.StringP("format", "f", "text", "Output format: text, json, yaml")

	return cmd
}

func runSubmit(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := cmd.OutOrStdout()
	formatter := newFormatter(cmd)

	var extra []submit.Option
	if formatter.Verbose && format == output.FormatText {
		var mu sync.Mutex
		extra = append(extra, submit.WithRequestHook(func(req *crpthttp.Request) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprint(out, formatter.FormatRequest(req, cfg.Registry.BaseURL))
		}))
	}

	recorder := metrics.NewRecorder()
	submitter, g, err := submit.FromConfig(cfg, logger, recorder, extra...)
	if err != nil {
		return err
	}

	signature, _ := cmd.Flags().GetString("signature")

	// Files that fail to load keep their slot so results stay in argument order.
	results := make([]submit.Result, len(args))
	var items []submit.Item
	var slots []int
	for i, path := range args {
		doc, err := registry.LoadDocument(path)
		if err != nil {
			recorder.RecordRejected()
			results[i] = submit.Result{Name: path, Err: err, Error: err.Error()}
			continue
		}
		items = append(items, submit.Item{Name: path, Document: doc, Signature: signature})
		slots = append(slots, i)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	for j, res := range submitter.SubmitBatch(ctx, items, cfg.Submit.Concurrency) {
		results[slots[j]] = res
	}

	snap := recorder.Snapshot()
	if format == output.FormatText {
		for _, res := range results {
			fmt.Fprint(out, formatter.FormatResult(res))
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, formatter.FormatSummary(snap, g.Stats(), submitter.BreakerState()))
	} else {
		encoded, err := output.FormatResults(format, output.NewReport(results, snap, g.Stats(), submitter.BreakerState()))
		if err != nil {
			return err
		}
		fmt.Fprint(out, encoded)
	}

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents were not accepted", failed, len(results))
	}
	return nil
}
