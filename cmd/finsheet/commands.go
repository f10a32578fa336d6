package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/normalize"
	"github.com/seenimoa/finsheet/internal/pipeline"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/internal/providers"
	"github.com/seenimoa/finsheet/internal/providers/replay"
	"github.com/seenimoa/finsheet/internal/report"
	"github.com/seenimoa/finsheet/internal/store"
)

// --- Plan Command ---

var planCmd = &cobra.Command{
	Use:   "plan [ticker]",
	Short: "Print the requests a fetch would send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		reqs, err := pipeline.New(nil).Plan(opts)
		if err != nil {
			return err
		}
		batches := provider.Batches(reqs, opts.BatchSize)
		fmt.Fprintf(os.Stderr, "%d requests in %d batches\n", len(reqs), len(batches))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reqs)
	},
}

// --- Fetch Command ---

var fetchCmd = &cobra.Command{
	Use:   "fetch [ticker]",
	Short: "Fetch and normalize one company's financials",
	Long: `Fetch a company's financials, assemble one record per fiscal year and
optionally derive ratios, moving averages and trend statistics.

Examples:
  finsheet fetch AAPL
  finsheet fetch MSFT --years 10 --ma 3,5 --format markdown
  finsheet fetch IBM --save --raw-csv ibm_raw.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		start := time.Now()
		res, err := p.Run(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if err := writeRawOutputs(cmd, res); err != nil {
			return err
		}
		doc := report.Document{Outcome: res.Outcome, Dataset: res.Dataset, Trends: res.Trends}
		if err := report.Render(os.Stdout, doc, format); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nrun %s: %s, %d values from %d replies in %s\n",
			res.RunID, res.Outcome, res.Dataset.ValueCount(), res.Stats.Replies, report.FormatDuration(time.Since(start)))
		return nil
	},
}

// --- Compare Command ---

var compareCmd = &cobra.Command{
	Use:   "compare [tickerA] [tickerB]",
	Short: "Fetch two companies and merge them by fiscal year",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := optionsFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		b := a
		b.Identifier = args[1]
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		p, cleanup, err := newPipeline(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		res, err := p.Compare(cmd.Context(), a, b)
		if err != nil {
			return err
		}
		return report.Render(os.Stdout, report.Document{Dataset: res.Dataset, Trends: res.Trends}, format)
	},
}

// --- Replay Command ---

var replayCmd = &cobra.Command{
	Use:   "replay [run-id]",
	Short: "Rerun normalization over a stored run's replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(true)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		replies, err := st.Replies(cmd.Context(), run.ID)
		if err != nil {
			return err
		}

		opts, err := optionsFromFlags(cmd, run.Ticker)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("years") {
			opts.Years = run.Years
		}
		if !cmd.Flags().Changed("anchor-year") {
			opts.AnchorYear = run.AnchorYear
		}
		format, err := formatFlag(cmd)
		if err != nil {
			return err
		}

		res, err := pipeline.New(nil, pipeline.WithLogger(log), pipeline.WithProviderName(run.Provider)).
			Normalize(cmd.Context(), replies, opts)
		if err != nil {
			return err
		}
		doc := report.Document{
			Title:   fmt.Sprintf("%s (replay of %s)", run.Ticker, run.ID),
			Outcome: res.Outcome,
			Dataset: res.Dataset,
			Trends:  res.Trends,
		}
		return report.Render(os.Stdout, doc, format)
	},
}

// --- Runs Command ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(true)
		if err != nil {
			return err
		}
		defer st.Close()

		ticker, _ := cmd.Flags().GetString("ticker")
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.Runs(cmd.Context(), ticker, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No stored runs.")
			return nil
		}
		printRuns(os.Stdout, runs)
		return nil
	},
}

var runsRmCmd = &cobra.Command{
	Use:   "rm [run-id]...",
	Short: "Delete stored runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(true)
		if err != nil {
			return err
		}
		defer st.Close()
		for _, id := range args {
			if err := st.DeleteRun(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{planCmd, fetchCmd, compareCmd, replayCmd} {
		addPipelineFlags(c)
	}
	for _, c := range []*cobra.Command{fetchCmd, compareCmd, replayCmd} {
		c.Flags().String("format", "text", "output format: text, markdown, csv, json")
	}
	for _, c := range []*cobra.Command{fetchCmd, compareCmd} {
		c.Flags().String("provider", "", "transport provider (default: ciq)")
		c.Flags().String("replay-file", "", "answer requests from recorded replies (JSON) instead of a live provider")
		c.Flags().Bool("save", false, "archive the run in the store")
	}
	fetchCmd.Flags().String("raw-csv", "", "write flattened raw replies to this CSV file")
	fetchCmd.Flags().String("dump", "", "write raw replies to this JSON file (usable with --replay-file)")

	runsCmd.Flags().String("ticker", "", "only runs for this ticker")
	runsCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	runsCmd.AddCommand(runsRmCmd)
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func addPipelineFlags(c *cobra.Command) {
	c.Flags().Int("years", 0, "historical fiscal years (default: pipeline.years)")
	c.Flags().Int("forward", 0, "forward fiscal years for estimates")
	c.Flags().Int("anchor-year", 0, "current fiscal year (default: this year)")
	c.Flags().Bool("ratios", true, "derive financial ratios")
	c.Flags().Bool("trend", true, "compute trend statistics")
	c.Flags().String("ma", "", "moving-average windows, e.g. 3,5 (default: pipeline.ma_windows)")
	c.Flags().Int("window", 0, "trailing window for the recent trend")
	c.Flags().StringSlice("metrics", nil, "limit moving averages and trends to these columns")
	c.Flags().Int("batch-size", 0, "requests per batch (max 100)")
}

// optionsFromFlags starts from config defaults and applies every flag the
// user set explicitly.
func optionsFromFlags(cmd *cobra.Command, ticker string) (pipeline.Options, error) {
	opts := pipeline.OptionsFromConfig(cfg, ticker)
	f := cmd.Flags()
	if f.Changed("years") {
		opts.Years, _ = f.GetInt("years")
	}
	if f.Changed("forward") {
		opts.ForwardYears, _ = f.GetInt("forward")
	}
	if f.Changed("anchor-year") {
		opts.AnchorYear, _ = f.GetInt("anchor-year")
	}
	if f.Changed("ratios") {
		opts.EnableRatios, _ = f.GetBool("ratios")
	}
	if f.Changed("trend") {
		opts.EnableTrend, _ = f.GetBool("trend")
	}
	if f.Changed("ma") {
		s, _ := f.GetString("ma")
		windows, err := pipeline.ParseWindows(s)
		if err != nil {
			return opts, err
		}
		opts.MAWindows = windows
	}
	if f.Changed("window") {
		opts.TrendWindow, _ = f.GetInt("window")
	}
	if f.Changed("metrics") {
		opts.Metrics, _ = f.GetStringSlice("metrics")
	}
	if f.Changed("batch-size") {
		opts.BatchSize, _ = f.GetInt("batch-size")
	}
	return opts, opts.Validate()
}

func formatFlag(cmd *cobra.Command) (report.Format, error) {
	s, _ := cmd.Flags().GetString("format")
	return report.ParseFormat(s)
}

func registerProviders() error {
	return providers.RegisterAll(cfg)
}

// buildTransport selects the replay file or a registered provider. With
// strict set, missing CIQ credentials are reported before any request.
func buildTransport(cmd *cobra.Command, strict bool) (provider.Transport, string, error) {
	if path, _ := cmd.Flags().GetString("replay-file"); path != "" {
		p, err := replay.LoadFile(path)
		if err != nil {
			return nil, "", err
		}
		log.Info("replaying recorded replies")
		return p, p.Info().Name, nil
	}

	if err := registerProviders(); err != nil {
		return nil, "", fmt.Errorf("register providers: %w", err)
	}
	reg := provider.Global()
	name, _ := cmd.Flags().GetString("provider")
	p, err := reg.Get(name)
	if err != nil {
		return nil, "", err
	}
	name = p.Info().Name
	if strict && name == "ciq" && !config.HasCIQCredentials(cfg) {
		return nil, "", &provider.ErrInvalidCredentials{
			Provider: name,
			Detail:   "set CIQ_USER and CIQ_PASS (or ciq.username / ciq.password)",
		}
	}
	return reg.Transport(name), name, nil
}

// newPipeline wires the transport, logger and, with --save or
// store.enabled, the run store.
func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, func(), error) {
	tr, name, err := buildTransport(cmd, true)
	if err != nil {
		return nil, nil, err
	}
	save, _ := cmd.Flags().GetBool("save")
	st, err := openStore(save)
	if err != nil {
		return nil, nil, err
	}

	opts := []pipeline.Option{pipeline.WithLogger(log), pipeline.WithProviderName(name)}
	cleanup := func() {}
	if st != nil {
		opts = append(opts, pipeline.WithRecorder(st))
		cleanup = func() { st.Close() }
	}
	return pipeline.New(tr, opts...), cleanup, nil
}

// openStore opens the run store when enabled in config or when required.
// It returns nil when the store is neither.
func openStore(required bool) (*store.Store, error) {
	if !cfg.Store.Enabled && !required {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return st, nil
}

func writeRawOutputs(cmd *cobra.Command, res *pipeline.Result) error {
	if path, _ := cmd.Flags().GetString("dump"); path != "" {
		if err := replay.WriteFile(path, res.Replies); err != nil {
			return err
		}
		log.Info("raw replies written to " + path)
	}
	if path, _ := cmd.Flags().GetString("raw-csv"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		if err := report.WriteFlatCSV(f, normalize.Flatten(res.Replies)); err != nil {
			return err
		}
		log.Info("flat records written to " + path)
	}
	return nil
}

func printRuns(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTICKER\tYEARS\tANCHOR\tPROVIDER\tOUTCOME\tREPLIES\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%s\n",
			r.ID, strings.ToUpper(r.Ticker), r.Years, r.AnchorYear, r.Provider, r.Outcome, r.Replies,
			r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
