// Command finsheet builds normalized multi-year financial datasets from Capital IQ.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/finsheet/api"
	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/logger"
	"github.com/seenimoa/finsheet/internal/pipeline"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/internal/trace"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set up before every command.
var (
	cfg *config.Config
	log *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finsheet",
	Short: "finsheet — normalized financial datasets from Capital IQ",
	Long: `finsheet fetches company financials from the Capital IQ client service,
resolves their inconsistent period encodings onto fiscal years, rescales
values to millions and derives ratios, moving averages and trend statistics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if l, _ := cmd.Flags().GetString("log-level"); l != "" {
			level = l
		}
		log, err = logger.New(logger.Config{Level: level, Format: cfg.Logging.Format})
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		zap.ReplaceGlobals(log)

		if err := trace.Init(cfg.Tracing.Enabled, version); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = trace.Shutdown(context.Background())
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("finsheet %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.HasCIQCredentials(cfg) {
			log.Warn("CIQ credentials not set; dataset requests will fail with 503")
		}
		tr, name, err := buildTransport(cmd, false)
		if err != nil {
			return err
		}
		st, err := openStore(false)
		if err != nil {
			return err
		}

		opts := []api.Option{api.WithLogger(log), api.WithVersion(version)}
		pipeOpts := []pipeline.Option{pipeline.WithLogger(log), pipeline.WithProviderName(name)}
		if st != nil {
			defer st.Close()
			opts = append(opts, api.WithRunStore(st))
			pipeOpts = append(pipeOpts, pipeline.WithRecorder(st))
		}
		srv := api.NewServer(cfg, pipeline.New(tr, pipeOpts...), opts...)

		port := cfg.API.Port
		if p, _ := cmd.Flags().GetInt("port"); p > 0 {
			port = p
		}
		addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(port))
		fmt.Printf("🌐 Starting finsheet API server on %s\n", addr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (default: api.port from config)")
	serveCmd.Flags().String("provider", "", "transport provider (default: ciq)")
	serveCmd.Flags().String("replay-file", "", "serve from recorded replies instead of a live provider")
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  finsheet — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    CIQ Endpoint:  %s\n", cfg.CIQ.BaseURL)
		fmt.Printf("    Batch Size:    %d (timeout %ds, %d req/s)\n", cfg.CIQ.BatchSize, cfg.CIQ.TimeoutSec, cfg.CIQ.RequestsPerSecond)
		fmt.Printf("    Years:         %d (+%d forward)\n", cfg.Pipeline.Years, cfg.Pipeline.ForwardYears)
		fmt.Printf("    Ratios/Trend:  %t / %t (MA %v, window %d)\n", cfg.Pipeline.EnableRatios, cfg.Pipeline.EnableTrend, cfg.Pipeline.MAWindows, cfg.Pipeline.TrendWindow)
		store := "disabled"
		if cfg.Store.Enabled {
			store = cfg.Store.Path
		}
		fmt.Printf("    Run Store:     %s\n", store)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Tracing:       %t\n", cfg.Tracing.Enabled)
		fmt.Println()

		fmt.Println("  Providers:")
		if err := registerProviders(); err != nil {
			return err
		}
		def, _ := provider.Global().Default()
		for _, info := range provider.Global().List() {
			marker := " "
			if info.Name == def {
				marker = "*"
			}
			fmt.Printf("   %s %-10s %s\n", marker, info.Name, info.Description)
		}
		fmt.Println()

		fmt.Println("  Credentials:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
