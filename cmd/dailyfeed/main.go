package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/engine"
	"github.com/gyeonginblue/dailyfeed/internal/fetcher"
	"github.com/gyeonginblue/dailyfeed/internal/media"
	"github.com/gyeonginblue/dailyfeed/internal/sources"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "dailyfeed",
		Short: "Daily municipal news update",
		Long: `dailyfeed collects press releases and local news from Gyeonggi and Incheon
government sites, feeds and news search, and publishes them to the article
store. Run without arguments to perform one update.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runUpdate,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runUpdate performs one daily update run.
func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	srcs, err := sources.Select(sources.Registry(cfg, time.Now()), cfg.Run.Sources)
	if err != nil {
		return err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer httpFetcher.Close()

	ledger, err := storage.NewLedger(&cfg.Ledger, logger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.Error("ledger close error", "error", err)
		}
	}()

	downloader := media.NewDownloader(cfg, logger)

	eng := engine.New(cfg, logger)
	eng.SetSources(srcs)
	eng.SetFetcher(httpFetcher)
	eng.SetStore(storage.NewPocketBase(&cfg.Store, logger))
	eng.SetImages(downloader)
	eng.SetLedger(ledger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := eng.Run(ctx)
	if err != nil {
		logger.Error("daily update aborted", "error", err)
		return err
	}

	logger.Debug("image downloads", "stats", downloader.Stats())
	if verbose {
		fmt.Fprintf(os.Stderr, "\nrun %s finished in %s\n", report.RunID, report.Elapsed.Round(time.Millisecond))
		report.Stats.WriteText(os.Stderr)
	}
	return nil
}

// sourcesCmd prints the source registry.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			srcs, err := sources.Select(sources.Registry(cfg, time.Now()), cfg.Run.Sources)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTAG\tSTRATEGY\tRENDERING\tSTATUS\tURL")
			for _, s := range srcs {
				status := "ok"
				if s.Skip != nil {
					status = "skipped: " + s.Skip.Error()
				}
				strategy := s.Strategy()
				if s.Custom != nil {
					strategy += "/" + s.Custom.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n", s.Name, s.Tag, strategy, s.Rendering, status, s.ListingURL)
			}
			return w.Flush()
		},
	}
}

// configCmd prints the resolved configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fetcher:\n")
			fmt.Fprintf(out, "  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Fprintf(out, "  Accept-Language:   %s\n", cfg.Fetcher.AcceptLanguage)
			fmt.Fprintf(out, "  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Fprintf(out, "\nBrowser:\n")
			fmt.Fprintf(out, "  Enabled:           %v\n", cfg.Browser.Enabled)
			fmt.Fprintf(out, "  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Fprintf(out, "  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Fprintf(out, "  Navigation:        %s (idle %s, settle %s)\n", cfg.Browser.NavTimeout, cfg.Browser.IdleWindow, cfg.Browser.SettleDelay)
			fmt.Fprintf(out, "\nRun:\n")
			fmt.Fprintf(out, "  Row Cap:           %d\n", cfg.Run.RowCap)
			fmt.Fprintf(out, "  Item Cap:          %d\n", cfg.Run.ItemCap)
			fmt.Fprintf(out, "  Delays:            item %s, source %s\n", cfg.Run.ItemDelay, cfg.Run.SourceDelay)
			fmt.Fprintf(out, "  Dedup Prefix:      %d chars\n", cfg.Run.DedupPrefix)
			fmt.Fprintf(out, "  Image Bytes:       %d..%d\n", cfg.Run.ImageMinBytes, cfg.Run.ImageMaxBytes)
			fmt.Fprintf(out, "  Sources:           %s\n", orAll(cfg.Run.Sources))
			fmt.Fprintf(out, "\nStore:\n")
			fmt.Fprintf(out, "  Base URL:          %s\n", cfg.Store.BaseURL)
			fmt.Fprintf(out, "  Collection:        %s (image field %s)\n", cfg.Store.Collection, cfg.Store.ImageField)
			fmt.Fprintf(out, "  Auth Token:        %s\n", mask(cfg.Store.AuthToken))
			fmt.Fprintf(out, "\nCategories:\n")
			for _, key := range []string{"politics", "economy", "society", "culture", "sports", "it"} {
				fmt.Fprintf(out, "  %-18s %s\n", key+":", cfg.Categories[key])
			}
			fmt.Fprintf(out, "\nLedger:\n")
			fmt.Fprintf(out, "  Type:              %s\n", cfg.Ledger.Type)
			fmt.Fprintf(out, "\nNews Search:\n")
			fmt.Fprintf(out, "  Client ID:         %s\n", mask(cfg.Naver.ClientID))
			fmt.Fprintf(out, "  Display:           %d\n", cfg.Naver.Display)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dailyfeed %s\n", config.Version)
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func orAll(names []string) string {
	if len(names) == 0 {
		return "all"
	}
	return strings.Join(names, ", ")
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "****"
}
