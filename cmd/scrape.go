package cmd

import (
	"context"
	"fmt"

	"odyssey-archiver/core/config"
	"odyssey-archiver/core/database"
	"odyssey-archiver/core/logger"
	"odyssey-archiver/core/storage"
	"odyssey-archiver/feature/archive/reddit"
	"odyssey-archiver/feature/archive/runner"
	"odyssey-archiver/feature/archive/snapshot"
	"odyssey-archiver/feature/archive/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for scrape command
	scrapeRunType     string
	scrapeDryRun      bool
	scrapeThreadLimit int
)

// scrapeCmd performs one full reconciliation sweep of the subreddit.
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Sweep the subreddit and reconcile every comment tree",
	Long: `Sweep every thread of the configured subreddit and reconcile the live
comment trees against the archive.

Each sweep records exactly one run log entry. A transient fetch failure
retries the whole sweep once; a write failure aborts immediately.

Examples:
  # First full backfill of the subreddit
  scrape --run-type initial

  # Recurring incremental sweep
  scrape --run-type scheduled

  # Count what would change without touching the database
  scrape --run-type scheduled --dry-run

  # Debug a single thread
  scrape --run-type scheduled --thread-limit 1`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeRunType, "run-type", "", "Run kind to record: initial or scheduled")
	scrapeCmd.Flags().BoolVar(&scrapeDryRun, "dry-run", false, "Fetch and count only; no writes, no run log")
	scrapeCmd.Flags().IntVar(&scrapeThreadLimit, "thread-limit", 0, "Process at most N threads (0 = no limit)")
	_ = scrapeCmd.MarkFlagRequired("run-type")

	RootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	l.Info("Starting subreddit sweep",
		zap.String("subreddit", cfg.Reddit.Subreddit),
		zap.String("run_type", scrapeRunType),
		zap.Bool("dry_run", scrapeDryRun),
	)

	source := reddit.NewClient(cfg.Reddit, l)

	opts := []runner.Option{
		runner.WithThreadLimit(scrapeThreadLimit),
	}

	// Dry runs never open a database connection.
	var st runner.Store
	if scrapeDryRun {
		opts = append(opts, runner.WithDryRun())
	} else {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		st = store.New(db)

		if cfg.Snapshot.Enabled {
			client, err := storage.NewClient(cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to connect to storage: %w", err)
			}
			opts = append(opts, runner.WithSnapshots(
				snapshot.New(client, cfg.Storage.Bucket, cfg.Snapshot.Prefix),
			))
		}
	}

	r := runner.New(source, st, l, opts...)
	result, err := r.Run(ctx, scrapeRunType)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	l.Info("Sweep finished", zap.String("summary", result.Summary.String()))
	return nil
}
