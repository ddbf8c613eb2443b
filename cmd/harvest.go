package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adsync-cli/internal/auth"
	"github.com/sells-group/adsync-cli/internal/quora"
	"github.com/sells-group/adsync-cli/internal/ratelimit"
	"github.com/sells-group/adsync-cli/internal/resilience"
	"github.com/sells-group/adsync-cli/internal/sink"
	"github.com/sells-group/adsync-cli/internal/warehouse"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest ad metrics and merge them into the warehouse",
	Long: `Harvest runs the full pipeline: refresh credentials, resolve the
account's campaigns and ads, fetch the last 30 days of per-ad daily
metrics, write the NDJSON artifact, and merge it into the target table
by composite key.

Per-campaign and per-ad fetch failures are logged and skipped; only a
credential failure or a staging-load failure aborts the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "harvest"))

		resultsFile, _ := cmd.Flags().GetString("results-file")
		if resultsFile == "" {
			resultsFile = cfg.Harvest.ResultsFile
		}

		// AuthError: fatal before any fetch begins.
		provider := auth.NewOAuthProvider(cfg.Quora.TokenURL, &auth.FileSecretStore{Path: cfg.Auth.SecretFile})
		creds, err := provider.Refresh(ctx)
		if err != nil {
			return eris.Wrap(err, "harvest: refresh credentials")
		}

		pool, err := warehouse.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		wh := warehouse.New(pool, cfg.Store.Schema)
		if err := wh.EnsureSchema(ctx); err != nil {
			return err
		}

		runLog := warehouse.NewRunLog(wh)
		runID, err := runLog.Start(ctx)
		if err != nil {
			return err
		}

		staged, stats, err := runHarvest(ctx, creds, resultsFile, wh)
		if err != nil {
			if logErr := runLog.Fail(ctx, runID, err.Error()); logErr != nil {
				log.Error("failed to record run failure", zap.Error(logErr))
			}
			return err
		}

		if err := runLog.Complete(ctx, runID, warehouse.RunStats{
			Requests:   stats.Requests,
			Campaigns:  stats.Campaigns,
			Ads:        stats.Ads,
			RowsLoaded: staged,
		}); err != nil {
			log.Error("failed to record run completion", zap.Error(err))
		}

		fmt.Printf("Harvest complete: %d campaigns, %d ads, %d rows staged, %d requests\n",
			stats.Campaigns, stats.Ads, staged, stats.Requests)
		return nil
	},
}

func runHarvest(ctx context.Context, creds auth.Credentials, resultsFile string, wh *warehouse.Warehouse) (int64, quora.Stats, error) {
	limiter := ratelimit.New(cfg.Limiter.Capacity, cfg.Limiter.Window)
	client := quora.NewClient(creds, limiter, quora.ClientOptions{
		BaseURL: cfg.Quora.BaseURL,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Multiplier:     cfg.Retry.Multiplier,
			JitterFraction: cfg.Retry.JitterFraction,
		},
	})

	harvester := quora.NewHarvester(client, creds.AccountID)
	harvester.Workers = cfg.Harvest.Workers

	records, stats, err := harvester.Harvest(ctx)
	if err != nil {
		return 0, stats, eris.Wrap(err, "harvest: fetch")
	}

	if err := sink.WriteLines(records, resultsFile); err != nil {
		return 0, stats, err
	}

	loader := warehouse.NewLoader(wh, cfg.Store.TargetTable, cfg.Store.StagingTable)
	staged, err := loader.Load(ctx, resultsFile)
	if err != nil {
		return 0, stats, err
	}
	return staged, stats, nil
}

func init() {
	harvestCmd.Flags().String("results-file", "", "path for the NDJSON artifact (default from config)")
	rootCmd.AddCommand(harvestCmd)
}
