package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/adsync-cli/internal/warehouse"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent harvest runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limit, _ := cmd.Flags().GetInt("limit")

		pool, err := warehouse.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		wh := warehouse.New(pool, cfg.Store.Schema)
		entries, err := warehouse.NewRunLog(wh).Recent(ctx, limit)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No harvest runs recorded")
			return nil
		}

		return formatRunEntries(os.Stdout, entries)
	},
}

func formatRunEntries(out io.Writer, entries []warehouse.RunEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tDURATION\tCAMPAIGNS\tADS\tROWS\tREQUESTS\tERROR")
	for _, e := range entries {
		duration := ""
		if e.CompletedAt != nil {
			duration = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			shortID(e.RunID.String()), e.Status,
			e.StartedAt.Format(time.RFC3339), duration,
			e.Campaigns, e.Ads, e.RowsLoaded, e.Requests, e.Error)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	statusCmd.Flags().Int("limit", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}
