package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/adsync-cli/internal/warehouse"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Ensure the warehouse schema and tables exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := warehouse.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		wh := warehouse.New(pool, cfg.Store.Schema)
		if err := wh.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := wh.EnsureTable(ctx, cfg.Store.TargetTable, true); err != nil {
			return err
		}

		fmt.Printf("Schema %s is up to date\n", wh.Schema())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
