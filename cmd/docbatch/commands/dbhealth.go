package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDBHealthCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Args:  cobra.NoArgs,
		Short: "Check the history store connection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			db, store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("opening DB: %w", err)
			}
			defer db.Close()

			if err := db.HealthCheck(ctx, time.Second); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			recs, err := store.ListBatches(ctx, 0)
			if err != nil {
				return fmt.Errorf("listing batches: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s, %d batches)\n", db.Dialect, len(recs))
			return nil
		},
	}
}
