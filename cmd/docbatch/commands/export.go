package commands

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docbatch/internal/export"
)

func newExportCommand(g *globalOptions) *cobra.Command {
	var batchID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Args:  cobra.NoArgs,
		Short: "Write the XLSX report of a recorded batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batchID == "" {
				return &ExitError{Code: exitInvalid, Err: errNoBatch}
			}
			id, err := uuid.Parse(batchID)
			if err != nil {
				return &ExitError{Code: exitInvalid, Err: fmt.Errorf("--batch must be a UUID")}
			}
			ctx := cmd.Context()
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			db, store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := export.NewService(store, logger).BatchXLSX(ctx, id)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&batchID, "batch", "", "batch id")
	cmd.Flags().StringVar(&out, "out", "report.xlsx", "output path")
	return cmd
}
