package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var (
		limit   int
		batchID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Args:  cobra.NoArgs,
		Short: "List recorded batches, or the outcomes of one batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd.Context(), g, cmd.OutOrStdout(), limit, batchID)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of batches to list (0 = all)")
	cmd.Flags().StringVar(&batchID, "batch", "", "show the outcomes of this batch")
	return cmd
}

func runHistory(ctx context.Context, g *globalOptions, w io.Writer, limit int, batchID string) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	db, store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if batchID != "" {
		id, err := uuid.Parse(batchID)
		if err != nil {
			return &ExitError{Code: exitInvalid, Err: fmt.Errorf("--batch must be a UUID")}
		}
		outs, err := store.ListOutcomes(ctx, id)
		if err != nil {
			return err
		}
		table := newTable(w, "SEQ", "OPERATION", "STATE", "OUTPUT", "FAILURE", "DURATION")
		for _, o := range outs {
			failure := ""
			if o.Failure != nil {
				failure = fmt.Sprintf("%s: %s", o.Failure.Kind, o.Failure.Message)
			}
			table.Append([]string{strconv.Itoa(o.Seq + 1), string(o.Operation), string(o.State), o.Output, failure,
				o.Duration.Round(time.Millisecond).String()})
		}
		table.Render()
		return nil
	}

	recs, err := store.ListBatches(ctx, limit)
	if err != nil {
		return err
	}
	table := newTable(w, "BATCH", "LABEL", "STATE", "TOTAL", "OK", "FAILED", "CANCELLED", "CREATED")
	for _, r := range recs {
		table.Append([]string{r.ID.String(), r.Label, string(r.State), strconv.Itoa(r.Total), strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed), strconv.Itoa(r.Cancelled), r.CreatedAt.Local().Format(time.DateTime)})
	}
	table.Render()
	return nil
}
