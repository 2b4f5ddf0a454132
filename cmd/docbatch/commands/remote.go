package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docbatch/internal/entity"
	"github.com/joseph-ayodele/docbatch/internal/server"
)

type remoteOptions struct {
	addr    string
	batchID string
	follow  bool
}

func (o *remoteOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "daemon gRPC address (default from config)")
	cmd.Flags().StringVar(&o.batchID, "batch", "", "batch id")
}

func (o *remoteOptions) dial(g *globalOptions) (*server.Client, uuid.UUID, error) {
	if o.batchID == "" {
		return nil, uuid.Nil, &ExitError{Code: exitInvalid, Err: errNoBatch}
	}
	id, err := uuid.Parse(o.batchID)
	if err != nil {
		return nil, uuid.Nil, &ExitError{Code: exitInvalid, Err: fmt.Errorf("--batch must be a UUID")}
	}
	addr := o.addr
	if addr == "" {
		cfg, _, err := g.load()
		if err != nil {
			return nil, uuid.Nil, err
		}
		addr = cfg.Server.GRPCAddr
	}
	c, err := server.Dial(addr)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return c, id, nil
}

func newStatusCommand(g *globalOptions) *cobra.Command {
	o := &remoteOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Args:  cobra.NoArgs,
		Short: "Show a daemon batch's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, id, err := o.dial(g)
			if err != nil {
				return err
			}
			defer c.Close()
			return o.status(cmd.Context(), c, id, cmd.OutOrStdout())
		},
	}
	o.bind(cmd)
	cmd.Flags().BoolVar(&o.follow, "follow", false, "stream events until the batch completes")
	return cmd
}

func (o *remoteOptions) status(ctx context.Context, c *server.Client, id uuid.UUID, w io.Writer) error {
	if o.follow {
		done := 0
		err := c.Subscribe(ctx, id, func(ev entity.Event) error {
			if ev.Type.Terminal() {
				done++
				printEvent(w, ev, done, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	snap, err := c.Snapshot(cctx, id)
	if err != nil {
		return err
	}
	state := "running"
	if snap.Done {
		state = "done"
	}
	fmt.Fprintf(w, "batch %s %s: %d queued, %d running\n", snap.BatchID, state, snap.Queued, snap.Running)
	printSummary(w, snap)
	return nil
}

func newCancelCommand(g *globalOptions) *cobra.Command {
	o := &remoteOptions{}
	cmd := &cobra.Command{
		Use:   "cancel",
		Args:  cobra.NoArgs,
		Short: "Request cancellation of a daemon batch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, id, err := o.dial(g)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := c.Cancel(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancel requested for %s\n", id)
			return nil
		},
	}
	o.bind(cmd)
	return cmd
}
