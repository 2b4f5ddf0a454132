package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/core/async"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
	"github.com/joseph-ayodele/docbatch/internal/ingest"
)

type watchOptions struct {
	op          string
	opts        []string
	dir         string
	out         string
	concurrency int
	debounce    time.Duration
	existing    bool
}

func newWatchCommand(g *globalOptions) *cobra.Command {
	o := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Args:  cobra.NoArgs,
		Short: "Apply a single-file operation to every file that appears in a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), g, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.op, "op", "", "single-input operation: split, pdf-to-images, resize, format-convert, filter")
	f.StringArrayVar(&o.opts, "opt", nil, "operation option as key=value (repeatable)")
	f.StringVar(&o.dir, "dir", "", "directory to watch (recursive)")
	f.StringVar(&o.out, "out", "", "output directory")
	f.IntVar(&o.concurrency, "concurrency", 0, "worker count per batch (0 = configured default)")
	f.DurationVar(&o.debounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
	f.BoolVar(&o.existing, "existing", false, "also process files already in the directory")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("dir")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (o *watchOptions) run(ctx context.Context, g *globalOptions, w io.Writer) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	op, err := parseOperation(o.op)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}
	if op.Arity().Max != 1 {
		return &ExitError{Code: exitInvalid, Err: fmt.Errorf("watch needs a single-input operation, %s takes several", op)}
	}
	options, err := parseOptions(o.opts)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	outAbs, _ := filepath.Abs(o.out)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedOpts := []async.Option{async.WithDefaultConcurrency(cfg.Engine.Concurrency)}
	if db, store, err := openStore(ctx, cfg, logger); err != nil {
		logger.Warn("history store unavailable, continuing without it", "error", err)
	} else {
		defer db.Close()
		schedOpts = append(schedOpts, async.WithOutcomeStore(store))
	}
	registry, err := backend.Defaults(cfg.Tools, backend.ExecRunner{}, logger)
	if err != nil {
		return err
	}
	sched := async.NewScheduler(registry, logger, schedOpts...)
	defer sched.Shutdown(context.Background())

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{o.dir},
		AllowedExts: constants.InputExtensions(op),
		InitialScan: o.existing,
		Debounce:    o.debounce,
		Logger:      logger,
		// never feed our own outputs back in
		Ignore: func(p string) bool {
			abs, err := filepath.Abs(p)
			return err == nil && (abs == outAbs || strings.HasPrefix(abs, outAbs+string(filepath.Separator)))
		},
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "watching %s for %s, writing to %s\n", o.dir, op, o.out)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok {
				logger.Warn("watch error", "error", err)
			}
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			jobs, err := ingest.Plan(op, []string{p}, o.out, options)
			if err != nil {
				return &ExitError{Code: exitInvalid, Err: err}
			}
			handle, err := sched.Submit(ctx, entity.BatchSpec{Label: "watch " + filepath.Base(p), Concurrency: o.concurrency, Jobs: jobs})
			if err != nil {
				logger.Warn("file rejected", "path", p, "error", err)
				continue
			}
			go o.report(w, sched, handle)
		}
	}
}

func (o *watchOptions) report(w io.Writer, sched *async.Scheduler, handle entity.BatchHandle) {
	snap, err := sched.Wait(context.Background(), handle.ID)
	if err != nil {
		return
	}
	for i, out := range snap.Outcomes() {
		printEvent(w, entity.Event{Type: constants.EventForState(out.State), Outcome: &out}, i+1, snap.Total)
	}
	_ = sched.Release(handle.ID)
}
