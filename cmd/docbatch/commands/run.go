package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/core/async"
	"github.com/joseph-ayodele/docbatch/internal/core/backend"
	"github.com/joseph-ayodele/docbatch/internal/entity"
	"github.com/joseph-ayodele/docbatch/internal/export"
	"github.com/joseph-ayodele/docbatch/internal/ingest"
)

type runOptions struct {
	op          string
	opts        []string
	out         string
	dir         string
	label       string
	concurrency int
	timeout     time.Duration
	report      string
	noHistory   bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [files...]",
		Short: "Run one operation over a set of files",
		Example: `  docbatch run --op resize --opt width=800 --opt height=600 --out out/ --dir in/
  docbatch run --op merge --out out/ a.pdf b.pdf c.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd.Context(), g, cmd.OutOrStdout(), args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.op, "op", "", "operation: merge, split, pdf-to-word, pdf-to-images, image-to-pdf, resize, format-convert, filter")
	f.StringArrayVar(&o.opts, "opt", nil, "operation option as key=value (repeatable)")
	f.StringVar(&o.out, "out", "", "output directory")
	f.StringVar(&o.dir, "dir", "", "read inputs from this directory")
	f.StringVar(&o.label, "label", "", "batch label")
	f.IntVar(&o.concurrency, "concurrency", 0, "worker count (0 = configured default)")
	f.DurationVar(&o.timeout, "timeout", 0, "cancel the batch after this long")
	f.StringVar(&o.report, "report", "", "write an XLSX report to this path")
	f.BoolVar(&o.noHistory, "no-history", false, "do not record the batch in the history store")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (o *runOptions) run(ctx context.Context, g *globalOptions, w io.Writer, args []string) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	op, err := parseOperation(o.op)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}
	options, err := parseOptions(o.opts)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}
	inputs, err := collectInputs(op, args, o.dir)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	jobs, err := ingest.Plan(op, inputs, o.out, options)
	if err != nil {
		return &ExitError{Code: exitInvalid, Err: err}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	schedOpts := []async.Option{async.WithDefaultConcurrency(cfg.Engine.Concurrency)}
	if !o.noHistory {
		db, store, err := openStore(ctx, cfg, logger)
		if err != nil {
			logger.Warn("history store unavailable, continuing without it", "error", err)
		} else {
			defer db.Close()
			schedOpts = append(schedOpts, async.WithOutcomeStore(store))
		}
	}

	registry, err := backend.Defaults(cfg.Tools, backend.ExecRunner{}, logger)
	if err != nil {
		return err
	}
	sched := async.NewScheduler(registry, logger, schedOpts...)
	defer sched.Shutdown(context.Background())

	handle, err := sched.Submit(ctx, entity.BatchSpec{Label: o.label, Concurrency: o.concurrency, Jobs: jobs})
	if err != nil {
		if es, ok := common.AsValidationErrors(err); ok {
			printValidation(w, es)
			return &ExitError{Code: exitInvalid}
		}
		return err
	}
	fmt.Fprintf(w, "batch %s: %d job(s) %s\n", handle.ID, len(handle.JobIDs), op)

	// cancellation is batch scoped: interrupts and --timeout both request it
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			_ = sched.RequestCancel(handle.ID)
		case <-finished:
		}
	}()
	if o.timeout > 0 {
		t := time.AfterFunc(o.timeout, func() {
			logger.Warn("batch timed out, cancelling", "batch_id", handle.ID, "timeout", o.timeout)
			_ = sched.RequestCancel(handle.ID)
		})
		defer t.Stop()
	}

	events, err := sched.Subscribe(context.Background(), handle.ID)
	if err != nil {
		return err
	}
	total := len(handle.JobIDs)
	done := 0
	for ev := range events {
		if ev.Type.Terminal() {
			done++
			printEvent(w, ev, done, total)
		}
	}

	snap, err := sched.Snapshot(handle.ID)
	if err != nil {
		return err
	}
	printSummary(w, snap)

	if o.report != "" {
		if err := writeReport(o.report, snap, logger); err != nil {
			return err
		}
	}
	if snap.Failed > 0 {
		return &ExitError{Code: exitFailedJobs}
	}
	return nil
}

func printEvent(w io.Writer, ev entity.Event, done, total int) {
	out := ev.Outcome
	if out == nil {
		return
	}
	counter := fmt.Sprintf("[%d/%d]", done, total)
	if total <= 0 {
		counter = fmt.Sprintf("[%d]", done)
	}
	switch ev.Type {
	case constants.EventSucceeded:
		artifact := out.Artifact
		if artifact == "" {
			artifact = fmt.Sprintf("%s (%d files)", out.Output, len(out.Artifacts))
		}
		fmt.Fprintf(w, "%s ok        %s\n", counter, artifact)
	case constants.EventFailed:
		kind := ""
		if out.Failure != nil {
			kind = string(out.Failure.Kind)
		}
		fmt.Fprintf(w, "%s failed    %s: %s\n", counter, out.Output, kind)
	case constants.EventCancelled:
		fmt.Fprintf(w, "%s cancelled %s\n", counter, out.Output)
	}
}

func printSummary(w io.Writer, snap entity.Snapshot) {
	fmt.Fprintf(w, "\n%d succeeded, %d failed, %d cancelled of %d\n", snap.Succeeded, snap.Failed, snap.Cancelled, snap.Total)
	failures := snap.Failures()
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	table := newTable(w, "JOB", "INPUTS", "KIND", "MESSAGE")
	for _, f := range failures {
		table.Append([]string{strconv.Itoa(f.Seq + 1), strings.Join(f.Inputs, ", "), string(f.Failure.Kind), f.Failure.Message})
	}
	table.Render()
}

func printValidation(w io.Writer, es common.ValidationErrors) {
	fmt.Fprintf(w, "batch rejected, %d problem(s):\n", len(es))
	for _, e := range es {
		fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
	}
}

func writeReport(path string, snap entity.Snapshot, logger *slog.Logger) error {
	b, err := export.SnapshotXLSX(snap)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written", "path", path, "jobs", snap.Total)
	return nil
}

var errNoBatch = errors.New("--batch is required")
