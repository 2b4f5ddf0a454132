package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Source is the subset of the history store a report needs.
type Source interface {
	GetBatch(ctx context.Context, id uuid.UUID) (entity.BatchRecord, error)
	ListOutcomes(ctx context.Context, batchID uuid.UUID) ([]entity.JobOutcome, error)
}

// Service is a tiny façade over the history store that produces XLSX bytes for batch reports.
type Service struct {
	source Source
	logger *slog.Logger
}

func NewService(source Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, logger: logger}
}

// BatchXLSX returns a workbook for a stored batch.
func (s *Service) BatchXLSX(ctx context.Context, batchID uuid.UUID) ([]byte, error) {
	start := time.Now()
	rec, err := s.source.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	outs, err := s.source.ListOutcomes(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	b, err := Workbook(rec, outs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch report written",
		"batch_id", batchID.String(),
		"rows", len(outs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// SnapshotXLSX builds a report from a live snapshot without touching the store.
func SnapshotXLSX(snap entity.Snapshot) ([]byte, error) {
	state := constants.BatchStateRunning
	if snap.Done {
		state = constants.BatchStateCompleted
		if snap.CancelRequested {
			state = constants.BatchStateCancelled
		}
	}
	rec := entity.BatchRecord{
		ID:          snap.BatchID,
		Label:       snap.Label,
		Concurrency: snap.Concurrency,
		Total:       snap.Total,
		State:       state,
		Succeeded:   snap.Succeeded,
		Failed:      snap.Failed,
		Cancelled:   snap.Cancelled,
		CreatedAt:   snap.CreatedAt,
		FinishedAt:  snap.FinishedAt,
	}
	return Workbook(rec, snap.Outcomes())
}

const (
	summarySheet = "Summary"
	jobsSheet    = "Jobs"
)

var jobHeaders = []string{
	"Seq",
	"Operation",
	"Inputs",
	"State",
	"Artifact",
	"Failure Kind",
	"Failure Message",
	"Duration (ms)",
}

// Workbook renders a Summary sheet and a Jobs sheet listing every outcome,
// failures alongside successes.
func Workbook(rec entity.BatchRecord, outs []entity.JobOutcome) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default "Sheet1" becomes the summary
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(jobsSheet); err != nil {
		return nil, err
	}

	finished := ""
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.UTC().Format(time.RFC3339)
	}
	summary := [][2]any{
		{"Batch", rec.ID.String()},
		{"Label", rec.Label},
		{"State", string(rec.State)},
		{"Concurrency", rec.Concurrency},
		{"Total", rec.Total},
		{"Succeeded", rec.Succeeded},
		{"Failed", rec.Failed},
		{"Cancelled", rec.Cancelled},
		{"Created", rec.CreatedAt.UTC().Format(time.RFC3339)},
		{"Finished", finished},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 14)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	for i, h := range jobHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(jobsSheet, cell, h)
	}

	row := 2
	for _, o := range outs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(jobsSheet, cell, v)
		}
		artifact := o.Artifact
		if artifact == "" && len(o.Artifacts) > 0 {
			artifact = fmt.Sprintf("%s (%d files)", o.Output, len(o.Artifacts))
		}
		var kind, msg string
		if o.Failure != nil {
			kind, msg = string(o.Failure.Kind), o.Failure.Message
		}

		write(1, o.Seq+1)
		write(2, string(o.Operation))
		write(3, strings.Join(o.Inputs, "\n"))
		write(4, string(o.State))
		write(5, artifact)
		write(6, kind)
		write(7, truncate(msg, 300))
		write(8, o.Duration.Milliseconds())
		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(jobsSheet, "A", "A", 6)  // seq
	_ = f.SetColWidth(jobsSheet, "B", "B", 16) // operation
	_ = f.SetColWidth(jobsSheet, "C", "C", 60) // inputs
	_ = f.SetColWidth(jobsSheet, "D", "D", 12) // state
	_ = f.SetColWidth(jobsSheet, "E", "E", 60) // artifact
	_ = f.SetColWidth(jobsSheet, "F", "F", 26) // kind
	_ = f.SetColWidth(jobsSheet, "G", "G", 60) // message

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
