package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type OutcomeRepository interface {
	CreateBatch(ctx context.Context, rec entity.BatchRecord) error
	FinishBatch(ctx context.Context, rec entity.BatchRecord) error
	SaveOutcome(ctx context.Context, out entity.JobOutcome) error
	GetBatch(ctx context.Context, id uuid.UUID) (entity.BatchRecord, error)
	ListBatches(ctx context.Context, limit int) ([]entity.BatchRecord, error)
	ListOutcomes(ctx context.Context, batchID uuid.UUID) ([]entity.JobOutcome, error)
}

type outcomeRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewOutcomeRepository(db *DB, logger *slog.Logger) OutcomeRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &outcomeRepo{db: db, logger: logger}
}

var batchColumns = []string{
	"id", "label", "concurrency", "total", "state",
	"succeeded", "failed", "cancelled", "created_at", "finished_at",
}

var outcomeColumns = []string{
	"job_id", "batch_id", "seq", "operation", "inputs", "output", "state",
	"artifact", "artifacts", "failure_kind", "failure_message",
	"started_at", "finished_at", "duration_ms",
}

func (r *outcomeRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

func (r *outcomeRepo) exec(ctx context.Context, query string, args []any) error {
	return r.db.Driver.Exec(ctx, query, args, nil)
}

func (r *outcomeRepo) CreateBatch(ctx context.Context, rec entity.BatchRecord) error {
	q, args := r.builder().Insert("batches").
		Columns(batchColumns...).
		Values(rec.ID.String(), rec.Label, rec.Concurrency, rec.Total, string(rec.State),
			rec.Succeeded, rec.Failed, rec.Cancelled, formatTime(rec.CreatedAt), formatTimePtr(rec.FinishedAt)).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create batch", "batch_id", rec.ID, "error", err)
		return common.NewAppError("STORE_ERROR", "create batch", err)
	}
	r.logger.Debug("batch recorded", "batch_id", rec.ID, "total", rec.Total)
	return nil
}

func (r *outcomeRepo) FinishBatch(ctx context.Context, rec entity.BatchRecord) error {
	q, args := r.builder().Update("batches").
		Set("state", string(rec.State)).
		Set("succeeded", rec.Succeeded).
		Set("failed", rec.Failed).
		Set("cancelled", rec.Cancelled).
		Set("finished_at", formatTimePtr(rec.FinishedAt)).
		Where(entsql.EQ("id", rec.ID.String())).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to finish batch", "batch_id", rec.ID, "error", err)
		return common.NewAppError("STORE_ERROR", "finish batch", err)
	}
	r.logger.Debug("batch finalized", "batch_id", rec.ID, "state", rec.State)
	return nil
}

// SaveOutcome upserts by job id.
func (r *outcomeRepo) SaveOutcome(ctx context.Context, out entity.JobOutcome) error {
	inputs, err := json.Marshal(out.Inputs)
	if err != nil {
		return common.NewAppError("STORE_ERROR", "encode inputs", err)
	}
	artifacts := out.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	arts, err := json.Marshal(artifacts)
	if err != nil {
		return common.NewAppError("STORE_ERROR", "encode artifacts", err)
	}
	var kind, msg string
	if out.Failure != nil {
		kind, msg = string(out.Failure.Kind), out.Failure.Message
	}
	q, args := r.builder().Insert("job_outcomes").
		Columns(outcomeColumns...).
		Values(out.JobID.String(), out.BatchID.String(), out.Seq, string(out.Operation), string(inputs), out.Output,
			string(out.State), out.Artifact, string(arts), kind, msg,
			formatTimePtr(out.StartedAt), formatTime(out.FinishedAt), out.Duration.Milliseconds()).
		OnConflict(entsql.ConflictColumns("job_id"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to save outcome", "job_id", out.JobID, "batch_id", out.BatchID, "error", err)
		return common.NewAppError("STORE_ERROR", "save outcome", err)
	}
	return nil
}

func (r *outcomeRepo) GetBatch(ctx context.Context, id uuid.UUID) (entity.BatchRecord, error) {
	q, args := r.builder().Select(batchColumns...).
		From(entsql.Table("batches")).
		Where(entsql.EQ("id", id.String())).
		Query()
	recs, err := r.queryBatches(ctx, q, args)
	if err != nil {
		return entity.BatchRecord{}, err
	}
	if len(recs) == 0 {
		return entity.BatchRecord{}, fmt.Errorf("%w: %s", common.ErrBatchNotFound, id)
	}
	return recs[0], nil
}

// ListBatches returns the most recent batches first. limit <= 0 means all.
func (r *outcomeRepo) ListBatches(ctx context.Context, limit int) ([]entity.BatchRecord, error) {
	sel := r.builder().Select(batchColumns...).
		From(entsql.Table("batches")).
		OrderBy(entsql.Desc("created_at"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()
	return r.queryBatches(ctx, q, args)
}

func (r *outcomeRepo) ListOutcomes(ctx context.Context, batchID uuid.UUID) ([]entity.JobOutcome, error) {
	q, args := r.builder().Select(outcomeColumns...).
		From(entsql.Table("job_outcomes")).
		Where(entsql.EQ("batch_id", batchID.String())).
		OrderBy("seq").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to list outcomes", "batch_id", batchID, "error", err)
		return nil, common.NewAppError("STORE_ERROR", "list outcomes", err)
	}
	defer rows.Close()

	var out []entity.JobOutcome
	for rows.Next() {
		var (
			o                             entity.JobOutcome
			jobID, bID, op, inputs, state string
			arts, kind, msg, finished     string
			started                       sql.NullString
			durationMS                    int64
		)
		if err := rows.Scan(&jobID, &bID, &o.Seq, &op, &inputs, &o.Output, &state,
			&o.Artifact, &arts, &kind, &msg, &started, &finished, &durationMS); err != nil {
			return nil, common.NewAppError("STORE_ERROR", "scan outcome", err)
		}
		o.JobID, _ = uuid.Parse(jobID)
		o.BatchID, _ = uuid.Parse(bID)
		o.Operation = constants.Operation(op)
		o.State = constants.JobState(state)
		_ = json.Unmarshal([]byte(inputs), &o.Inputs)
		_ = json.Unmarshal([]byte(arts), &o.Artifacts)
		if len(o.Artifacts) == 0 {
			o.Artifacts = nil
		}
		if kind != "" {
			o.Failure = &entity.Failure{Kind: constants.FailureKind(kind), Message: msg}
		}
		o.StartedAt = parseTimePtr(started)
		o.FinishedAt = parseTime(finished)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("STORE_ERROR", "list outcomes", err)
	}
	return out, nil
}

func (r *outcomeRepo) queryBatches(ctx context.Context, q string, args []any) ([]entity.BatchRecord, error) {
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to query batches", "error", err)
		return nil, common.NewAppError("STORE_ERROR", "query batches", err)
	}
	defer rows.Close()

	var out []entity.BatchRecord
	for rows.Next() {
		var (
			rec               entity.BatchRecord
			id, state, create string
			finished          sql.NullString
		)
		if err := rows.Scan(&id, &rec.Label, &rec.Concurrency, &rec.Total, &state,
			&rec.Succeeded, &rec.Failed, &rec.Cancelled, &create, &finished); err != nil {
			return nil, common.NewAppError("STORE_ERROR", "scan batch", err)
		}
		rec.ID, _ = uuid.Parse(id)
		rec.State = constants.BatchState(state)
		rec.CreatedAt = parseTime(create)
		rec.FinishedAt = parseTimePtr(finished)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("STORE_ERROR", "query batches", err)
	}
	return out, nil
}

// timeLayout is fixed width so stored text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
