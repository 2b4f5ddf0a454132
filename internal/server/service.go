package server

import (
	"context"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Engine is the scheduler surface the servers expose.
type Engine interface {
	Submit(ctx context.Context, spec entity.BatchSpec) (entity.BatchHandle, error)
	RequestCancel(id uuid.UUID) error
	Subscribe(ctx context.Context, id uuid.UUID) (iter.Seq[entity.Event], error)
	Snapshot(id uuid.UUID) (entity.Snapshot, error)
}

// History serves outcomes of batches no longer held by the Engine.
type History interface {
	GetBatch(ctx context.Context, id uuid.UUID) (entity.BatchRecord, error)
	ListOutcomes(ctx context.Context, batchID uuid.UUID) ([]entity.JobOutcome, error)
}

type BatchService struct {
	engine  Engine
	history History
	logger  *slog.Logger
}

// NewBatchService wires the gRPC handlers. history may be nil.
func NewBatchService(engine Engine, history History, logger *slog.Logger) *BatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{engine: engine, history: history, logger: logger}
}

func (s *BatchService) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var spec entity.BatchSpec
	if err := fromStruct(req, &spec); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	h, err := s.engine.Submit(ctx, spec)
	if err != nil {
		s.logger.Warn("submit rejected", "request_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(h)
}

func (s *BatchService) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := batchIDFrom(req)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RequestCancel(id); err != nil {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("cancel requested", "batch_id", id, "request_id", common.RequestIDFromContext(ctx))
	return structpb.NewStruct(map[string]any{"batch_id": id.String(), "acknowledged": true})
}

func (s *BatchService) GetSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := batchIDFrom(req)
	if err != nil {
		return nil, err
	}
	snap, err := s.engine.Snapshot(id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(snap)
}

// ListOutcomes answers from the live batch when present, else from history.
func (s *BatchService) ListOutcomes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := batchIDFrom(req)
	if err != nil {
		return nil, err
	}
	outs, err := s.outcomes(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(struct {
		BatchID  uuid.UUID           `json:"batch_id"`
		Outcomes []entity.JobOutcome `json:"outcomes"`
	}{id, outs})
}

func (s *BatchService) outcomes(ctx context.Context, id uuid.UUID) ([]entity.JobOutcome, error) {
	snap, err := s.engine.Snapshot(id)
	if err == nil {
		return snap.Outcomes(), nil
	}
	if s.history == nil {
		return nil, err
	}
	if _, herr := s.history.GetBatch(ctx, id); herr != nil {
		return nil, herr
	}
	outs, herr := s.history.ListOutcomes(ctx, id)
	if herr != nil {
		return nil, herr
	}
	if outs == nil {
		outs = []entity.JobOutcome{}
	}
	return outs, nil
}

func (s *BatchService) Subscribe(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	id, err := batchIDFrom(req)
	if err != nil {
		return err
	}
	ctx := stream.Context()
	events, err := s.engine.Subscribe(ctx, id)
	if err != nil {
		return common.ToStatus(err)
	}
	sent := 0
	for ev := range events {
		msg, err := toStruct(ev)
		if err != nil {
			return common.InternalError(err.Error())
		}
		if err := stream.Send(msg); err != nil {
			s.logger.Debug("subscriber went away", "batch_id", id, "sent", sent, "error", err)
			return err
		}
		sent++
	}
	return ctx.Err()
}
