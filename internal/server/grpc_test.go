package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
	"github.com/joseph-ayodele/docbatch/internal/entity"
)

type fakeHistory struct {
	rec  entity.BatchRecord
	outs []entity.JobOutcome
}

func (f fakeHistory) GetBatch(_ context.Context, id uuid.UUID) (entity.BatchRecord, error) {
	if id != f.rec.ID {
		return entity.BatchRecord{}, common.ErrBatchNotFound
	}
	return f.rec, nil
}

func (f fakeHistory) ListOutcomes(context.Context, uuid.UUID) ([]entity.JobOutcome, error) {
	return f.outs, nil
}

func startGRPC(t *testing.T, engine Engine, history History) (*Client, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(NewBatchService(engine, history, nil), nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := Dial("passthrough:///bufnet", dialer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, client.conn
}

func TestGRPCSubmitSubscribeSnapshot(t *testing.T) {
	client, _ := startGRPC(t, newScheduler(t, nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h, err := client.Submit(ctx, batchSpec(t, 3))
	require.NoError(t, err)
	require.Len(t, h.JobIDs, 3)

	terminal := map[uuid.UUID]constants.EventType{}
	var last entity.Event
	err = client.Subscribe(ctx, h.ID, func(ev entity.Event) error {
		assert.Equal(t, h.ID, ev.BatchID)
		if ev.Type.Terminal() {
			terminal[ev.JobID] = ev.Type
		}
		last = ev
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, constants.EventBatchCompleted, last.Type)
	assert.Equal(t, constants.EventFailed, terminal[h.JobIDs[1]])
	assert.Equal(t, constants.EventSucceeded, terminal[h.JobIDs[0]])

	snap, err := client.Snapshot(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, snap.Done)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, "api", snap.Label)

	outs, err := client.ListOutcomes(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, constants.FailureCorruptInput, outs[1].Failure.Kind)
}

func TestGRPCCancel(t *testing.T) {
	gate := make(chan struct{})
	client, _ := startGRPC(t, newScheduler(t, gate), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h, err := client.Submit(ctx, batchSpec(t, 4))
	require.NoError(t, err)
	require.NoError(t, client.Cancel(ctx, h.ID))

	require.NoError(t, client.Subscribe(ctx, h.ID, func(entity.Event) error { return nil }))
	snap, err := client.Snapshot(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, snap.CancelRequested)
	assert.Equal(t, 4, snap.Cancelled)
}

func TestGRPCErrors(t *testing.T) {
	client, _ := startGRPC(t, newScheduler(t, nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := client.Submit(ctx, entity.BatchSpec{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	err = client.Cancel(ctx, uuid.New())
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Snapshot(ctx, uuid.New())
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = client.Subscribe(ctx, uuid.New(), func(entity.Event) error { return nil })
	assert.Equal(t, codes.NotFound, status.Code(err))

	err = client.unary(ctx, getSnapshotMethod, batchRef{BatchID: "nope"}, &entity.Snapshot{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCListOutcomesFromHistory(t *testing.T) {
	rec := entity.BatchRecord{ID: uuid.New(), State: constants.BatchStateCompleted, Total: 1}
	history := fakeHistory{rec: rec, outs: []entity.JobOutcome{{JobID: uuid.New(), BatchID: rec.ID, State: constants.JobStateSucceeded}}}
	client, _ := startGRPC(t, newScheduler(t, nil), history)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outs, err := client.ListOutcomes(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, constants.JobStateSucceeded, outs[0].State)

	_, err = client.ListOutcomes(ctx, uuid.New())
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	_, conn := startGRPC(t, newScheduler(t, nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
