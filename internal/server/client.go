package server

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docbatch/internal/entity"
)

// Client calls a remote BatchService.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security; the daemon is meant for
// a local or private network.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn, conn: conn}, nil
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) Submit(ctx context.Context, spec entity.BatchSpec) (entity.BatchHandle, error) {
	var h entity.BatchHandle
	err := c.unary(ctx, submitMethod, spec, &h)
	return h, err
}

func (c *Client) Cancel(ctx context.Context, id uuid.UUID) error {
	var ack struct {
		Acknowledged bool `json:"acknowledged"`
	}
	return c.unary(ctx, cancelMethod, batchRef{BatchID: id.String()}, &ack)
}

func (c *Client) Snapshot(ctx context.Context, id uuid.UUID) (entity.Snapshot, error) {
	var snap entity.Snapshot
	err := c.unary(ctx, getSnapshotMethod, batchRef{BatchID: id.String()}, &snap)
	return snap, err
}

func (c *Client) ListOutcomes(ctx context.Context, id uuid.UUID) ([]entity.JobOutcome, error) {
	var resp struct {
		Outcomes []entity.JobOutcome `json:"outcomes"`
	}
	err := c.unary(ctx, listOutcomesMethod, batchRef{BatchID: id.String()}, &resp)
	return resp.Outcomes, err
}

// Subscribe calls fn for every event until the batch completes, ctx ends
// or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, id uuid.UUID, fn func(entity.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := toStruct(batchRef{BatchID: id.String()})
	if err != nil {
		return err
	}
	stream, err := c.cc.NewStream(ctx, &BatchServiceDesc.Streams[0], subscribeMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var ev entity.Event
		if err := fromStruct(msg, &ev); err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func (c *Client) unary(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}
