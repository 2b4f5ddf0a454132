package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "docbatch.v1.BatchService"

	submitMethod       = "/" + ServiceName + "/Submit"
	cancelMethod       = "/" + ServiceName + "/Cancel"
	getSnapshotMethod  = "/" + ServiceName + "/GetSnapshot"
	listOutcomesMethod = "/" + ServiceName + "/ListOutcomes"
	subscribeMethod    = "/" + ServiceName + "/Subscribe"
)

// BatchServiceServer is the server API for docbatch.v1.BatchService.
// Requests and responses are google.protobuf.Struct documents carrying the
// JSON form of the entity types.
type BatchServiceServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOutcomes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

func RegisterBatchServiceServer(s grpc.ServiceRegistrar, srv BatchServiceServer) {
	s.RegisterService(&BatchServiceDesc, srv)
}

type unaryCall func(BatchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BatchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BatchServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(BatchServiceServer).Subscribe(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// BatchServiceDesc is the grpc.ServiceDesc for docbatch.v1.BatchService.
var BatchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unaryHandler(submitMethod, BatchServiceServer.Submit)},
		{MethodName: "Cancel", Handler: unaryHandler(cancelMethod, BatchServiceServer.Cancel)},
		{MethodName: "GetSnapshot", Handler: unaryHandler(getSnapshotMethod, BatchServiceServer.GetSnapshot)},
		{MethodName: "ListOutcomes", Handler: unaryHandler(listOutcomesMethod, BatchServiceServer.ListOutcomes)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "docbatch/v1/batch.proto",
}
