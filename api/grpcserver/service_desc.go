package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name. Messages are
// protobuf well-known types, so no generated code is needed.
const ServiceName = "reclaim.v1.Metrics"

const (
	methodRecord      = "/" + ServiceName + "/Record"
	methodRecordBatch = "/" + ServiceName + "/RecordBatch"
	methodSnapshot    = "/" + ServiceName + "/Snapshot"
	methodFlush       = "/" + ServiceName + "/Flush"
)

type MetricsServer interface {
	// Record takes {"name": string, "value": number}.
	Record(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	// RecordBatch takes {"name": string, "values": [number...]}.
	RecordBatch(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Flush returns the sequence of the snapshot it produced.
	Flush(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
}

func RegisterMetricsServer(s grpc.ServiceRegistrar, srv MetricsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MetricsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Record", Handler: recordHandler},
		{MethodName: "RecordBatch", Handler: recordBatchHandler},
		{MethodName: "Snapshot", Handler: snapshotHandler},
		{MethodName: "Flush", Handler: flushHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reclaim/v1/metrics.proto",
}

func recordHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetricsServer).Record(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRecord}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MetricsServer).Record(ctx, req.(*structpb.Struct))
	})
}

func recordBatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetricsServer).RecordBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodRecordBatch}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MetricsServer).RecordBatch(ctx, req.(*structpb.Struct))
	})
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetricsServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodSnapshot}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MetricsServer).Snapshot(ctx, req.(*emptypb.Empty))
	})
}

func flushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MetricsServer).Flush(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFlush}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(MetricsServer).Flush(ctx, req.(*emptypb.Empty))
	})
}
