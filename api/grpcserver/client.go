package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client is a thin caller of reclaim.v1.Metrics.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Record(ctx context.Context, name string, v float64, opts ...grpc.CallOption) error {
	req, err := structpb.NewStruct(map[string]any{"name": name, "value": v})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, methodRecord, req, new(emptypb.Empty), opts...)
}

func (c *Client) RecordBatch(ctx context.Context, name string, vs []float64, opts ...grpc.CallOption) error {
	values := make([]any, len(vs))
	for i, v := range vs {
		values[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{"name": name, "values": values})
	if err != nil {
		return err
	}
	return c.cc.Invoke(ctx, methodRecordBatch, req, new(emptypb.Empty), opts...)
}

func (c *Client) Snapshot(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodSnapshot, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Flush(ctx context.Context, opts ...grpc.CallOption) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, methodFlush, new(emptypb.Empty), out, opts...); err != nil {
		return 0, err
	}
	return out.GetValue(), nil
}
