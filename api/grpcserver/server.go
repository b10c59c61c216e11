package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"reclaim/metrics/registry"
	"reclaim/service"
	"reclaim/snapshot"
)

// Server adapts MetricsService to gRPC.
type Server struct {
	svc *service.MetricsService
}

var _ MetricsServer = (*Server)(nil)

func NewServer(svc *service.MetricsService) *Server {
	return &Server{svc: svc}
}

// -------------------- Commands --------------------

func (s *Server) Record(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	name, err := nameField(req)
	if err != nil {
		return nil, err
	}
	v, ok := req.GetFields()["value"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "missing field \"value\"")
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "field \"value\" must be a number")
	}

	if err := s.svc.Record(name, num.NumberValue); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) RecordBatch(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	name, err := nameField(req)
	if err != nil {
		return nil, err
	}
	list := req.GetFields()["values"].GetListValue()
	if list == nil {
		return nil, status.Error(codes.InvalidArgument, "field \"values\" must be a list")
	}
	values := make([]float64, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "values[%d] is not a number", i)
		}
		values = append(values, num.NumberValue)
	}

	if err := s.svc.RecordBatch(name, values); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Flush(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	snap, err := s.svc.Flush(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(snap.Seq), nil
}

// -------------------- Queries --------------------

func (s *Server) Snapshot(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(snapshotMap(s.svc.Snapshot()))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -------------------- Converters --------------------

func nameField(req *structpb.Struct) (string, error) {
	v, ok := req.GetFields()["name"]
	if !ok {
		return "", status.Error(codes.InvalidArgument, "missing field \"name\"")
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Error(codes.InvalidArgument, "field \"name\" must be a string")
	}
	return str.StringValue, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrInvalidName), errors.Is(err, service.ErrInvalidSample):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// snapshotMap renders s with only the types structpb accepts. JSON has
// no infinities, so they become nil.
func snapshotMap(s *snapshot.Snapshot) map[string]any {
	series := make([]any, 0, len(s.Series))
	for _, e := range s.Series {
		buckets := make(map[string]any, len(e.Bounds))
		for i, b := range e.Bounds {
			buckets[formatFloat(b)] = e.Cumulative[i]
		}
		quantiles := make(map[string]any, len(e.Quantiles))
		for q, v := range e.Quantiles {
			quantiles[formatFloat(q)] = finite(v)
		}
		series = append(series, map[string]any{
			"name":      e.Name,
			"count":     e.Count,
			"sum":       finite(e.Sum),
			"min":       finite(e.Min),
			"max":       finite(e.Max),
			"mean":      finite(e.Mean),
			"stddev":    finite(e.StdDev),
			"buckets":   buckets,
			"quantiles": quantiles,
		})
	}
	return map[string]any{
		"seq":         s.Seq,
		"id":          s.ID,
		"created":     s.Created.Format(time.RFC3339Nano),
		"journal_seq": s.JournalSeq,
		"series":      series,
	}
}

func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SeriesCount reads the "count" of one series from a Snapshot response.
func SeriesCount(resp *structpb.Struct, name string) (uint64, error) {
	for _, v := range resp.GetFields()["series"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		if f["name"].GetStringValue() == name {
			return uint64(f["count"].GetNumberValue()), nil
		}
	}
	return 0, fmt.Errorf("series %q not in snapshot", name)
}
