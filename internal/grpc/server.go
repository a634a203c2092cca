package grpc

import (
	"context"
	"encoding/json"
	"errors"

	"cache-telemetry-service/internal/core/ports"
	"cache-telemetry-service/internal/core/service"
	"cache-telemetry-service/internal/event"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cachestats.v1.StatsService"

// StatsServer is the server API for the statistics service. Reports travel
// as google.protobuf.Struct in the same JSON shape the HTTP API returns.
type StatsServer interface {
	Collect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Totals(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Record(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// ensure implementation
var _ StatsServer = (*Adapter)(nil)

// Adapter implements StatsServer on top of the collector service.
type Adapter struct {
	service ports.StatsService
}

// New creates a new gRPC adapter.
func New(service ports.StatsService) *Adapter {
	return &Adapter{service: service}
}

// Register attaches srv to s.
func Register(s *grpclib.Server, srv StatsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Collect aggregates the event log and returns the report.
func (a *Adapter) Collect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	report, err := a.service.Collect(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(report)
}

// Totals returns the total statistics of the last collection.
func (a *Adapter) Totals(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(a.service.Totals())
}

// Record appends events to a source. The request is {"source": ..., "events": [...]}.
func (a *Adapter) Record(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	data, err := protojson.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var in struct {
		Source string        `json:"source"`
		Events []event.Event `json:"events"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := a.service.Record(ctx, in.Source, in.Events...); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidSource):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ServiceDesc describes StatsService for grpc.Server.RegisterService.
var ServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatsServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "Collect", Handler: collectHandler},
		{MethodName: "Totals", Handler: totalsHandler},
		{MethodName: "Record", Handler: recordHandler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "cachestats/v1/stats.proto",
}

func collectHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServer).Collect(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Collect"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatsServer).Collect(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func totalsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServer).Totals(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Totals"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatsServer).Totals(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func recordHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatsServer).Record(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Record"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StatsServer).Record(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
