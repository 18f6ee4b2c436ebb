package api

import (
	"context"
	"fmt"

	"github.com/solatis/logspec/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "logspec.v1.LogspecService"

// Full method names, as seen by interceptors.
const (
	MethodClassify         = "/" + ServiceName + "/Classify"
	MethodLookupShipMethod = "/" + ServiceName + "/LookupShipMethod"
	MethodReloadRules      = "/" + ServiceName + "/ReloadRules"
)

// LogspecServer is the server API for the LogspecService.
// Messages are google.protobuf.Struct so clients need no generated stubs:
//
//	Classify          {records: [{ship_method, country}]} -> {total, matched, load_id, checksum, results: [{matched, reason}]}
//	LookupShipMethod  {ship_method}                       -> {ship_method, found, countries, outside_region, inferred, sources}
//	ReloadRules       {table, source}                     -> {load_id, source, ship_methods, accepted, skipped, inferred, empty, checksum}
type LogspecServer interface {
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LookupShipMethod(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReloadRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc registers a LogspecServer with a grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LogspecServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: unaryHandler(MethodClassify, LogspecServer.Classify)},
		{MethodName: "LookupShipMethod", Handler: unaryHandler(MethodLookupShipMethod, LogspecServer.LookupShipMethod)},
		{MethodName: "ReloadRules", Handler: unaryHandler(MethodReloadRules, LogspecServer.ReloadRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "logspec/v1/logspec.proto",
}

type methodFunc func(LogspecServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a method to grpc's handler signature, running interceptors.
func unaryHandler(fullMethod string, call methodFunc) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LogspecServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(LogspecServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterLogspecServer registers srv on s.
func RegisterLogspecServer(s grpc.ServiceRegistrar, srv LogspecServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCHandler adapts Service to LogspecServer.
type GRPCHandler struct {
	svc *Service
}

// NewGRPCHandler wraps svc for registration.
func NewGRPCHandler(svc *Service) *GRPCHandler {
	return &GRPCHandler{svc: svc}
}

// Classify implements LogspecServer.
func (h *GRPCHandler) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	records, err := decodeRecords(req)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := h.svc.Classify(ctx, records)
	if err != nil {
		return nil, toStatus(err)
	}

	results := make([]interface{}, len(res.Decisions))
	for i, d := range res.Decisions {
		results[i] = map[string]interface{}{
			"matched": d.Matched,
			"reason":  d.Reason.String(),
		}
	}
	return encode(map[string]interface{}{
		"total":    res.Total,
		"matched":  res.Matched,
		"load_id":  string(res.LoadID),
		"checksum": res.Checksum,
		"results":  results,
	})
}

// LookupShipMethod implements LogspecServer.
func (h *GRPCHandler) LookupShipMethod(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	info, err := h.svc.LookupShipMethod(ctx, req.GetFields()["ship_method"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]interface{}{
		"ship_method":    string(info.ShipMethod),
		"found":          info.Found,
		"countries":      toList(info.Countries),
		"outside_region": info.OutsideRegion,
		"inferred":       info.Inferred(),
		"sources":        toList(info.Sources),
	})
}

// ReloadRules implements LogspecServer.
func (h *GRPCHandler) ReloadRules(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	table, ok := fields["table"]
	if !ok {
		return nil, toStatus(fmt.Errorf("%w: table is required", ErrInvalidRequest))
	}

	res, err := h.svc.ReloadRules(ctx, table.GetStringValue(), fields["source"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(map[string]interface{}{
		"load_id":      string(res.LoadID),
		"source":       res.Source,
		"ship_methods": res.ShipMethods,
		"accepted":     res.Report.Accepted,
		"skipped":      res.Report.Skipped,
		"inferred":     len(res.Report.Inferred),
		"empty":        len(res.Report.EmptyKeys),
		"checksum":     res.Checksum,
	})
}

// decodeRecords reads {records: [{ship_method, country, fields?}]}.
func decodeRecords(req *structpb.Struct) ([]types.Record, error) {
	list := req.GetFields()["records"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: records must be a list", ErrInvalidRequest)
	}

	records := make([]types.Record, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("%w: records[%d] must be an object", ErrInvalidRequest, i)
		}
		f := obj.GetFields()
		rec := types.Record{
			ShipMethod: f["ship_method"].GetStringValue(),
			Country:    f["country"].GetStringValue(),
		}
		if extra := f["fields"].GetStructValue(); extra != nil {
			if len(extra.GetFields()) > types.MaxFieldsPerRecord {
				return nil, fmt.Errorf("%w: records[%d]", types.ErrTooManyFields, i)
			}
			rec.Fields = make(map[string]string, len(extra.GetFields()))
			for k, fv := range extra.GetFields() {
				rec.Fields[k] = fv.GetStringValue()
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func toList[T ~string](xs []T) []interface{} {
	out := make([]interface{}, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}

func encode(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(Code(err), err.Error())
	}
	return s, nil
}

func toStatus(err error) error {
	return status.Error(Code(err), err.Error())
}
