// Package api provides the gRPC query service over property filters.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/normprops/internal/filter"
	"github.com/solatis/normprops/internal/props"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Querier runs resolved filters against stored instances.
// Implemented by *db.Store.
type Querier interface {
	Query(ctx context.Context, model string, f filter.Filter) ([]string, error)
}

// QueryService implements QueryServer. Resolve needs only the catalog;
// Query additionally needs a store.
type QueryService struct {
	catalog *props.Catalog
	store   Querier
	logger  *slog.Logger
}

// NewQueryService creates service instance with dependencies. store may be
// nil, in which case Query fails with FailedPrecondition.
func NewQueryService(catalog *props.Catalog, store Querier, logger *slog.Logger) (*QueryService, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		catalog: catalog,
		store:   store,
		logger:  logger.With("component", "query_service"),
	}, nil
}

// Resolve rewrites the request filter onto stored properties of the model.
//
// Request:  {"model": "Item", "filter": <filter>}
// Response: {"filter": <filter>}
func (s *QueryService) Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	m, f, err := s.decode(req)
	if err != nil {
		return nil, err
	}

	resolved, err := props.ResolveDependent(f, m)
	if err != nil {
		return nil, statusFor(err)
	}

	v, err := filter.ToValue(resolved)
	if err != nil {
		return nil, statusFor(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"filter": v}}, nil
}

// Query returns the IDs of stored instances satisfying the request filter.
//
// Request:  {"model": "Item", "filter": <filter>}
// Response: {"ids": ["...", ...]}
func (s *QueryService) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no store configured")
	}

	m, f, err := s.decode(req)
	if err != nil {
		return nil, err
	}

	ids, err := s.store.Query(ctx, m.Name(), f)
	if err != nil {
		if status.Code(statusFor(err)) == codes.Unavailable {
			s.logger.ErrorContext(ctx, "store query failed", "model", m.Name(), "error", err)
		}
		return nil, statusFor(err)
	}

	values := make([]*structpb.Value, len(ids))
	for i, id := range ids {
		values[i] = structpb.NewStringValue(id)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"ids": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// decode extracts the model and filter of a request. A missing filter is
// the empty filter.
func (s *QueryService) decode(req *structpb.Struct) (*props.Model, filter.Filter, error) {
	fields := req.GetFields()

	name := fields["model"].GetStringValue()
	if name == "" {
		return nil, filter.Filter{}, status.Error(codes.InvalidArgument, "model is required")
	}
	m, err := s.catalog.Model(name)
	if err != nil {
		return nil, filter.Filter{}, statusFor(err)
	}

	var f filter.Filter
	if raw, ok := fields["filter"]; ok {
		if f, err = filter.FromValue(raw); err != nil {
			return nil, filter.Filter{}, statusFor(err)
		}
	}
	return m, f, nil
}
