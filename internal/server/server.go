// Package server implements the gRPC repository inspection service
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/cfmock/internal/logger"
	"github.com/nainya/cfmock/internal/metrics"
	"github.com/nainya/cfmock/pkg/contentfragment"
	"github.com/nainya/cfmock/pkg/resource"
)

// Version is reported by Stats
const Version = "1.0.0"

// Server implements RepositoryServiceServer over an in-memory repository.
// Handlers run concurrently, so every repository access goes through mu.
type Server struct {
	mu   sync.Mutex
	repo *resource.Repository
	log  *logger.Logger
	opts []contentfragment.Option

	startTime time.Time
	opCounts  map[string]int64
}

var _ RepositoryServiceServer = (*Server)(nil)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.log = l.Component("server")
	}
}

// WithFragmentOptions passes options to fragments adapted by GetFragment
func WithFragmentOptions(opts ...contentfragment.Option) Option {
	return func(s *Server) {
		s.opts = append(s.opts, opts...)
	}
}

// NewServer creates a server for repo
func NewServer(repo *resource.Repository, opts ...Option) *Server {
	s := &Server{
		repo:      repo,
		log:       logger.Nop(),
		startTime: time.Now(),
		opCounts:  make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn with exclusive access to the repository
func (s *Server) Update(fn func(repo *resource.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.repo)
}

// NewGRPCServer creates a grpc.Server with the repository, health and
// reflection services registered. A nil m disables metrics.
func NewGRPCServer(s *Server, m *metrics.Metrics, log *logger.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if log == nil {
		log = logger.Nop()
	}
	opts = append([]grpc.ServerOption{
		grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)),
	}, opts...)
	grpcServer := grpc.NewServer(opts...)

	RegisterRepositoryServiceServer(grpcServer, s)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Reflection for grpcurl/grpcui
	reflection.Register(grpcServer)

	return grpcServer, healthServer
}

// ========== Resource Operations ==========

func (s *Server) GetResource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := requestPath(req)
	if err != nil {
		return nil, err
	}
	depth := int(req.GetFields()["depth"].GetNumberValue())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opCounts["GetResource"]++

	res := s.repo.GetResource(p)
	if res == nil {
		return nil, status.Errorf(codes.NotFound, "resource %s not found", p)
	}

	out, err := structpb.NewStruct(dumpResource(res, depth))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode resource: %v", err)
	}
	return out, nil
}

// dumpResource renders res with depth levels of children; a negative depth is unlimited
func dumpResource(res *resource.Resource, depth int) map[string]any {
	out := map[string]any{
		"name":        res.Name(),
		"path":        res.Path(),
		"type":        res.ResourceType(),
		"properties":  dumpValueMap(res.ValueMap()),
		"hasChildren": res.HasChildren(),
	}
	if depth != 0 {
		children := make([]any, 0, len(res.Children()))
		for _, child := range res.Children() {
			children = append(children, dumpResource(child, depth-1))
		}
		out["children"] = children
	}
	return out
}

// ========== Fragment Operations ==========

func (s *Server) GetFragment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := requestPath(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.opCounts["GetFragment"]++

	res := s.repo.GetResource(p)
	if res == nil {
		return nil, status.Errorf(codes.NotFound, "fragment %s not found", p)
	}
	cf, err := contentfragment.New(res, s.opts...)
	if err != nil {
		if errors.Is(err, contentfragment.ErrInvalidStructure) {
			s.log.Debug("Not a content fragment").Str("path", p).Err(err).Send()
			return nil, status.Errorf(codes.FailedPrecondition, "%s is not a content fragment: %v", p, err)
		}
		return nil, status.Errorf(codes.Internal, "failed to read fragment: %v", err)
	}

	dump, err := dumpFragment(cf)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to read fragment: %v", err)
	}
	out, err := structpb.NewStruct(dump)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode fragment: %v", err)
	}
	return out, nil
}

func dumpFragment(cf *contentfragment.Fragment) (map[string]any, error) {
	elements := []any{}
	it := cf.Elements()
	for it.Next() {
		el := it.Value()
		variations := []any{}
		vit := el.Variations()
		for vit.Next() {
			v := vit.Value()
			variations = append(variations, map[string]any{
				"name":        v.Name(),
				"title":       v.Title(),
				"description": v.Description(),
				"content":     v.Content(),
				"contentType": v.ContentType(),
			})
		}
		elements = append(elements, map[string]any{
			"name":        el.Name(),
			"title":       el.Title(),
			"content":     el.Content(),
			"contentType": el.ContentType(),
			"variations":  variations,
		})
	}

	defs := []any{}
	dit := cf.ListAllVariations()
	for dit.Next() {
		d := dit.Value()
		defs = append(defs, map[string]any{
			"name":        d.Name(),
			"title":       d.Title(),
			"description": d.Description(),
		})
	}

	tags, err := cf.Tags()
	if err != nil {
		return nil, err
	}
	tagIDs := make([]any, len(tags))
	for i, tag := range tags {
		tagIDs[i] = tag.TagID
	}

	res, _ := contentfragment.Adapt[*resource.Resource](cf)
	return map[string]any{
		"name":        cf.Name(),
		"path":        res.Path(),
		"title":       cf.Title(),
		"description": cf.Description(),
		"mode":        cf.Mode(),
		"metadata":    dumpValueMap(cf.MetaData()),
		"elements":    elements,
		"variations":  defs,
		"tags":        tagIDs,
	}, nil
}

// ========== Health & Status ==========

func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opCounts["Stats"]++

	ops := make(map[string]any, len(s.opCounts))
	for k, v := range s.opCounts {
		ops[k] = v
	}

	out, err := structpb.NewStruct(map[string]any{
		"version":         Version,
		"nodes":           s.repo.Size(),
		"uptimeSeconds":   int64(time.Since(s.startTime).Seconds()),
		"startTime":       s.startTime.UTC().Format(time.RFC3339),
		"operationCounts": ops,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode stats: %v", err)
	}
	return out, nil
}

// ========== Helpers ==========

func requestPath(req *structpb.Struct) (string, error) {
	p := req.GetFields()["path"].GetStringValue()
	if p == "" {
		return "", status.Error(codes.InvalidArgument, "path is required")
	}
	if !strings.HasPrefix(p, "/") {
		return "", status.Errorf(codes.InvalidArgument, "path %q must be absolute", p)
	}
	return p, nil
}

// dumpValueMap converts properties to structpb-compatible values
func dumpValueMap(vm *resource.ValueMap) map[string]any {
	out := make(map[string]any, vm.Len())
	for k, v := range vm.All() {
		out[k] = toStructValue(v)
	}
	return out
}

func toStructValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toStructValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toStructValue(item)
		}
		return out
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
