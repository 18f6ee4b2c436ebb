// Package server provides gRPC and HTTP server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/solatis/logspec/internal/core/api"
	"github.com/solatis/logspec/internal/core/auth"
	"github.com/solatis/logspec/internal/core/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// shutdownTimeout bounds GracefulStop before a forced Stop.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   *config.ServerConfig
}

// NewGRPCServer creates the gRPC server with service and health registration.
// ReloadRules is guarded by authenticator when it is enabled; without keys the
// service itself refuses reloads.
func NewGRPCServer(cfg *config.ServerConfig, service *api.Service, authenticator *auth.Authenticator) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	var interceptors []grpc.UnaryServerInterceptor
	interceptors = append(interceptors, timeoutInterceptor(cfg.RequestTimeout))
	if authenticator.Enabled() {
		interceptors = append(interceptors, authenticator.UnaryInterceptor(api.MethodReloadRules))
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterLogspecServer(server, api.NewGRPCHandler(service))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
	}, nil
}

// timeoutInterceptor applies the configured per-request deadline.
func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

// Listen binds the configured address. Serve must follow.
func (s *GRPCServer) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.GRPCPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *GRPCServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve blocks serving gRPC requests until Shutdown is called.
func (s *GRPCServer) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	return s.server.Serve(s.listener)
}

// Shutdown marks the service NOT_SERVING and gracefully stops the server,
// forcing a stop after 30 seconds or when ctx ends.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
