package grpc

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	grpcServer *gogrpc.Server
	health     *health.Server
}

// NewHealthServer creates a health server reporting the overall service as SERVING.
func NewHealthServer() *HealthServer {
	grpcServer := gogrpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{grpcServer: grpcServer, health: healthServer}
}

// SetServingStatus updates the status reported for service.
func (h *HealthServer) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus(service, status)
}

// Serve listens on addr until ctx is cancelled. An empty addr disables the server.
func (h *HealthServer) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return h.serve(ctx, listener)
}

func (h *HealthServer) serve(ctx context.Context, listener net.Listener) error {
	log.Printf("Health server listening at %v", listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- h.grpcServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("failed to serve health: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, gogrpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("failed to serve health: %w", err)
	}
}
