package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealthServer(t *testing.T) (*HealthServer, string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewHealthServer()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.serve(ctx, listener)
	}()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("health server did not stop")
		}
	}
	return server, listener.Addr().String(), stop
}

// TestHealthServer_ReportsStatus verifies per-service status changes are visible to clients.
func TestHealthServer_ReportsStatus(t *testing.T) {
	server, addr, stop := startHealthServer(t)
	defer stop()

	client, err := NewClient(addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	status, err := client.Check(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)

	server.SetServingStatus("reputation.maintenance", healthpb.HealthCheckResponse_NOT_SERVING)
	status, err = client.Check(ctx, "reputation.maintenance")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status)

	server.SetServingStatus("reputation.maintenance", healthpb.HealthCheckResponse_SERVING)
	status, err = client.Check(ctx, "reputation.maintenance")
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status)
}

// TestHealthServer_UnknownService verifies unregistered services are reported as errors.
func TestHealthServer_UnknownService(t *testing.T) {
	_, addr, stop := startHealthServer(t)
	defer stop()

	client, err := NewClient(addr, 2*time.Second)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Check(context.Background(), "missing")
	assert.Error(t, err)
}

// TestHealthServer_DisabledWithoutAddress verifies an empty address serves nothing.
func TestHealthServer_DisabledWithoutAddress(t *testing.T) {
	assert.NoError(t, NewHealthServer().Serve(context.Background(), ""))
}
