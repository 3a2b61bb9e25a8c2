package grpc

import (
	"context"
	"fmt"
	"log"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Client wraps a gRPC connection to a health server.
type Client struct {
	conn          *gogrpc.ClientConn
	healthClient  healthpb.HealthClient
	serverAddress string
	timeout       time.Duration
}

// NewClient creates a client for the health server at serverAddress.
func NewClient(serverAddress string, timeout time.Duration) (*Client, error) {
	conn, err := gogrpc.NewClient(serverAddress, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", serverAddress, err)
	}

	return &Client{
		conn:          conn,
		healthClient:  healthpb.NewHealthClient(conn),
		serverAddress: serverAddress,
		timeout:       timeout,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Check returns the serving status of service. An empty service is the overall status.
func (c *Client) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		log.Printf("Error checking health of %q at %s: %v", service, c.serverAddress, err)
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
