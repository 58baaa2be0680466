package ml

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker checks a model server through the standard gRPC health service
type HealthChecker struct {
	conn    *grpc.ClientConn
	client  healthpb.HealthClient
	service string
	timeout time.Duration
}

// NewHealthChecker creates a lazily connecting checker for address
func NewHealthChecker(address, service string, opts ...grpc.DialOption) (*HealthChecker, error) {
	if address == "" {
		return nil, fmt.Errorf("health check address is required")
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create health check client: %w", err)
	}
	return &HealthChecker{
		conn:    conn,
		client:  healthpb.NewHealthClient(conn),
		service: service,
		timeout: 3 * time.Second,
	}, nil
}

// Check returns nil when the server reports SERVING
func (p *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPredictorUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: status %s", ErrPredictorUnavailable, resp.GetStatus())
	}
	return nil
}

// Close releases the connection
func (p *HealthChecker) Close() error {
	return p.conn.Close()
}
