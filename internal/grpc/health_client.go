package grpc

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"social-sync/internal/observability"
)

var ErrNotServing = errors.New("backend is not serving")

// HealthClient wraps the backend's grpc.health.v1 service.
type HealthClient struct {
	client  healthpb.HealthClient
	service string
}

// NewHealthClient constructs the wrapper. An empty service checks the
// server as a whole.
func NewHealthClient(client healthpb.HealthClient, service string) *HealthClient {
	return &HealthClient{client: client, service: service}
}

// Dial opens a traced, metered client connection to addr.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	)
}

// Check reports nil when the backend answers SERVING.
func (h *HealthClient) Check(ctx context.Context) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: h.service})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, resp.GetStatus())
	}
	return nil
}
