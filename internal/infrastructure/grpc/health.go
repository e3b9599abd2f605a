package grpc

import (
	"context"

	"github.com/wekeepgrowing/order-payments/internal/domain/provider"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServicePrefix namespaces per-gateway health entries, e.g. "payments.pix".
const ServicePrefix = "payments."

// GatewayHealth publishes gateway availability through the standard gRPC
// health service. The overall ("") status is SERVING while at least one
// gateway can take payments.
type GatewayHealth struct {
	server   *health.Server
	registry *provider.Registry
	logger   *zap.Logger
}

func NewGatewayHealth(registry *provider.Registry, logger *zap.Logger) *GatewayHealth {
	return &GatewayHealth{
		server:   health.NewServer(),
		registry: registry,
		logger:   logger,
	}
}

// Refresh re-reads availability. Called by the scheduler, since provider
// toggles can change at runtime.
func (h *GatewayHealth) Refresh(ctx context.Context) {
	anyAvailable := false
	for _, a := range h.registry.Availability(ctx) {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if a.Available {
			status = healthpb.HealthCheckResponse_SERVING
			anyAvailable = true
		}
		h.server.SetServingStatus(ServicePrefix+string(a.Provider), status)
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if anyAvailable {
		overall = healthpb.HealthCheckResponse_SERVING
	} else {
		h.logger.Warn("No payment gateway available")
	}
	h.server.SetServingStatus("", overall)
}

// Shutdown marks everything NOT_SERVING ahead of a graceful stop.
func (h *GatewayHealth) Shutdown() {
	h.server.Shutdown()
}

func (h *GatewayHealth) Server() healthpb.HealthServer {
	return h.server
}
