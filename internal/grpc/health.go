package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kc-allan/at-insurance/internal/repository"
)

// ServiceName is the health service entry that tracks the record store.
const ServiceName = "atinsurance.RecordStore"

// NewServer builds the ops gRPC server. It only carries the standard health
// service, which orchestrators probe without credentials.
func NewServer(healthServer *health.Server) *grpc.Server {
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	return server
}

// RunHealthProbe pings the store every interval and mirrors the outcome into
// the health server, both for the overall status and for ServiceName. It
// blocks until ctx is cancelled, then reports NOT_SERVING.
func RunHealthProbe(ctx context.Context, healthServer *health.Server, store repository.Pinger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	probe := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := store.Ping(pingCtx)
		cancel()

		next := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			next = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if next != last {
			if err != nil {
				logger.Warn("record store unhealthy", zap.Error(err))
			} else {
				logger.Info("record store healthy")
			}
			last = next
		}
		healthServer.SetServingStatus("", next)
		healthServer.SetServingStatus(ServiceName, next)
	}

	probe()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			healthServer.Shutdown()
			return
		case <-ticker.C:
			probe()
		}
	}
}
