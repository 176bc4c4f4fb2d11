package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
)

// QueueServiceName is the health service name reported for the worker.
const QueueServiceName = "cvextractor.Queue"

// Pinger reports store liveness.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Admin is the daemon's gRPC endpoint: standard health checking plus
// reflection for grpcurl.
type Admin struct {
	srv    *grpc.Server
	health *health.Server
	db     Pinger
	logger *slog.Logger
}

func NewAdmin(db Pinger, logger *slog.Logger) *Admin {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(QueueServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Admin{srv: srv, health: hs, db: db, logger: common.LoggerOrDefault(logger)}
}

// Serve blocks serving on lis until Stop.
func (a *Admin) Serve(lis net.Listener) error {
	a.logger.Info("admin.grpc.serving", "addr", lis.Addr().String())
	return a.srv.Serve(lis)
}

// SetServing flips both the overall and the queue status.
func (a *Admin) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(QueueServiceName, st)
}

// Probe pings the store every interval and mirrors the result into the
// health status until ctx is done.
func (a *Admin) Probe(ctx context.Context, every, timeout time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := a.db.HealthCheck(ctx, timeout)
			if ok := err == nil; ok != healthy {
				healthy = ok
				a.SetServing(ok)
				a.logger.Warn("admin.health.changed", "serving", ok, "error", err)
			}
		}
	}
}

// Stop marks the server not serving and drains in-flight RPCs.
func (a *Admin) Stop() {
	a.health.Shutdown()
	a.srv.GracefulStop()
}
