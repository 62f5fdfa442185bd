package server

import (
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ScoringService — имя сервиса в gRPC health для балансировщиков.
const ScoringService = "fraudfusion.v1.Scoring"

// Health — отдельный gRPC-сервер только со стандартным health-протоколом.
type Health struct {
	srv    *grpc.Server
	hs     *health.Server
	logger *zap.Logger
}

func NewHealth(logger *zap.Logger) *Health {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &Health{srv: srv, hs: hs, logger: logger.Named("grpc-health")}
	h.SetServing(false)
	return h
}

// SetServing переключает статус и для ScoringService, и для "" (весь сервер).
func (h *Health) SetServing(ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.hs.SetServingStatus("", status)
	h.hs.SetServingStatus(ScoringService, status)
}

// Serve блокируется до Stop.
func (h *Health) Serve(lis net.Listener) error {
	h.logger.Info("gRPC health server started", zap.String("addr", lis.Addr().String()))
	return h.srv.Serve(lis)
}

func (h *Health) Stop() {
	h.hs.Shutdown()
	h.srv.GracefulStop()
}
