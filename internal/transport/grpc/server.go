package grpcx

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService: имя сервиса в grpc.health.v1, отражает готовность relay.
const RelayService = "meeting.v1.Relay"

// Health оборачивает стандартный health-сервер grpc.
type Health struct {
	srv *health.Server
}

func NewHealth() *Health {
	h := &Health{srv: health.NewServer()}
	h.SetServing(true)
	return h
}

func (h *Health) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(RelayService, st)
}

// Shutdown переводит все сервисы в NOT_SERVING и больше не даёт их поднять.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

func NewServer(deadlineGuard time.Duration, h *Health) *grpc.Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(deadlineGuard)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(s, h.srv)

	return s
}
