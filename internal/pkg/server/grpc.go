package server

import (
	"net"

	"github.com/kiosk404/agentcore/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCAPIServer is the side gRPC server. It serves the standard health service.
type GRPCAPIServer struct {
	*grpc.Server
	address string
	health  *health.Server
}

// NewGRPCAPIServer wraps srv and registers the health and reflection services.
func NewGRPCAPIServer(srv *grpc.Server, address string) *GRPCAPIServer {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCAPIServer{Server: srv, address: address, health: hs}
}

// SetServing flips the overall and per-service health status.
func (s *GRPCAPIServer) SetServing(serving bool, services ...string) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	for _, svc := range services {
		s.health.SetServingStatus(svc, status)
	}
}

func (s *GRPCAPIServer) Run() {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		logger.Error("failed to listen: %s", err.Error())
		return
	}

	logger.Info("start grpc server at %s", s.address)
	if err := s.Serve(listen); err != nil {
		logger.Error("failed to start grpc server: %s", err.Error())
	}
}

func (s *GRPCAPIServer) Stop() {
	s.health.Shutdown()
	s.GracefulStop()
	logger.Info("GRPC server on %s stopped", s.address)
}
