package grpc

import (
	"context"
	"fmt"
	"net"

	"github.com/wekeepgrowing/order-payments/internal/config"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Server struct {
	config   *config.Config
	health   *GatewayHealth
	logger   *zap.Logger
	server   *grpc.Server
	listener net.Listener
}

func NewServer(cfg *config.Config, health *GatewayHealth, log *zap.Logger) *Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logger.NewGrpcUnaryServerInterceptor(log)))
	healthpb.RegisterHealthServer(s, health.Server())

	return &Server{
		config: cfg,
		health: health,
		logger: log,
		server: s,
	}
}

func (s *Server) Start() error {
	addr := s.config.Server.GRPC.Addr()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = listener

	s.logger.Info("Starting gRPC server", zap.String("address", addr))

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.server.Stop()
	}
	return nil
}
