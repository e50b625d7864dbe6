// Package grpc serves link access over gRPC next to the HTTP API.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/guardshare/internal/linkaccess"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/services"
)

type GRPCServer struct {
	address string
	users   *services.UserService
	access  *services.AccessService
	logger  logging.Logger
}

var _ linkaccess.Server = (*GRPCServer)(nil)

func NewGRPCServer(address string, l logging.Logger, us *services.UserService, as *services.AccessService) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		access:  as,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	linkaccess.Register(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(linkaccess.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	return srv.Serve(listen)
}
