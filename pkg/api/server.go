package api

import (
	"fmt"
	"net"

	"github.com/fenwick-io/taskpulse/pkg/aggregator"
	"github.com/fenwick-io/taskpulse/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server is the real transport boundary described in this package's
// doc comment: a grpc.Server exposing the standard health-checking
// protocol, plus a Service any future generated stub can delegate to.
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	Service *Service
}

// NewServer builds a Server wired to commands, the same channel the
// Aggregator's Run loop reads from.
func NewServer(commands chan<- aggregator.Command) *Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(LoggingUnaryInterceptor()),
		grpc.StreamInterceptor(LoggingStreamInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpc:    grpcServer,
		health:  healthServer,
		Service: NewService(commands),
	}
}

// MarkServing reports the aggregator as SERVING to anything polling
// the health service (grpcurl, a Kubernetes gRPC probe, ...). Call it
// once the Aggregator's Run loop is actually consuming its channels.
func (s *Server) MarkServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// MarkNotServing reports NOT_SERVING, e.g. once the aggregator's
// context has been canceled and it is winding down.
func (s *Server) MarkNotServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// Start binds addr and serves until Stop is called or Serve errors.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	log.WithComponent("api").Info().Str("addr", addr).Msg("grpc server listening")
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
