package flowstate

import (
	"context"
	"fmt"
	"net"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/flowstate/internal/x/grpcx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name under which the engine reports its health.
const ServiceName = "flowstate"

// serve starts the listener and gRPC server.
func (e *Engine) serve(ctx context.Context) error {
	server := grpc.NewServer(e.opts.Network.ServerOptions...)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(server, hs)

	lis, err := net.Listen("tcp", e.opts.Network.ListenAddress)
	if err != nil {
		return fmt.Errorf("unable to start gRPC listener: %w", err)
	}
	defer lis.Close()

	logging.Log(
		e.opts.Logger,
		"listening for gRPC requests on %s",
		lis.Addr(),
	)

	err = grpcx.Serve(ctx, lis, server, hs)
	return fmt.Errorf("gRPC server stopped: %w", err)
}
