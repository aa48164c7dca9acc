package grpcx

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Serve runs s until ctx is canceled or an error occurs.
//
// If hs is non-nil, every service it reports on is marked as not serving
// before s is stopped. The caller must never call s.Stop() or s.GracefulStop().
func Serve(
	ctx context.Context,
	lis net.Listener,
	s *grpc.Server,
	hs *health.Server,
) error {
	// Guarantee that the goroutine below exits when the server exits
	// prematurely.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()

		if hs != nil {
			hs.Shutdown()
		}

		s.Stop()
	}()

	err := s.Serve(lis)

	// Serve() only returns nil once Stop() is called, which only happens when
	// ctx is canceled.
	if err == nil {
		<-ctx.Done()
		err = ctx.Err()
	}

	return err
}
