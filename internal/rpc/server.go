package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/elys-network/clvault/internal/logger"
)

// NewGRPCServer returns a gRPC server with the vault service registered on host.
func NewGRPCServer(host Host, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(ServerOptions(), opts...)
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger.GetForComponent("grpc_server")), errorServerInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, NewServer(host))
	return srv
}

// Serve listens on addr until ctx is done, then stops the server gracefully.
func Serve(ctx context.Context, srv *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	rpcLogger := logger.GetForComponent("grpc_server")
	rpcLogger.Info().Str("address", addr).Msg("Starting gRPC server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		rpcLogger.Info().Msg("Shutting down gRPC server")
		srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("gRPC server failed: %w", err)
	}
}

func loggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		event := log.Debug()
		if err != nil {
			event = log.Warn().Str("code", status.Code(err).String()).Err(err)
		}
		event.Str("method", info.FullMethod).
			Dur("duration", time.Since(start)).
			Msg("gRPC request")
		return resp, err
	}
}
