package server

import (
	"context"
	"net"
	"time"

	revocationgrpc "github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/grpc"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type GRPCOptions struct {
	Address  string
	CertFile string
	KeyFile  string
	// Unary is the interceptor chain, usually middleware.ChainUnaryServer.
	Unary grpc.UnaryServerInterceptor
	// Ready feeds the health service. Nil reports SERVING.
	Ready         func(ctx context.Context) error
	ReadyInterval time.Duration
}

type GRPCServer struct {
	opts   GRPCOptions
	srv    *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewGRPCServer registers the revocation service, health, reflection and
// prometheus metrics on a fresh grpc.Server.
func NewGRPCServer(opts GRPCOptions, handler revocationgrpc.RevocationServer, logger *zap.Logger) (*GRPCServer, error) {
	// 1. TLS и цепочка interceptor-ов
	var serverOpts []grpc.ServerOption
	if opts.CertFile != "" && opts.KeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "load gRPC TLS credentials")
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}
	if opts.Unary != nil {
		serverOpts = append(serverOpts, grpc.UnaryInterceptor(opts.Unary))
	}
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = 5 * time.Second
	}

	// 2. Сервис, health, метрики, reflection
	grpcServer := grpc.NewServer(serverOpts...)
	revocationgrpc.RegisterRevocationServer(grpcServer, handler)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	grpc_prometheus.Register(grpcServer)
	grpc_prometheus.EnableHandlingTimeHistogram()
	reflection.Register(grpcServer)

	return &GRPCServer{opts: opts, srv: grpcServer, health: hs, logger: logger}, nil
}

// Serve blocks until ctx is done, then stops gracefully with a 5 second cap.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. health следует за готовностью хранилища
	s.checkReady(ctx)
	go s.watchReady(ctx)

	// 2. Запустить в горутине
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "serve gRPC")
		}
		return nil
	case <-ctx.Done():
	}
	s.logger.Info("ctx cancelled, stopping gRPC server…")
	s.health.Shutdown()

	// 3. Graceful stop с 5-секундным таймаутом
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-stopCtx.Done():
		s.srv.Stop()
	case <-done:
	}
	s.logger.Info("gRPC server stopped")
	return nil
}

// ListenAndServe opens opts.Address and calls Serve.
func (s *GRPCServer) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.opts.Address)
	}
	return s.Serve(ctx, lis)
}

func (s *GRPCServer) watchReady(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ReadyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkReady(ctx)
		}
	}
}

func (s *GRPCServer) checkReady(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.opts.Ready != nil {
		cctx, cancel := context.WithTimeout(ctx, time.Second)
		err := s.opts.Ready(cctx)
		cancel()
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("gRPC readiness check failed", zap.Error(err))
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(revocationgrpc.ServiceName, st)
}
