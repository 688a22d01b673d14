package middleware

import (
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/ratelimit"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/auth/jwt"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(
		grpc_recovery.WithRecoveryHandler(func(p any) error {
			logger.Error("panic in gRPC handler", zap.Any("panic", p))
			return status.Error(codes.Internal, "internal error")
		}),
	)
}

func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_zap.UnaryServerInterceptor(logger)
}

func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return grpc_prometheus.UnaryServerInterceptor
}

// ChainUnaryServer orders the interceptors outermost first. verifier may be
// nil when admin auth is disabled.
func ChainUnaryServer(logger *zap.Logger, limiter *ratelimit.PerKey, verifier jwt.Verifier, adminMethods ...string) grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
		MetricsInterceptor(),
	}
	if limiter != nil {
		chain = append(chain, NewRateLimitPerIP(limiter))
	}
	if verifier != nil {
		chain = append(chain, RequireAdmin(verifier, adminMethods...))
	}
	return grpc_middleware.ChainUnaryServer(chain...)
}
