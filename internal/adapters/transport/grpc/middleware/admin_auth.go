package middleware

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/auth/jwt"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequireAdmin checks the bearer token in the "authorization" metadata for
// the listed full method names. Other methods pass through.
func RequireAdmin(v jwt.Verifier, methods ...string) grpc.UnaryServerInterceptor {
	guarded := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		guarded[m] = struct{}{}
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := guarded[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var raw string
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = vals[0]
		}
		tok, ok := jwt.BearerToken(raw)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}

		if _, err := v.Verify(tok); err != nil {
			switch {
			case customErrors.IsForbidden(err):
				return nil, status.Error(codes.PermissionDenied, "insufficient scope")
			case customErrors.IsUnauthorized(err):
				return nil, status.Error(codes.Unauthenticated, "invalid token")
			default:
				return nil, status.Error(codes.Internal, "authentication failed")
			}
		}
		return handler(ctx, req)
	}
}
