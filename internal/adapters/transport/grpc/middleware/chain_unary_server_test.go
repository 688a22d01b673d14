package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/ratelimit"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/auth/jwt"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func ctxIP(ip string) context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: 80},
	})
}

func ok(context.Context, any) (any, error) { return "ok", nil }

func call(chain grpc.UnaryServerInterceptor, ctx context.Context, method string) error {
	_, err := chain(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, ok)
	return err
}

func TestChainUnaryServer_PanicRecovered(t *testing.T) {
	chain := ChainUnaryServer(zap.NewNop(), ratelimit.New(10, 10, 100, time.Hour), nil)

	_, err := chain(ctxIP("8.8.8.8"), nil, &grpc.UnaryServerInfo{},
		func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})
	if status.Code(err) != codes.Internal {
		t.Fatalf("panic must become Internal, got %v", err)
	}
}

func TestChainUnaryServer_RateLimitInsideChain(t *testing.T) {
	chain := ChainUnaryServer(zap.NewNop(), ratelimit.New(1, 1, 100, time.Hour), nil)

	ctx := ctxIP("9.9.9.9")
	if err := call(chain, ctx, "/x"); err != nil {
		t.Fatalf("first call unexpected err: %v", err)
	}
	if err := call(chain, ctx, "/x"); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("second call must hit rate limit, got %v", err)
	}
	if err := call(chain, ctxIP("9.9.9.10"), "/x"); err != nil {
		t.Fatalf("other peer must not be limited: %v", err)
	}
}

func TestRateLimitPerIP_NoPeer(t *testing.T) {
	intc := NewRateLimitPerIP(ratelimit.New(10, 10, 10, time.Hour))
	if err := call(intc, context.Background(), "/x"); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("call without peer must be rejected, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	iss, err := jwt.NewTestIssuer()
	if err != nil {
		t.Fatal(err)
	}
	v, err := jwt.NewAdminVerifierFromPEM(iss.PublicPEM, "", "", "revocation:write")
	if err != nil {
		t.Fatal(err)
	}
	chain := ChainUnaryServer(zap.NewNop(), nil, v, "/svc/Write")

	withToken := func(tok string) context.Context {
		return metadata.NewIncomingContext(ctxIP("1.1.1.1"), metadata.Pairs("authorization", "Bearer "+tok))
	}

	if err := call(chain, ctxIP("1.1.1.1"), "/svc/Read"); err != nil {
		t.Fatalf("unguarded method must pass: %v", err)
	}
	if err := call(chain, ctxIP("1.1.1.1"), "/svc/Write"); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("missing token: want Unauthenticated, got %v", err)
	}

	reader, _ := iss.Sign("", "", "revocation:read", time.Minute)
	if err := call(chain, withToken(reader), "/svc/Write"); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("missing scope: want PermissionDenied, got %v", err)
	}

	writer, _ := iss.Sign("", "", "revocation:write", time.Minute)
	if err := call(chain, withToken(writer), "/svc/Write"); err != nil {
		t.Fatalf("admin token must pass: %v", err)
	}
}
