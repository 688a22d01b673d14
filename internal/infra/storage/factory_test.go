package storage

import (
	"context"
	"testing"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/config"
	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{StoreBackend: config.BackendMemory}, clock.System{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Purger == nil {
		t.Fatal("memory backend must support purging")
	}
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{StoreBackend: config.BackendRedis, RedisAddress: mr.Addr(), RedisKey: "revs"}

	b, err := Open(context.Background(), cfg, clock.System{}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	rec := model.Record{Type: model.TypeToken, Data: model.TokenData{TokenHash: "h"}, RevokedAt: 10}
	if err := b.Store.StoreRevocation(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if n, _ := mr.ZMembers("revs"); len(n) != 1 {
		t.Fatalf("want one member under the configured key, got %v", n)
	}
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.Config{StoreBackend: config.BackendRedis, RedisAddress: addr}
	if _, err := Open(context.Background(), cfg, clock.System{}, zap.NewNop()); err == nil {
		t.Fatal("unreachable redis must fail at startup")
	}
}

func TestOpen_Unknown(t *testing.T) {
	if _, err := Open(context.Background(), &config.Config{StoreBackend: "etcd"}, clock.System{}, zap.NewNop()); err == nil {
		t.Fatal("unknown backend must fail")
	}
}
