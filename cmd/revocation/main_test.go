package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_UnknownBackendReturnsError(t *testing.T) {
	err := run(&config.Config{StoreBackend: "etcd"}, zap.NewNop())
	require.Error(t, err)
}

func TestRun_StartupFailureClosesStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		StoreBackend:          config.BackendRedis,
		RedisAddress:          mr.Addr(),
		RedisKey:              "revocations",
		AdminJWTPublicKeyPath: filepath.Join(t.TempDir(), "missing.pem"),
		RateLimitRPS:          1,
		RateLimitBurst:        1,
	}

	err := run(cfg, zap.NewNop())
	require.ErrorContains(t, err, "admin verifier")
	require.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 },
		time.Second, 10*time.Millisecond, "redis pool left open after startup failure")
}
