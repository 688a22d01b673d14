package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/memory"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingPurger struct{ calls int }

func (f *failingPurger) PurgeBefore(context.Context, int64) (int64, error) {
	f.calls++
	return 0, customErrors.WrapUnavailable(errors.New("timeout"), "stub purge")
}

func seed(t *testing.T, s *memory.MemoryStore, at ...int64) {
	t.Helper()
	for _, ts := range at {
		rec := model.Record{Type: model.TypeClient, Data: model.ClientData{ClientID: "svc"}, RevokedAt: ts}
		require.NoError(t, s.StoreRevocation(context.Background(), rec))
	}
}

func TestPurgeOnce_DropsExpired(t *testing.T) {
	store := memory.NewMemoryStore()
	seed(t, store, 100, 500, 900)
	clk := clock.NewManual(1000)

	j := NewJanitor(store, clk, 500*time.Second, time.Hour, zap.NewNop(), nil)
	n, err := j.PurgeOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := store.GetRevocations(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		require.GreaterOrEqual(t, r.RevokedAt, int64(500))
	}
}

func TestPurgeOnce_ZeroPeriodKeepsEverything(t *testing.T) {
	store := memory.NewMemoryStore()
	seed(t, store, 1, 2, 3)

	j := NewJanitor(store, clock.NewManual(1_000_000), 0, time.Hour, zap.NewNop(), nil)
	require.False(t, j.Enabled())
	n, err := j.PurgeOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 3, store.Len())

	require.NoError(t, j.Run(context.Background()))
}

func TestPurgeOnce_ErrorIsReturned(t *testing.T) {
	p := &failingPurger{}
	j := NewJanitor(p, clock.NewManual(1000), time.Second, time.Hour, zap.NewNop(), nil)

	_, err := j.PurgeOnce(context.Background())
	require.True(t, customErrors.IsUnavailable(err))
	require.Equal(t, 1, p.calls)
}

func TestRun_SurvivesErrorsAndStopsOnCancel(t *testing.T) {
	p := &failingPurger{}
	j := NewJanitor(p, clock.NewManual(1000), time.Second, 5*time.Millisecond, zap.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	require.NoError(t, j.Run(ctx))
	require.GreaterOrEqual(t, p.calls, 2, "janitor must keep ticking after a failed purge")
}
