package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/db/memory"
	appsvc "github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/revocation/service"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

var errBackendDown = customErrors.WrapUnavailable(errors.New("connection refused"), "stub")

type downStore struct{}

func (downStore) StoreRevocation(context.Context, model.Record) error { return errBackendDown }
func (downStore) GetRevocations(context.Context, int64) ([]model.Record, error) {
	return nil, errBackendDown
}
func (downStore) Ping(context.Context) error { return errBackendDown }

// flakyStore fails every store after the first n.
type flakyStore struct {
	*memory.MemoryStore
	mu   sync.Mutex
	left int
}

func (f *flakyStore) StoreRevocation(ctx context.Context, rec model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.left == 0 {
		return errBackendDown
	}
	f.left--
	return f.MemoryStore.StoreRevocation(ctx, rec)
}

/* ───────────────────────────── helpers ───────────────────────────── */

func newSvc(t *testing.T) (appsvc.Service, *clock.Manual, *memory.MemoryStore) {
	t.Helper()
	store := memory.NewMemoryStore()
	clk := clock.NewManual(1000)
	return appsvc.New(store, clk, validator.New(), zap.NewNop(), nil), clk, store
}

func tokenSub(hash string) model.Submission {
	return model.NewSubmission(model.TokenData{TokenHash: hash})
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestSubmit_StampsWithServerClock(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	rec, err := svc.Submit(ctx, tokenSub("abc"))
	require.NoError(t, err)
	require.Equal(t, int64(1000), rec.RevokedAt)
	require.Equal(t, model.TypeToken, rec.Type)
	require.Equal(t, model.TokenData{TokenHash: "abc", HashAlgorithm: model.DefaultHashAlgorithm}, rec.Data)

	got, err := svc.Query(ctx, 900)
	require.NoError(t, err)
	require.Equal(t, []model.Record{rec}, got)
}

func TestQuery_AboveTimestampIsEmpty(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, tokenSub("abc"))
	require.NoError(t, err)

	got, err := svc.Query(ctx, 1001)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestQuery_SameSecondBothReturned(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, tokenSub("a"))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, tokenSub("a"))
	require.NoError(t, err)

	got, err := svc.Query(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestQuery_NegativeSinceOnEmptyStore(t *testing.T) {
	svc, _, _ := newSvc(t)

	got, err := svc.Query(context.Background(), -1)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestOutage_PropagatesUnavailable(t *testing.T) {
	svc := appsvc.New(downStore{}, clock.NewManual(1000), validator.New(), zap.NewNop(), nil)
	ctx := context.Background()

	got, err := svc.Query(ctx, 0)
	require.Nil(t, got)
	require.True(t, customErrors.IsUnavailable(err), "query: %v", err)

	_, err = svc.Submit(ctx, tokenSub("abc"))
	require.True(t, customErrors.IsUnavailable(err), "submit: %v", err)

	require.True(t, customErrors.IsUnavailable(svc.Ready(ctx)))
}

func TestSubmit_Validation(t *testing.T) {
	svc, _, store := newSvc(t)
	ctx := context.Background()

	bad := []model.Submission{
		{},
		{Type: model.TypeToken},
		{Type: model.TypePassword, Data: model.TokenData{TokenHash: "x"}},
		model.NewSubmission(model.TokenData{TokenHash: "x", HashAlgorithm: "MD5"}),
		model.NewSubmission(model.PasswordData{Username: string(make([]byte, 300))}),
	}
	for _, sub := range bad {
		_, err := svc.Submit(ctx, sub)
		require.True(t, customErrors.IsInvalidArgument(err), "submission %+v: %v", sub, err)
	}
	require.Equal(t, 0, store.Len(), "invalid submissions must not reach the store")
}

func TestSubmit_PasswordCutoffDefaultsToNow(t *testing.T) {
	svc, clk, _ := newSvc(t)
	clk.Set(4242)

	rec, err := svc.Submit(context.Background(), model.NewSubmission(model.PasswordData{Username: "jdoe"}))
	require.NoError(t, err)
	require.Equal(t, model.PasswordData{Username: "jdoe", IssuedBefore: 4242}, rec.Data)
}

func TestSubmit_RecordsMetrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	svc := appsvc.New(memory.NewMemoryStore(), clock.NewManual(10), validator.New(), zap.NewNop(), m)

	_, err = svc.Submit(context.Background(), model.NewSubmission(model.ClientData{ClientID: "svc"}))
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(m.Submitted.WithLabelValues("CLIENT")))
}

func TestSubmitBatch(t *testing.T) {
	svc, _, store := newSvc(t)
	ctx := context.Background()

	recs, err := svc.SubmitBatch(ctx, []model.Submission{
		tokenSub("a"),
		model.NewSubmission(model.ClientData{ClientID: "svc"}),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		require.Equal(t, int64(1000), r.RevokedAt)
	}
	require.Equal(t, 2, store.Len())

	_, err = svc.SubmitBatch(ctx, nil)
	require.True(t, customErrors.IsInvalidArgument(err))

	_, err = svc.SubmitBatch(ctx, []model.Submission{tokenSub("ok"), {Type: model.TypeToken}})
	require.True(t, customErrors.IsInvalidArgument(err))
	require.Equal(t, 2, store.Len(), "a batch with an invalid item stores nothing")

	tooMany := make([]model.Submission, appsvc.MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = tokenSub("x")
	}
	_, err = svc.SubmitBatch(ctx, tooMany)
	require.True(t, customErrors.IsInvalidArgument(err))
}

func TestSubmitBatch_PartialFailureReturnsStored(t *testing.T) {
	store := &flakyStore{MemoryStore: memory.NewMemoryStore(), left: 2}
	svc := appsvc.New(store, clock.NewManual(1000), validator.New(), zap.NewNop(), nil)

	recs, err := svc.SubmitBatch(context.Background(), []model.Submission{tokenSub("a"), tokenSub("b"), tokenSub("c")})
	require.True(t, customErrors.IsUnavailable(err), "got %v", err)
	require.Len(t, recs, 2)
	require.Equal(t, 2, store.Len())
}

func TestConcurrentSubmitThenQuery(t *testing.T) {
	svc, _, _ := newSvc(t)
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, tokenSub("same"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Query(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, got, n)
}
