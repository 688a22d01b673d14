// Package storetest is a conformance suite every repo.Store backend runs from
// its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/repo"
)

type Factory func(t *testing.T) repo.Store

type PurgerFactory func(t *testing.T) interface {
	repo.Store
	repo.Purger
}

func token(hash string, at int64) model.Record {
	return model.Record{Type: model.TypeToken, Data: model.TokenData{TokenHash: hash, HashAlgorithm: "SHA-256"}, RevokedAt: at}
}

func mustStore(t *testing.T, s repo.Store, rec model.Record) {
	t.Helper()
	if err := s.StoreRevocation(context.Background(), rec); err != nil {
		t.Fatalf("StoreRevocation(%+v): %v", rec, err)
	}
}

func mustQuery(t *testing.T, s repo.Store, since int64) []model.Record {
	t.Helper()
	got, err := s.GetRevocations(context.Background(), since)
	if err != nil {
		t.Fatalf("GetRevocations(%d): %v", since, err)
	}
	return got
}

func count(recs []model.Record, want model.Record) int {
	n := 0
	for _, r := range recs {
		if r == want {
			n++
		}
	}
	return n
}

// Run exercises the Store contract against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("QueryBelowTimestampReturnsRecord", func(t *testing.T) {
		s := newStore(t)
		rec := token("abc", 1000)
		mustStore(t, s, rec)

		got := mustQuery(t, s, 900)
		if len(got) != 1 || got[0] != rec {
			t.Fatalf("want [%+v], got %+v", rec, got)
		}
		if got[0].RevokedAt != 1000 {
			t.Fatalf("want revoked_at 1000 got %d", got[0].RevokedAt)
		}
	})

	t.Run("QueryAboveTimestampIsEmpty", func(t *testing.T) {
		s := newStore(t)
		mustStore(t, s, token("abc", 1000))

		if got := mustQuery(t, s, 1001); len(got) != 0 {
			t.Fatalf("want empty, got %+v", got)
		}
	})

	t.Run("LowerBoundIsInclusive", func(t *testing.T) {
		s := newStore(t)
		a, b := token("a", 1000), token("b", 1000)
		mustStore(t, s, a)
		mustStore(t, s, b)

		got := mustQuery(t, s, 1000)
		if len(got) != 2 || count(got, a) != 1 || count(got, b) != 1 {
			t.Fatalf("want both same-second records, got %+v", got)
		}
	})

	t.Run("NegativeSinceOnEmptyStore", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetRevocations(context.Background(), -1)
		if err != nil {
			t.Fatalf("negative since must not error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("want empty, got %+v", got)
		}
	})

	t.Run("FarFutureSinceIsEmpty", func(t *testing.T) {
		s := newStore(t)
		mustStore(t, s, token("a", 1000))
		if got := mustQuery(t, s, 1<<40); len(got) != 0 {
			t.Fatalf("want empty, got %+v", got)
		}
	})

	t.Run("WatermarkExclusivity", func(t *testing.T) {
		s := newStore(t)
		for i := int64(0); i < 10; i++ {
			mustStore(t, s, token(fmt.Sprintf("h%d", i), 1000+i))
		}
		got := mustQuery(t, s, 1005)
		if len(got) != 5 {
			t.Fatalf("want 5 records, got %d", len(got))
		}
		for _, r := range got {
			if r.RevokedAt < 1005 {
				t.Fatalf("record below watermark returned: %+v", r)
			}
		}
	})

	t.Run("NoDeduplication", func(t *testing.T) {
		s := newStore(t)
		rec := token("dup", 1000)
		mustStore(t, s, rec)
		mustStore(t, s, rec)

		if n := count(mustQuery(t, s, 0), rec); n != 2 {
			t.Fatalf("want the record twice, got %d", n)
		}
	})

	t.Run("AllTypesRoundTrip", func(t *testing.T) {
		s := newStore(t)
		recs := []model.Record{
			token("t", 10),
			{Type: model.TypePassword, Data: model.PasswordData{Username: "jdoe", IssuedBefore: 9}, RevokedAt: 10},
			{Type: model.TypeClient, Data: model.ClientData{ClientID: "svc", IssuedBefore: 8}, RevokedAt: 10},
		}
		for _, r := range recs {
			mustStore(t, s, r)
		}
		got := mustQuery(t, s, 10)
		for _, r := range recs {
			if count(got, r) != 1 {
				t.Fatalf("record %+v not returned verbatim in %+v", r, got)
			}
		}
	})

	t.Run("RejectsInvalidRecords", func(t *testing.T) {
		s := newStore(t)
		bad := []model.Record{
			{Type: model.TypeToken, Data: model.TokenData{TokenHash: "x"}},
			{Type: model.TypeToken},
			{Type: model.TypeClient, Data: model.TokenData{TokenHash: "x"}, RevokedAt: 1},
		}
		for _, r := range bad {
			if err := s.StoreRevocation(context.Background(), r); !customErrors.IsInvalidArgument(err) {
				t.Fatalf("want invalid argument for %+v, got %v", r, err)
			}
		}
		if got := mustQuery(t, s, -1); len(got) != 0 {
			t.Fatalf("rejected records must not be stored, got %+v", got)
		}
	})

	t.Run("RejectsRevokedAtPastIDRange", func(t *testing.T) {
		s := newStore(t)
		err := s.StoreRevocation(context.Background(), token("far", model.MaxRevokedAt+1))
		if !customErrors.IsInvalidArgument(err) {
			t.Fatalf("want invalid argument, got %v", err)
		}
	})

	t.Run("AppendOnly", func(t *testing.T) {
		s := newStore(t)
		first := token("first", 1000)
		mustStore(t, s, first)
		before := mustQuery(t, s, 0)

		mustStore(t, s, token("second", 1000))
		mustStore(t, s, token("third", 999))

		after := mustQuery(t, s, 0)
		if count(before, first) != 1 || count(after, first) != 1 {
			t.Fatalf("earlier record changed: before=%+v after=%+v", before, after)
		}
		if len(after) != 3 {
			t.Fatalf("want 3 records, got %d", len(after))
		}
	})

	t.Run("ConcurrentWritersNoFalseNegatives", func(t *testing.T) {
		s := newStore(t)
		const writers, perWriter = 8, 25
		const base = int64(5000)

		var wg sync.WaitGroup
		errs := make(chan error, writers*perWriter)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					rec := token(fmt.Sprintf("w%d-%d", w, i), base+int64(i%3))
					if err := s.StoreRevocation(context.Background(), rec); err != nil {
						errs <- err
					}
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent store: %v", err)
		}

		got := mustQuery(t, s, base)
		if len(got) != writers*perWriter {
			t.Fatalf("want %d records, got %d", writers*perWriter, len(got))
		}
	})

	t.Run("ReadersDuringWrites", func(t *testing.T) {
		s := newStore(t)
		mustStore(t, s, token("seed", 100))

		var wg sync.WaitGroup
		stop := make(chan struct{})
		failures := make(chan string, 16)
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					got, err := s.GetRevocations(context.Background(), 100)
					if err != nil {
						failures <- err.Error()
						return
					}
					if count(got, token("seed", 100)) != 1 {
						failures <- "seed record missing from a query"
						return
					}
					for _, rec := range got {
						if rec.Validate() != nil {
							failures <- fmt.Sprintf("half-visible record %+v", rec)
							return
						}
					}
				}
			}()
		}
		for i := 0; i < 50; i++ {
			mustStore(t, s, token(fmt.Sprintf("live-%d", i), 100+int64(i)))
		}
		close(stop)
		wg.Wait()
		close(failures)
		for f := range failures {
			t.Fatal(f)
		}
		if got := mustQuery(t, s, 100); len(got) != 51 {
			t.Fatalf("want 51 records, got %d", len(got))
		}
	})
}

// RunUpperBound checks that identical records at the last storable second
// stay distinct. Backends that only scan up to the current time skip it.
func RunUpperBound(t *testing.T, newStore Factory) {
	t.Run("NoDeduplicationAtUpperBound", func(t *testing.T) {
		s := newStore(t)
		rec := token("far", model.MaxRevokedAt)
		mustStore(t, s, rec)
		mustStore(t, s, rec)

		if n := count(mustQuery(t, s, model.MaxRevokedAt), rec); n != 2 {
			t.Fatalf("stored twice, got %d back", n)
		}
	})
}

// RunPurge checks retention for backends implementing repo.Purger.
func RunPurge(t *testing.T, newStore PurgerFactory) {
	t.Run("PurgeBeforeCutoff", func(t *testing.T) {
		s := newStore(t)
		old, edge, fresh := token("old", 100), token("edge", 200), token("fresh", 300)
		for _, r := range []model.Record{old, edge, fresh} {
			mustStore(t, s, r)
		}

		n, err := s.PurgeBefore(context.Background(), 200)
		if err != nil {
			t.Fatalf("PurgeBefore: %v", err)
		}
		if n != 1 {
			t.Fatalf("want 1 purged, got %d", n)
		}
		got := mustQuery(t, s, 0)
		if len(got) != 2 || count(got, old) != 0 || count(got, edge) != 1 || count(got, fresh) != 1 {
			t.Fatalf("unexpected survivors %+v", got)
		}
	})

	t.Run("PurgeEmptyStore", func(t *testing.T) {
		s := newStore(t)
		n, err := s.PurgeBefore(context.Background(), 1<<40)
		if err != nil || n != 0 {
			t.Fatalf("want 0,nil got %d,%v", n, err)
		}
	})
}
