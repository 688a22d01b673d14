package memory

import (
	"context"
	"sync"
	"sync/atomic"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
)

// MemoryStore keeps revocations in process memory.
//
// The log is an append-only slice published through an atomic pointer.
// Writers serialise among themselves on mu and publish a new slice header
// after the element is written; readers load a header and scan it without
// taking any lock. Appends only ever write past the length of every
// published header, so a reader's snapshot never changes underneath it.
type MemoryStore struct {
	mu      sync.Mutex
	records atomic.Pointer[[]model.Record]
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	empty := make([]model.Record, 0, 64)
	s.records.Store(&empty)
	return s
}

func (s *MemoryStore) StoreRevocation(ctx context.Context, rec model.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return customErrors.WrapUnavailable(err, "memory store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(*s.records.Load(), rec)
	s.records.Store(&next)
	return nil
}

func (s *MemoryStore) GetRevocations(ctx context.Context, since int64) ([]model.Record, error) {
	snapshot := *s.records.Load()

	out := make([]model.Record, 0)
	for i, rec := range snapshot {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, customErrors.WrapUnavailable(err, "memory scan")
			}
		}
		if rec.RevokedAt >= since {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PurgeBefore drops records revoked before cutoff. The surviving records are
// copied into a fresh slice so snapshots held by running queries stay intact.
func (s *MemoryStore) PurgeBefore(ctx context.Context, cutoff int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, customErrors.WrapUnavailable(err, "memory purge")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.records.Load()
	kept := make([]model.Record, 0, len(current))
	for _, rec := range current {
		if rec.RevokedAt >= cutoff {
			kept = append(kept, rec)
		}
	}
	s.records.Store(&kept)
	return int64(len(current) - len(kept)), nil
}

func (s *MemoryStore) Len() int {
	return len(*s.records.Load())
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
