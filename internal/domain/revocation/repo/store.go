package repo

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
)

// Store is the append-only revocation log.
//
// StoreRevocation never deduplicates: the same logical revocation submitted
// twice is stored twice. GetRevocations returns every record with
// RevokedAt >= since that was stored before the call began, in no particular
// order. Records stored concurrently with a query may or may not be included.
// Backend failures are returned as errors wrapping ErrUnavailable and must
// never be reported as an empty result.
type Store interface {
	StoreRevocation(ctx context.Context, rec model.Record) error

	GetRevocations(ctx context.Context, since int64) ([]model.Record, error)

	Ping(ctx context.Context) error
}

// Purger is implemented by backends that support retention. Queries already
// running when PurgeBefore is called either see a record in full or not at all.
type Purger interface {
	PurgeBefore(ctx context.Context, cutoff int64) (int64, error)
}
