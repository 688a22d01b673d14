package service

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
)

// MaxBatchSize bounds SubmitBatch.
const MaxBatchSize = 100

// Service is the only caller-facing surface onto the revocation store.
// Revocation is one-way: there is no update or delete.
type Service interface {
	// Submit stamps the submission with the server clock and stores it.
	Submit(ctx context.Context, sub model.Submission) (model.Record, error)
	// SubmitBatch validates every submission, then stores them one by one.
	// The batch is not atomic: on failure the records stored so far are
	// returned together with the error.
	SubmitBatch(ctx context.Context, subs []model.Submission) ([]model.Record, error)
	// Query returns every record revoked at or after since.
	Query(ctx context.Context, since int64) ([]model.Record, error)
	Ready(ctx context.Context) error
}
