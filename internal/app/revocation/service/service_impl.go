package service

import (
	"context"
	"fmt"

	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/repo"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/metrics"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type revocationService struct {
	store   repo.Store
	clock   clock.Clock
	v       *validator.Validate
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(
	store repo.Store,
	clk clock.Clock,
	v *validator.Validate,
	log *zap.Logger,
	m *metrics.Metrics,
) Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &revocationService{
		store: store, clock: clk, v: v, log: log, metrics: m,
	}
}

func (s *revocationService) validate(sub model.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if err := s.v.Struct(sub.Data); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}
	return nil
}

func (s *revocationService) Submit(ctx context.Context, sub model.Submission) (model.Record, error) {
	if err := s.validate(sub); err != nil {
		return model.Record{}, err
	}

	rec := model.Stamp(sub, s.clock.Now())
	if err := s.store.StoreRevocation(ctx, rec); err != nil {
		s.metrics.ObserveStoreError("store")
		s.log.Warn("store revocation failed",
			zap.String("type", rec.Type.String()),
			zap.Error(err),
		)
		return model.Record{}, err
	}

	s.metrics.ObserveSubmitted(rec.Type.String())
	s.log.Info("revocation stored",
		zap.String("type", rec.Type.String()),
		zap.Int64("revoked_at", rec.RevokedAt),
	)
	return rec, nil
}

func (s *revocationService) SubmitBatch(ctx context.Context, subs []model.Submission) ([]model.Record, error) {
	if len(subs) == 0 {
		return nil, customErrors.NewInvalidArgument("batch is empty")
	}
	if len(subs) > MaxBatchSize {
		return nil, customErrors.NewInvalidArgument(fmt.Sprintf("batch exceeds %d revocations", MaxBatchSize))
	}
	for i, sub := range subs {
		if err := s.validate(sub); err != nil {
			return nil, fmt.Errorf("revocation %d: %w", i, err)
		}
	}

	now := s.clock.Now()
	stored := make([]model.Record, 0, len(subs))
	for i, sub := range subs {
		rec := model.Stamp(sub, now)
		if err := s.store.StoreRevocation(ctx, rec); err != nil {
			s.metrics.ObserveStoreError("store")
			s.log.Warn("batch interrupted",
				zap.Int("stored", len(stored)),
				zap.Int("total", len(subs)),
				zap.Error(err),
			)
			return stored, fmt.Errorf("revocation %d: %w", i, err)
		}
		s.metrics.ObserveSubmitted(rec.Type.String())
		stored = append(stored, rec)
	}

	s.log.Info("revocation batch stored",
		zap.Int("count", len(stored)),
		zap.Int64("revoked_at", now),
	)
	return stored, nil
}

func (s *revocationService) Query(ctx context.Context, since int64) ([]model.Record, error) {
	recs, err := s.store.GetRevocations(ctx, since)
	if err != nil {
		s.metrics.ObserveStoreError("query")
		s.log.Warn("query revocations failed",
			zap.Int64("since", since),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.ObserveQuery(len(recs))
	s.log.Debug("revocations queried",
		zap.Int64("since", since),
		zap.Int("count", len(recs)),
	)
	return recs, nil
}

func (s *revocationService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}
