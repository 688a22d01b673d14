package grpc

import (
	"context"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/revocation/service"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Handler struct {
	svc   service.Service
	clock clock.Clock
	log   *zap.Logger
}

func NewHandler(svc service.Service, clk clock.Clock, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, clock: clk, log: log}
}

func (h *Handler) Submit(ctx context.Context, req *SubmitRequest) (*model.Record, error) {
	if req.RevokedAt != nil {
		return nil, status.Error(codes.InvalidArgument, "revoked_at is assigned by the server")
	}
	sub, err := model.ParseSubmission(req.Type, req.Data)
	if err != nil {
		return nil, mapError(err)
	}
	rec, err := h.svc.Submit(ctx, sub)
	if err != nil {
		h.log.Warn("gRPC Submit error", zap.Error(err))
		return nil, mapError(err)
	}
	return &rec, nil
}

func (h *Handler) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req.Since == nil {
		return nil, status.Error(codes.InvalidArgument, "since is required")
	}

	serverTime := h.clock.Now()
	recs, err := h.svc.Query(ctx, *req.Since)
	if err != nil {
		h.log.Warn("gRPC Query error", zap.Int64("since", *req.Since), zap.Error(err))
		return nil, mapError(err)
	}
	if recs == nil {
		recs = []model.Record{}
	}
	return &QueryResponse{ServerTime: serverTime, Revocations: recs}, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, customErrors.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, customErrors.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, customErrors.ErrForbidden):
		return status.Error(codes.PermissionDenied, "insufficient scope")
	case errors.Is(err, customErrors.ErrUnavailable):
		return status.Error(codes.Unavailable, "revocation store unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
