package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/middleware"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/revocation/service"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/model"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/infra/clock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxBodyBytes caps a batch of MaxBatchSize reasonably sized payloads.
const maxBodyBytes = 1 << 20

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

func (h *Handler) Submit(c *gin.Context) {
	var body dto.SubmitDTO
	if err := bindJSON(c, &body); err != nil {
		handleError(c, err)
		return
	}
	sub, err := body.Submission()
	if err != nil {
		handleError(c, err)
		return
	}

	rec, err := h.svc.Submit(c.Request.Context(), sub)
	if err != nil {
		handleError(c, err)
		return
	}
	h.log.Info("/revocations",
		zap.String("type", rec.Type.String()),
		zap.String("admin", middleware.AdminSubject(c)),
	)
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) SubmitBatch(c *gin.Context) {
	var body dto.BatchDTO
	if err := bindJSON(c, &body); err != nil {
		handleError(c, err)
		return
	}
	subs, err := body.Submissions()
	if err != nil {
		handleError(c, err)
		return
	}

	recs, err := h.svc.SubmitBatch(c.Request.Context(), subs)
	if err != nil {
		if len(recs) == 0 {
			handleError(c, err)
			return
		}
		_ = c.Error(err)
		status, msg := statusOf(err)
		c.JSON(status, dto.BatchResponse{Revocations: recs, Error: msg})
		return
	}
	h.log.Info("/revocations/batch",
		zap.Int("count", len(recs)),
		zap.String("admin", middleware.AdminSubject(c)),
	)
	c.JSON(http.StatusCreated, dto.BatchResponse{Revocations: recs})
}

// Query answers GET /revocations?since=. server_time is read before the store
// so a client may use it as its next watermark without skipping anything.
func (h *Handler) Query(c *gin.Context) {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		handleError(c, err)
		return
	}

	serverTime := h.clock.Now()
	recs, err := h.svc.Query(c.Request.Context(), since)
	if err != nil {
		handleError(c, err)
		return
	}
	if recs == nil {
		recs = []model.Record{}
	}
	c.JSON(http.StatusOK, dto.QueryResponse{
		Meta:        dto.Meta{ServerTime: serverTime},
		Revocations: recs,
	})
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": h.clock.Now()})
}

func parseSince(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, customErrors.NewInvalidArgument("since is required")
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, customErrors.NewInvalidArgument("since must be an integer number of seconds")
	}
	return since, nil
}

func bindJSON(c *gin.Context, v any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(v); err != nil {
		return customErrors.NewInvalidArgument("malformed body: " + err.Error())
	}
	return nil
}
