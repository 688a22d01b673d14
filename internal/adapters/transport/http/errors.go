package http

import (
	"net/http"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/middleware"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/gin-gonic/gin"
)

func statusOf(err error) (int, string) {
	switch {
	case customErrors.IsInvalidArgument(err):
		return http.StatusBadRequest, err.Error()
	case customErrors.IsUnauthorized(err):
		return http.StatusUnauthorized, "unauthorized"
	case customErrors.IsForbidden(err):
		return http.StatusForbidden, "forbidden"
	case customErrors.IsUnavailable(err):
		return http.StatusServiceUnavailable, "revocation store unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func handleError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, msg := statusOf(err)
	c.JSON(status, dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}
