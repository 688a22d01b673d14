package middleware

import (
	"net/http"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimitPerIP answers 429 once a client address exhausts its bucket.
func RateLimitPerIP(l *ratelimit.PerKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:     "rate limit exceeded",
				RequestID: GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
