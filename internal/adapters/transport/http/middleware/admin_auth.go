package middleware

import (
	"net/http"

	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/MoonyAndStarry/revocation-service/internal/app/auth/jwt"
	customErrors "github.com/Miraines/MoonyAndStarry/revocation-service/internal/domain/revocation/errors"
	"github.com/gin-gonic/gin"
)

const adminSubjectKey = "admin_subject"

// RequireAdmin guards submission endpoints. A nil verifier disables the
// check, which is how the service runs inside a trusted network.
func RequireAdmin(v jwt.Verifier) gin.HandlerFunc {
	if v == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		raw, ok := jwt.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := v.Verify(raw)
		switch {
		case err == nil:
		case customErrors.IsForbidden(err):
			abort(c, http.StatusForbidden, "insufficient scope")
			return
		case customErrors.IsUnauthorized(err):
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		default:
			_ = c.Error(err)
			abort(c, http.StatusInternalServerError, "authentication failed")
			return
		}

		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

func AdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: msg, RequestID: GetRequestID(c)})
}
