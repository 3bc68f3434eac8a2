package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zhejian/url-shortener/qrform/internal/auth"
)

const authKey = "qrform.auth"

// TokenVerifier turns a session token into the caller's auth context
type TokenVerifier interface {
	Verify(token string) (auth.Context, error)
}

// Auth resolves the caller from the auth service's session cookie or a
// Bearer header. Missing or invalid tokens make the caller a guest; the
// request is never rejected here.
func Auth(v TokenVerifier, cookieName string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(cookieName)
		}

		caller, err := v.Verify(token)
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			logger.DebugContext(c.Request.Context(), "ignoring session token",
				slog.String("error", err.Error()))
		}
		c.Set(authKey, caller)
		c.Next()
	}
}

// Caller returns the auth context stored by Auth, or a guest
func Caller(c *gin.Context) auth.Context {
	if v, ok := c.Get(authKey); ok {
		if caller, ok := v.(auth.Context); ok {
			return caller
		}
	}
	return auth.Guest
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
