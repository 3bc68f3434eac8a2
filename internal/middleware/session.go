package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "qrform.session"

// Session gives every browser a stable anonymous id so its recent codes can
// be listed. The id is only a history key and grants nothing.
func Session(cookieName string, maxAge time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, int(maxAge.Seconds()), "/", "", secure, true)
		}
		c.Set(sessionKey, id)
		c.Next()
	}
}

// SessionID returns the id stored by Session
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
