package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/astrolab-backend/internal/requestdata"
)

// AttachRequestContext resolves the caller's session identity and stores it
// in the request context. The session id comes from the X-Session-ID header;
// anonymous callers without one get a generated id so every tracked event has
// a session.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := strings.TrimSpace(c.GetHeader("X-Session-ID"))
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		rd := &requestdata.RequestData{SessionID: sessionID}
		ctx := requestdata.WithRequestData(c.Request.Context(), rd)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
