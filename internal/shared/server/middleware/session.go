package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"cardscan-backend/internal/shared/server/respond"
)

const (
	sessionIDKey = "sessionId"

	// SessionHeader names the header that scopes uploads and results.
	SessionHeader = "X-Session-Id"
	// DefaultSessionID is used when a request carries no session header.
	DefaultSessionID = "default"

	maxSessionIDLen = 128
)

// Session resolves the caller's session id and stores it in context.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		if id == "" {
			id = DefaultSessionID
		}
		if !validSessionID(id) {
			respond.Error(c, http.StatusBadRequest, "invalid_session", "X-Session-Id must be at most 128 printable characters", nil)
			return
		}

		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// SessionIDFromContext fetches the session ID set by the Session middleware.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(sessionIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

func validSessionID(id string) bool {
	if len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
