package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/autoclaim/internal/application/service"
	"github.com/garyjia/autoclaim/internal/domain/entity"
)

const (
	sessionHeader = "X-Session-ID"
	sessionKey    = "session"

	roleEmployee = entity.RoleEmployee
	roleAdmin    = entity.RoleAdmin
)

// sessionMiddleware resolves the caller's session from X-Session-ID or a Bearer token
func sessionMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sessionIDFromRequest(c.Request)
		if id == "" {
			abortWith(c, http.StatusUnauthorized, "session required")
			return
		}

		session, err := sessions.Authenticate(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// requireRole rejects sessions of any other role
func requireRole(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		if session == nil || session.Role != role {
			abortWith(c, http.StatusForbidden, entity.ErrForbidden.Error())
			return
		}
		c.Next()
	}
}

func sessionIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func currentSession(c *gin.Context) *entity.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*entity.Session)
	return session
}

func abortWith(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Error: message})
}
