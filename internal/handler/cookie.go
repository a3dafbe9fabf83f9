package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie describes the browser cookie that carries a session token
type SessionCookie struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func (sc SessionCookie) read(c *gin.Context) string {
	value, err := c.Cookie(sc.Name)
	if err != nil {
		return ""
	}
	return value
}

func (sc SessionCookie) set(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, token, int(sc.MaxAge.Seconds()), "/", "", sc.Secure, true)
}

func (sc SessionCookie) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sc.Name, "", -1, "/", "", sc.Secure, true)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header
func bearerToken(c *gin.Context) string {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
