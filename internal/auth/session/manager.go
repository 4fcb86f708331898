package session

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultCookieName = "_sid"
	// QueryParam carries the token for EventSource clients, which cannot
	// set request headers.
	QueryParam = "access_token"
)

// Manager extracts bearer tokens from requests.
type Manager struct {
	cookieName string
}

func NewManager() *Manager {
	return &Manager{cookieName: DefaultCookieName}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken looks at the Authorization header, then the session cookie,
// then the access_token query parameter.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
		return "", false
	}
	if token, err := c.Cookie(m.cookieName); err == nil && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}
	if token := strings.TrimSpace(c.Query(QueryParam)); token != "" {
		return token, true
	}
	return "", false
}
