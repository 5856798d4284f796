package session

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// DefaultCookieName carries the opaque admin session token.
const DefaultCookieName = "chrisfit_admin"

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock `optional:"true"`
}

// Manager reads and writes the admin session cookie. The cookie is HttpOnly
// and covers both /auth and /admin.
type Manager struct {
	cookieName string
	secure     bool
	clock      clock.Clock
}

func NewManager(p Params) *Manager {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     p.Config.AuthCookieSecure,
		clock:      c,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// ReadToken returns the raw token, or false when the cookie is missing or blank.
func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Set issues the cookie until expiresAt. Partial seconds round up so the
// browser never drops the cookie before the server expires the session.
func (m *Manager) Set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(math.Ceil(expiresAt.Sub(m.clock.Now()).Seconds()))
	if maxAge <= 0 {
		m.Clear(c)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, token, maxAge, "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}
