package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chrisfit/storefront/internal/clock"
	"github.com/chrisfit/storefront/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestSetUsesClockForMaxAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(Params{Config: config.Config{AuthCookieSecure: true}, Clock: clock.NewFakeClock(now)})

	c, w := newTestContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	m.Set(c, "tok", now.Add(time.Hour).Add(300*time.Millisecond))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.Equal(t, 3601, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, "/", cookies[0].Path)
}

func TestSetExpiredClearsCookie(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewManager(Params{Clock: clock.NewFakeClock(now)})

	c, w := newTestContext(httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	m.Set(c, "tok", now.Add(-time.Minute))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestReadToken(t *testing.T) {
	m := NewManager(Params{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	c, _ := newTestContext(req)
	token, ok := m.ReadToken(c)
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	blank := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	blank.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: ""})
	c, _ = newTestContext(blank)
	_, ok = m.ReadToken(c)
	assert.False(t, ok)

	c, _ = newTestContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	_, ok = m.ReadToken(c)
	assert.False(t, ok)
}
