package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestEncodeDecode(t *testing.T) {
	m := NewManager("secret", "ru")

	value, err := m.Encode(&Session{Lang: "en", Flash: []Flash{{Level: LevelInfo, Key: "saved", Message: "Saved"}}})
	require.NoError(t, err)

	s, err := m.Decode(value)
	require.NoError(t, err)
	assert.Equal(t, "en", s.Lang)
	require.Len(t, s.Flash, 1)
	assert.Equal(t, "saved", s.Flash[0].Key)
}

func TestDecodeRejectsTampering(t *testing.T) {
	m := NewManager("secret", "ru")
	value, err := m.Encode(&Session{Lang: "en"})
	require.NoError(t, err)

	parts := strings.Split(value, ".")
	require.Len(t, parts, 3)
	forged := parts[0] + "." + parts[1] + "x." + parts[2]
	_, err = m.Decode(forged)
	assert.Error(t, err)

	_, err = NewManager("other", "ru").Decode(value)
	assert.Error(t, err)

	_, err = m.Decode("not-a-token")
	assert.Error(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	m := NewManager("secret", "ru")
	m.now = func() time.Time { return time.Now().Add(-2 * defaultTTL) }
	value, err := m.Encode(&Session{Lang: "en"})
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Decode(value)
	assert.Error(t, err)
}

func newRouter(m *Manager) *gin.Engine {
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, Lang(c))
	})
	r.POST("/save", func(c *gin.Context) {
		AddFlash(c, LevelSuccess, "imported", map[string]string{"n": "2"})
		c.Status(http.StatusNoContent)
	})
	r.GET("/flash", func(c *gin.Context) {
		c.JSON(http.StatusOK, Consume(c))
	})
	return r
}

func lastCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			found = c
		}
	}
	require.NotNil(t, found, "response sets the session cookie")
	return found
}

func TestMiddlewareResolvesLanguage(t *testing.T) {
	m := NewManager("secret", "ru")
	r := newRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lang", nil))
	assert.Equal(t, "ru", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lang?lang=en", nil))
	assert.Equal(t, "en", w.Body.String())
	cookie := lastCookie(t, w)

	// the choice sticks through the cookie
	req := httptest.NewRequest(http.MethodGet, "/lang", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "en", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lang?lang=de", nil))
	assert.Equal(t, "en", w.Body.String())
}

func TestTamperedCookieIsIgnored(t *testing.T) {
	m := NewManager("secret", "ru")
	r := newRouter(m)

	forged, err := NewManager("guess", "ru").Encode(&Session{Lang: "en"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/lang", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: forged})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "ru", w.Body.String())
}

func TestFlashIsConsumedOnce(t *testing.T) {
	m := NewManager("secret", "en")
	r := newRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/save", nil))
	cookie := lastCookie(t, w)

	req := httptest.NewRequest(http.MethodGet, "/flash", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `[{"level":"success","key":"imported","message":"Imported 2 rows"}]`, w.Body.String())
	cleared := lastCookie(t, w)

	req = httptest.NewRequest(http.MethodGet, "/flash", nil)
	req.AddCookie(cleared)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `[]`, w.Body.String())
}
