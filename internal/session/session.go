package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"traderesonance/server/internal/i18n"
)

const (
	CookieName = "tr_session"
	contextKey = "session"
	managerKey = "session_manager"
	defaultTTL = 30 * 24 * time.Hour
	maxFlashes = 10
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Flash is a toast shown once by the client
type Flash struct {
	Level   Level  `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

// Session is the decoded cookie state for one request
type Session struct {
	Lang  string  `json:"lang"`
	Flash []Flash `json:"flash,omitempty"`
}

type claims struct {
	Session
	jwt.RegisteredClaims
}

// Manager signs and verifies session cookies with an HMAC secret.
type Manager struct {
	secret      []byte
	defaultLang string
	ttl         time.Duration
	now         func() time.Time
}

func NewManager(secret, defaultLang string) *Manager {
	return &Manager{
		secret:      []byte(secret),
		defaultLang: defaultLang,
		ttl:         defaultTTL,
		now:         time.Now,
	}
}

// Encode signs s into a cookie value.
func (m *Manager) Encode(s *Session) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Session: *s,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies a cookie value. Tampered, expired or foreign tokens fail.
func (m *Manager) Decode(value string) (*Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(value, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	return &c.Session, nil
}

// Middleware loads the session cookie, resolves the request language from
// ?lang=, the session and the default in that order, and persists it.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := &Session{}
		if value, err := c.Cookie(CookieName); err == nil && value != "" {
			if decoded, err := m.Decode(value); err == nil {
				s = decoded
			}
		}

		lang := i18n.Resolve(c.Query("lang"), s.Lang, m.defaultLang)
		changed := lang != s.Lang
		s.Lang = lang

		c.Set(contextKey, s)
		c.Set(managerKey, m)
		if changed {
			m.save(c, s)
		}
		c.Next()
	}
}

func (m *Manager) save(c *gin.Context, s *Session) {
	value, err := m.Encode(s)
	if err != nil {
		c.Error(err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, int(m.ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
}

// FromContext returns the request session, or an empty one outside the
// middleware.
func FromContext(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	return &Session{Lang: i18n.Fallback}
}

// Lang returns the resolved language of the request.
func Lang(c *gin.Context) string {
	return FromContext(c).Lang
}

// AddFlash queues a translated toast for the next page the client renders.
// It must run before the response body is written.
func AddFlash(c *gin.Context, level Level, key string, args map[string]string) {
	s := FromContext(c)
	s.Flash = append(s.Flash, Flash{
		Level:   level,
		Key:     key,
		Message: i18n.Format(s.Lang, key, args),
	})
	if len(s.Flash) > maxFlashes {
		s.Flash = s.Flash[len(s.Flash)-maxFlashes:]
	}
	persist(c, s)
}

// Consume returns the pending toasts and clears them.
func Consume(c *gin.Context) []Flash {
	s := FromContext(c)
	flashes := s.Flash
	if flashes == nil {
		flashes = []Flash{}
	}
	if len(s.Flash) > 0 {
		s.Flash = nil
		persist(c, s)
	}
	return flashes
}

func persist(c *gin.Context, s *Session) {
	v, ok := c.Get(managerKey)
	if !ok {
		return
	}
	if m, ok := v.(*Manager); ok {
		m.save(c, s)
	}
}
