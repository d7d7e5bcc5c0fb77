// Package session keeps the signed-in user and one-time flash messages in
// HS256-signed cookies.
package session

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cookie names.
const (
	SessionCookie = "listings_session"
	FlashCookie   = "listings_flash"
)

// Flash kinds.
const (
	KindSuccess = "success"
	KindError   = "error"
)

const (
	defaultSessionTTL = 7 * 24 * time.Hour
	flashTTL          = 5 * time.Minute
	issuer            = "listings"
)

// Flash is a one-time status message shown after a redirect.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"msg"`
}

type flashClaims struct {
	Flash
	jwt.RegisteredClaims
}

// Manager issues and verifies session and flash cookies.
type Manager struct {
	secret []byte
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets how long a login lasts.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager. secure marks cookies HTTPS-only.
func NewManager(secret string, secure bool, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, eris.New("session: secret is required")
	}
	m := &Manager{
		secret: []byte(secret),
		secure: secure,
		ttl:    defaultSessionTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login starts a session for userID.
func (m *Manager) Login(w http.ResponseWriter, userID string) error {
	now := m.now()
	token, err := m.sign(jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	if err != nil {
		return eris.Wrap(err, "session: sign login")
	}
	m.setCookie(w, SessionCookie, token, m.ttl)
	return nil
}

// Logout ends the current session.
func (m *Manager) Logout(w http.ResponseWriter) {
	m.clearCookie(w, SessionCookie)
}

// UserID returns the signed-in user's id, if the session cookie is valid.
func (m *Manager) UserID(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	var claims jwt.RegisteredClaims
	if err := m.parse(c.Value, &claims); err != nil {
		zap.L().Debug("session: rejected session cookie", zap.Error(err))
		return "", false
	}
	if claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

// SetFlash stores a message for the next page render.
func (m *Manager) SetFlash(w http.ResponseWriter, kind, message string) {
	now := m.now()
	token, err := m.sign(flashClaims{
		Flash: Flash{Kind: kind, Message: message},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
	})
	if err != nil {
		zap.L().Error("session: sign flash", zap.Error(err))
		return
	}
	m.setCookie(w, FlashCookie, token, flashTTL)
}

// Success is shorthand for SetFlash with KindSuccess.
func (m *Manager) Success(w http.ResponseWriter, message string) {
	m.SetFlash(w, KindSuccess, message)
}

// Error is shorthand for SetFlash with KindError.
func (m *Manager) Error(w http.ResponseWriter, message string) {
	m.SetFlash(w, KindError, message)
}

// PopFlash returns the pending flash, if any, and clears it.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(FlashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	m.clearCookie(w, FlashCookie)

	var claims flashClaims
	if err := m.parse(c.Value, &claims); err != nil {
		zap.L().Debug("session: rejected flash cookie", zap.Error(err))
		return nil
	}
	return &claims.Flash
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	return err
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
