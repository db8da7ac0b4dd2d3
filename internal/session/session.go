// Package session keeps the visitor's identity and a one-shot flash message
// in an HS256-signed cookie.
package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "portal_session"
	issuer            = "nimbus-portal"
)

type FlashKind string

const (
	FlashInfo    FlashKind = "info"
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

type Flash struct {
	Message string    `json:"msg"`
	Kind    FlashKind `json:"kind"`
}

// Claims is the signed cookie payload.
type Claims struct {
	Username string `json:"username,omitempty"`
	Flash    *Flash `json:"flash,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret     []byte
	ttl        time.Duration
	cookieName string
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(secret),
		ttl:        ttl,
		cookieName: DefaultCookieName,
	}
}

func (m *Manager) CookieName() string { return m.cookieName }

func (m *Manager) Sign(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.Username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// Load returns the claims of the request's cookie; a missing, expired or
// tampered cookie yields empty claims.
func (m *Manager) Load(c *gin.Context) Claims {
	raw, err := c.Cookie(m.cookieName)
	if err != nil || raw == "" {
		return Claims{}
	}
	claims, err := m.Parse(raw)
	if err != nil {
		return Claims{}
	}
	return Claims{Username: claims.Username, Flash: claims.Flash}
}

func (m *Manager) Save(c *gin.Context, claims Claims) error {
	token, err := m.Sign(claims)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, token, int(m.ttl.Seconds()), "/", "", false, true)
	return nil
}

// SetFlash records identity and queues a message for the next page view.
func (m *Manager) SetFlash(c *gin.Context, username, message string, kind FlashKind) error {
	claims := m.Load(c)
	if username != "" {
		claims.Username = username
	}
	claims.Flash = &Flash{Message: message, Kind: kind}
	return m.Save(c, claims)
}

// PopFlash returns the queued flash, if any, and clears it from the cookie.
func (m *Manager) PopFlash(c *gin.Context) *Flash {
	claims := m.Load(c)
	if claims.Flash == nil {
		return nil
	}
	flash := claims.Flash
	claims.Flash = nil
	_ = m.Save(c, claims)
	return flash
}
