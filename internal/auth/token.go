// internal/auth/token.go
//
// JWT and cookie handling.
// Responsibilities:
//   - HS256 tokens carrying id/username claims.
//   - Auth cookie set/clear with production-safe attributes.
//   - Token extraction from "Authorization: Bearer" or the auth cookie.
//   - The anonymous player cookie that ties guest games together.
//   - Request-context plumbing for the authenticated Principal.

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AnonCookieName identifies a guest across sessions.
const AnonCookieName = "clusters_anon"

var ErrInvalidToken = errors.New("invalid token")

// Principal is placed into request context by the auth middleware.
type Principal struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Tokens signs and verifies auth tokens and manages the cookies carrying them.
type Tokens struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool // production: Secure + SameSite=None
	now        func() time.Time
}

// NewTokens builds a Tokens with the given settings.
func NewTokens(secret string, ttl time.Duration, cookieName string, secure bool) *Tokens {
	return &Tokens{Secret: []byte(secret), TTL: ttl, CookieName: cookieName, Secure: secure, now: time.Now}
}

func (t *Tokens) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

// Sign creates an HS256 JWT for p and returns it with its expiry.
func (t *Tokens) Sign(p Principal) (string, time.Time, error) {
	now := t.clock()
	exp := now.Add(t.TTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       p.ID,
		"username": p.Username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := tok.SignedString(t.Secret)
	return ss, exp, err
}

// Parse verifies tokenStr and returns its principal.
func (t *Tokens) Parse(tokenStr string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.clock))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{ID: id, Username: username}, nil
}

func (t *Tokens) sameSite() http.SameSite {
	if t.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetCookie writes the auth token cookie.
func (t *Tokens) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: t.sameSite(),
		Expires:  exp,
	})
}

// ClearCookie deletes the auth token cookie.
func (t *Tokens) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: t.sameSite(),
		MaxAge:   -1,
	})
}

// FromRequest extracts a bearer token from the Authorization header or the auth cookie.
func (t *Tokens) FromRequest(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(t.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// EnsureAnonID returns the guest cookie value, setting a new one if missing.
func (t *Tokens) EnsureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(AnonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: t.sameSite(),
		Expires:  t.clock().Add(180 * 24 * time.Hour),
	})
	return id
}

type ctxPrincipalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

// FromContext returns the signed-in principal, or nil for guests.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxPrincipalKey{}).(*Principal)
	return p
}
