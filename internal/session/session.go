// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package session binds a verified user to subsequent requests. The identity
// is carried in an HttpOnly cookie holding a signed JWT; no server-side
// session table is needed, and logout is an idempotent cookie clear.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tailorfit/tailorfit/pkg/passkey"
)

// IdentityCookie is the name of the identity session cookie.
const IdentityCookie = "tailorfit_session"

// ErrNoIdentity is returned when a request carries no valid identity:
// missing cookie, expired token, or bad signature.
var ErrNoIdentity = errors.New("no identity bound to request")

// Identity is the authenticated principal bound to a request.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Manager issues, verifies and clears identity sessions.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	secure bool
}

// Config configures a session Manager.
type Config struct {
	// Secret is the HMAC key used to sign session tokens (required).
	Secret []byte

	// Issuer is the JWT issuer claim. Default: "tailorfit".
	Issuer string

	// TTL is how long an identity session stays valid. Default: 12h.
	TTL time.Duration

	// Secure marks the cookie Secure; disable only for local development.
	Secure bool
}

// NewManager creates a session manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "tailorfit"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 12 * time.Hour
	}
	return &Manager{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		secure: cfg.Secure,
	}, nil
}

// Issue establishes an identity session for a verified user by setting the
// identity cookie on the response.
func (m *Manager) Issue(w http.ResponseWriter, user *passkey.User) error {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":      m.issuer,
		"sub":      user.ID.String(),
		"username": user.Username,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(m.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     IdentityCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the identity cookie. Clearing an absent session is not an
// error; logout is idempotent.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     IdentityCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate resolves the identity bound to a request, or ErrNoIdentity.
func (m *Manager) Authenticate(r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(IdentityCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoIdentity
	}

	token, err := jwt.Parse(cookie.Value,
		func(t *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrNoIdentity
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrNoIdentity
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrNoIdentity
	}
	username, _ := claims["username"].(string)

	return &Identity{UserID: userID, Username: username}, nil
}

type contextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity bound to the context, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok
}

// Middleware rejects requests without a bound identity with 401 and
// otherwise injects the identity into the request context. Protected
// handlers never silently run unauthenticated.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","message":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}
