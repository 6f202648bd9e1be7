package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type ctxKey struct{}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	Username    string
	DisplayName string
	SessionID   string
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity attached by Middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok
}

// TokenFromRequest reads the session token from the auth cookie or an
// Authorization bearer header.
func (g *Gate) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(g.CookieName()); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// Authenticate returns the identity carried by r.
func (g *Gate) Authenticate(r *http.Request) (*Identity, error) {
	claims, err := g.ParseToken(g.TokenFromRequest(r))
	if err != nil {
		return nil, err
	}
	return &Identity{Username: claims.Subject, DisplayName: claims.Name, SessionID: claims.ID}, nil
}

// Middleware rejects requests without a valid session token.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":  "please log in",
				"kind":   "auth",
				"status": string(StatusPending),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// SetCookie writes the session cookie.
func (g *Gate) SetCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (g *Gate) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     g.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
