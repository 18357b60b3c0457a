package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
)

type ctxKey string

const principalKey ctxKey = "principal_id"

// PrincipalFrom returns the authenticated user id, or "" for anonymous requests.
func PrincipalFrom(ctx context.Context) string {
	id, _ := ctx.Value(principalKey).(string)
	return id
}

// WithPrincipal returns ctx carrying the given user id.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

type Middleware struct {
	jwtSecret []byte
}

func NewMiddleware(cfg *config.Config) *Middleware {
	return &Middleware{
		jwtSecret: []byte(cfg.JWTSecret),
	}
}

// AuthMiddleware verifies the JWT from the auth_token cookie or a Bearer header.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := m.authenticate(r)
		if !ok {
			if isAPIRequest(r) {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
			} else {
				http.Redirect(w, r, "/auth/google/login", http.StatusTemporaryRedirect)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), subject)))
	})
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subject, ok := m.authenticate(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), subject))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	tokenString := tokenFromRequest(r)
	if tokenString == "" {
		return "", false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(authCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
