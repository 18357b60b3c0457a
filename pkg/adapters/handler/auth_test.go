package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
)

func newFakeGoogle(t *testing.T, user GoogleUser) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthHandler(t *testing.T, srv *httptest.Server, allowed ...string) *AuthHandler {
	h := NewAuthHandler(&config.Config{
		GoogleClientID:     "client",
		GoogleClientSecret: "secret",
		GoogleRedirectURL:  "http://localhost:8080/auth/google/callback",
		JWTSecret:          testSecret,
		FrontendURL:        "http://localhost:3000",
		AllowedEmails:      allowed,
	})
	h.oauthConfig.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	h.userInfoURL = srv.URL + "/userinfo"
	return h
}

func callbackRequest(state, cookieState string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: stateCookieName, Value: cookieState})
	}
	return req
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthHandler_Login(t *testing.T) {
	srv := newFakeGoogle(t, GoogleUser{})
	h := newTestAuthHandler(t, srv)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	state := findCookie(rr, stateCookieName)
	require.NotNil(t, state)

	location, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, location.Query().Get("state"))
	assert.Equal(t, "client", location.Query().Get("client_id"))
}

func TestAuthHandler_CallbackIssuesToken(t *testing.T) {
	srv := newFakeGoogle(t, GoogleUser{ID: "1234567890", Email: "Alice@example.com", VerifiedEmail: true})
	h := newTestAuthHandler(t, srv, "alice@example.com")

	rr := httptest.NewRecorder()
	h.Callback(rr, callbackRequest("s1", "s1"))

	require.Equal(t, http.StatusTemporaryRedirect, rr.Code, rr.Body.String())
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Location"))

	cookie := findCookie(rr, authCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1234567890", claims.Subject)
	assert.Equal(t, "Alice@example.com", claims.Email)
}

func TestAuthHandler_CallbackRejections(t *testing.T) {
	srv := newFakeGoogle(t, GoogleUser{ID: "42", Email: "mallory@example.com"})

	t.Run("missing state cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestAuthHandler(t, srv).Callback(rr, callbackRequest("s1", ""))
		assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		assert.Nil(t, findCookie(rr, authCookieName))
	})

	t.Run("state mismatch", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestAuthHandler(t, srv).Callback(rr, callbackRequest("s1", "s2"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("email not allowed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestAuthHandler(t, srv, "alice@example.com").Callback(rr, callbackRequest("s1", "s1"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Nil(t, findCookie(rr, authCookieName))
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	srv := newFakeGoogle(t, GoogleUser{})
	h := newTestAuthHandler(t, srv)

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodGet, "/auth/google/logout", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Equal(t, "http://localhost:3000/login", rr.Header().Get("Location"))
	cookie := findCookie(rr, authCookieName)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}
