package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
)

const (
	authCookieName  = "auth_token"
	stateCookieName = "oauthstate"
	sessionTTL      = 24 * time.Hour
	googleUserInfo  = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Claims identify the signed-in user. Subject is the Google account id, which
// becomes the owner id of every link the user creates.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type AuthHandler struct {
	oauthConfig   *oauth2.Config
	userInfoURL   string
	jwtSecret     []byte
	frontendURL   string
	allowedEmails []string
	isProduction  bool
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL:   googleUserInfo,
		jwtSecret:     []byte(cfg.JWTSecret),
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateStateOauthCookie(w)
	if err != nil {
		writeError(w, r, err)
		return
	}
	url := h.oauthConfig.AuthCodeURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)

	oauthState, err := r.Cookie(stateCookieName)
	if err != nil {
		logger.Warn().Err(err).Msg("callback without oauth state cookie")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		logger.Warn().Msg("callback with mismatched oauth state")
		writeErrorCode(w, http.StatusBadRequest, "bad_request", "invalid oauth state")
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logger.Error().Err(err).Msg("oauth code exchange failed")
		writeErrorCode(w, http.StatusBadGateway, "oauth_exchange_failed", "code exchange failed")
		return
	}

	googleUser, err := h.fetchUser(r, token)
	if err != nil {
		logger.Error().Err(err).Msg("failed getting user info")
		writeErrorCode(w, http.StatusBadGateway, "oauth_userinfo_failed", "failed getting user info")
		return
	}

	if !h.emailAllowed(googleUser.Email) {
		logger.Warn().Str("email", googleUser.Email).Msg("email not in allowlist")
		writeErrorCode(w, http.StatusForbidden, "forbidden", "Access denied: your email is not in the allowlist")
		return
	}

	tokenString, expirationTime, err := h.issueToken(googleUser)
	if err != nil {
		logger.Error().Err(err).Msg("failed signing JWT")
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    tokenString,
		Expires:  expirationTime,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	logger.Info().Str("user_id", googleUser.ID).Msg("login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	response, err := h.oauthConfig.Client(r.Context(), token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.Errorf("userinfo returned %s", response.Status)
	}

	var googleUser GoogleUser
	if err := json.NewDecoder(response.Body).Decode(&googleUser); err != nil {
		return nil, errors.Wrap(err, "decode user info")
	}
	if googleUser.ID == "" {
		return nil, errors.New("user info without id")
	}
	return &googleUser, nil
}

func (h *AuthHandler) emailAllowed(email string) bool {
	if len(h.allowedEmails) == 0 {
		return true
	}
	email = strings.ToLower(email)
	for _, allowed := range h.allowedEmails {
		if allowed == email {
			return true
		}
	}
	return false
}

func (h *AuthHandler) issueToken(user *GoogleUser) (string, time.Time, error) {
	expirationTime := time.Now().Add(sessionTTL)
	claims := &Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expirationTime, nil
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate oauth state")
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}
