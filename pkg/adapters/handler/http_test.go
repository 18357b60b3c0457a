package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/shortcode"
)

const testSecret = "testservlet"

type testServer struct {
	router http.Handler
	clock  *domain.MockClock
	t      *testing.T
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      testSecret,
		BaseURL:        "http://sho.rt/",
		FrontendURL:    "http://localhost:3000",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	clock := domain.NewMockClock(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC))
	svc := services.NewLinkService(memory.NewRepository(), shortcode.NewRandom(), clock, services.DefaultOptions())
	return &testServer{
		router: NewRouter(cfg, svc, prometheus.NewRegistry()),
		clock:  clock,
		t:      t,
	}
}

func (s *testServer) do(method, path, user string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			payload, err := json.Marshal(b)
			require.NoError(s.t, err)
			reader = bytes.NewReader(payload)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "203.0.113.7:5555"
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+generateTestToken(s.t, testSecret, user, time.Hour))
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) create(user string, body map[string]interface{}) LinkResponse {
	s.t.Helper()
	rr := s.do(http.MethodPost, "/api/v1/links", user, body)
	require.Equal(s.t, http.StatusCreated, rr.Code, rr.Body.String())

	var link LinkResponse
	require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &link))
	return link
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ok"}`, rr.Body.String())
}

func TestCreateAndRedirect(t *testing.T) {
	s := newTestServer(t)

	link := s.create("", map[string]interface{}{"original_url": "https://example.com/landing"})
	assert.Len(t, link.ShortCode, shortcode.Length)
	assert.Equal(t, "http://sho.rt/open/"+link.ShortCode, link.ShortURL)
	assert.Empty(t, link.OwnerID)
	require.NotNil(t, link.ExpiresAt)

	rr := s.do(http.MethodGet, "/open/"+link.ShortCode, "", nil)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/landing", rr.Header().Get("Location"))
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodPost, "/api/v1/links", "u1", map[string]interface{}{"title": "no url"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "missing_field", decodeError(t, rr).Error)

	rr = s.do(http.MethodPost, "/api/v1/links", "u1", map[string]interface{}{
		"original_url": "https://example.com",
		"expires_at":   "tomorrow-ish",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_date", decodeError(t, rr).Error)

	rr = s.do(http.MethodPost, "/api/v1/links", "u1", "{not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad_request", decodeError(t, rr).Error)
}

func TestRedirectErrors(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(http.MethodGet, "/open/nothere", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeError(t, rr).Error)

	link := s.create("u1", map[string]interface{}{
		"original_url": "https://example.com",
		"expires_at":   "2024-01-16T00:00:00Z",
	})
	s.clock.Advance(48 * time.Hour)

	for i := 0; i < 2; i++ {
		rr = s.do(http.MethodGet, "/open/"+link.ShortCode, "", nil)
		assert.Equal(t, http.StatusGone, rr.Code)
		assert.Equal(t, "expired", decodeError(t, rr).Error)
	}
}

func TestLinkLifecycle(t *testing.T) {
	s := newTestServer(t)

	link := s.create("google-1", map[string]interface{}{
		"original_url": "https://example.com/a",
		"title":        "first",
		"utm":          map[string]string{"utm_source": "mail"},
	})
	assert.Equal(t, "google-1", link.OwnerID)
	s.create("google-1", map[string]interface{}{"original_url": "https://example.com/b"})
	s.create("google-2", map[string]interface{}{"original_url": "https://example.com/c"})

	// list
	rr := s.do(http.MethodGet, "/api/v1/links?page=1&limit=10", "google-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var page domain.LinkPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, int64(2), page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	assert.Len(t, page.Links, 2)

	// get
	rr = s.do(http.MethodGet, "/api/v1/links/"+link.ShortCode, "google-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"utm_source":"mail"`)

	rr = s.do(http.MethodGet, "/api/v1/links/"+link.ShortCode, "google-2", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// update
	rr = s.do(http.MethodPatch, "/api/v1/links/"+link.ShortCode, "google-1", map[string]interface{}{
		"original_url": "https://example.com/moved",
		"expires_at":   "",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated LinkResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "https://example.com/moved", updated.OriginalURL)
	assert.Equal(t, "first", updated.Title)
	assert.Nil(t, updated.ExpiresAt)

	rr = s.do(http.MethodPatch, "/api/v1/links/"+link.ShortCode, "google-2", map[string]interface{}{"title": "hijack"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(http.MethodGet, "/open/"+link.ShortCode, "", nil)
	assert.Equal(t, "https://example.com/moved", rr.Header().Get("Location"))

	// delete twice
	rr = s.do(http.MethodDelete, "/api/v1/links/"+link.ShortCode, "google-1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(http.MethodDelete, "/api/v1/links/"+link.ShortCode, "google-1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodGet, "/open/"+link.ShortCode, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodDelete, "/api/v1/links/nothere", "google-1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProtectedRoutesNeedAuth(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/links"},
		{http.MethodGet, "/api/v1/links/abc1234"},
		{http.MethodPatch, "/api/v1/links/abc1234"},
		{http.MethodDelete, "/api/v1/links/abc1234"},
	} {
		rr := s.do(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRedirectRateLimited(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimitRPS = 0.001
		c.RateLimitBurst = 1
	})

	rr := s.do(http.MethodGet, "/open/nothere", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/open/nothere", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rr).Error)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	link := s.create("", map[string]interface{}{"original_url": "https://example.com"})
	s.do(http.MethodGet, "/open/"+link.ShortCode, "", nil)
	s.do(http.MethodGet, "/open/nothere", "", nil)

	rr := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `shortlink_resolves_total{outcome="ok"} 1`)
	assert.Contains(t, body, `shortlink_resolves_total{outcome="not_found"} 1`)
	assert.Contains(t, body, `shortlink_http_requests_total{code="201",method="post",route="create"} 1`)
}
