package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fishmarket/internal/config"
	"fishmarket/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "server-test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Port: "0", Env: "test", AllowedOrigins: []string{"http://localhost:5173"}},
		JWT:       config.JWTConfig{Secret: testSecret, AccessExpiry: 15, RefreshExpiry: 7},
		RateLimit: config.RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

func bearer(t *testing.T, role domain.Role) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"role":    string(role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(srv *Server, method, path, auth string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Routing(t *testing.T) {
	srv := NewServer(testConfig(), zap.NewNop(), Dependencies{})

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"protected route without token", http.MethodGet, "/api/offers/mine", "", http.StatusUnauthorized},
		{"buyer route with seller token", http.MethodPost, "/api/offers", bearer(t, domain.RoleSeller), http.StatusForbidden},
		{"admin route with seller token", http.MethodGet, "/api/admin/users", bearer(t, domain.RoleSeller), http.StatusForbidden},
		{"admin route with buyer token", http.MethodGet, "/api/admin/transactions", bearer(t, domain.RoleBuyer), http.StatusForbidden},
		{"listing id must be a uuid", http.MethodGet, "/api/listings/not-a-uuid/messages", bearer(t, domain.RoleBuyer), http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/nothing-here", bearer(t, domain.RoleBuyer), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.method, tt.path, tt.auth, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestNewServer_HealthReportsMissingDatabase(t *testing.T) {
	srv := NewServer(testConfig(), zap.NewNop(), Dependencies{})

	rec := serve(srv, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestNewServer_MetricsEndpoint(t *testing.T) {
	srv := NewServer(testConfig(), zap.NewNop(), Dependencies{})

	serve(srv, http.MethodGet, "/api/offers/mine", "", "")
	rec := serve(srv, http.MethodGet, "/metrics", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fishmarket_http_request_duration_seconds")
}

func TestNewServer_PublicRoutesAreRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	cfg.RateLimit.Requests = 2
	srv := NewServer(cfg, zap.NewNop(), Dependencies{Redis: client})

	// Malformed bodies are rejected before any store access.
	for i := 0; i < 2; i++ {
		rec := serve(srv, http.MethodPost, "/api/users/login", "", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := serve(srv, http.MethodPost, "/api/users/login", "", "{")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestServer_CloseWithoutDatabase(t *testing.T) {
	srv := NewServer(testConfig(), zap.NewNop(), Dependencies{})
	assert.NoError(t, srv.Close())
}
