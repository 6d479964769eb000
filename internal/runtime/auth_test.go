package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/specharvest/config"
)

func TestLoadJWTSecret(t *testing.T) {
	if _, err := LoadJWTSecret(&config.Config{}); err == nil {
		t.Fatalf("expected error without secret")
	}
	cfg := &config.Config{Server: config.ServerConfig{JWTSecret: "s3cret"}}
	secret, err := LoadJWTSecret(cfg)
	if err != nil || string(secret) != "s3cret" {
		t.Fatalf("unexpected secret %q err %v", secret, err)
	}
}

func TestEchoAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	readOnly, err := SignJWT("ci", secret, time.Minute, ScopeRunsRead)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	expired, err := SignJWT("ci", secret, -time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	e := echo.New()
	h := EchoAuthMiddleware(secret)(RequireScopes(ScopeRunsWrite)(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, want: http.StatusUnauthorized},
		{name: "missing scope", header: "Bearer " + readOnly, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		err := h(e.NewContext(req, rec))
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tt.want {
			t.Fatalf("%s: expected %d, got %v", tt.name, tt.want, err)
		}
	}

	full, err := SignJWT("ci", secret, time.Minute, ScopeRunsRead, ScopeRunsWrite)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+full)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
