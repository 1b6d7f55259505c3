package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promptvault/promptvault/internal/config"
)

func enabledConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "test-secret",
		AdminPassword: "hunter2",
		TokenLifetime: time.Hour,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := enabledConfig()

	token, expiresAt, err := GenerateToken(cfg)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateToken() returned an empty token")
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiresAt %v, want about an hour out", expiresAt)
	}

	if err := ValidateToken(token, cfg); err != nil {
		t.Errorf("ValidateToken() error = %v, want nil", err)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	cfg := enabledConfig()
	valid, _, err := GenerateToken(cfg)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	expiredCfg := cfg
	expiredCfg.TokenLifetime = -time.Minute
	expired, _, err := GenerateToken(expiredCfg)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		cfg   config.AuthConfig
	}{
		{"wrong secret", valid, config.AuthConfig{JWTSecret: "other-secret"}},
		{"expired token", expired, cfg},
		{"garbage token", "not.a.jwt", cfg},
		{"empty token", "", cfg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateToken(tt.token, tt.cfg); err == nil {
				t.Error("ValidateToken() returned nil, want error")
			}
		})
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name      string
		cfg       config.AuthConfig
		candidate string
		want      bool
	}{
		{"plaintext match", config.AuthConfig{AdminPassword: "hunter2"}, "hunter2", true},
		{"plaintext mismatch", config.AuthConfig{AdminPassword: "hunter2"}, "hunter3", false},
		{"hash match", config.AuthConfig{AdminPasswordHash: hash}, "correct horse", true},
		{"hash mismatch", config.AuthConfig{AdminPasswordHash: hash}, "wrong horse", false},
		{"hash wins over plaintext", config.AuthConfig{AdminPassword: "hunter2", AdminPasswordHash: hash}, "hunter2", false},
		{"nothing configured", config.AuthConfig{}, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.cfg, tt.candidate); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	handler := Middleware(config.AuthConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 without auth configured", rec.Code)
	}
}

func TestMiddlewareEnforcesTokens(t *testing.T) {
	cfg := enabledConfig()
	token, _, err := GenerateToken(cfg)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	handler := Middleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc123", http.StatusUnauthorized},
		{"bad token", "Bearer bogus", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
