// Package auth issues and checks the bearer tokens that guard the admin
// API. Authentication is optional: with no admin password configured the
// middleware passes every request through.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/promptvault/promptvault/internal/config"
)

const issuer = "promptvault"

// Claims is the JWT payload for admin tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken issues a signed admin token and reports when it expires.
func GenerateToken(cfg config.AuthConfig) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.TokenLifetime)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateToken checks a token's signature and expiry.
func ValidateToken(tokenString string, cfg config.AuthConfig) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// CheckPassword verifies a login attempt. A configured bcrypt hash takes
// precedence over a plaintext password.
func CheckPassword(cfg config.AuthConfig, candidate string) bool {
	if cfg.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.AdminPasswordHash), []byte(candidate)) == nil
	}
	if cfg.AdminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.AdminPassword), []byte(candidate)) == 1
}

// HashPassword produces a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Middleware rejects requests that do not carry a valid bearer token.
func Middleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}
			if err := ValidateToken(token, cfg); err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
