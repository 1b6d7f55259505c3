package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/ingestion"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/vectorstore"
)

const healthCheckTimeout = 5 * time.Second

// StatusSource exposes the ingest state reported by the status endpoint.
type StatusSource interface {
	// LastRun returns the most recent run summary, nil before any run.
	LastRun() *models.RunSummary

	// Running reports whether an ingestion run is in progress.
	Running() bool
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Service   string                `json:"service"`
	Ingesting bool                  `json:"ingesting"`
	Records   int64                 `json:"records"`
	Cursor    ingestion.CursorState `json:"cursor"`
	LastRun   *models.RunSummary    `json:"last_run,omitempty"`
	Database  map[string]any        `json:"database,omitempty"`
}

// poolStats is implemented by stores that expose connection pool numbers.
type poolStats interface {
	Stats() map[string]any
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewHandler builds the admin routes, all instrumented with request
// metrics: /healthz, /metrics, /api/status, and /api/auth/login when an
// admin password is configured. /api/status requires a bearer token once
// auth is enabled. The status source may be nil when no scheduler is
// running.
func NewHandler(
	store vectorstore.Store,
	cursors ingestion.CursorStore,
	status StatusSource,
	authCfg config.AuthConfig,
	registry *prometheus.Registry,
	collector *metrics.HTTPCollector,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := store.HealthCheck(ctx); err != nil {
			logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("/metrics", metrics.Handler(registry))

	statusHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		count, err := store.Count(r.Context())
		if err != nil {
			logger.Error("failed to count records", "error", err)
			http.Error(w, "failed to read store", http.StatusInternalServerError)
			return
		}
		state, err := cursors.Load(r.Context())
		if err != nil {
			logger.Error("failed to load cursor state", "error", err)
			http.Error(w, "failed to read cursor", http.StatusInternalServerError)
			return
		}

		resp := statusResponse{
			Service: "promptvault",
			Records: count,
			Cursor:  state,
		}
		if status != nil {
			resp.Ingesting = status.Running()
			resp.LastRun = status.LastRun()
		}
		if ps, ok := store.(poolStats); ok {
			resp.Database = ps.Stats()
		}
		writeJSON(w, http.StatusOK, resp)
	})
	mux.Handle("/api/status", auth.Middleware(authCfg)(statusHandler))

	if authCfg.Enabled() {
		mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}

			var req loginRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if !auth.CheckPassword(authCfg, req.Password) {
				logger.Warn("failed login attempt", "ip", r.RemoteAddr)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			token, expiresAt, err := auth.GenerateToken(authCfg)
			if err != nil {
				logger.Error("failed to generate token", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			logger.Info("successful login", "ip", r.RemoteAddr)
			writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
		})
	}

	return collector.InstrumentHandler(mux)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
