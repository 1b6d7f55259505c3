package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/promptvault/promptvault/internal/cloudsql"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Civitai   CivitaiConfig
	Ingest    IngestConfig
	Cursor    CursorConfig
	Sink      SinkConfig
	Embedding EmbeddingConfig
	Server    ServerConfig
	Auth      AuthConfig
	Logging   LoggingConfig
}

// CivitaiConfig holds parameters for the Civitai images API client.
type CivitaiConfig struct {
	BaseURL  string
	APIKey   string
	PageSize int
	Sort     string
	Period   string
	Timeout  time.Duration
}

// IngestConfig controls ingestion run bounds and pacing.
type IngestConfig struct {
	// TargetCount stops a run once this many valid records were processed.
	// Zero means unbounded (run until the API stops returning a cursor).
	TargetCount int
	// Interval is the pause between runs in daemon mode.
	Interval time.Duration
	// RequestsPerSecond paces page fetches against the provider.
	RequestsPerSecond float64
}

// CursorConfig locates the resumable cursor file.
type CursorConfig struct {
	Path string
}

// SinkConfig selects and parameterizes the vector store backend.
type SinkConfig struct {
	Driver       string
	DatabaseURL  string
	Collection   string
	EmbeddingDim int
}

// EmbeddingConfig selects the embedding backend used for prompts.
type EmbeddingConfig struct {
	Provider string
	APIKey   string
	Model    string
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig guards the admin API endpoints. Auth is off when no admin
// password is configured; /healthz and /metrics are always open.
type AuthConfig struct {
	JWTSecret         string
	AdminPassword     string
	AdminPasswordHash string
	TokenLifetime     time.Duration
}

// Enabled reports whether admin API requests must carry a token.
func (c AuthConfig) Enabled() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// MaxPageSize is the provider-enforced maximum for the images endpoint.
const MaxPageSize = 200

const (
	defaultBaseURL      = "https://civitai.com/api/v1/images"
	defaultPageSize     = MaxPageSize
	defaultSort         = "Most Reactions"
	defaultPeriod       = "Month"
	defaultFetchTimeout = 30 * time.Second

	defaultTargetCount       = 1000
	defaultIngestInterval    = time.Hour
	defaultRequestsPerSecond = 1.0

	defaultCursorPath = "data/cursor.json"

	defaultSinkDriver   = "postgres"
	defaultCollection   = "civitai_images"
	defaultEmbeddingDim = 1536

	defaultEmbeddingProvider = "openai"
	defaultEmbeddingModel    = "text-embedding-3-small"

	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultTokenLifetime = 24 * time.Hour

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. Invalid values fail loudly rather than falling
// back silently.
func Load() (Config, error) {
	// Container platforms set PORT; SERVER_PORT covers local dev.
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Civitai: CivitaiConfig{
			BaseURL:  getEnv("CIVITAI_BASE_URL", defaultBaseURL),
			APIKey:   os.Getenv("CIVITAI_API_KEY"),
			PageSize: defaultPageSize,
			Sort:     getEnv("CIVITAI_SORT", defaultSort),
			Period:   getEnv("CIVITAI_PERIOD", defaultPeriod),
			Timeout:  defaultFetchTimeout,
		},
		Ingest: IngestConfig{
			TargetCount:       defaultTargetCount,
			Interval:          defaultIngestInterval,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Cursor: CursorConfig{
			Path: getEnv("CURSOR_PATH", defaultCursorPath),
		},
		Sink: SinkConfig{
			Driver:       getEnv("SINK_DRIVER", defaultSinkDriver),
			Collection:   getEnv("SINK_COLLECTION", defaultCollection),
			EmbeddingDim: defaultEmbeddingDim,
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", defaultEmbeddingProvider),
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Model:    getEnv("EMBEDDING_MODEL", defaultEmbeddingModel),
		},
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
			AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenLifetime:     defaultTokenLifetime,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	if v := os.Getenv("CIVITAI_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxPageSize {
			return Config{}, fmt.Errorf("invalid CIVITAI_PAGE_SIZE: must be an integer between 1 and %d", MaxPageSize)
		}
		cfg.Civitai.PageSize = n
	}

	if v := os.Getenv("CIVITAI_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CIVITAI_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Civitai.Timeout = d
	}

	if v := os.Getenv("INGEST_TARGET_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid INGEST_TARGET_COUNT: must be a non-negative integer")
		}
		cfg.Ingest.TargetCount = n
	}

	if v := os.Getenv("INGEST_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid INGEST_INTERVAL_MINUTES: must be a positive integer")
		}
		cfg.Ingest.Interval = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("INGEST_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("invalid INGEST_RPS: must be a positive number")
		}
		cfg.Ingest.RequestsPerSecond = f
	}

	switch cfg.Sink.Driver {
	case "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("invalid SINK_DRIVER: must be 'postgres' or 'memory'")
	}

	dbURL, err := cloudsql.ResolveDatabaseURL()
	if err != nil {
		return Config{}, err
	}
	cfg.Sink.DatabaseURL = dbURL

	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid EMBEDDING_DIM: must be a positive integer")
		}
		cfg.Sink.EmbeddingDim = n
	}

	switch cfg.Embedding.Provider {
	case "openai", "hash":
	default:
		return Config{}, fmt.Errorf("invalid EMBEDDING_PROVIDER: must be 'openai' or 'hash'")
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("ADMIN_TOKEN_LIFETIME_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_LIFETIME_MINUTES: must be a positive integer")
		}
		cfg.Auth.TokenLifetime = time.Duration(n) * time.Minute
	}

	if cfg.Auth.Enabled() && cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("ADMIN_JWT_SECRET is required when an admin password is configured")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

// Validate checks values that are only required for the selected backends.
// Load stays permissive so commands that touch only part of the system can
// validate just what they use.
func (c Config) Validate() error {
	if err := c.ValidateSink(); err != nil {
		return err
	}
	return c.ValidateEmbedding()
}

// ValidateSink checks that the selected sink backend is fully configured.
func (c Config) ValidateSink() error {
	if c.Sink.Driver == "postgres" && c.Sink.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL or INSTANCE_CONNECTION_NAME is required when SINK_DRIVER is 'postgres'")
	}
	return nil
}

// ValidateEmbedding checks that the selected embedding backend is fully
// configured.
func (c Config) ValidateEmbedding() error {
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER is 'openai'")
	}
	return nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
