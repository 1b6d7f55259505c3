// Package cloudsql resolves the Postgres connection string for both direct
// DATABASE_URL configuration and Cloud SQL unix sockets on Cloud Run.
package cloudsql

import (
	"fmt"
	"os"
	"strings"
)

// ResolveDatabaseURL returns the connection string for the configured
// database. DATABASE_URL wins when set. With INSTANCE_CONNECTION_NAME set
// instead, a unix socket connection string is built for the path where
// Cloud Run mounts Cloud SQL instances. An empty result means no database
// is configured, which only the postgres sink treats as an error.
func ResolveDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", nil
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socketPath := "/cloudsql/" + instance
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
			socketPath, user, password, name), nil
	}

	// IAM authentication needs no password.
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		socketPath, user, name), nil
}

// ConnectionInfo describes the active database configuration with the
// password redacted, for startup logging.
func ConnectionInfo() map[string]string {
	info := make(map[string]string)

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		info["connection_type"] = "direct"
		info["database_url"] = redactPassword(dbURL)
		return info
	}

	if instance := os.Getenv("INSTANCE_CONNECTION_NAME"); instance != "" {
		info["connection_type"] = "cloud_sql"
		info["instance"] = instance
		info["user"] = os.Getenv("DB_USER")
		info["database"] = os.Getenv("DB_NAME")
		return info
	}

	info["connection_type"] = "none"
	return info
}

// redactPassword removes the password from a connection URL for safe
// logging.
func redactPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgresql://") || strings.HasPrefix(connStr, "postgres://") {
		parts := strings.SplitN(connStr, "@", 2)
		if len(parts) == 2 {
			userParts := strings.SplitN(parts[0], ":", 3)
			if len(userParts) == 3 {
				return userParts[0] + ":" + userParts[1] + ":***@" + parts[1]
			}
		}
	}
	return connStr
}
