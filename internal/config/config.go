// Package config loads process configuration from the environment exactly once.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultAddr        = ":8080"
	DefaultAccessTTL   = "15m"
	DefaultRefreshTTL  = "7d"
	DefaultBcryptCost  = 12
	DefaultTokenIssuer = "taskhub-api"
	DefaultTokenAud    = "taskhub-client"
)

// Config carries every deployment-time knob the service reads. It is built
// once at startup and passed by reference into constructors; nothing reads
// the environment after that.
type Config struct {
	Addr  string
	PGDSN string

	AccessSecret  string
	RefreshSecret string
	AccessTTL     string
	RefreshTTL    string
	TokenIssuer   string
	TokenAudience string

	BcryptCost int
}

// FromEnv reads TASKHUB_* variables and applies defaults. Secrets are
// required: the service refuses to start without both of them.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:          envOr("TASKHUB_ADDR", DefaultAddr),
		PGDSN:         strings.TrimSpace(os.Getenv("TASKHUB_PG_DSN")),
		AccessSecret:  strings.TrimSpace(os.Getenv("TASKHUB_ACCESS_SECRET")),
		RefreshSecret: strings.TrimSpace(os.Getenv("TASKHUB_REFRESH_SECRET")),
		AccessTTL:     envOr("TASKHUB_ACCESS_TTL", DefaultAccessTTL),
		RefreshTTL:    envOr("TASKHUB_REFRESH_TTL", DefaultRefreshTTL),
		TokenIssuer:   envOr("TASKHUB_TOKEN_ISSUER", DefaultTokenIssuer),
		TokenAudience: envOr("TASKHUB_TOKEN_AUDIENCE", DefaultTokenAud),
		BcryptCost:    DefaultBcryptCost,
	}

	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("TASKHUB_ACCESS_SECRET is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("TASKHUB_REFRESH_SECRET is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	if raw := strings.TrimSpace(os.Getenv("TASKHUB_BCRYPT_COST")); raw != "" {
		cost, err := strconv.Atoi(raw)
		if err != nil || cost < 4 || cost > 31 {
			return nil, fmt.Errorf("TASKHUB_BCRYPT_COST: invalid value %q", raw)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}

// MigrateConfig carries the settings the migration tool reads. Unlike
// FromEnv it does not require token secrets; schema management runs
// without them.
type MigrateConfig struct {
	PGDSN         string
	MigrationsDir string
	SeedsDir      string
}

// MigrateFromEnv reads the migration tool's TASKHUB_* variables.
func MigrateFromEnv() MigrateConfig {
	return MigrateConfig{
		PGDSN:         strings.TrimSpace(os.Getenv("TASKHUB_PG_DSN")),
		MigrationsDir: envOr("TASKHUB_MIGRATIONS_DIR", "migrations"),
		SeedsDir:      envOr("TASKHUB_SEEDS_DIR", "seeds"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
