// Package config loads process configuration from the environment, the way
// the teacher service's cmd/api/main.go loads a .env file and reads a
// small Config struct before constructing its services.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the complete set of process inputs described in spec.md §6:
// listen host/port, database (here: Redis) connection, identity-provider
// credentials, the session-token secret, and the environment label.
// Secrets held here are never logged (internal/platform/logging redacts
// by never being handed this struct's sensitive fields).
type Config struct {
	Env  string `envconfig:"ENV" default:"development"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8080"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPass string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`

	// SessionTokenSecret is the process-wide HMAC secret used by
	// internal/tokens to mint and verify escrow session tokens (§4.4).
	// cmd/api/main.go also passes it to identity.NewJWTVerifier, which
	// verifies player bearer tokens with it.
	SessionTokenSecret string `envconfig:"SESSION_TOKEN_SECRET" required:"true"`

	// IdentityProviderIssuer/Audience configure the out-of-scope identity
	// provider's bearer-token verification (§1): the core only consumes
	// a decoded opaque subject identifier from it.
	IdentityProviderIssuer   string `envconfig:"IDENTITY_ISSUER" default:""`
	IdentityProviderAudience string `envconfig:"IDENTITY_AUDIENCE" default:""`

	BearerSessionTTL time.Duration `envconfig:"BEARER_SESSION_TTL" default:"24h"`

	// SweeperInterval is C10's poll cadence; spec.md recommends 15s.
	SweeperInterval time.Duration `envconfig:"SWEEPER_INTERVAL" default:"15s"`

	// LobbyHeartbeatInterval is C9's SSE heartbeat cadence; spec.md fixes
	// it at 30s.
	LobbyHeartbeatInterval time.Duration `envconfig:"LOBBY_HEARTBEAT_INTERVAL" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads a .env file if present (ignored if absent, matching the
// teacher's "No .env file found, using environment variables" behavior)
// and then populates Config from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PLUTO", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the environment label is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address derived from Host and Port.
func (c *Config) Addr() string {
	if c.Port == "" {
		return c.Host + ":8080"
	}
	return c.Host + ":" + c.Port
}
