// Package config loads environment-driven configuration for both binaries.
// An optional .env file is honored; real environment variables win.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Deployd configures the build-and-run control plane.
type Deployd struct {
	Host         string        `env:"DEPLOYD_HOST,default=0.0.0.0"`
	Port         int           `env:"DEPLOYD_PORT,default=3000"`
	BaseDomain   string        `env:"DEPLOYD_BASE_DOMAIN,default=localhost"`
	ReadyTimeout time.Duration `env:"DEPLOYD_READY_TIMEOUT,default=60s"`
}

// Bot configures the attendance bot server. PORT is the authoritative port
// with 10000 as the documented fallback; the bind host is all interfaces.
type Bot struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=10000"`

	// PublicBaseURL is the externally reachable address chart URLs are
	// built from (the platform usually provides it).
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	ChannelSecret string `env:"LINE_CHANNEL_SECRET"`
	ChannelToken  string `env:"LINE_CHANNEL_ACCESS_TOKEN"`

	DataDir string `env:"BOT_DATA_DIR,default=data"`

	Stat StatAPI
}

// StatAPI configures the upstream attendance statistics backend.
type StatAPI struct {
	BaseURL  string `env:"STAT_API_URL,default=https://backend.chlife-stat.org"`
	ChurchID int    `env:"STAT_CHURCH_ID,default=2523"`
	Account  string `env:"STAT_ACCOUNT"`
	Password string `env:"STAT_PASSWORD"`
	// OrgLevel is the comma-separated organization level filter; the
	// default is applied after decoding because the value itself
	// contains commas.
	OrgLevel string `env:"STAT_ORG_LEVEL"`
}

const defaultOrgLevel = "2-2994,2-2993,2-2995"

// LoadDeployd reads deployd configuration from the environment.
func LoadDeployd() (Deployd, error) {
	_ = godotenv.Load()
	var cfg Deployd
	if err := envdecode.Decode(&cfg); err != nil {
		return Deployd{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// LoadBot reads bot server configuration from the environment.
func LoadBot() (Bot, error) {
	_ = godotenv.Load()
	var cfg Bot
	if err := envdecode.Decode(&cfg); err != nil {
		return Bot{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Stat.OrgLevel == "" {
		cfg.Stat.OrgLevel = defaultOrgLevel
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Bot{}, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	return cfg, nil
}

// Addr renders host:port for the listener.
func (c Bot) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr renders host:port for the listener.
func (c Deployd) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
