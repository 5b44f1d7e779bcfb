// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the knobs an operator sets per deployment. Game rules live in
// the tuning file, not here.
type Server struct {
	Port          int           `env:"PORT"               envDefault:"3000"`
	DBFile        string        `env:"DB_FILE"            envDefault:"data/leaderboard.db"`
	DataDir       string        `env:"DATA_DIR"           envDefault:"data"`
	TuningFile    string        `env:"TUNING_FILE"        envDefault:"configs/tuning.yaml"`
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL"        envDefault:"2h"`
	RateLimit     int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	DeployEnv     string        `env:"DEPLOY_ENV"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFrom parses an explicit environment, ignoring the process one.
func LoadFrom(environ map[string]string) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Server) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.SessionSecret != "" && len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 bytes")
	}
	return nil
}

func (c Server) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// AdminEnabled is true outside staging and production.
func (c Server) AdminEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.DeployEnv)) {
	case "staging", "production", "prod":
		return false
	default:
		return true
	}
}
