package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration loaded from environment variables.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver  string        `envconfig:"STORE_DRIVER" default:"sqlite"`
	DBPath       string        `envconfig:"DB_PATH" default:"socialchat.db"`
	DatabaseDSN  string        `envconfig:"DATABASE_DSN"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me-in-production"`

	MaxRooms             int  `envconfig:"MAX_ROOMS" default:"100"`
	MaxHistory           int  `envconfig:"MAX_HISTORY" default:"50"`
	SendBuffer           int  `envconfig:"SEND_BUFFER" default:"256"`
	PersistGroupMessages bool `envconfig:"PERSIST_GROUP_MESSAGES" default:"false"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.MaxRooms <= 0 || c.MaxHistory <= 0 || c.SendBuffer <= 0 {
		return fmt.Errorf("MAX_ROOMS, MAX_HISTORY and SEND_BUFFER must be positive")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	return nil
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool {
	return c.Environment == "production"
}
