package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Database connection string. postgres:// and postgresql:// URLs select
	// PostgreSQL, anything else is treated as a sqlite path.
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://traderesonance.db"`

	// Maximum number of open database connections
	DBMaxConn int `env:"DB_MAX_CONN" envDefault:"10"`

	// Secret used to sign the session cookie
	SecretKey string `env:"SECRET_KEY" envDefault:"dev-secret-change-me"`

	Port string `env:"PORT" envDefault:"8000"`

	// Shared secret for admin endpoints. Empty disables them.
	AdminToken string `env:"ADMIN_TOKEN"`

	DefaultLang string `env:"DEFAULT_LANG" envDefault:"ru"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// When enabled new submissions become pending requests awaiting approval
	ModerationEnabled bool `env:"MODERATION_ENABLED" envDefault:"false"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	// Optional base URL of product pictures offered with suggestions
	ProductImageBaseURL string `env:"PRODUCT_IMAGE_BASE_URL"`

	// Buffer size of the live entry event queue
	LiveQueueSize int `env:"LIVE_QUEUE_SIZE" envDefault:"64"`

	// How often the background dedupe sweep runs. Zero disables it.
	DedupeInterval time.Duration `env:"DEDUPE_INTERVAL" envDefault:"15m"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Driver returns the database driver selected by DatabaseURL.
func (c *Config) Driver() string {
	url := strings.TrimSpace(c.DatabaseURL)
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// DSN returns the connection string in the form the selected driver expects.
func (c *Config) DSN() string {
	url := strings.TrimSpace(c.DatabaseURL)
	if c.Driver() == DriverPostgres {
		return url
	}
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
