package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Cafenet"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Driver   string `envconfig:"STORE_DRIVER" default:"postgres"`
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"cafenet"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Backup struct {
		Enabled  bool          `envconfig:"BACKUP_ENABLED" default:"true"`
		Dir      string        `envconfig:"BACKUP_DIR" default:"backups"`
		Interval time.Duration `envconfig:"BACKUP_INTERVAL" default:"10m"`
		Retain   int           `envconfig:"BACKUP_RETAIN" default:"20"`
	}

	Inventory struct {
		LowStockThreshold int64 `envconfig:"LOW_STOCK_THRESHOLD" default:"5"`
		HistoryLimit      int   `envconfig:"HISTORY_LIMIT" default:"2000"`
	}

	Auth struct {
		// Secret signs API tokens. Leaving it empty disables authentication.
		Secret   string        `envconfig:"AUTH_SECRET"`
		TokenTTL time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s or %s)", cfg.DB.Driver, DriverPostgres, DriverMemory)
	}

	return &cfg, nil
}
