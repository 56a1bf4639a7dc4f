package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	ERPURL             string        `envconfig:"ERP_URL" required:"true"`
	ERPDatabase        string        `envconfig:"ERP_DB" required:"true"`
	ERPUsername        string        `envconfig:"ERP_USERNAME" required:"true"`
	ERPPassword        string        `envconfig:"ERP_PASSWORD" required:"true"`
	ERPTimeout         time.Duration `envconfig:"ERP_TIMEOUT" default:"20s"`
	ERPSessionTTL      time.Duration `envconfig:"ERP_SESSION_TTL" default:"10m"`
	ERPStockLocationID int64         `envconfig:"ERP_STOCK_LOCATION_ID"`
	ERPPOSConfigID     int64         `envconfig:"ERP_POS_CONFIG_ID"`

	JWTSecret               string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL                  time.Duration `envconfig:"JWT_TTL" default:"12h"`
	POSOperatorUsername     string        `envconfig:"POS_OPERATOR_USERNAME" default:"caja"`
	POSOperatorPasswordHash string        `envconfig:"POS_OPERATOR_PASSWORD_HASH"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	PGDSN         string `envconfig:"PG_DSN"`
	PGMaxConns    int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	LockTTL            time.Duration `envconfig:"LOCK_TTL" default:"15s"`
	StockReconcileMode string        `envconfig:"STOCK_RECONCILE_MODE" default:"inline"`
	StockAllowNegative bool          `envconfig:"STOCK_ALLOW_NEGATIVE" default:"false"`
	StockProgressTTL   time.Duration `envconfig:"STOCK_PROGRESS_TTL" default:"720h"`

	GotenbergURL    string `envconfig:"GOTENBERG_URL"`
	ReceiptLocale   string `envconfig:"RECEIPT_LOCALE" default:"es"`
	ReceiptTimezone string `envconfig:"RECEIPT_TIMEZONE" default:"Europe/Madrid"`

	CORSOrigins        []string `envconfig:"CORS_ORIGINS"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	WorkerConcurrency  int      `envconfig:"WORKER_CONCURRENCY" default:"5"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for _, v := range []struct{ name, value string }{
		{"ERP_URL", c.ERPURL},
		{"ERP_DB", c.ERPDatabase},
		{"ERP_USERNAME", c.ERPUsername},
		{"ERP_PASSWORD", c.ERPPassword},
		{"JWT_SECRET", c.JWTSecret},
	} {
		if strings.TrimSpace(v.value) == "" {
			return fmt.Errorf("required key %s must not be empty", v.name)
		}
	}
	switch c.StockReconcileMode {
	case "inline", "async":
	default:
		return fmt.Errorf("STOCK_RECONCILE_MODE must be inline or async, got %q", c.StockReconcileMode)
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// Location resolves the receipt timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.ReceiptTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ReceiptTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
