// Package config loads service configuration from the environment, an optional
// .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Billing  BillingConfig  `yaml:"billing"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP and gRPC listener settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	Env            string        `yaml:"env"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RateBurst      int           `yaml:"rate_burst"`
	RatePerSecond  int           `yaml:"rate_per_second"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects in-memory stores.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	// AutoMigrate applies pending migrations and seeds at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// BillingConfig holds payment provider settings.
type BillingConfig struct {
	StripeKey  string `yaml:"stripe_key"`
	SuccessURL string `yaml:"success_url"`
	CancelURL  string `yaml:"cancel_url"`
	ReturnURL  string `yaml:"return_url"`
}

// MailConfig holds transactional email settings.
type MailConfig struct {
	APIURL      string `yaml:"api_url"`
	APIKey      string `yaml:"api_key"`
	From        string `yaml:"from"`
	SongOrderTo string `yaml:"song_order_to"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads .env (if present), the environment and the YAML overlay named by
// LEGACY_CONFIG_FILE, in that order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()
	if path := strings.TrimSpace(os.Getenv("LEGACY_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           getEnv("LEGACY_HTTP_ADDR", ":8080"),
			GRPCAddr:       getEnv("LEGACY_GRPC_ADDR", ":9090"),
			Env:            getEnv("LEGACY_ENV", "development"),
			ReadTimeout:    getDurationEnv("LEGACY_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("LEGACY_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getSliceEnv("LEGACY_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			RateBurst:      getIntEnv("LEGACY_RATE_BURST", 40),
			RatePerSecond:  getIntEnv("LEGACY_RATE_PER_SECOND", 20),
		},
		Database: DatabaseConfig{
			DSN:          getEnv("LEGACY_PG_DSN", ""),
			MaxOpenConns: getIntEnv("LEGACY_PG_MAX_OPEN_CONNS", 20),
			AutoMigrate:  getBoolEnv("LEGACY_AUTO_MIGRATE", false),
		},
		Auth: AuthConfig{
			Secret: getEnv("LEGACY_AUTH_SECRET", ""),
			Issuer: getEnv("LEGACY_AUTH_ISSUER", "legacyplanner"),
		},
		Billing: BillingConfig{
			StripeKey:  getEnv("LEGACY_STRIPE_KEY", ""),
			SuccessURL: getEnv("LEGACY_CHECKOUT_SUCCESS_URL", "http://localhost:5173/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:  getEnv("LEGACY_CHECKOUT_CANCEL_URL", "http://localhost:5173/pricing"),
			ReturnURL:  getEnv("LEGACY_PORTAL_RETURN_URL", "http://localhost:5173/app/account"),
		},
		Mail: MailConfig{
			APIURL:      getEnv("LEGACY_MAIL_API_URL", ""),
			APIKey:      getEnv("LEGACY_MAIL_API_KEY", ""),
			From:        getEnv("LEGACY_MAIL_FROM", "Planner <no-reply@localhost>"),
			SongOrderTo: getEnv("LEGACY_SONG_ORDER_TO", ""),
		},
		Log: LogConfig{
			Level: getEnv("LEGACY_LOG_LEVEL", "info"),
		},
	}
}

// overlayFile merges non-zero values from a YAML file over cfg.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks required values and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("LEGACY_HTTP_ADDR is required"))
	}
	switch c.Server.Env {
	case "development", "production", "test":
	default:
		errs = append(errs, fmt.Errorf("LEGACY_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if c.Server.RateBurst <= 0 || c.Server.RatePerSecond <= 0 {
		errs = append(errs, errors.New("rate limit burst and per-second values must be positive"))
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("LEGACY_AUTH_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("LEGACY_PG_DSN is required in production"))
		}
		if c.Billing.StripeKey == "" {
			errs = append(errs, errors.New("LEGACY_STRIPE_KEY is required in production"))
		}
	}
	if c.Mail.APIURL != "" && c.Mail.APIKey == "" {
		errs = append(errs, errors.New("LEGACY_MAIL_API_KEY is required when LEGACY_MAIL_API_URL is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getIntEnv(key string, def int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getBoolEnv(key string, def bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func getSliceEnv(key string, def []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
