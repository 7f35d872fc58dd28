// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSessionSecretLen is the shortest accepted SESSION_SECRET, in bytes.
const minSessionSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// SessionSecret signs the session cookie. At least 32 bytes.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionMaxAge is the session cookie lifetime (e.g. "168h").
	SessionMaxAge string `mapstructure:"SESSION_MAX_AGE"`
	// SessionSecureCookie sets the Secure attribute on the session cookie. Enable behind TLS.
	SessionSecureCookie bool `mapstructure:"SESSION_SECURE_COOKIE"`

	// SMTPHost is the mail server host. Required unless DevCodeMode is true.
	SMTPHost string `mapstructure:"SMTP_HOST"`
	// SMTPPort is the mail server port (default 587).
	SMTPPort int `mapstructure:"SMTP_PORT"`
	// SMTPUsername and SMTPPassword are used for PLAIN auth when SMTPUsername is set.
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	// SMTPFrom is the envelope and header sender address.
	SMTPFrom string `mapstructure:"SMTP_FROM"`
	// SMTPTimeout bounds one delivery from dial to QUIT when the caller sets no deadline (e.g. "10s").
	SMTPTimeout string `mapstructure:"SMTP_TIMEOUT"`
	// PublicBaseURL is the externally visible site root, used for links in emails (e.g. https://example.com).
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	// DevCodeMode when true keeps verification codes in memory and serves them at
	// GET /dev/verification-code/{id} instead of sending email. Must not be true when Env is production.
	DevCodeMode bool `mapstructure:"DEV_CODE_MODE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// PasswordMinEntropy is the minimum password entropy in bits. 0 disables the check.
	PasswordMinEntropy float64 `mapstructure:"PASSWORD_MIN_ENTROPY"`
	// RejectDisposableEmail rejects registrations from disposable-mail domains.
	RejectDisposableEmail bool `mapstructure:"REJECT_DISPOSABLE_EMAIL"`
	// CORSAllowedOrigins is a comma-separated origin list. Empty disables CORS headers.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Telemetry (optional). Empty endpoint installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set, domain events are published to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for domain events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DevCodeMode && cfg.IsProduction() {
		return nil, errors.New("config: DEV_CODE_MODE must not be true when APP_ENV=production")
	}
	if len(cfg.SessionSecret) < minSessionSecretLen {
		return nil, errors.New("config: SESSION_SECRET must be at least 32 bytes")
	}
	if !cfg.DevCodeMode && strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, errors.New("config: SMTP_HOST must be set unless DEV_CODE_MODE=true")
	}
	if cfg.PasswordMinEntropy < 0 {
		return nil, errors.New("config: PASSWORD_MIN_ENTROPY must not be negative")
	}
	return cfg, nil
}

// LoadTool loads Config for administrative commands (migrate, createsuperuser).
// Server-only settings (session, SMTP) are not validated.
func LoadTool() (*Config, error) {
	return load()
}

func load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_MAX_AGE", "168h")
	v.SetDefault("SESSION_SECURE_COOKIE", false)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_TIMEOUT", "10s")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("DEV_CODE_MODE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("PASSWORD_MIN_ENTROPY", 0)
	v.SetDefault("REJECT_DISPOSABLE_EMAIL", false)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "signup-verify")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "signup-telemetry")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return &cfg, nil
}

// SessionTTL parses SessionMaxAge as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionMaxAge)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SMTPSendTimeout parses SMTPTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) SMTPSendTimeout() time.Duration {
	d, err := time.ParseDuration(c.SMTPTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// CORSOrigins returns the allowed origins from the comma-separated config.
func (c *Config) CORSOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSAllowedOrigins)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means Kafka publishing is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && strings.EqualFold(c.Env, "production")
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
