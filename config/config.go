package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/agenda-api/pkg/messaging/redis"
	"github.com/jwalitptl/agenda-api/pkg/worker"
)

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as expected by migrate.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	HSTS           bool          `mapstructure:"hsts"`
	MetricsPort    int           `mapstructure:"metrics_port"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type SchedulingConfig struct {
	Timezone     string        `mapstructure:"timezone"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MaxRangeDays int           `mapstructure:"max_range_days"`
}

// Location resolves the configured timezone, defaulting to UTC.
func (c SchedulingConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type SubscriptionConfig struct {
	PriceCents  int64  `mapstructure:"price_cents"`
	Currency    string `mapstructure:"currency"`
	Description string `mapstructure:"description"`
	GrantDays   int    `mapstructure:"grant_days"`
}

type GatewayConfig struct {
	NotificationURL     string        `mapstructure:"notification_url"`
	SuccessURL          string        `mapstructure:"success_url"`
	FailureURL          string        `mapstructure:"failure_url"`
	PendingURL          string        `mapstructure:"pending_url"`
	Sandbox             bool          `mapstructure:"sandbox"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	BreakerFailures     uint32        `mapstructure:"breaker_failures"`
	BreakerOpenDuration time.Duration `mapstructure:"breaker_open_duration"`
}

type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	RPS          float64 `mapstructure:"rps"`
	Burst        int     `mapstructure:"burst"`
	WebhookRPS   float64 `mapstructure:"webhook_rps"`
	WebhookBurst int     `mapstructure:"webhook_burst"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	From     string `mapstructure:"from"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Secrets are read from AGENDA_* environment variables only.
type Secrets struct {
	JWTSecret          string `envconfig:"JWT_SECRET"`
	GatewayAccessToken string `envconfig:"GATEWAY_ACCESS_TOKEN"`
	DatabasePassword   string `envconfig:"DATABASE_PASSWORD"`
	SMTPPassword       string `envconfig:"SMTP_PASSWORD"`
}

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Scheduling   SchedulingConfig   `mapstructure:"scheduling"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Gateway      GatewayConfig      `mapstructure:"gateway"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	SMTP         SMTPConfig         `mapstructure:"smtp"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Secrets      Secrets            `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "agenda")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", "100ms")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("scheduling.timezone", "UTC")
	v.SetDefault("scheduling.cache_ttl", "5m")
	v.SetDefault("scheduling.max_range_days", 62)

	v.SetDefault("subscription.price_cents", 4990)
	v.SetDefault("subscription.currency", "BRL")
	v.SetDefault("subscription.description", "Agenda subscription (30 days)")
	v.SetDefault("subscription.grant_days", 30)

	v.SetDefault("gateway.request_timeout", "10s")
	v.SetDefault("gateway.breaker_failures", 5)
	v.SetDefault("gateway.breaker_open_duration", "30s")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.webhook_rps", 20)
	v.SetDefault("rate_limit.webhook_burst", 40)

	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", "2s")
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", "500ms")
	v.SetDefault("outbox.retention", "168h")
	v.SetDefault("outbox.cleanup_interval", "1h")

	v.SetDefault("smtp.port", 587)

	v.SetDefault("logging.level", "info")
}

// Load reads config.yml (optional), overlays environment variables and
// secrets, and validates the result.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")
	v.SetEnvPrefix("agenda")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("agenda", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	if cfg.Secrets.DatabasePassword != "" {
		cfg.Database.Password = cfg.Secrets.DatabasePassword
	}

	return &cfg, nil
}

// ValidateAPI checks the settings the HTTP server cannot start without.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.Secrets.JWTSecret == "" {
		missing = append(missing, "AGENDA_JWT_SECRET")
	}
	if c.Secrets.GatewayAccessToken == "" {
		missing = append(missing, "AGENDA_GATEWAY_ACCESS_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Subscription.PriceCents <= 0 {
		return fmt.Errorf("subscription.price_cents must be positive")
	}
	if c.Subscription.GrantDays <= 0 {
		return fmt.Errorf("subscription.grant_days must be positive")
	}
	if _, err := c.Scheduling.Location(); err != nil {
		return fmt.Errorf("invalid scheduling.timezone: %w", err)
	}
	return nil
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}
