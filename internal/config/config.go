// Package config loads service settings from the environment and an optional .env file
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/domain/entity"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" env-default:"INFO"`
	HTTPServer HTTPServer
	Storage    Storage
	Postgres   Postgres
	Providers  Providers
	Scheduler  Scheduler
	Notifier   Notifier
	Redis      Redis
	Kafka      Kafka
	Engine     Engine
}

type HTTPServer struct {
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"2m"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type Storage struct {
	Driver    string `env:"STORAGE_DRIVER" env-default:"badger"`
	BadgerDir string `env:"BADGER_DIR" env-default:"./data"`
}

type Postgres struct {
	Host     string        `env:"BD_HOST" env-default:"localhost"`
	Port     int           `env:"BD_PORT" env-default:"5432"`
	User     string        `env:"BD_USER" env-default:"postgres"`
	Password string        `env:"BD_PASSWORD"`
	DBName   string        `env:"BD_DBNAME" env-default:"rates"`
	SSLMode  string        `env:"BD_SSL_MODE" env-default:"disable"`
	Timeout  time.Duration `env:"BD_TIMEOUT" env-default:"10s"`
	Migrate  bool          `env:"BD_MIGRATE" env-default:"true"`
}

type Providers struct {
	Enabled     string        `env:"PROVIDERS_ENABLED" env-default:"ECB,BOC,TREASURY"`
	Timeout     time.Duration `env:"PROVIDER_TIMEOUT" env-default:"10s"`
	ECBURL      string        `env:"ECB_URL" env-default:"https://data-api.ecb.europa.eu/service"`
	BOCURL      string        `env:"BOC_URL" env-default:"https://www.bankofcanada.ca/valet"`
	TreasuryURL string        `env:"TREASURY_URL" env-default:"https://api.fiscaldata.treasury.gov/services/api/fiscal_service"`
}

type Scheduler struct {
	Enabled bool          `env:"SCHEDULER_ENABLED" env-default:"true"`
	Spec    string        `env:"SCHEDULER_SPEC" env-default:"0 17 * * 1-5"`
	Timeout time.Duration `env:"SCHEDULER_TIMEOUT" env-default:"10m"`
}

type Notifier struct {
	Driver string `env:"NOTIFIER_DRIVER" env-default:"none"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Channel  string `env:"REDIS_CHANNEL" env-default:"rates_updated"`
}

type Kafka struct {
	Brokers string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string `env:"KAFKA_TOPIC" env-default:"rates-updated"`
}

type Engine struct {
	EarliestDate string `env:"ENGINE_EARLIEST_DATE"`
}

// Load reads envFile when it exists, then the process environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "badger", "postgres":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Notifier.Driver {
	case "none", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported NOTIFIER_DRIVER %q", c.Notifier.Driver)
	}
	if _, err := c.EarliestDate(); err != nil {
		return err
	}
	return nil
}

// EnabledProviders returns the upper-cased source ids to register, in order
func (c *Config) EnabledProviders() []string {
	var out []string
	for _, s := range strings.Split(c.Providers.Enabled, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// KafkaBrokers returns the configured broker addresses
func (c *Config) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// EarliestDate parses ENGINE_EARLIEST_DATE; the zero time means no floor
func (c *Config) EarliestDate() (time.Time, error) {
	if c.Engine.EarliestDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(entity.DateLayout, c.Engine.EarliestDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ENGINE_EARLIEST_DATE %q: %w", c.Engine.EarliestDate, err)
	}
	return t, nil
}

// PostgresDSN builds a connection URL from the Postgres section
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Postgres.User, c.Postgres.Password),
		Host:     fmt.Sprintf("%s:%d", c.Postgres.Host, c.Postgres.Port),
		Path:     "/" + c.Postgres.DBName,
		RawQuery: url.Values{"sslmode": {c.Postgres.SSLMode}}.Encode(),
	}
	return u.String()
}
