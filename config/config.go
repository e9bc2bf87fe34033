package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	Postgres          Postgres
	Redis             Redis
	HTTP              HTTP
	API               API
	Cache             Cache
	Jobs              Jobs
	Ledger            Ledger
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION" envDefault:"24h"`
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`

	ConnAttempts   int           `env:"PG_CONN_ATTEMPTS" envDefault:"10"`
	ConnRetryDelay time.Duration `env:"PG_CONN_RETRY_DELAY" envDefault:"1s"`
	PingTimeout    time.Duration `env:"PG_PING_TIMEOUT" envDefault:"5s"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	PingTimeout time.Duration `env:"REDIS_PING_TIMEOUT" envDefault:"5s"`
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	AllowOrigins    []string      `env:"HTTP_ALLOW_ORIGINS" envSeparator:"," envDefault:""`
	SecureCookie    bool          `env:"HTTP_SECURE_COOKIE" envDefault:"false"`
}

type API struct {
	Debug    bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout  time.Duration `env:"API_TIMEOUT" envDefault:"5s"`
	QuoteApi QuoteApi
}

type QuoteApi struct {
	Url   string `env:"QUOTE_API_URL"`
	Token string `env:"QUOTE_API_TOKEN"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION" envDefault:"1m"`
}

type Jobs struct {
	WarmQuotesCacheInterval time.Duration `env:"JOB_WARM_QUOTES_CACHE_INTERVAL" envDefault:"1m"`
	Timeout                 time.Duration `env:"JOB_TIMEOUT" envDefault:"30s"`
}

type Ledger struct {
	InitialCash decimal.Decimal `env:"LEDGER_INITIAL_CASH" envDefault:"10000.00"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Postgres.ConnAttempts < 1 {
		return nil, fmt.Errorf("PG_CONN_ATTEMPTS must be at least 1, got %d", cfg.Postgres.ConnAttempts)
	}

	if cfg.Ledger.InitialCash.IsNegative() {
		return nil, fmt.Errorf("LEDGER_INITIAL_CASH must not be negative, got %s", cfg.Ledger.InitialCash)
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
