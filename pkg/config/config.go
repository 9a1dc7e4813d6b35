package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "caisse"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Local LocalConfig
	Sync  SyncConfig
	JWT   JWTConfig
	Redis RedisConfig
	Cron  CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAISSE_APP_ENV" default:"dev"`
	Port         string `envconfig:"CAISSE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CAISSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAISSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig describes the server-side Postgres connection.
type DBConfig struct {
	DSN    string `envconfig:"CAISSE_DB_DSN"`
	Driver string `envconfig:"CAISSE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"CAISSE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAISSE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAISSE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAISSE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"CAISSE_AUTO_MIGRATE" default:"false"`
}

// LocalConfig describes the embedded store a terminal agent runs against.
type LocalConfig struct {
	Path     string `envconfig:"CAISSE_LOCAL_DB_PATH" default:"caisse.db"`
	DeviceID string `envconfig:"CAISSE_DEVICE_ID"`
	TenantID string `envconfig:"CAISSE_TENANT_ID"`
}

// SyncConfig drives the terminal-side sync coordinator.
type SyncConfig struct {
	ServerURL    string        `envconfig:"CAISSE_SYNC_SERVER_URL"`
	AuthToken    string        `envconfig:"CAISSE_SYNC_AUTH_TOKEN"`
	BatchSize    int           `envconfig:"CAISSE_SYNC_BATCH_SIZE" default:"50"`
	HTTPTimeout  time.Duration `envconfig:"CAISSE_SYNC_HTTP_TIMEOUT" default:"15s"`
	BackoffFloor time.Duration `envconfig:"CAISSE_SYNC_BACKOFF_FLOOR" default:"30s"`
	BackoffCap   time.Duration `envconfig:"CAISSE_SYNC_BACKOFF_CAP" default:"120s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAISSE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAISSE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAISSE_JWT_EXPIRATION_MINUTES" default:"720"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAISSE_REDIS_URL"`
	Address      string        `envconfig:"CAISSE_REDIS_ADDR"`
	Password     string        `envconfig:"CAISSE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAISSE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAISSE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAISSE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAISSE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAISSE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAISSE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CronConfig drives the maintenance worker.
type CronConfig struct {
	Interval         time.Duration `envconfig:"CAISSE_CRON_INTERVAL" default:"1h"`
	LockKey          string        `envconfig:"CAISSE_CRON_LOCK_KEY" default:"caisse:cron:lock"`
	LockTTL          time.Duration `envconfig:"CAISSE_CRON_LOCK_TTL" default:"55m"`
	StuckOpThreshold time.Duration `envconfig:"CAISSE_CRON_STUCK_OP_THRESHOLD" default:"1h"`
}
