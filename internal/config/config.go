package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Sync     SyncConfig
	Sources  SourcesConfig
	Trigger  TriggerConfig
	Schedule ScheduleConfig
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
	ConnectAttempts       int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type LogConfig struct {
	Level       string
	Development bool
}

type SyncConfig struct {
	Concurrency       int
	FullBudget        time.Duration
	IncrementalBudget time.Duration
	LifecycleTimeout  time.Duration

	TopSources    []string
	SinceDays     int
	MaxJobsFull   int
	MaxJobsIncr   int
	MaxJobsTop    int
	HTTPTimeout   time.Duration
	StateTTL      time.Duration
	SourceLockTTL time.Duration

	StaleDays      int
	ExpiryDays     int
	ReactivateDays int
}

type SourcesConfig struct {
	USAJobsAPIKey  string
	USAJobsEmail   string
	FindWorkAPIKey string
	TheMuseAPIKey  string
	UserAgent      string
}

type TriggerConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type ScheduleConfig struct {
	Daily  string
	Hourly string
}

var (
	errMissingRequiredEnv = errors.New("missing required environment variables")
	errInvalidEnv         = errors.New("invalid environment variables")
)

func Load() (Config, error) {
	cfg := Config{}

	var missing, invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}
	optInt := func(key string, def int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			invalid = append(invalid, key)
			return def
		}
		return v
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			invalid = append(invalid, key)
			return def
		}
		return d
	}
	optBool := func(key string, def bool) bool {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return b
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    opt("HTTP_PORT", "8080"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST", "localhost"),
		DBPort:     opt("DB_PORT", "5432"),
		DBName:     req("DB_NAME"),
		DBUser:     req("DB_USER"),
		DBPassword: opt("DB_PASSWORD", ""),
		DBSSLMode:  opt("DB_SSL_MODE", "disable"),

		ConnectTimeout:        optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 0)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   optDuration("DB_POOL_MAX_CONN_LIFETIME", 0),
		PoolMaxConnIdleTime:   optDuration("DB_POOL_MAX_CONN_IDLE_TIME", 0),
		PoolHealthCheckPeriod: optDuration("DB_POOL_HEALTH_CHECK_PERIOD", 0),
		ConnectAttempts:       optInt("DB_CONNECT_ATTEMPTS", 5),
	}

	cfg.Redis = RedisConfig{
		Host:     opt("REDIS_HOST", "localhost"),
		Port:     opt("REDIS_PORT", "6379"),
		Password: opt("REDIS_PASSWORD", ""),
		DB:       optInt("REDIS_DB", 0),
		TTL:      optDuration("REDIS_TTL", 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:       opt("LOG_LEVEL", "info"),
		Development: optBool("LOG_DEVELOPMENT", false),
	}

	cfg.Sync = SyncConfig{
		Concurrency:       optInt("SYNC_CONCURRENCY", 0),
		FullBudget:        optDuration("SYNC_FULL_BUDGET", 5*time.Minute),
		IncrementalBudget: optDuration("SYNC_INCREMENTAL_BUDGET", 55*time.Second),
		LifecycleTimeout:  optDuration("SYNC_LIFECYCLE_TIMEOUT", 2*time.Minute),

		TopSources:    splitList(opt("SYNC_TOP_SOURCES", "remotive,remoteok,himalayas")),
		SinceDays:     optInt("SYNC_SINCE_DAYS", 2),
		MaxJobsFull:   optInt("SYNC_MAX_JOBS_FULL", 1000),
		MaxJobsIncr:   optInt("SYNC_MAX_JOBS_INCREMENTAL", 100),
		MaxJobsTop:    optInt("SYNC_MAX_JOBS_TOP", 200),
		HTTPTimeout:   optDuration("SYNC_HTTP_TIMEOUT", 10*time.Second),
		StateTTL:      optDuration("SYNC_STATE_TTL", time.Hour),
		SourceLockTTL: optDuration("SYNC_SOURCE_LOCK_TTL", 10*time.Minute),

		StaleDays:      optInt("SYNC_STALE_DAYS", 60),
		ExpiryDays:     optInt("SYNC_EXPIRY_DAYS", 90),
		ReactivateDays: optInt("SYNC_REACTIVATE_DAYS", 30),
	}

	cfg.Sources = SourcesConfig{
		USAJobsAPIKey:  opt("USAJOBS_API_KEY", ""),
		USAJobsEmail:   opt("USAJOBS_EMAIL", ""),
		FindWorkAPIKey: opt("FINDWORK_API_KEY", ""),
		TheMuseAPIKey:  opt("THEMUSE_API_KEY", ""),
		UserAgent:      opt("SOURCE_USER_AGENT", "JobSync/1.0"),
	}

	cfg.Trigger = TriggerConfig{
		Secret:   opt("TRIGGER_SECRET", opt("CRON_SECRET", "")),
		TokenTTL: optDuration("TRIGGER_TOKEN_TTL", 15*time.Minute),
	}

	cfg.Schedule = ScheduleConfig{
		Daily:  opt("SCHEDULE_DAILY", "0 2 * * *"),
		Hourly: opt("SCHEDULE_HOURLY", "@hourly"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
