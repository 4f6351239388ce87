package configs

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrStartupConfig marks configuration that prevents the service from starting.
var ErrStartupConfig = errors.New("startup config error")

// Config holds the application configuration.
type Config struct {
	DbConfig     DbConfig
	ServerConfig ServerConfig
	LogConfig    LogConfig
	CacheConfig  CacheConfig

	// UnknownTypePolicy decides how cells of unrecognised column types are
	// rendered: "empty_string" or "null".
	UnknownTypePolicy string
}

// DbConfig holds database-related configuration.
type DbConfig struct {
	URL            string
	PoolMaxSize    int
	AcquireTimeout time.Duration
	NoWait         bool
	QueryTimeout   time.Duration
}

type ServerConfig struct {
	Addr            string
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level    string
	Encoding string
}

// CacheConfig enables the redis result cache when RedisURL is set.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

const (
	PolicyEmptyString = "empty_string"
	PolicyNull        = "null"
)

// LoadConfig reads .env (when present) and the process environment.
// envFiles overrides the default .env lookup.
func LoadConfig(envFiles ...string) (*Config, error) {
	err := godotenv.Load(envFiles...)
	if err != nil {
		log.Println("Error loading .env file, using environment only")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("LISTEN_ADDR", "0.0.0.0:3000")
	v.SetDefault("POOL_MAX_SIZE", 4)
	v.SetDefault("POOL_ACQUIRE_TIMEOUT", 5*time.Second)
	v.SetDefault("POOL_NO_WAIT", false)
	v.SetDefault("QUERY_TIMEOUT", 30*time.Second)
	v.SetDefault("UNKNOWN_TYPE_POLICY", PolicyEmptyString)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("CACHE_TTL", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)

	conf := &Config{
		DbConfig: DbConfig{
			URL:            strings.TrimSpace(v.GetString("DATABASE_URL")),
			PoolMaxSize:    v.GetInt("POOL_MAX_SIZE"),
			AcquireTimeout: v.GetDuration("POOL_ACQUIRE_TIMEOUT"),
			NoWait:         v.GetBool("POOL_NO_WAIT"),
			QueryTimeout:   v.GetDuration("QUERY_TIMEOUT"),
		},
		ServerConfig: ServerConfig{
			Addr:            v.GetString("LISTEN_ADDR"),
			MetricsAddr:     v.GetString("METRICS_ADDR"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		LogConfig: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		CacheConfig: CacheConfig{
			RedisURL: v.GetString("REDIS_URL"),
			TTL:      v.GetDuration("CACHE_TTL"),
		},
		UnknownTypePolicy: strings.ToLower(v.GetString("UNKNOWN_TYPE_POLICY")),
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the invariants the service relies on at startup.
func (c *Config) Validate() error {
	if c.DbConfig.URL == "" {
		return fmt.Errorf("%w: DATABASE_URL is not set", ErrStartupConfig)
	}
	u, err := url.Parse(c.DbConfig.URL)
	if err != nil {
		// the parse error echoes the URL, credentials included
		return fmt.Errorf("%w: DATABASE_URL is malformed", ErrStartupConfig)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: DATABASE_URL needs a scheme and a host", ErrStartupConfig)
	}

	if c.DbConfig.PoolMaxSize < 1 {
		return fmt.Errorf("%w: POOL_MAX_SIZE must be >= 1, got %d", ErrStartupConfig, c.DbConfig.PoolMaxSize)
	}
	if c.DbConfig.AcquireTimeout < 0 || c.DbConfig.QueryTimeout < 0 || c.CacheConfig.TTL < 0 || c.ServerConfig.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrStartupConfig)
	}

	switch c.UnknownTypePolicy {
	case PolicyEmptyString, PolicyNull:
	default:
		return fmt.Errorf("%w: UNKNOWN_TYPE_POLICY must be %q or %q, got %q",
			ErrStartupConfig, PolicyEmptyString, PolicyNull, c.UnknownTypePolicy)
	}

	if c.CacheConfig.RedisURL != "" {
		if _, err := url.Parse(c.CacheConfig.RedisURL); err != nil {
			return fmt.Errorf("%w: REDIS_URL is malformed", ErrStartupConfig)
		}
	}

	return nil
}
