package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"SafeYatra/pkg/cache"
	"SafeYatra/pkg/logger"
	"SafeYatra/pkg/storage"
	"SafeYatra/pkg/util"

	"github.com/robfig/cron/v3"
	"github.com/ulule/limiter/v3"
)

// DefaultRateLimitRoutes tightens location ingest and never limits SOS
// creation. Keys are relative to API_PREFIX.
var DefaultRateLimitRoutes = []string{"POST /locations/update=120-M", "POST /sos=off"}

type Config struct {
	AppEnv    string `env:"APP_ENV"`
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	Log       logger.LogConfig

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN"`

	SnapshotPath     string        `env:"SNAPSHOT_PATH"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL"`
	BackupEnabled    bool          `env:"BACKUP_ENABLED"`
	BackupPath       string        `env:"BACKUP_PATH"`
	BackupSchedule   string        `env:"BACKUP_SCHEDULE"`
	BackupKeep       int           `env:"BACKUP_KEEP"`
	BackupOffsite    storage.MinioConfig

	Cache cache.Config

	// HighRiskSuppressWindow > 0 collapses repeated high-risk warnings for
	// the same user into one per window. Zero warns on every sample.
	HighRiskSuppressWindow time.Duration `env:"HIGH_RISK_SUPPRESS_WINDOW"`
	ZoneCacheTTL           time.Duration `env:"ZONE_CACHE_TTL"`

	// RateLimitRoutes maps "METHOD /path" or "/path" to a rate or "off".
	RateLimit             string            `env:"RATE_LIMIT"`
	RateLimitRoutes       map[string]string `env:"RATE_LIMIT_ROUTES"`
	RateLimitTrustedCIDRs []string          `env:"RATE_LIMIT_TRUSTED_CIDRS"`

	AllowedOrigins      []string      `env:"ALLOWED_ORIGINS"`
	SystemStatsInterval time.Duration `env:"SYSTEM_STATS_INTERVAL"`
	SeedDemo            bool          `env:"SEED_DEMO"`

	// SearchIndexPath empty keeps the zone search index in memory.
	SearchIndexPath    string        `env:"SEARCH_INDEX_PATH"`
	StreamPingInterval time.Duration `env:"STREAM_PING_INTERVAL"`
}

// Load reads .env files for APP_ENV (default development) and then the
// process environment.
func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := &Config{
		AppEnv:    env,
		Addr:      util.GetEnvOr("ADDR", ":3001"),
		Mode:      util.GetEnvOr("MODE", "debug"),
		APIPrefix: util.GetEnvOr("API_PREFIX", "/api"),
		DBDriver:  util.GetEnvOr("DB_DRIVER", "sqlite"),
		DSN:       util.GetEnvOr("DSN", "file::memory:"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		JWTSecret:        util.GetEnv("JWT_SECRET"),
		JWTExpiresIn:     util.GetDurationEnvOr("JWT_EXPIRES_IN", 7*24*time.Hour),
		SnapshotPath:     util.GetEnvOr("SNAPSHOT_PATH", "data/safeyatra.snapshot.json"),
		SnapshotInterval: util.GetDurationEnvOr("SNAPSHOT_INTERVAL", 30*time.Second),
		BackupEnabled:    util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:       util.GetEnvOr("BACKUP_PATH", "backups"),
		BackupSchedule:   util.GetEnvOr("BACKUP_SCHEDULE", "0 3 * * *"),
		BackupKeep:       int(util.GetIntEnvOr("BACKUP_KEEP", 7)),
		BackupOffsite: storage.MinioConfig{
			Endpoint:  util.GetEnv("BACKUP_S3_ENDPOINT"),
			AccessKey: util.GetEnv("BACKUP_S3_ACCESS_KEY"),
			SecretKey: util.GetEnv("BACKUP_S3_SECRET_KEY"),
			Bucket:    util.GetEnv("BACKUP_S3_BUCKET"),
			UseSSL:    util.GetBoolEnv("BACKUP_S3_USE_SSL"),
			Prefix:    util.GetEnvOr("BACKUP_S3_PREFIX", "safeyatra"),
		},
		Cache: cache.Config{
			Type: util.GetEnvOr("CACHE_TYPE", "gocache"),
			Redis: cache.RedisConfig{
				Addr:         util.GetEnvOr("REDIS_ADDR", "localhost:6379"),
				Password:     util.GetEnv("REDIS_PASSWORD"),
				DB:           int(util.GetIntEnv("REDIS_DB")),
				PoolSize:     int(util.GetIntEnvOr("REDIS_POOL_SIZE", 10)),
				MinIdleConns: int(util.GetIntEnvOr("REDIS_MIN_IDLE_CONNS", 2)),
				DialTimeout:  util.GetDurationEnvOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
				ReadTimeout:  util.GetDurationEnvOr("REDIS_READ_TIMEOUT", 3*time.Second),
				WriteTimeout: util.GetDurationEnvOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
			},
			Local: cache.LocalConfig{
				MaxSize:           int(util.GetIntEnvOr("LOCAL_CACHE_MAX_SIZE", 10000)),
				DefaultExpiration: util.GetDurationEnvOr("LOCAL_CACHE_DEFAULT_EXPIRATION", 5*time.Minute),
				CleanupInterval:   util.GetDurationEnvOr("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			},
		},
		HighRiskSuppressWindow: util.GetDurationEnvOr("HIGH_RISK_SUPPRESS_WINDOW", 0),
		ZoneCacheTTL:           util.GetDurationEnvOr("ZONE_CACHE_TTL", time.Minute),
		RateLimit:              util.GetEnvOr("RATE_LIMIT", "300-M"),
		AllowedOrigins:         util.GetStringSliceEnv("ALLOWED_ORIGINS"),
		SystemStatsInterval:    util.GetDurationEnvOr("SYSTEM_STATS_INTERVAL", 15*time.Second),
		SeedDemo:               util.GetBoolEnv("SEED_DEMO"),
		SearchIndexPath:        util.GetEnv("SEARCH_INDEX_PATH"),
		StreamPingInterval:     util.GetDurationEnvOr("STREAM_PING_INTERVAL", 30*time.Second),
	}
	routes := util.GetStringSliceEnv("RATE_LIMIT_ROUTES")
	if routes == nil {
		routes = DefaultRateLimitRoutes
	}
	var err error
	if cfg.RateLimitRoutes, err = parseRouteRates(routes); err != nil {
		return nil, err
	}
	cfg.RateLimitTrustedCIDRs = util.GetStringSliceEnv("RATE_LIMIT_TRUSTED_CIDRS")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("MODE must be debug, release or test, got %q", c.Mode)
	}
	switch c.DBDriver {
	case "sqlite", "mysql", "pg":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.JWTSecret == "" {
		if c.Mode == "release" {
			return fmt.Errorf("JWT_SECRET is required in release mode")
		}
		c.JWTSecret = "safeyatra-dev-secret"
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}
	if c.HighRiskSuppressWindow < 0 {
		return fmt.Errorf("HIGH_RISK_SUPPRESS_WINDOW must not be negative")
	}
	if _, err := limiter.NewRateFromFormatted(c.RateLimit); err != nil {
		return fmt.Errorf("invalid RATE_LIMIT %q: %w", c.RateLimit, err)
	}
	for route, rate := range c.RateLimitRoutes {
		if rate == "off" {
			continue
		}
		if _, err := limiter.NewRateFromFormatted(rate); err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_ROUTES rate for %q: %w", route, err)
		}
	}
	for _, cidr := range c.RateLimitTrustedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_TRUSTED_CIDRS entry %q: %w", cidr, err)
		}
	}
	if c.BackupEnabled {
		if _, err := cron.ParseStandard(c.BackupSchedule); err != nil {
			return fmt.Errorf("invalid BACKUP_SCHEDULE %q: %w", c.BackupSchedule, err)
		}
	}
	return nil
}

// parseRouteRates reads entries of the form "POST /sos=off".
func parseRouteRates(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		i := strings.LastIndex(e, "=")
		if i <= 0 || i == len(e)-1 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_ROUTES entry %q", e)
		}
		route := strings.Join(strings.Fields(e[:i]), " ")
		out[route] = strings.TrimSpace(e[i+1:])
	}
	return out, nil
}

// RouteRates returns RateLimitRoutes with every path under prefix.
func (c *Config) RouteRates(prefix string) map[string]string {
	out := make(map[string]string, len(c.RateLimitRoutes))
	for route, rate := range c.RateLimitRoutes {
		if method, path, ok := strings.Cut(route, " "); ok {
			out[method+" "+prefix+path] = rate
			continue
		}
		out[prefix+route] = rate
	}
	return out
}
