package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "stockledger"
	ServiceVersion = "0.1.0"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	HTTPAddr      string
	GRPCAddr      string
	CORSOrigins   []string
	ShutdownGrace time.Duration

	StoreDriver    string
	SQLitePath     string
	MySQLDSN       string
	DBMaxOpenConns int
	AutoMigrate    bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers   []string
	KafkaTopic     string
	EventWorkers   int
	EventQueueSize int

	OtelEndpoint   string
	OtelURLPath    string
	OtelAuthHeader string
	OtelInsecure   bool

	LogLevel      string
	LogFormat     string
	CodeCacheSize int
	Location      *time.Location
}

// Load reads the configuration from the environment. Values missing from the
// environment are taken from the given env files (default ".env"), then from
// built-in defaults. Missing env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	fileVars := make(map[string]string)
	for _, path := range envFiles {
		vars, err := godotenv.Read(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range vars {
			if _, ok := fileVars[k]; !ok {
				fileVars[k] = v
			}
		}
	}

	e := env{file: fileVars}
	cfg := &Config{
		HTTPAddr:      e.str("HTTP_ADDR", ":8080"),
		GRPCAddr:      e.str("GRPC_ADDR", ":50051"),
		CORSOrigins:   e.list("CORS_ORIGINS", "*"),
		ShutdownGrace: e.duration("SHUTDOWN_GRACE", 10*time.Second),

		StoreDriver:    strings.ToLower(e.str("STORE_DRIVER", DriverSQLite)),
		SQLitePath:     e.str("SQLITE_PATH", "stockledger.db"),
		MySQLDSN:       e.str("MYSQL_DSN", ""),
		DBMaxOpenConns: e.int("DB_MAX_OPEN_CONNS", 0),
		AutoMigrate:    e.bool("AUTO_MIGRATE", true),

		RedisAddr:     e.str("REDIS_ADDR", ""),
		RedisPassword: e.str("REDIS_PASSWORD", ""),
		RedisDB:       e.int("REDIS_DB", 0),

		KafkaBrokers:   e.list("KAFKA_BROKERS", ""),
		KafkaTopic:     e.str("KAFKA_TOPIC", "stockledger.movements"),
		EventWorkers:   e.int("EVENT_WORKERS", 4),
		EventQueueSize: e.int("EVENT_QUEUE_SIZE", 10000),

		OtelEndpoint:   e.str("OTEL_ENDPOINT", ""),
		OtelURLPath:    e.str("OTEL_URL_PATH", "/v1/traces"),
		OtelAuthHeader: e.str("OTEL_AUTH_HEADER", ""),
		OtelInsecure:   e.bool("OTEL_INSECURE", false),

		LogLevel:      strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(e.str("LOG_FORMAT", "json")),
		CodeCacheSize: e.int("CODE_CACHE_SIZE", 4096),
	}

	tz := e.str("TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("TIMEZONE: %w", err))
	}
	cfg.Location = loc

	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 1
		if cfg.StoreDriver == DriverMySQL {
			cfg.DBMaxOpenConns = 50
		}
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return errors.New("MYSQL_DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.StoreDriver)
	}

	if c.DBMaxOpenConns < 1 {
		return errors.New("DB_MAX_OPEN_CONNS must be positive")
	}
	if c.EventWorkers < 1 {
		return errors.New("EVENT_WORKERS must be positive")
	}
	if c.EventQueueSize < 1 {
		return errors.New("EVENT_QUEUE_SIZE must be positive")
	}
	if c.CodeCacheSize < 1 {
		return errors.New("CODE_CACHE_SIZE must be positive")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// EventsEnabled reports whether committed movements are published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

type env struct {
	file map[string]string
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	if v, ok := e.file[key]; ok && v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) list(key, def string) []string {
	raw := e.str(key, def)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
