// Package config loads otpauth-server settings from a .env file, the process
// environment and command-line flags, in that order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	NotifierSMTP = "smtp"
	NotifierLog  = "log"

	ExporterPrometheus = "prometheus"
	ExporterOTel       = "otel"
)

// Config holds runtime settings for the otpauth server.
type Config struct {
	AppEnv   string
	AppName  string
	Addr     string
	LogLevel string

	Store       string
	DbDsn       string
	AutoMigrate bool

	Cache         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JwtSecret string
	JwtTTL    time.Duration
	JwtIssuer string

	OtpDigits int
	OtpTTL    time.Duration

	Notifier string
	SmtpHost string
	SmtpPort int
	SmtpUser string
	SmtpPass string
	SmtpFrom string

	BackoffBase    time.Duration
	BackoffMax     time.Duration
	AttemptTimeout time.Duration
	HealthInterval time.Duration

	CookieSecure    bool
	MetricsEnabled  bool
	MetricsExporter string
	AuditEnabled    bool
}

// Load reads ./.env when present, then the environment, then args.
func Load(args []string) (Config, error) {
	return LoadFiles(args, ".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are skipped;
// variables already set in the environment win over file values.
func LoadFiles(args []string, files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	return parse(args, os.Getenv)
}

type envReader struct {
	getenv  func(string) string
	invalid []string
}

func (r *envReader) str(key, fallback string) string {
	value := r.getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func (r *envReader) integer(key string, fallback int) int {
	value := r.getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return parsed
}

func (r *envReader) duration(key string, fallback time.Duration) time.Duration {
	value := r.getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return parsed
}

func (r *envReader) boolean(key string, fallback bool) bool {
	value := r.getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		r.invalid = append(r.invalid, key)
		return fallback
	}
	return parsed
}

func parse(args []string, getenv func(string) string) (Config, error) {
	env := &envReader{getenv: getenv}

	cfg := Config{
		AppEnv:   env.str("APP_ENV", "local"),
		AppName:  env.str("APP_NAME", "otpAuth"),
		Addr:     env.str("APP_ADDR", ":8080"),
		LogLevel: env.str("LOG_LEVEL", "info"),

		Store:       strings.ToLower(env.str("STORE", StorePostgres)),
		DbDsn:       getenv("DB_DSN"),
		AutoMigrate: env.boolean("DB_AUTO_MIGRATE", true),

		Cache:         strings.ToLower(env.str("OTP_CACHE", CacheMemory)),
		RedisAddr:     env.str("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       env.integer("REDIS_DB", 0),

		JwtSecret: getenv("JWT_SECRET"),
		JwtTTL:    env.duration("JWT_TTL", 24*time.Hour),
		JwtIssuer: env.str("JWT_ISSUER", "otpauth"),

		OtpDigits: env.integer("OTP_DIGITS", 6),
		OtpTTL:    env.duration("OTP_TTL", 10*time.Minute),

		Notifier: strings.ToLower(env.str("NOTIFIER", NotifierSMTP)),
		SmtpHost: getenv("SMTP_HOST"),
		SmtpPort: env.integer("SMTP_PORT", 587),
		SmtpUser: getenv("SMTP_USER"),
		SmtpPass: getenv("SMTP_PASS"),
		SmtpFrom: getenv("SMTP_FROM"),

		BackoffBase:    env.duration("BACKOFF_BASE", 5*time.Second),
		BackoffMax:     env.duration("BACKOFF_MAX", 60*time.Second),
		AttemptTimeout: env.duration("CONNECT_TIMEOUT", 5*time.Second),
		HealthInterval: env.duration("HEALTH_INTERVAL", 30*time.Second),

		CookieSecure:    env.boolean("COOKIE_SECURE", false),
		MetricsEnabled:  env.boolean("METRICS_ENABLED", true),
		MetricsExporter: strings.ToLower(env.str("METRICS_EXPORTER", ExporterPrometheus)),
		AuditEnabled:    env.boolean("AUDIT_ENABLED", false),
	}

	if err := parseFlags(&cfg, args); err != nil {
		return cfg, err
	}

	if len(env.invalid) > 0 {
		return cfg, errors.New("invalid env: " + strings.Join(env.invalid, ", "))
	}
	return cfg, cfg.validate()
}

// parseFlags overlays flags on cfg.
//
//	-addr string      listen address
//	-store string     postgres | memory
//	-dsn string       PostgreSQL DSN
//	-cache string     memory | redis
//	-redis string     Redis address
//	-notifier string  smtp | log
//	-log-level string debug | info | warn | error
//	-metrics string   prometheus | otel
//	-audit            write audit events to stdout
func parseFlags(cfg *Config, args []string) error {
	flags := flag.NewFlagSet("otpauth-server", flag.ContinueOnError)

	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "address and port to listen on")
	flags.StringVar(&cfg.Store, "store", cfg.Store, "account store: postgres or memory")
	flags.StringVar(&cfg.DbDsn, "dsn", cfg.DbDsn, "PostgreSQL DSN")
	flags.StringVar(&cfg.Cache, "cache", cfg.Cache, "otp cache: memory or redis")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address")
	flags.StringVar(&cfg.Notifier, "notifier", cfg.Notifier, "notifier: smtp or log")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flags.StringVar(&cfg.MetricsExporter, "metrics", cfg.MetricsExporter, "metrics exporter: prometheus or otel")
	flags.BoolVar(&cfg.AuditEnabled, "audit", cfg.AuditEnabled, "write audit events to stdout")

	return flags.Parse(args)
}

func (c Config) validate() error {
	missing := []string{}
	if c.JwtSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	switch c.Store {
	case StorePostgres:
		if c.DbDsn == "" {
			missing = append(missing, "DB_DSN")
		}
	case StoreMemory:
	default:
		return errors.New("unsupported STORE: " + c.Store)
	}

	switch c.Cache {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return errors.New("unsupported OTP_CACHE: " + c.Cache)
	}

	switch c.Notifier {
	case NotifierSMTP:
		if c.SmtpHost == "" {
			missing = append(missing, "SMTP_HOST")
		}
		if c.SmtpFrom == "" {
			missing = append(missing, "SMTP_FROM")
		}
	case NotifierLog:
	default:
		return errors.New("unsupported NOTIFIER: " + c.Notifier)
	}

	switch c.MetricsExporter {
	case ExporterPrometheus, ExporterOTel:
	default:
		return errors.New("unsupported METRICS_EXPORTER: " + c.MetricsExporter)
	}

	if len(missing) > 0 {
		return errors.New("missing env: " + strings.Join(missing, ", "))
	}
	if c.BackoffMax < c.BackoffBase {
		return errors.New("BACKOFF_MAX must be >= BACKOFF_BASE")
	}
	return nil
}
