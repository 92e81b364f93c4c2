package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Sales recording modes.
const (
	RecordInline = "inline"
	RecordQueue  = "queue"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	StorageDriver  string
	ReceiptSlot    string
	SalesRecording string
	RunMigrations  bool

	TaxRate        decimal.Decimal
	CurrencySymbol string
	StoreName      string
	StoreTagline   string
	ReportTimezone *time.Location

	SessionIdleTTL  time.Duration
	CatalogCacheTTL time.Duration
	ReportCacheTTL  time.Duration
	IdempotencyTTL  time.Duration

	RateLimit      string
	BodyLimitBytes int64

	WorkerConcurrency int
	SalesQueue        string

	Obs Observability
}

// Observability groups the OBS_*, SECURE_* and HEALTH_* knobs.
type Observability struct {
	Version   string
	LogFormat string
	LogLevel  string

	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	SamplingRatio   float64

	PprofEnabled bool
	PprofUser    string
	PprofPass    string

	SecureHeaders bool
	HSTS          bool

	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	k, err := fromEnv()
	if err != nil {
		return nil, err
	}
	return parse(k)
}

// MustLoad is Load for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests reads the environment with overrides applied on top. An empty
// override value unsets the key. The process environment is not modified.
func LoadForTests(overrides map[string]string) (*Config, error) {
	k, err := fromEnv()
	if err != nil {
		return nil, err
	}
	for key, value := range overrides {
		if value == "" {
			k.Delete(key)
			continue
		}
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}
	return parse(k)
}

func fromEnv() (*koanf.Koanf, error) {
	// "." never appears in env names, so keys stay flat (DATABASE_URL, not nested).
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k, nil
}

func parse(k *koanf.Koanf) (*Config, error) {
	r := reader{k: k}
	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		RedisURL:           r.str("REDIS_URL", ""),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS"),
		StorageDriver:      strings.ToLower(r.str("STORAGE_DRIVER", DriverMemory)),
		ReceiptSlot:        strings.ToLower(r.str("RECEIPT_SLOT", DriverMemory)),
		SalesRecording:     strings.ToLower(r.str("SALES_RECORDING", RecordInline)),
		RunMigrations:      r.boolean("RUN_MIGRATIONS", false),
		TaxRate:            r.decimal("POS_TAX_RATE", "18"),
		CurrencySymbol:     r.str("CURRENCY_SYMBOL", "₹"),
		StoreName:          r.str("STORE_NAME", "AMEnterprise"),
		StoreTagline:       r.str("STORE_TAGLINE", "Import & retail of electric products"),
		ReportTimezone:     r.location("REPORT_TIMEZONE", "Local"),
		SessionIdleTTL:     r.duration("SESSION_IDLE_TTL", 12*time.Hour),
		CatalogCacheTTL:    r.duration("CATALOG_CACHE_TTL", 5*time.Minute),
		ReportCacheTTL:     r.duration("REPORT_CACHE_TTL", 10*time.Minute),
		IdempotencyTTL:     r.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		RateLimit:          r.str("RATE_LIMIT", "120-M"),
		BodyLimitBytes:     int64(r.positive("BODY_LIMIT_BYTES", 1<<20)),
		WorkerConcurrency:  r.positive("WORKER_CONCURRENCY", 5),
		SalesQueue:         r.str("SALES_QUEUE", "default"),
		Obs: Observability{
			Version:           r.str("APP_VERSION", "dev"),
			LogFormat:         r.str("OBS_LOG_FORMAT", "json"),
			LogLevel:          r.str("OBS_LOG_LEVEL", "info"),
			MetricsEnabled:    r.boolean("OBS_ENABLE_PROMETHEUS", true),
			MetricsNamespace:  r.str("OBS_METRICS_NAMESPACE", "toko"),
			MetricsBuckets:    r.str("OBS_METRICS_BUCKETS_MS", ""),
			TracingEnabled:    r.boolean("OBS_ENABLE_TRACING", false),
			TracingExporter:   r.str("OBS_TRACING_EXPORTER", "otlp"),
			OTLPEndpoint:      r.str("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio:     r.ratio("OBS_TRACING_SAMPLING_RATIO", 1),
			PprofEnabled:      r.boolean("OBS_ENABLE_PPROF", false),
			PprofUser:         r.str("SECURE_PPROF_BASIC_AUTH_USER", ""),
			PprofPass:         r.str("SECURE_PPROF_BASIC_AUTH_PASS", ""),
			SecureHeaders:     r.boolean("SECURE_HEADERS", true),
			HSTS:              r.boolean("SECURE_HSTS", false),
			ReadyDBTimeout:    r.millis("HEALTH_READY_DB_TIMEOUT_MS", 500),
			ReadyRedisTimeout: r.millis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
		},
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if cfg.TaxRate.IsNegative() {
		return nil, errors.New("POS_TAX_RATE must not be negative")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.ReceiptSlot {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unsupported RECEIPT_SLOT %q", c.ReceiptSlot)
	}
	switch c.SalesRecording {
	case RecordInline, RecordQueue:
	default:
		return fmt.Errorf("unsupported SALES_RECORDING %q", c.SalesRecording)
	}
	if c.SalesRecording == RecordQueue && c.StorageDriver != DriverPostgres {
		return errors.New("SALES_RECORDING=queue needs STORAGE_DRIVER=postgres so the worker and the API share the ledger")
	}
	if c.NeedsPostgres() && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for postgres storage")
	}
	if c.NeedsRedis() && c.RedisURL == "" {
		return errors.New("REDIS_URL is required for the redis receipt slot and queued sales recording")
	}
	return nil
}

// NeedsPostgres reports whether any configured component stores in Postgres.
func (c *Config) NeedsPostgres() bool {
	return c.StorageDriver == DriverPostgres || c.ReceiptSlot == DriverPostgres
}

// NeedsRedis reports whether a component cannot run without Redis. Caching
// and idempotency use Redis opportunistically when REDIS_URL is set.
func (c *Config) NeedsRedis() bool {
	return c.ReceiptSlot == DriverRedis || c.SalesRecording == RecordQueue
}

// HTTPAddr is the listen address; PORT may be given as "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.Contains(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// reader pulls typed values out of koanf and collects every parse error so a
// misconfigured deploy reports all bad keys at once.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) raw(key string) string {
	return strings.TrimSpace(r.k.String(key))
}

func (r *reader) str(key, fallback string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return fallback
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.raw(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) boolean(key string, fallback bool) bool {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a positive duration, got %q", key, v))
		return fallback
	}
	return d
}

func (r *reader) positive(key string, fallback int) int {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
		return fallback
	}
	return n
}

func (r *reader) millis(key string, fallback int) time.Duration {
	return time.Duration(r.positive(key, fallback)) * time.Millisecond
}

func (r *reader) ratio(key string, fallback float64) float64 {
	v := r.raw(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		r.errs = append(r.errs, fmt.Errorf("%s: want a ratio between 0 and 1, got %q", key, v))
		return fallback
	}
	return f
}

func (r *reader) decimal(key, fallback string) decimal.Decimal {
	d, err := decimal.NewFromString(r.str(key, fallback))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
	return d
}

func (r *reader) location(key, fallback string) *time.Location {
	loc, err := time.LoadLocation(r.str(key, fallback))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return time.Local
	}
	return loc
}
