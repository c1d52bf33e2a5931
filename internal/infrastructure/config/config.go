package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // in minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	CORSAllowOrigins  []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods  []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders  []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies    []string      `mapstructure:"trusted_proxies"`
}

// WarehouseConfig holds allocation and posting settings
type WarehouseConfig struct {
	InboundDockCode     string        `mapstructure:"inbound_dock_code"`      // system location goods enter through
	OutboundDockCode    string        `mapstructure:"outbound_dock_code"`     // system location goods leave through
	PickPolicy          string        `mapstructure:"pick_policy"`            // FIFO, LIFO or LOCATION_PREFERENCE
	PlacementPolicy     string        `mapstructure:"placement_policy"`       // FIRST_FIT or NEAREST_TO_STOCK
	DefaultUnitTypeCode string        `mapstructure:"default_unit_type_code"` // handling unit type for putaway loads
	ReservationTTL      time.Duration `mapstructure:"reservation_ttl"`        // soft hold lifetime before the sweeper reclaims it
	MaxCapacityRetries  int           `mapstructure:"max_capacity_retries"`   // bounded retries on commit-time capacity conflicts
	PostingGuardTTL     time.Duration `mapstructure:"posting_guard_ttl"`      // per-row posting fence lifetime
	RebuildOnStartup    bool          `mapstructure:"rebuild_on_startup"`     // recompute occupancy from the ledger at boot
}

// SweeperConfig holds reservation expiry sweep configuration
type SweeperConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"` // how often to sweep for expired holds
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTEL collector endpoint, e.g. "localhost:4317"
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`     // 0.0-1.0, 1.0 = keep every trace
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`     // non-TLS collector connection, development only
	LogsEnabled       bool    `mapstructure:"logs_enabled"` // ship logs to the collector through the zap bridge

	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`        // trace database queries via otelgorm
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`         // record full SQL statements, keep off in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"` // queries above this are flagged slow

	ProfilingEnabled    bool   `mapstructure:"profiling_enabled"`     // continuous profiling via Pyroscope
	ProfilingServerAddr string `mapstructure:"profiling_server_addr"` // e.g. "http://pyroscope:4040"
}

// defaults is registered into viper before decoding. Registering a key,
// even with a zero value, is also what makes its WMS_* environment
// variable visible to Unmarshal.
var defaults = map[string]any{
	"app.name": "wms-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "wms",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       int64(10 << 20),
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	// cors_allow_origins deliberately has no fallback: an empty list
	// means no cross-origin requests until explicitly configured.
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
	"http.cors_allow_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
	"http.trusted_proxies":    []string{},

	"warehouse.inbound_dock_code":      "DOCK-IN",
	"warehouse.outbound_dock_code":     "DOCK-OUT",
	"warehouse.pick_policy":            "FIFO",
	"warehouse.placement_policy":       "FIRST_FIT",
	"warehouse.default_unit_type_code": "PALLET",
	"warehouse.reservation_ttl":        30 * time.Minute,
	"warehouse.max_capacity_retries":   3,
	"warehouse.posting_guard_ttl":      5 * time.Minute,
	"warehouse.rebuild_on_startup":     false,

	"sweeper.enabled":        false,
	"sweeper.check_interval": 5 * time.Minute,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "wms-backend",
	"telemetry.insecure":                false,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_server_addr":   "http://localhost:4040",
}

// Load reads configuration from config.toml and WMS_* environment
// variables. Environment variables win over the file, the file wins
// over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, path := range []string{".", "./backend", "/app"} {
		v.AddConfigPath(path)
	}
	registerDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no file means defaults plus environment
	}

	v.SetEnvPrefix("WMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

func registerDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Warehouse.PickPolicy {
	case "FIFO", "LIFO", "LOCATION_PREFERENCE":
	default:
		return fmt.Errorf("warehouse.pick_policy must be FIFO, LIFO or LOCATION_PREFERENCE, got %q", c.Warehouse.PickPolicy)
	}
	switch c.Warehouse.PlacementPolicy {
	case "FIRST_FIT", "NEAREST_TO_STOCK":
	default:
		return fmt.Errorf("warehouse.placement_policy must be FIRST_FIT or NEAREST_TO_STOCK, got %q", c.Warehouse.PlacementPolicy)
	}
	if c.Warehouse.InboundDockCode == c.Warehouse.OutboundDockCode {
		return fmt.Errorf("warehouse.inbound_dock_code and warehouse.outbound_dock_code must differ")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction rejects settings that are acceptable in development
// but would leak data or credentials in a real deployment.
func (c *Config) validateProduction() error {
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if c.Telemetry.DBLogFullSQL {
		return fmt.Errorf("telemetry.db_log_full_sql must be false in production to keep statement values out of traces")
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
