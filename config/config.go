package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported storage drivers
const (
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
)

// Error modes for the HTTP binding
const (
	ErrorModeCompat   = "compat"
	ErrorModeDetailed = "detailed"
)

// DatabaseConfig represents a single database connection configuration
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnectionString returns a PostgreSQL connection string.
// An explicit DSN wins over the individual fields.
func (dc *DatabaseConfig) ConnectionString() string {
	if dc.DSN != "" {
		return dc.DSN
	}
	sslmode := dc.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dc.Host, dc.Port, dc.User, dc.Password, dc.DBName, sslmode,
	)
}

// StorageConfig selects the driver and the connections behind the user store
type StorageConfig struct {
	Driver           string           `yaml:"driver"`
	Primary          DatabaseConfig   `yaml:"primary"`
	Replicas         []DatabaseConfig `yaml:"replicas"`
	ReadFromReplicas bool             `yaml:"read_from_replicas"`
	SQLitePath       string           `yaml:"sqlite_path"`
	Migrate          bool             `yaml:"migrate"`
	MaxOpenConns     int              `yaml:"max_open_conns"`
	MaxIdleConns     int              `yaml:"max_idle_conns"`
	ConnMaxLifetime  time.Duration    `yaml:"conn_max_lifetime"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ErrorMode         string        `yaml:"error_mode"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Env   string `yaml:"env"`   // dev | prod
	Level string `yaml:"level"` // debug | info | warn | error
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// DefaultConfig returns the default configuration: a single local Postgres primary, no replicas
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ErrorMode:         ErrorModeCompat,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverPgx,
			Primary: DatabaseConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "postgres",
				Password: "postgres",
				DBName:   "users",
				SSLMode:  "disable",
			},
			SQLitePath: "users.db",
			Migrate:    true,
		},
		Log: LogConfig{
			Env:   "dev",
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads the YAML file at path on top of DefaultConfig, then applies
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.applyEnvOverrides(); err != nil {
		return nil, err
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Server.ErrorMode = strings.ToLower(strings.TrimSpace(c.Server.ErrorMode))

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the values that cannot be defaulted safely
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPgx, DriverPostgres:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path is required for driver %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Server.ErrorMode {
	case ErrorModeCompat, ErrorModeDetailed:
	default:
		return fmt.Errorf("unknown server.error_mode %q", c.Server.ErrorMode)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadHeaderTimeout <= 0 || c.Server.IdleTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}
	if c.Storage.MaxOpenConns < 0 || c.Storage.MaxIdleConns < 0 || c.Storage.ConnMaxLifetime < 0 {
		return fmt.Errorf("storage pool settings must not be negative")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func getEnvInt(key string) (int, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, true, nil
}

func getEnvBool(key string) (bool, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, true, nil
}

func getEnvDur(key string) (time.Duration, bool, error) {
	s, ok := getEnvStr(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, true, nil
}

// applyEnvOverrides lets environment variables win over the YAML file
func (c *Config) applyEnvOverrides() error {
	// LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.Log.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_ERROR_MODE"); ok {
		c.Server.ErrorMode = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.Primary.DSN = v
	}
	if v, ok := getEnvStr("STORAGE_SQLITE_PATH"); ok {
		c.Storage.SQLitePath = v
	}
	if v, ok, err := getEnvBool("STORAGE_MIGRATE"); err != nil {
		return err
	} else if ok {
		c.Storage.Migrate = v
	}
	if v, ok, err := getEnvBool("STORAGE_READ_FROM_REPLICAS"); err != nil {
		return err
	} else if ok {
		c.Storage.ReadFromReplicas = v
	}
	if v, ok, err := getEnvInt("STORAGE_MAX_OPEN_CONNS"); err != nil {
		return err
	} else if ok {
		c.Storage.MaxOpenConns = v
	}
	if v, ok, err := getEnvInt("STORAGE_MAX_IDLE_CONNS"); err != nil {
		return err
	} else if ok {
		c.Storage.MaxIdleConns = v
	}
	if v, ok, err := getEnvDur("STORAGE_CONN_MAX_LIFETIME"); err != nil {
		return err
	} else if ok {
		c.Storage.ConnMaxLifetime = v
	}

	// PRIMARY DATABASE
	if v, ok := getEnvStr("DB_HOST"); ok {
		c.Storage.Primary.Host = v
	}
	if v, ok, err := getEnvInt("DB_PORT"); err != nil {
		return err
	} else if ok {
		c.Storage.Primary.Port = v
	}
	if v, ok := getEnvStr("DB_USER"); ok {
		c.Storage.Primary.User = v
	}
	if v, ok := getEnvStr("DB_PASSWORD"); ok {
		c.Storage.Primary.Password = v
	}
	if v, ok := getEnvStr("DB_NAME"); ok {
		c.Storage.Primary.DBName = v
	}
	if v, ok := getEnvStr("DB_SSLMODE"); ok {
		c.Storage.Primary.SSLMode = v
	}

	// METRICS
	if v, ok, err := getEnvBool("METRICS_ENABLED"); err != nil {
		return err
	} else if ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvStr("METRICS_PATH"); ok {
		c.Metrics.Path = v
	}

	return nil
}
