// Package config loads the service configuration from environment variables.
//
// A `.env` file in the working directory is loaded first, if present. Values are mapped onto
// Config through koanf and validated with go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Supported values for Database.Driver.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DefaultMaxConnections is the pool size used when DB_MAX_CONNECTIONS is not set.
const DefaultMaxConnections = 10

// envKeys maps the recognized environment variables to koanf keys. Everything else in the
// environment is ignored.
var envKeys = map[string]string{
	"PORT":                  "port",
	"API_PREFIX":            "api_prefix",
	"GIN_LOGGING":           "gin_logging",
	"LOG_LEVEL":             "log_level",
	"LOG_FORMAT":            "log_format",
	"CORS_ALLOWED_ORIGINS":  "cors_allowed_origins",
	"METRICS_ENABLED":       "metrics_enabled",
	"SHUTDOWN_TIMEOUT":      "shutdown_timeout",
	"WRITE_FAILURE_STATUS":  "write_failure_status",
	"SANITIZE_WRITE_ERRORS": "sanitize_write_errors",
	"DB_DRIVER":             "db.driver",
	"DB_HOST":               "db.host",
	"DB_USER":               "db.user",
	"DB_PASSWORD":           "db.password",
	"DB_NAME":               "db.name",
	"DB_PORT":               "db.port",
	"DB_MAX_CONNECTIONS":    "db.max_connections",
}

// Config is the root configuration of the service.
type Config struct {
	Port               int           `koanf:"port" validate:"min=0,max=65535"`
	APIPrefix          string        `koanf:"api_prefix"`
	GinLogging         string        `koanf:"gin_logging"`
	LogLevel           string        `koanf:"log_level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFormat          string        `koanf:"log_format" validate:"oneof=console json"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins" validate:"min=1"`
	MetricsEnabled     bool          `koanf:"metrics_enabled"`
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// WriteFailureStatus is the status code of a failed insert, update or delete. It
	// defaults to 203 for compatibility with existing clients.
	WriteFailureStatus int `koanf:"write_failure_status" validate:"min=200,max=599"`

	// SanitizeWriteErrors replaces the driver error echoed on write failures by its code.
	SanitizeWriteErrors bool `koanf:"sanitize_write_errors"`

	Database Database `koanf:"db"`
}

// Database holds the connection pool settings.
type Database struct {
	Driver         string `koanf:"driver" validate:"oneof=mysql postgres sqlite"`
	Host           string `koanf:"host" validate:"required_unless=Driver sqlite"`
	User           string `koanf:"user"`
	Password       string `koanf:"password"`
	Name           string `koanf:"name" validate:"required"`
	Port           int    `koanf:"port" validate:"min=0,max=65535"`
	MaxConnections int    `koanf:"max_connections" validate:"min=1"`
}

// Default returns a configuration with every optional value set. Required values stay empty.
func Default() *Config {
	return &Config{
		APIPrefix:          "/api",
		GinLogging:         "on",
		LogLevel:           "info",
		LogFormat:          "console",
		CORSAllowedOrigins: []string{"*"},
		MetricsEnabled:     true,
		ShutdownTimeout:    10 * time.Second,
		WriteFailureStatus: 203,
		Database: Database{
			Driver:         DriverMySQL,
			MaxConnections: DefaultMaxConnections,
		},
	}
}

// Load reads the environment into a Config on top of the defaults and validates it. A variable
// set to the empty string counts as unset.
func Load() (*Config, error) {
	k := koanf.New(".")
	err := k.Load(env.ProviderWithValue("", ".", func(key string, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		if key == "CORS_ALLOWED_ORIGINS" {
			return envKeys[key], splitList(value)
		}
		return envKeys[key], value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultPort(cfg.Database.Driver)
	}
	return cfg, nil
}

// ErrPortRequired is returned by ValidateServer when PORT is not set.
var ErrPortRequired = errors.New("PORT is required to serve HTTP")

// ValidateServer checks the values only the HTTP service needs. Tools that just talk to the
// database load the same Config without them.
func (c *Config) ValidateServer() error {
	if c.Port == 0 {
		return ErrPortRequired
	}
	return nil
}

// splitList splits a comma separated value and drops empty entries.
func splitList(value string) []string {
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}

func defaultPort(driver string) int {
	switch driver {
	case DriverPostgres:
		return 5432
	case DriverMySQL:
		return 3306
	}
	return 0
}
