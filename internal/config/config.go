// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// Admin credentials. Both are required for the admin API; there is no default.
	AdminPassword  string `mapstructure:"adminpassword"`
	AdminJWTSecret string `mapstructure:"adminjwtsecret"`

	// Comma separated list of allowed origins for the public API, "*" for any.
	CORSOrigin string `mapstructure:"corsorigin"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Raw pageviews and events older than this are purged. 0 keeps everything.
	RetentionDays int `mapstructure:"retentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "storekriti")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("corsorigin", "*")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "")
		v.SetDefault("publicdir", "public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("retentiondays", 0)

		v.BindEnv("appname", "STOREKRITI_APP_NAME")
		v.BindEnv("appport", "STOREKRITI_APP_PORT", "PORT")
		v.BindEnv("environment", "STOREKRITI_ENV")
		v.BindEnv("loglevel", "STOREKRITI_LOG_LEVEL")
		v.BindEnv("privatekey", "STOREKRITI_PRIVATE_KEY")
		v.BindEnv("adminpassword", "ADMIN_PASSWORD")
		v.BindEnv("adminjwtsecret", "ADMIN_JWT_SECRET")
		v.BindEnv("corsorigin", "CORS_ORIGIN")
		v.BindEnv("storagepath", "STOREKRITI_STORAGE_PATH")
		v.BindEnv("geodbpath", "STOREKRITI_GEO_DB_PATH")
		v.BindEnv("publicdir", "STOREKRITI_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "STOREKRITI_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "STOREKRITI_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "STOREKRITI_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "STOREKRITI_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "STOREKRITI_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "STOREKRITI_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "STOREKRITI_DB_MAX_IDLE_CONNS")
		v.BindEnv("jobintervalseconds", "STOREKRITI_JOB_INTERVAL_SECONDS")
		v.BindEnv("retentiondays", "STOREKRITI_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique STOREKRITI_PRIVATE_KEY (cannot use default)")
		}
		if cfg.IsProduction() && !cfg.AdminConfigured() {
			log.Println("config: ADMIN_PASSWORD or ADMIN_JWT_SECRET not set, admin API will refuse requests")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("invalid retention days: %d", c.RetentionDays)
	}
	if c.JobIntervalSeconds <= 0 {
		return fmt.Errorf("invalid job interval: %d", c.JobIntervalSeconds)
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// AdminConfigured reports whether both admin secrets are present.
func (c *Config) AdminConfigured() bool {
	return c.AdminPassword != "" && c.AdminJWTSecret != ""
}

// AllowedOrigins returns the CORS origin list in the form fiber's cors middleware expects.
func (c *Config) AllowedOrigins() string {
	origin := strings.TrimSpace(c.CORSOrigin)
	if origin == "" {
		return "*"
	}
	return origin
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the cookie encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test uses a single connection; development and production allow concurrent reads
// for the analytics report.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
