// Package config loads dirsync settings from a YAML file, a .env file and
// DIRSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// DBDriver is "sqlite3" or "postgres".
	DBDriver string `yaml:"db_driver"`
	DBPath   string `yaml:"db_path"`
	DBDSN    string `yaml:"db_dsn"`

	RulesDir string `yaml:"rules_dir"`
	Actor    string `yaml:"actor"`

	AuditLog      bool `yaml:"enable_audit_log"`
	AppendRetries int  `yaml:"append_retries"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// RedisAddr enables the redis append lock when set.
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`

	// MetricsFile receives a Prometheus textfile after each command.
	MetricsFile string `yaml:"metrics_file"`
}

// EnableAuditLog implements activity.Settings.
func (c *Config) EnableAuditLog() bool { return c.AuditLog }

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		DBDriver:      "sqlite3",
		DBPath:        "dirsync.db",
		RulesDir:      "rules",
		AppendRetries: 5,
		LogLevel:      "info",
		LogFormat:     "text",
		RedisPrefix:   "dirsync",
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables (DIRSYNC_*)
// 2. ./.env (dotenv), which only fills variables not already set
// 3. the YAML file at path, or ~/.config/dirsync/config.yaml when path is ""
//
// An explicit path must exist; the default file is optional.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	explicit := path != ""
	if !explicit {
		path = defaultPath()
	}
	if path != "" {
		if err := loadYAML(cfg, path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "dirsync", "config.yaml")
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for env, dst := range map[string]*string{
		"DIRSYNC_DB_DRIVER":    &cfg.DBDriver,
		"DIRSYNC_DB_PATH":      &cfg.DBPath,
		"DIRSYNC_RULES_DIR":    &cfg.RulesDir,
		"DIRSYNC_ACTOR":        &cfg.Actor,
		"DIRSYNC_LOG_LEVEL":    &cfg.LogLevel,
		"DIRSYNC_LOG_FORMAT":   &cfg.LogFormat,
		"DIRSYNC_REDIS_ADDR":   &cfg.RedisAddr,
		"DIRSYNC_REDIS_PREFIX": &cfg.RedisPrefix,
		"DIRSYNC_METRICS_FILE": &cfg.MetricsFile,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}

	dsn, err := getEnvOrFile("DIRSYNC_DB_DSN", "DIRSYNC_DB_DSN_FILE")
	if err != nil {
		return err
	}
	if dsn != "" {
		cfg.DBDSN = dsn
	}

	if v, ok := os.LookupEnv("DIRSYNC_ENABLE_AUDIT_LOG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DIRSYNC_ENABLE_AUDIT_LOG: %w", err)
		}
		cfg.AuditLog = b
	}
	if v, ok := os.LookupEnv("DIRSYNC_APPEND_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DIRSYNC_APPEND_RETRIES: %w", err)
		}
		cfg.AppendRetries = n
	}
	return nil
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set.
func getEnvOrFile(envVar, fileVar string) (string, error) {
	if val := os.Getenv(envVar); val != "" {
		return val, nil
	}
	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("%s: %w", fileVar, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "sqlite3":
		if c.DBPath == "" {
			return errors.New("db_path is required for sqlite")
		}
	case "postgres", "postgresql", "pgx":
		if c.DBDSN == "" {
			return errors.New("db_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown db_driver %q", c.DBDriver)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.AppendRetries < 0 {
		return fmt.Errorf("append_retries must not be negative, got %d", c.AppendRetries)
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "postgresql", "pgx":
		return c.DBDSN
	}
	return c.DBPath
}
