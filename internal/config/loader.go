// Package config loads scheduler settings from an optional YAML file and
// SCHEDULER_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Tokyo must resolve on hosts without zoneinfo

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when reading the environment.
const EnvPrefix = "SCHEDULER"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config captures configuration values for the scheduler service.
type Config struct {
	HTTPPort           int
	StoreDriver        string
	SQLiteDSN          string
	PostgresURL        string
	Timezone           string
	Location           *time.Location
	MaxOccurrences     int
	LockBackend        string
	RedisAddr          string
	LockTTL            time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	CORSAllowedOrigins []string
	CatalogFile        string
	LogLevel           string
	LogFormat          string
}

var defaults = map[string]any{
	"http_port":            8080,
	"store_driver":         DriverSQLite,
	"sqlite_dsn":           "scheduler.db",
	"postgres_url":         "",
	"timezone":             "Asia/Tokyo",
	"max_occurrences":      52,
	"lock_backend":         LockLocal,
	"redis_addr":           "",
	"lock_ttl":             "10s",
	"kafka_brokers":        "",
	"kafka_topic":          "room-reservations",
	"cors_allowed_origins": "",
	"catalog_file":         "",
	"log_level":            "info",
	"log_format":           "json",
}

// Load reads configuration from path (skipped when empty) and the environment.
// Environment values override the file. Every missing or invalid value is
// reported in a single error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("設定ファイルを読み込めません: %s: %w", path, err)
		}
	}

	var (
		cfg     Config
		missing []string
		invalid []string
	)

	cfg.HTTPPort = intValue(v, "http_port", 1, &invalid)
	cfg.StoreDriver = strings.ToLower(stringValue(v, "store_driver"))
	switch cfg.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		invalid = append(invalid, envName("store_driver"))
	}
	cfg.SQLiteDSN = stringValue(v, "sqlite_dsn")
	if cfg.StoreDriver == DriverSQLite && cfg.SQLiteDSN == "" {
		missing = append(missing, envName("sqlite_dsn"))
	}
	cfg.PostgresURL = stringValue(v, "postgres_url")
	if cfg.StoreDriver == DriverPostgres && cfg.PostgresURL == "" {
		missing = append(missing, envName("postgres_url"))
	}

	cfg.Timezone = stringValue(v, "timezone")
	if loc, err := time.LoadLocation(cfg.Timezone); err != nil || cfg.Timezone == "" {
		invalid = append(invalid, envName("timezone"))
	} else {
		cfg.Location = loc
	}
	cfg.MaxOccurrences = intValue(v, "max_occurrences", 1, &invalid)

	cfg.LockBackend = strings.ToLower(stringValue(v, "lock_backend"))
	switch cfg.LockBackend {
	case LockLocal, LockRedis:
	default:
		invalid = append(invalid, envName("lock_backend"))
	}
	cfg.RedisAddr = stringValue(v, "redis_addr")
	if cfg.LockBackend == LockRedis && cfg.RedisAddr == "" {
		missing = append(missing, envName("redis_addr"))
	}
	if ttl, err := time.ParseDuration(stringValue(v, "lock_ttl")); err != nil || ttl <= 0 {
		invalid = append(invalid, envName("lock_ttl"))
	} else {
		cfg.LockTTL = ttl
	}

	cfg.KafkaBrokers = listValue(v, "kafka_brokers")
	cfg.KafkaTopic = stringValue(v, "kafka_topic")
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		missing = append(missing, envName("kafka_topic"))
	}
	cfg.CORSAllowedOrigins = listValue(v, "cors_allowed_origins")
	cfg.CatalogFile = stringValue(v, "catalog_file")

	cfg.LogLevel = strings.ToLower(stringValue(v, "log_level"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, envName("log_level"))
	}
	cfg.LogFormat = strings.ToLower(stringValue(v, "log_format"))
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		invalid = append(invalid, envName("log_format"))
	}

	var problems []error
	if len(missing) > 0 {
		problems = append(problems, fmt.Errorf("必須の設定値がありません: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		problems = append(problems, fmt.Errorf("設定値が不正です: %s", strings.Join(invalid, ", ")))
	}
	if len(problems) > 0 {
		return Config{}, errors.Join(problems...)
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func stringValue(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func intValue(v *viper.Viper, key string, min int, invalid *[]string) int {
	raw := stringValue(v, key)
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		*invalid = append(*invalid, envName(key))
		return 0
	}
	return n
}

// listValue accepts a YAML sequence or a comma separated string.
func listValue(v *viper.Viper, key string) []string {
	var parts []string
	switch raw := v.Get(key).(type) {
	case []any:
		for _, item := range raw {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = raw
	case string:
		parts = strings.Split(raw, ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
