package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for key := range defaults {
		t.Setenv(envName(key), "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 8080 || cfg.Addr() != ":8080" {
		t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.SQLiteDSN != "scheduler.db" {
		t.Fatalf("unexpected store defaults: %q %q", cfg.StoreDriver, cfg.SQLiteDSN)
	}
	if cfg.Location == nil || cfg.Location.String() != "Asia/Tokyo" {
		t.Fatalf("expected Asia/Tokyo location, got %v", cfg.Location)
	}
	if cfg.MaxOccurrences != 52 {
		t.Fatalf("expected 52 max occurrences, got %d", cfg.MaxOccurrences)
	}
	if cfg.LockBackend != LockLocal || cfg.LockTTL != 10*time.Second {
		t.Fatalf("unexpected lock defaults: %q %s", cfg.LockBackend, cfg.LockTTL)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.KafkaTopic != "room-reservations" {
		t.Fatalf("unexpected kafka defaults: %v %q", cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected log defaults: %q %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULER_HTTP_PORT", "9090")
	t.Setenv("SCHEDULER_STORE_DRIVER", "Postgres")
	t.Setenv("SCHEDULER_POSTGRES_URL", "postgres://localhost/scheduler")
	t.Setenv("SCHEDULER_LOCK_BACKEND", "redis")
	t.Setenv("SCHEDULER_REDIS_ADDR", "localhost:6379")
	t.Setenv("SCHEDULER_LOCK_TTL", "3s")
	t.Setenv("SCHEDULER_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("SCHEDULER_CORS_ALLOWED_ORIGINS", "https://portal.example.com")
	t.Setenv("SCHEDULER_TIMEZONE", "UTC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 9090 {
		t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.StoreDriver != DriverPostgres || cfg.PostgresURL != "postgres://localhost/scheduler" {
		t.Fatalf("unexpected store config: %q %q", cfg.StoreDriver, cfg.PostgresURL)
	}
	if cfg.LockBackend != LockRedis || cfg.RedisAddr != "localhost:6379" || cfg.LockTTL != 3*time.Second {
		t.Fatalf("unexpected lock config: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if len(cfg.CORSAllowedOrigins) != 1 {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
}

func TestLoad_FileWithEnvironmentOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	content := strings.Join([]string{
		"http_port: 9191",
		"store_driver: memory",
		"max_occurrences: 12",
		"kafka_brokers:",
		"  - kafka-1:9092",
		"  - kafka-2:9092",
		"catalog_file: catalog.yaml",
		"log_format: text",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("SCHEDULER_HTTP_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("expected environment to override file port, got %d", cfg.HTTPPort)
	}
	if cfg.StoreDriver != DriverMemory || cfg.MaxOccurrences != 12 || cfg.CatalogFile != "catalog.yaml" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("expected text log format, got %q", cfg.LogFormat)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULER_STORE_DRIVER", "postgres")
	t.Setenv("SCHEDULER_LOCK_BACKEND", "redis")
	t.Setenv("SCHEDULER_HTTP_PORT", "abc")
	t.Setenv("SCHEDULER_LOCK_TTL", "-1s")

	_, err := Load("")
	if err == nil {
		t.Fatalf("expected error")
	}
	expected := "必須の設定値がありません: SCHEDULER_POSTGRES_URL, SCHEDULER_REDIS_ADDR\n" +
		"設定値が不正です: SCHEDULER_HTTP_PORT, SCHEDULER_LOCK_TTL"
	if err.Error() != expected {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_InvalidChoices(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "store driver", key: "SCHEDULER_STORE_DRIVER", val: "mysql"},
		{name: "lock backend", key: "SCHEDULER_LOCK_BACKEND", val: "etcd"},
		{name: "timezone", key: "SCHEDULER_TIMEZONE", val: "Mars/Olympus"},
		{name: "max occurrences", key: "SCHEDULER_MAX_OCCURRENCES", val: "0"},
		{name: "log level", key: "SCHEDULER_LOG_LEVEL", val: "verbose"},
		{name: "log format", key: "SCHEDULER_LOG_FORMAT", val: "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load("")
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.val)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Fatalf("expected %s in error, got %q", tt.key, err.Error())
			}
		})
	}
}
