package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/migrations"
)

// Storage is the SQLite backed persistence.Storage.
type Storage struct {
	*CatalogRepository
	*ReservationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var _ persistence.Storage = (*Storage)(nil)

// Open connects to the database at path using DefaultConfig.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(ctx, DefaultConfig(path), logger)
}

// OpenWithConfig connects using an explicit configuration. Call Migrate
// before first use of a fresh database.
func OpenWithConfig(ctx context.Context, config Config, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		CatalogRepository:     NewCatalogRepository(pool),
		ReservationRepository: NewReservationRepository(pool),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := migrations.Up(ctx, s.pool.DB(), migrations.DialectSQLite, s.logger); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// DB exposes the underlying handle for tooling such as schema inspection.
func (s *Storage) DB() *sql.DB {
	return s.pool.DB()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: invalid timestamp %q: %w", value, err)
	}
	return t, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
