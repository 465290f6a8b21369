package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/room-scheduler/internal/persistence"
)

func TestConfig_DSN(t *testing.T) {
	t.Parallel()

	dsn := DefaultConfig("/tmp/scheduler.db").DSN()
	for _, want := range []string{"/tmp/scheduler.db?", "_txlock=immediate", "busy_timeout%285000%29", "foreign_keys%281%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected %q in DSN %q", want, dsn)
		}
	}
}

func TestErrorMapper_MapError(t *testing.T) {
	t.Parallel()

	mapper := NewErrorMapper()
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique", err: errors.New("constraint failed: UNIQUE constraint failed: reservations.id (1555)"), want: persistence.ErrDuplicate},
		{name: "foreign key", err: errors.New("FOREIGN KEY constraint failed"), want: persistence.ErrForeignKeyViolation},
		{name: "check", err: errors.New("CHECK constraint failed: start_minute < end_minute"), want: persistence.ErrConstraintViolation},
		{name: "locked", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: errLocked},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := mapper.MapError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil to map to nil")
	}
	other := errors.New("disk I/O error")
	if got := mapper.MapError(other); got != other {
		t.Fatalf("expected unknown errors to pass through, got %v", got)
	}
}

func TestRetryHelper_WithRetry(t *testing.T) {
	t.Parallel()

	helper := NewRetryHelper(RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2})

	t.Run("retries locked errors until success", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil || attempts != 3 {
			t.Fatalf("expected success on third attempt, got %v after %d", err, attempts)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return fmt.Errorf("CHECK constraint failed")
		})
		if !errors.Is(err, persistence.ErrConstraintViolation) || attempts != 1 {
			t.Fatalf("expected single failed attempt, got %v after %d", err, attempts)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("database is locked")
		})
		if !errors.Is(err, errLocked) || attempts != 4 {
			t.Fatalf("expected 4 attempts ending locked, got %v after %d", err, attempts)
		}
	})
}

func TestConnectionPool_WithTransactionRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	pool, err := NewConnectionPool(ctx, DefaultConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewConnectionPool failed: %v", err)
	}
	defer pool.Close()

	if _, err := pool.DB().ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('a')`); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int
	if err := pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback after panic, found %d rows", count)
	}
}
