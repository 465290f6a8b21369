package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/room-scheduler/internal/persistence"
	"github.com/example/room-scheduler/internal/persistence/postgres"
	"github.com/example/room-scheduler/internal/persistence/storetest"
)

// openTestStorage connects to SCHEDULER_TEST_POSTGRES_URL and empties every table.
func openTestStorage(t *testing.T) persistence.Storage {
	t.Helper()

	url := os.Getenv("SCHEDULER_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("SCHEDULER_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	storage, err := postgres.Open(ctx, url, nil)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })

	if err := storage.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := postgres.Truncate(ctx, storage); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
	return storage
}

func TestStorage(t *testing.T) {
	storetest.Run(t, openTestStorage)
}

func TestOpen_InvalidURL(t *testing.T) {
	t.Parallel()

	if _, err := postgres.Open(context.Background(), "://not-a-url", nil); err == nil {
		t.Fatalf("expected invalid URL to fail")
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want error
	}{
		{code: "23505", want: persistence.ErrDuplicate},
		{code: "23503", want: persistence.ErrForeignKeyViolation},
		{code: "23514", want: persistence.ErrConstraintViolation},
	}
	for _, tt := range tests {
		err := postgres.MapError(&pgconn.PgError{Code: tt.code})
		if !errors.Is(err, tt.want) {
			t.Fatalf("code %s: expected %v, got %v", tt.code, tt.want, err)
		}
	}
}
