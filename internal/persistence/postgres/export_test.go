package postgres

import (
	"context"
	"fmt"

	"github.com/example/room-scheduler/internal/persistence"
)

var MapError = mapError

// Truncate empties every table so each test starts from a blank schema.
func Truncate(ctx context.Context, storage persistence.Storage) error {
	s, ok := storage.(*Storage)
	if !ok {
		return fmt.Errorf("unexpected storage type %T", storage)
	}
	_, err := s.pool.Exec(ctx, `TRUNCATE reservation_changes, reservations, meeting_types, rooms`)
	return err
}
