package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DefaultConfig(":memory:"))
	require.NoError(t, err)
	defer db.Close()

	tables := []string{"workspaces", "sessions", "events", "device_tokens", "events_fts"}
	for _, table := range tables {
		var name string
		err := db.Conn().QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type IN ('table','virtual table') AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "expected table %s to exist", table)
		require.Equal(t, table, name)
	}
}

func TestOpenWithoutFTS(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig(":memory:")
	cfg.EnableFTS = false
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.Conn().QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE name = 'events_fts'`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := &PersistenceError{Op: "append", Cause: cause}
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
