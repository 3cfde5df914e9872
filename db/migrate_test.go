package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpenWithMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "flows", "flow_nodes", "flow_edges", "flow_feed_entries"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist after migrations", table)
	}

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 3, versions)
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, Migrate(db, nil))
	db.Close()

	// Reopening applies nothing new
	db, err = OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	var versions int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 3, versions)
}

func TestMigrate_FeedCheckConstraint(t *testing.T) {
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO flows (id, name, created_at, updated_at) VALUES ('f', 'F', 'now', 'now')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO flow_feed_entries (flow_id, feed, author, made_at, value) VALUES ('f', 'votes', 'a', 'now', 'x')`)
	assert.Error(t, err, "unknown feed names are rejected")
}

func TestApplyMigrations_ReportsAndSkips(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer db.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core).Sugar()

	applied, err := ApplyMigrations(context.Background(), db, logger)
	require.NoError(t, err)
	assert.Equal(t, 3, applied)
	assert.Equal(t, 3, logs.FilterMessage("Applying migration").Len())

	applied, err = ApplyMigrations(context.Background(), db, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, 3, logs.FilterMessage("Skipping migration (already applied)").Len())
}

func TestEmbeddedMigrations_Ordered(t *testing.T) {
	list, err := embeddedMigrations()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "000", list[0].version)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].version, list[i].version)
	}
}
