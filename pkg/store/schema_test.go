package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(driverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateSchema(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, CreateSchema(db))

	var version int
	require.NoError(t, db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version))
	assert.Equal(t, SchemaVersion, version)

	for _, table := range []string{"streams", "blobs", "rules", "matches", "findings"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	db := openMemoryDB(t)

	require.NoError(t, CreateSchema(db))
	require.NoError(t, CreateSchema(db))

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestCreateSchema_MatchesIndex(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, CreateSchema(db))

	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='matches' AND name LIKE 'idx_%'").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_matches_stream_id", name)
}

func TestCreateSchema_RejectsNewerVersion(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, CreateSchema(db))
	_, err := db.Exec("UPDATE schema_version SET version = ?", SchemaVersion+1)
	require.NoError(t, err)

	err = CreateSchema(db)
	assert.ErrorContains(t, err, "newer than supported")
}
