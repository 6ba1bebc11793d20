package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is recorded in schema_version when a database is created.
const SchemaVersion = 1

// schema is applied in order inside one transaction. Every statement is
// idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`,

	`CREATE TABLE IF NOT EXISTS streams (
		id                  TEXT PRIMARY KEY NOT NULL,
		mode                TEXT NOT NULL,
		chunk_size          INTEGER NOT NULL,
		overlap_size        INTEGER NOT NULL,
		max_cumulative_size INTEGER NOT NULL,
		bytes_ingested      INTEGER NOT NULL,
		windows             INTEGER NOT NULL
	)`,

	// One row per distinct window content.
	`CREATE TABLE IF NOT EXISTS blobs (
		id   TEXT PRIMARY KEY NOT NULL,
		size INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS rules (
		id            TEXT PRIMARY KEY NOT NULL,
		name          TEXT NOT NULL,
		pattern       TEXT NOT NULL,
		structural_id TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS matches (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		stream_id          TEXT NOT NULL,
		blob_id            TEXT NOT NULL,
		rule_id            TEXT NOT NULL,
		rule_name          TEXT NOT NULL,
		rule_structural_id TEXT NOT NULL,
		structural_id      TEXT NOT NULL UNIQUE,
		finding_id         TEXT,
		offset_start       INTEGER NOT NULL,
		offset_end         INTEGER NOT NULL,
		window_index       INTEGER NOT NULL,
		window_start       INTEGER NOT NULL,
		window_end         INTEGER NOT NULL,
		partial            INTEGER NOT NULL,
		snippet_before     BLOB,
		snippet_matching   BLOB,
		snippet_after      BLOB,
		groups_json        TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_stream_id ON matches(stream_id)`,

	`CREATE TABLE IF NOT EXISTS findings (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		structural_id TEXT NOT NULL UNIQUE,
		rule_id       TEXT NOT NULL,
		groups_json   TEXT
	)`,
}

// CreateSchema brings db up to SchemaVersion. A database written by a newer
// version is rejected.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	var version sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	switch {
	case !version.Valid:
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("recording schema version: %w", err)
		}
	case version.Int64 > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported version %d", version.Int64, SchemaVersion)
	}
	return tx.Commit()
}
