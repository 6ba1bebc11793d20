package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	StreamsMerged    int
	BlobsMerged      int
	RulesMerged      int
	MatchesMerged    int
	FindingsMerged   int
	SourcesProcessed int
}

// mergeTable describes how rows of one table are copied.
type mergeTable struct {
	name    string
	columns []string
	count   func(*MergeStats) *int
}

var mergeTables = []mergeTable{
	{
		name:    "streams",
		columns: []string{"id", "mode", "chunk_size", "overlap_size", "max_cumulative_size", "bytes_ingested", "windows"},
		count:   func(s *MergeStats) *int { return &s.StreamsMerged },
	},
	{
		name:    "blobs",
		columns: []string{"id", "size"},
		count:   func(s *MergeStats) *int { return &s.BlobsMerged },
	},
	{
		name:    "rules",
		columns: []string{"id", "name", "pattern", "structural_id"},
		count:   func(s *MergeStats) *int { return &s.RulesMerged },
	},
	{
		name: "matches",
		columns: []string{
			"stream_id", "blob_id", "rule_id", "rule_name", "rule_structural_id", "structural_id", "finding_id",
			"offset_start", "offset_end", "window_index", "window_start", "window_end", "partial",
			"snippet_before", "snippet_matching", "snippet_after", "groups_json",
		},
		count: func(s *MergeStats) *int { return &s.MatchesMerged },
	},
	{
		name:    "findings",
		columns: []string{"structural_id", "rule_id", "groups_json"},
		count:   func(s *MergeStats) *int { return &s.FindingsMerged },
	},
}

// Merge combines multiple result databases into one.
// Deduplication is handled via INSERT OR IGNORE on unique keys.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := openDB(cfg.DestPath)
	if err != nil {
		return nil, err
	}
	defer destDB.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		if err := mergeFrom(destDB, sourcePath, stats); err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SourcesProcessed++
	}
	return stats, nil
}

// mergeFrom copies data from a source database to the destination.
func mergeFrom(destDB *sql.DB, sourcePath string, stats *MergeStats) error {
	sourceDB, err := sql.Open(driverName, sourcePath)
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	defer sourceDB.Close()

	tx, err := destDB.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	local := MergeStats{}
	for _, t := range mergeTables {
		n, err := copyTable(tx, sourceDB, t)
		if err != nil {
			return fmt.Errorf("merging %s: %w", t.name, err)
		}
		*t.count(&local) = n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	stats.StreamsMerged += local.StreamsMerged
	stats.BlobsMerged += local.BlobsMerged
	stats.RulesMerged += local.RulesMerged
	stats.MatchesMerged += local.MatchesMerged
	stats.FindingsMerged += local.FindingsMerged
	return nil
}

func copyTable(tx *sql.Tx, sourceDB *sql.DB, t mergeTable) (int, error) {
	cols := strings.Join(t.columns, ", ")
	rows, err := sourceDB.Query(fmt.Sprintf("SELECT %s FROM %s", cols, t.name))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", t.name, cols, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, len(t.columns))
	ptrs := make([]any, len(t.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}
