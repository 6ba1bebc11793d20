package store

import (
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/praetorian-inc/streamscan/pkg/types"
	_ "modernc.org/sqlite"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store on a SQLite file, or on a private in-memory
// database when opened with ":memory:".
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: ":memory:" is per connection, and writers are serialized.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

const (
	upsertStream = `INSERT INTO streams (id, mode, chunk_size, overlap_size, max_cumulative_size, bytes_ingested, windows)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode, chunk_size = excluded.chunk_size, overlap_size = excluded.overlap_size,
			max_cumulative_size = excluded.max_cumulative_size, bytes_ingested = excluded.bytes_ingested,
			windows = excluded.windows`

	insertBlob    = `INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)`
	insertRule    = `INSERT OR IGNORE INTO rules (id, name, pattern, structural_id) VALUES (?, ?, ?, ?)`
	insertFinding = `INSERT OR IGNORE INTO findings (structural_id, rule_id, groups_json) VALUES (?, ?, ?)`

	matchColumns = `stream_id, blob_id, rule_id, rule_name, rule_structural_id, structural_id, finding_id,
		offset_start, offset_end, window_index, window_start, window_end, partial,
		snippet_before, snippet_matching, snippet_after, groups_json`

	insertMatch  = `INSERT OR IGNORE INTO matches (` + matchColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectMatch  = `SELECT ` + matchColumns + ` FROM matches`
	selectStream = `SELECT id, mode, chunk_size, overlap_size, max_cumulative_size, bytes_ingested, windows FROM streams ORDER BY id`
)

// groupsColumn stores capture groups as a JSON array of base64 strings.
type groupsColumn struct{ groups *[][]byte }

func (g groupsColumn) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan type %T into groups", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, g.groups)
}

func encodeGroups(groups [][]byte) (string, error) {
	b, err := json.Marshal(groups)
	if err != nil {
		return "", fmt.Errorf("marshaling groups: %w", err)
	}
	return string(b), nil
}

func (s *SQLiteStore) exec(what, query string, args ...any) error {
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// AddStream records a stream, replacing an earlier record with the same ID.
func (s *SQLiteStore) AddStream(st Stream) error {
	return s.exec("upserting stream", upsertStream,
		st.ID, st.Mode, st.ChunkSize, st.OverlapSize, st.MaxCumulativeSize, st.BytesIngested, st.Windows)
}

func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	return s.exec("inserting blob", insertBlob, id, size)
}

func (s *SQLiteStore) AddRule(r *types.Rule) error {
	return s.exec("inserting rule", insertRule, r.ID, r.Name, r.Pattern, r.StructuralID)
}

// AddMatch stores m unless a match with the same structural ID exists.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	groups, err := encodeGroups(m.Groups)
	if err != nil {
		return err
	}
	loc := m.Location
	return s.exec("inserting match", insertMatch,
		m.StreamID, m.BlobID, m.RuleID, m.RuleName, m.RuleStructuralID, m.StructuralID, m.FindingID,
		loc.Offset.Start, loc.Offset.End, loc.Window.Index, loc.Window.Span.Start, loc.Window.Span.End, loc.Window.Partial,
		m.Snippet.Before, m.Snippet.Matching, m.Snippet.After, groups)
}

func (s *SQLiteStore) AddFinding(f *types.Finding) error {
	groups, err := encodeGroups(f.Groups)
	if err != nil {
		return err
	}
	return s.exec("inserting finding", insertFinding, f.ID, f.RuleID, groups)
}

// queryAll runs query and collects one value per row.
func queryAll[T any](db *sql.DB, what, query string, scan func(*sql.Rows) (T, error), args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", what, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", what, err)
	}
	return out, nil
}

func scanStream(rows *sql.Rows) (Stream, error) {
	var st Stream
	err := rows.Scan(&st.ID, &st.Mode, &st.ChunkSize, &st.OverlapSize, &st.MaxCumulativeSize, &st.BytesIngested, &st.Windows)
	return st, err
}

func scanMatch(rows *sql.Rows) (*types.Match, error) {
	var (
		m         types.Match
		findingID sql.NullString
		loc       = &m.Location
	)
	err := rows.Scan(
		&m.StreamID, &m.BlobID, &m.RuleID, &m.RuleName, &m.RuleStructuralID, &m.StructuralID, &findingID,
		&loc.Offset.Start, &loc.Offset.End, &loc.Window.Index, &loc.Window.Span.Start, &loc.Window.Span.End, &loc.Window.Partial,
		&m.Snippet.Before, &m.Snippet.Matching, &m.Snippet.After, groupsColumn{&m.Groups},
	)
	m.FindingID = findingID.String
	return &m, err
}

func scanFinding(rows *sql.Rows) (*types.Finding, error) {
	var f types.Finding
	err := rows.Scan(&f.ID, &f.RuleID, groupsColumn{&f.Groups})
	return &f, err
}

// GetStreams returns every recorded stream ordered by ID.
func (s *SQLiteStore) GetStreams() ([]Stream, error) {
	streams, err := queryAll(s.db, "streams", selectStream, scanStream)
	if len(streams) == 0 {
		return nil, err
	}
	return streams, err
}

// GetMatches returns a stream's matches ordered by offset.
func (s *SQLiteStore) GetMatches(streamID string) ([]*types.Match, error) {
	return queryAll(s.db, "matches", selectMatch+` WHERE stream_id = ? ORDER BY offset_start, offset_end, rule_id`, scanMatch, streamID)
}

// GetAllMatches returns every match in insertion order.
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return queryAll(s.db, "matches", selectMatch+` ORDER BY id`, scanMatch)
}

// GetFindings returns every finding in insertion order.
func (s *SQLiteStore) GetFindings() ([]*types.Finding, error) {
	findings, err := queryAll(s.db, "findings", `SELECT structural_id, rule_id, groups_json FROM findings ORDER BY id`, scanFinding)
	if len(findings) == 0 {
		return nil, err
	}
	return findings, err
}

func (s *SQLiteStore) exists(what, query string, arg any) (bool, error) {
	var found bool
	if err := s.db.QueryRow(`SELECT EXISTS(`+query+`)`, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("checking %s existence: %w", what, err)
	}
	return found, nil
}

func (s *SQLiteStore) FindingExists(id string) (bool, error) {
	return s.exists("finding", `SELECT 1 FROM findings WHERE structural_id = ?`, id)
}

// BlobExists reports whether a window with this content was already stored.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	return s.exists("blob", `SELECT 1 FROM blobs WHERE id = ?`, id)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
