package store

import (
	"database/sql"
	"fmt"

	"github.com/praetorian-inc/wmscan/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// openSQLite opens path and ensures the schema exists. A single connection
// serializes writers and keeps ":memory:" databases coherent.
func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// AddBlob stores a blob record.
func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)", id.Hex(), size)
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddPatternSet stores a pattern set and its patterns.
func (s *SQLiteStore) AddPatternSet(set *types.PatternSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO pattern_sets (id, name, description, algorithm, block_size)
		VALUES (?, ?, ?, ?, ?)
	`, set.ID, set.Name, set.Description, set.Algorithm, set.BlockSize)
	if err != nil {
		return fmt.Errorf("inserting pattern set: %w", err)
	}

	for _, p := range set.Patterns {
		_, err = tx.Exec(`
			INSERT OR REPLACE INTO patterns (set_id, id, name, literal, structural_id)
			VALUES (?, ?, ?, ?, ?)
		`, set.ID, p.ID, p.Name, p.Literal, p.StructuralID)
		if err != nil {
			return fmt.Errorf("inserting pattern %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing pattern set: %w", err)
	}
	return nil
}

// GetPatternSets retrieves every stored pattern set ordered by ID, with
// patterns in insertion order.
func (s *SQLiteStore) GetPatternSets() ([]*types.PatternSet, error) {
	rows, err := s.db.Query(`SELECT id, name, description, algorithm, block_size FROM pattern_sets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying pattern sets: %w", err)
	}

	sets := []*types.PatternSet{}
	byID := make(map[string]*types.PatternSet)
	for rows.Next() {
		var set types.PatternSet
		var desc sql.NullString
		if err := rows.Scan(&set.ID, &set.Name, &desc, &set.Algorithm, &set.BlockSize); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning pattern set: %w", err)
		}
		set.Description = desc.String
		sets = append(sets, &set)
		byID[set.ID] = &set
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating pattern sets: %w", err)
	}

	rows, err = s.db.Query(`SELECT set_id, id, name, literal, structural_id FROM patterns ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var setID string
		var p types.Pattern
		if err := rows.Scan(&setID, &p.ID, &p.Name, &p.Literal, &p.StructuralID); err != nil {
			return nil, fmt.Errorf("scanning pattern: %w", err)
		}
		if set, ok := byID[setID]; ok {
			set.Patterns = append(set.Patterns, &p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patterns: %w", err)
	}
	return sets, nil
}

// AddMatch stores a match record.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO matches (
			blob_id, set_id, pattern_id, pattern_name, structural_id, finding_id,
			offset_start, offset_end, snippet_before, snippet_matching, snippet_after,
			start_line, start_column, end_line, end_column)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.Hex(),
		m.SetID,
		m.PatternID,
		m.PatternName,
		m.StructuralID,
		m.FindingID,
		m.Location.Offset.Start,
		m.Location.Offset.End,
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
		m.Location.Source.Start.Line,
		m.Location.Source.Start.Column,
		m.Location.Source.End.Line,
		m.Location.Source.End.Column,
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// AddFinding stores a finding (deduplicated).
func (s *SQLiteStore) AddFinding(f *types.Finding) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO findings (structural_id, set_id, pattern_id, literal)
		VALUES (?, ?, ?, ?)
	`, f.ID, f.SetID, f.PatternID, f.Literal)
	if err != nil {
		return fmt.Errorf("inserting finding: %w", err)
	}
	return nil
}

// AddProvenance associates provenance with a blob.
func (s *SQLiteStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := encodeProvenance(prov)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO provenance (blob_id, type, path, member_path, repo_path, commit_hash, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, blobID.Hex(), row.Kind, row.Path, row.MemberPath, row.RepoPath, row.CommitHash, row.Payload)
	if err != nil {
		return fmt.Errorf("inserting provenance: %w", err)
	}
	return nil
}

const matchColumns = `
	blob_id, set_id, pattern_id, pattern_name, structural_id, finding_id,
	offset_start, offset_end, snippet_before, snippet_matching, snippet_after,
	start_line, start_column, end_line, end_column`

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches(`SELECT`+matchColumns+` FROM matches WHERE blob_id = ? ORDER BY offset_start, id`, blobID.Hex())
}

// GetAllMatches retrieves all matches.
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches(`SELECT` + matchColumns + ` FROM matches ORDER BY blob_id, offset_start, id`)
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		var m types.Match
		var blobIDHex string
		err := rows.Scan(
			&blobIDHex,
			&m.SetID,
			&m.PatternID,
			&m.PatternName,
			&m.StructuralID,
			&m.FindingID,
			&m.Location.Offset.Start,
			&m.Location.Offset.End,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
			&m.Location.Source.Start.Line,
			&m.Location.Source.Start.Column,
			&m.Location.Source.End.Line,
			&m.Location.Source.End.Column,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		m.BlobID, err = types.ParseBlobID(blobIDHex)
		if err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// GetFindings retrieves all findings with their matches attached.
func (s *SQLiteStore) GetFindings() ([]*types.Finding, error) {
	rows, err := s.db.Query(`SELECT structural_id, set_id, pattern_id, literal FROM findings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying findings: %w", err)
	}

	findings := []*types.Finding{}
	byID := make(map[string]*types.Finding)
	for rows.Next() {
		var f types.Finding
		if err := rows.Scan(&f.ID, &f.SetID, &f.PatternID, &f.Literal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning finding: %w", err)
		}
		findings = append(findings, &f)
		byID[f.ID] = &f
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating findings: %w", err)
	}

	// The single connection must be released before the next query.
	matches, err := s.GetAllMatches()
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		if f, ok := byID[m.FindingID]; ok {
			f.Matches = append(f.Matches, m)
		}
	}
	return findings, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (s *SQLiteStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	rows, err := s.db.Query(`
		SELECT type, path, member_path, repo_path, commit_hash, payload_json
		FROM provenance WHERE blob_id = ? ORDER BY id
	`, blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	provs := []types.Provenance{}
	for rows.Next() {
		var row provenanceRow
		if err := rows.Scan(&row.Kind, &row.Path, &row.MemberPath, &row.RepoPath, &row.CommitHash, &row.Payload); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		prov, err := row.decode()
		if err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provenance: %w", err)
	}
	return provs, nil
}

// FindingExists checks if a finding with this ID exists.
func (s *SQLiteStore) FindingExists(id string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM findings WHERE structural_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking finding existence: %w", err)
	}
	return count > 0, nil
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking blob existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
