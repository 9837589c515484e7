package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

var schemaStatements = []struct {
	name string
	stmt string
}{
	{"blobs", `
		CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY NOT NULL,
			size INTEGER NOT NULL
		)`},
	{"pattern_sets", `
		CREATE TABLE IF NOT EXISTS pattern_sets (
			id TEXT PRIMARY KEY NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			algorithm TEXT NOT NULL,
			block_size INTEGER NOT NULL
		)`},
	{"patterns", `
		CREATE TABLE IF NOT EXISTS patterns (
			set_id TEXT NOT NULL REFERENCES pattern_sets(id),
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			literal BLOB NOT NULL,
			structural_id TEXT NOT NULL,
			PRIMARY KEY (set_id, id)
		)`},
	{"matches", `
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			set_id TEXT NOT NULL,
			pattern_id TEXT NOT NULL,
			pattern_name TEXT NOT NULL,
			structural_id TEXT NOT NULL UNIQUE,
			finding_id TEXT NOT NULL,
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			snippet_before BLOB,
			snippet_matching BLOB,
			snippet_after BLOB,
			start_line INTEGER,
			start_column INTEGER,
			end_line INTEGER,
			end_column INTEGER
		)`},
	{"findings", `
		CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			structural_id TEXT NOT NULL UNIQUE,
			set_id TEXT NOT NULL,
			pattern_id TEXT NOT NULL,
			literal BLOB
		)`},
	{"provenance", `
		CREATE TABLE IF NOT EXISTS provenance (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			type TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			member_path TEXT NOT NULL DEFAULT '',
			repo_path TEXT NOT NULL DEFAULT '',
			commit_hash TEXT NOT NULL DEFAULT '',
			payload_json TEXT NOT NULL DEFAULT '',
			UNIQUE(blob_id, type, path, member_path, repo_path, commit_hash, payload_json)
		)`},
	{"idx_matches_blob_id", `CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)`},
	{"idx_matches_finding_id", `CREATE INDEX IF NOT EXISTS idx_matches_finding_id ON matches(finding_id)`},
	{"idx_provenance_blob_id", `CREATE INDEX IF NOT EXISTS idx_provenance_blob_id ON provenance(blob_id)`},
}

// CreateSchema creates the database schema if it doesn't exist. A database
// written by a different schema version is rejected.
func CreateSchema(db *sql.DB) error {
	if err := checkSchemaVersion(db); err != nil {
		return err
	}
	for _, s := range schemaStatements {
		if _, err := db.Exec(s.stmt); err != nil {
			return fmt.Errorf("creating %s: %w", s.name, err)
		}
	}
	return nil
}

func checkSchemaVersion(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case version != SchemaVersion:
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}
