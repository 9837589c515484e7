package store

import (
	"database/sql"
	"fmt"
	"os"
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
	BlobsMerged       int
	PatternSetsMerged int
	MatchesMerged     int
	FindingsMerged    int
	ProvenanceMerged  int
	SourcesProcessed  int
}

// mergeTables lists the copied tables and their columns, excluding
// autoincrement keys. Deduplication relies on each table's unique keys.
var mergeTables = []struct {
	name    string
	columns []string
	count   func(*MergeStats) *int
}{
	{"blobs", []string{"id", "size"}, func(s *MergeStats) *int { return &s.BlobsMerged }},
	{"pattern_sets", []string{"id", "name", "description", "algorithm", "block_size"}, func(s *MergeStats) *int { return &s.PatternSetsMerged }},
	{"patterns", []string{"set_id", "id", "name", "literal", "structural_id"}, nil},
	{"matches", []string{
		"blob_id", "set_id", "pattern_id", "pattern_name", "structural_id", "finding_id",
		"offset_start", "offset_end", "snippet_before", "snippet_matching", "snippet_after",
		"start_line", "start_column", "end_line", "end_column",
	}, func(s *MergeStats) *int { return &s.MatchesMerged }},
	{"findings", []string{"structural_id", "set_id", "pattern_id", "literal"}, func(s *MergeStats) *int { return &s.FindingsMerged }},
	{"provenance", []string{"blob_id", "type", "path", "member_path", "repo_path", "commit_hash", "payload_json"}, func(s *MergeStats) *int { return &s.ProvenanceMerged }},
}

// Merge combines multiple datastores into one.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := openSQLite(cfg.DestPath)
	if err != nil {
		return nil, fmt.Errorf("opening destination database: %w", err)
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

// mergeFrom attaches a source database and copies every table into destDB.
func mergeFrom(destDB *sql.DB, sourcePath string, stats *MergeStats) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return err
	}
	// Validates the source schema version.
	sourceDB, err := openSQLite(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source database: %w", err)
	}
	sourceDB.Close()

	if _, err := destDB.Exec("ATTACH DATABASE ? AS src", sourcePath); err != nil {
		return fmt.Errorf("attaching source: %w", err)
	}
	defer destDB.Exec("DETACH DATABASE src")

	tx, err := destDB.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range mergeTables {
		cols := strings.Join(t.columns, ", ")
		result, err := tx.Exec(fmt.Sprintf(
			"INSERT OR IGNORE INTO main.%s (%s) SELECT %s FROM src.%s", t.name, cols, cols, t.name))
		if err != nil {
			return fmt.Errorf("merging %s: %w", t.name, err)
		}
		if t.count != nil {
			affected, _ := result.RowsAffected()
			*t.count(stats) += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
