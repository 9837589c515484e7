// Package store persists scan results: blobs, pattern sets, matches,
// findings and provenance.
package store

import (
	"fmt"

	"github.com/praetorian-inc/wmscan/pkg/types"
)

// MemoryPath selects the in-memory backend.
const MemoryPath = ":memory:"

// Store provides persistence for scan results.
// Implementations are safe for concurrent use.
type Store interface {
	// AddBlob stores a blob record.
	AddBlob(id types.BlobID, size int64) error

	// AddPatternSet stores a pattern set and its patterns.
	AddPatternSet(set *types.PatternSet) error

	// GetPatternSets retrieves every stored pattern set ordered by ID.
	GetPatternSets() ([]*types.PatternSet, error)

	// AddMatch stores a match record. Matches are unique by structural ID.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated by ID).
	AddFinding(f *types.Finding) error

	// AddProvenance associates provenance with a blob.
	AddProvenance(blobID types.BlobID, prov types.Provenance) error

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches ordered by blob and offset.
	GetAllMatches() ([]*types.Match, error)

	// GetFindings retrieves all findings with their matches attached.
	GetFindings() ([]*types.Finding, error)

	// GetProvenance retrieves every provenance recorded for a blob.
	GetProvenance(blobID types.BlobID) ([]types.Provenance, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a blob has already been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close releases the backend.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for the in-memory backend.
	Path string
}

// New returns a MemoryStore for ":memory:" and a SQLiteStore otherwise.
func New(cfg Config) (Store, error) {
	switch cfg.Path {
	case "":
		return nil, fmt.Errorf("path is required")
	case MemoryPath:
		return NewMemory(), nil
	default:
		return NewSQLite(cfg.Path)
	}
}

// RecordMatches stores each match together with its finding.
func RecordMatches(s Store, matches []*types.Match) error {
	for _, m := range matches {
		if err := s.AddMatch(m); err != nil {
			return err
		}
		err := s.AddFinding(&types.Finding{
			ID:        m.FindingID,
			SetID:     m.SetID,
			PatternID: m.PatternID,
			Literal:   m.Snippet.Matching,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
