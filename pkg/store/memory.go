package store

import (
	"slices"
	"sort"
	"sync"

	"github.com/praetorian-inc/wmscan/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu          sync.RWMutex
	blobs       map[types.BlobID]int64
	sets        map[string]*types.PatternSet
	matches     []*types.Match
	matchIDs    map[string]struct{}       // structural IDs already stored
	findings    map[string]*types.Finding // keyed by finding ID
	findingList []*types.Finding          // insertion order
	provenance  map[types.BlobID][]provenanceRow
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[types.BlobID]int64),
		sets:       make(map[string]*types.PatternSet),
		matchIDs:   make(map[string]struct{}),
		findings:   make(map[string]*types.Finding),
		provenance: make(map[types.BlobID][]provenanceRow),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		m.blobs[id] = size
	}
	return nil
}

// AddPatternSet stores a pattern set, replacing one with the same ID.
func (m *MemoryStore) AddPatternSet(set *types.PatternSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sets[set.ID] = set
	return nil
}

// GetPatternSets retrieves every stored pattern set ordered by ID.
func (m *MemoryStore) GetPatternSets() ([]*types.PatternSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sets := make([]*types.PatternSet, 0, len(m.sets))
	for _, set := range m.sets {
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].ID < sets[j].ID })
	return sets, nil
}

// AddMatch stores a match record.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.matchIDs[match.StructuralID]; exists {
		return nil
	}
	m.matchIDs[match.StructuralID] = struct{}{}
	m.matches = append(m.matches, match)
	return nil
}

// AddFinding stores a finding (deduplicated).
func (m *MemoryStore) AddFinding(f *types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findings[f.ID]; exists {
		return nil
	}
	stored := &types.Finding{ID: f.ID, SetID: f.SetID, PatternID: f.PatternID, Literal: f.Literal}
	m.findings[f.ID] = stored
	m.findingList = append(m.findingList, stored)
	return nil
}

// AddProvenance associates provenance with a blob.
func (m *MemoryStore) AddProvenance(blobID types.BlobID, prov types.Provenance) error {
	row, err := encodeProvenance(prov)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.provenance[blobID], row) {
		return nil
	}
	m.provenance[blobID] = append(m.provenance[blobID], row)
	return nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	sortMatches(result)
	return result, nil
}

// GetAllMatches retrieves all matches.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := slices.Clone(m.matches)
	if result == nil {
		result = []*types.Match{}
	}
	sortMatches(result)
	return result, nil
}

// GetFindings retrieves all findings with their matches attached.
func (m *MemoryStore) GetFindings() ([]*types.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*types.Finding, 0, len(m.findingList))
	byID := make(map[string]*types.Finding, len(m.findingList))
	for _, f := range m.findingList {
		c := &types.Finding{ID: f.ID, SetID: f.SetID, PatternID: f.PatternID, Literal: f.Literal}
		result = append(result, c)
		byID[c.ID] = c
	}

	matches := slices.Clone(m.matches)
	sortMatches(matches)
	for _, match := range matches {
		if f, ok := byID[match.FindingID]; ok {
			f.Matches = append(f.Matches, match)
		}
	}
	return result, nil
}

// GetProvenance retrieves every provenance recorded for a blob.
func (m *MemoryStore) GetProvenance(blobID types.BlobID) ([]types.Provenance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provs := make([]types.Provenance, 0, len(m.provenance[blobID]))
	for _, row := range m.provenance[blobID] {
		prov, err := row.decode()
		if err != nil {
			return nil, err
		}
		provs = append(provs, prov)
	}
	return provs, nil
}

// FindingExists checks if a finding with this ID exists.
func (m *MemoryStore) FindingExists(id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.findings[id]
	return exists, nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// sortMatches orders matches by blob, then offset, matching SQLiteStore.
func sortMatches(matches []*types.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.BlobID != b.BlobID {
			return a.BlobID.Hex() < b.BlobID.Hex()
		}
		return a.Location.Offset.Start < b.Location.Offset.Start
	})
}
