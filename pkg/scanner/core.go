// Package scanner wraps a matcher and an in-memory store for callers that
// scan individual strings, such as the NDJSON server.
package scanner

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/praetorian-inc/wmscan/pkg/matcher"
	"github.com/praetorian-inc/wmscan/pkg/patternset"
	"github.com/praetorian-inc/wmscan/pkg/store"
	"github.com/praetorian-inc/wmscan/pkg/types"
)

var (
	// cachedBuiltinSets holds builtin pattern sets loaded once per process
	cachedBuiltinSets []*types.PatternSet
	cachedSetsErr     error
	cacheOnce         sync.Once
)

// loadBuiltinSetsCached loads builtin pattern sets once and caches them
func loadBuiltinSetsCached() ([]*types.PatternSet, error) {
	cacheOnce.Do(func() {
		cachedBuiltinSets, cachedSetsErr = patternset.NewLoader().LoadBuiltin()
	})
	return cachedBuiltinSets, cachedSetsErr
}

// GetBuiltinPatternSets returns the built-in pattern sets (cached).
func GetBuiltinPatternSets() ([]*types.PatternSet, error) {
	return loadBuiltinSetsCached()
}

// Config configures a Core.
type Config struct {
	// PatternSets is "" or "builtin" for the embedded sets, otherwise a
	// YAML pattern set document.
	PatternSets string

	// Algorithm and BlockSize override the per-set engine settings.
	Algorithm string
	BlockSize int

	// ContextLines is the number of lines captured around each match.
	ContextLines int

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Core wraps the matcher and store for scanning operations
type Core struct {
	sets    []*types.PatternSet
	matcher matcher.Matcher
	store   store.Store
	logger  *slog.Logger
}

// NewCore creates a Core from builtin sets ("" or "builtin") or a YAML
// pattern set document, with two lines of context.
func NewCore(patternSets string, logger *slog.Logger) (*Core, error) {
	return NewCoreWithConfig(Config{PatternSets: patternSets, ContextLines: 2, Logger: logger})
}

// NewCoreWithConfig creates a Core from cfg.
func NewCoreWithConfig(cfg Config) (*Core, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var sets []*types.PatternSet
	var err error
	if cfg.PatternSets == "" || cfg.PatternSets == "builtin" {
		sets, err = loadBuiltinSetsCached()
		if err != nil {
			return nil, fmt.Errorf("loading builtin pattern sets: %w", err)
		}
		logger.Debug("loaded builtin pattern sets", "sets", len(sets))
	} else {
		sets, err = patternset.NewLoader().LoadSets([]byte(cfg.PatternSets))
		if err != nil {
			return nil, fmt.Errorf("parsing pattern sets: %w", err)
		}
		logger.Debug("parsed custom pattern sets", "sets", len(sets))
	}

	m, err := matcher.New(matcher.Config{
		Sets:         sets,
		Algorithm:    cfg.Algorithm,
		BlockSize:    cfg.BlockSize,
		ContextLines: cfg.ContextLines,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	s, err := store.New(store.Config{Path: store.MemoryPath})
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	for _, set := range sets {
		if err := s.AddPatternSet(set); err != nil {
			m.Close()
			s.Close()
			return nil, fmt.Errorf("storing pattern set %s: %w", set.ID, err)
		}
	}

	return &Core{
		sets:    sets,
		matcher: m,
		store:   s,
		logger:  logger,
	}, nil
}

// Scan scans a single content string
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	return c.scan(ContentItem{Source: source, Content: content})
}

func (c *Core) scan(item ContentItem) (*ScanResult, error) {
	data := []byte(item.Content)
	blobID := types.ComputeBlobID(data)

	matches, err := c.matcher.MatchWithBlobID(data, blobID)
	if err != nil {
		return nil, err
	}
	c.record(blobID, int64(len(data)), item, matches)

	counts := make(map[string]int, len(matches))
	for _, m := range matches {
		counts[m.PatternID]++
	}

	return &ScanResult{
		Source:  item.Source,
		BlobID:  blobID,
		Matches: matches,
		Counts:  counts,
	}, nil
}

// record keeps a scan in the store. Failures are logged, not returned.
func (c *Core) record(blobID types.BlobID, size int64, item ContentItem, matches []*types.Match) {
	payload := map[string]any{"path": item.Source}
	for k, v := range item.Metadata {
		if k != "path" {
			payload[k] = v
		}
	}

	err := c.store.AddBlob(blobID, size)
	if err == nil {
		err = c.store.AddProvenance(blobID, types.ExtendedProvenance{Payload: payload})
	}
	if err == nil {
		err = store.RecordMatches(c.store, matches)
	}
	if err != nil {
		c.logger.Warn("failed to record scan", "source", item.Source, "error", err)
	}
}

// ScanBatch scans multiple content items. Items that fail are reported in
// Errors and do not stop the batch.
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	batch := &BatchScanResult{Results: []ScanResult{}}

	for _, item := range items {
		result, err := c.scan(item)
		if err != nil {
			c.logger.Warn("batch item failed", "source", item.Source, "error", err)
			batch.Errors = append(batch.Errors, ItemError{Source: item.Source, Error: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, *result)
		batch.Total += len(result.Matches)
	}

	return batch, nil
}

// PatternSets returns the sets the core scans with.
func (c *Core) PatternSets() []*types.PatternSet {
	return c.sets
}

// Store returns the in-memory store holding every scan made by c.
func (c *Core) Store() store.Store {
	return c.store
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}
