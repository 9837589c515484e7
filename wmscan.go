// Package wmscan scans content for fixed byte-string patterns with the
// Wu-Manber multi-pattern algorithm.
//
// # Basic Usage
//
// Create a scanner with the builtin pattern sets and scan content:
//
//	scanner, err := wmscan.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanString("export AWS_SECRET_ACCESS_KEY=...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, match := range matches {
//	    fmt.Printf("Found %s at offset %d\n", match.PatternName, match.Location.Offset.Start)
//	}
//
// # Ad-hoc Patterns
//
//	scanner, err := wmscan.NewScanner(
//	    wmscan.WithPatterns("TODO", "FIXME"),
//	    wmscan.WithAlgorithm("dhs"),
//	)
//
// For direct access to occurrence lists without line numbers or context,
// use Search or the wumanber package.
package wmscan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/praetorian-inc/wmscan/pkg/matcher"
	"github.com/praetorian-inc/wmscan/pkg/patternset"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/praetorian-inc/wmscan/pkg/wumanber"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/wmscan" without subpackages.
type (
	// Match represents a single pattern occurrence with its location.
	Match = types.Match

	// Pattern is one literal to search for.
	Pattern = types.Pattern

	// PatternSet groups patterns compiled into one engine.
	PatternSet = types.PatternSet

	// Location describes where a match was found within content.
	Location = types.Location

	// Snippet contains the matched bytes with surrounding context.
	Snippet = types.Snippet

	// Result maps each pattern to the spans where it occurs.
	Result = wumanber.Result

	// Span is a half-open byte range [Start, End).
	Span = wumanber.Span

	// DedupeMode controls which repeated matches are dropped.
	DedupeMode = matcher.DedupeMode
)

// Re-export dedupe modes.
const (
	DedupeByLocation = matcher.DedupeByLocation
	DedupeByContent  = matcher.DedupeByContent
	DedupeNone       = matcher.DedupeNone
)

// AdHocSetID is the ID of the set built by WithPatterns.
const AdHocSetID = "adhoc"

// Scanner finds pattern occurrences in content.
type Scanner struct {
	matcher matcher.Matcher
	config  *scannerConfig
	mu      sync.RWMutex
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	sets         []*types.PatternSet
	literals     []string
	algorithm    string
	blockSize    int
	contextLines int
	dedupe       matcher.DedupeMode
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithPatternSets uses the given sets instead of the builtin sets.
func WithPatternSets(sets []*PatternSet) Option {
	return func(c *scannerConfig) {
		c.sets = sets
	}
}

// WithPatterns adds an ad-hoc set holding the given literals. When no
// pattern sets were given, the builtin sets are not loaded.
func WithPatterns(literals ...string) Option {
	return func(c *scannerConfig) {
		c.literals = append(c.literals, literals...)
	}
}

// WithAlgorithm forces "wm" or "dhs" for every set.
func WithAlgorithm(algorithm string) Option {
	return func(c *scannerConfig) {
		c.algorithm = algorithm
	}
}

// WithBlockSize forces the block size of every set.
func WithBlockSize(b int) Option {
	return func(c *scannerConfig) {
		c.blockSize = b
	}
}

// WithContextLines sets the number of context lines to include around matches.
// Default is 2 lines before and after.
func WithContextLines(lines int) Option {
	return func(c *scannerConfig) {
		c.contextLines = lines
	}
}

// WithDedupe selects which repeated matches are dropped.
// Default is DedupeByLocation.
func WithDedupe(mode DedupeMode) Option {
	return func(c *scannerConfig) {
		c.dedupe = mode
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = logger
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses the builtin pattern sets
//   - Uses each set's own algorithm and block size
//   - Includes 2 lines of context around matches
//
// Example:
//
//	// Default scanner
//	scanner, err := wmscan.NewScanner()
//
//	// With custom sets
//	sets, err := wmscan.LoadPatternSetsFromFile("sets.yml")
//	scanner, err := wmscan.NewScanner(wmscan.WithPatternSets(sets))
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		contextLines: 2,
	}

	for _, opt := range opts {
		opt(config)
	}

	if len(config.literals) > 0 {
		config.sets = append(append([]*types.PatternSet(nil), config.sets...), adHocSet(config.literals))
	}

	// Load builtin sets if none were provided
	if config.sets == nil {
		sets, err := patternset.NewLoader().LoadBuiltin()
		if err != nil {
			return nil, fmt.Errorf("loading builtin pattern sets: %w", err)
		}
		config.sets = sets
	}
	if err := patternset.ValidateAll(config.sets); err != nil {
		return nil, fmt.Errorf("invalid pattern sets: %w", err)
	}

	m, err := matcher.New(matcher.Config{
		Sets:         config.sets,
		Algorithm:    config.algorithm,
		BlockSize:    config.blockSize,
		ContextLines: config.contextLines,
		Dedupe:       config.dedupe,
		Logger:       config.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{
		matcher: m,
		config:  config,
	}, nil
}

// adHocSet builds a set with one pattern per literal.
func adHocSet(literals []string) *types.PatternSet {
	set := &types.PatternSet{ID: AdHocSetID, Name: "Ad-hoc patterns", Algorithm: "wm"}
	for i, lit := range literals {
		p := &types.Pattern{
			ID:      AdHocSetID + "." + strconv.Itoa(i+1),
			Name:    lit,
			Literal: []byte(lit),
		}
		p.StructuralID = p.ComputeStructuralID()
		set.Patterns = append(set.Patterns, p)
	}
	return set
}

// ScanString scans a string and returns all matches.
func (s *Scanner) ScanString(content string) ([]*Match, error) {
	return s.ScanBytes([]byte(content))
}

// ScanBytes scans raw bytes and returns all matches.
func (s *Scanner) ScanBytes(content []byte) ([]*Match, error) {
	return s.ScanBytesWithContext(context.Background(), content)
}

// ScanFile reads and scans a file.
func (s *Scanner) ScanFile(path string) ([]*Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// ScanStringWithContext scans content, stopping early when ctx is done.
func (s *Scanner) ScanStringWithContext(ctx context.Context, content string) ([]*Match, error) {
	return s.ScanBytesWithContext(ctx, []byte(content))
}

// ScanBytesWithContext scans raw bytes, stopping early when ctx is done.
func (s *Scanner) ScanBytesWithContext(ctx context.Context, content []byte) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.matcher == nil {
		return nil, fmt.Errorf("scanner is closed")
	}
	return s.matcher.MatchContext(ctx, content, types.ComputeBlobID(content))
}

// Close releases scanner resources.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matcher == nil {
		return nil
	}
	err := s.matcher.Close()
	s.matcher = nil
	return err
}

// PatternCount returns the number of patterns loaded across all sets.
func (s *Scanner) PatternCount() int {
	n := 0
	for _, set := range s.config.sets {
		n += len(set.Patterns)
	}
	return n
}

// PatternSets returns a copy of the loaded pattern set list.
func (s *Scanner) PatternSets() []*PatternSet {
	sets := make([]*PatternSet, len(s.config.sets))
	copy(sets, s.config.sets)
	return sets
}

// LoadPatternSetsFromFile loads pattern sets from a YAML file, or from
// every YAML file below a directory.
func LoadPatternSetsFromFile(path string) ([]*PatternSet, error) {
	return patternset.NewLoader().LoadPath(path)
}

// LoadBuiltinPatternSets returns the builtin pattern sets.
// This can be used to inspect available sets or create a subset.
func LoadBuiltinPatternSets() ([]*PatternSet, error) {
	return patternset.NewLoader().LoadBuiltin()
}

// Search reports every occurrence of each pattern in text using the base
// Wu-Manber algorithm. Every pattern gets a key, with an empty list when
// it does not occur.
func Search(patterns []string, text string) (Result, error) {
	mt, err := wumanber.NewString(patterns, wumanber.Config{Kind: wumanber.KindBase})
	if err != nil {
		return nil, err
	}
	return mt.Search([]byte(text)), nil
}
