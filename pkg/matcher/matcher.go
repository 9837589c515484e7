// Package matcher runs compiled pattern sets over blobs and turns engine
// hits into located, de-duplicated matches.
package matcher

import (
	"context"
	"log/slog"

	"github.com/praetorian-inc/wmscan/pkg/types"
)

// Matcher scans content for pattern matches.
type Matcher interface {
	// Match scans content against all loaded pattern sets.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// MatchContext is MatchWithBlobID with cancellation between chunks.
	MatchContext(ctx context.Context, content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases resources held by the matcher.
	Close() error
}

// Config for matcher initialization.
type Config struct {
	// Sets to compile. Each set becomes one Wu-Manber engine.
	Sets []*types.PatternSet

	// Algorithm overrides every set's algorithm when non-empty ("wm" or "dhs").
	Algorithm string

	// BlockSize overrides every set's block size when positive.
	BlockSize int

	// ContextLines is the number of lines captured around each match.
	ContextLines int

	// Dedupe selects which repeated matches are dropped.
	Dedupe DedupeMode

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited).
	MaxMatchesPerBlob int

	// Chunk controls how large blobs are split for parallel scanning.
	// The zero value selects DefaultChunkConfig.
	Chunk ChunkConfig

	// Workers bounds concurrent chunk scans (0 = GOMAXPROCS).
	Workers int

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// New creates a Matcher backed by Wu-Manber engines.
func New(cfg Config) (Matcher, error) {
	return NewWuManber(cfg)
}
