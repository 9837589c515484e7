// Package enum discovers blobs to scan: files under a directory, blobs of a
// git revision, and text pulled out of archives and compressed streams.
package enum

import (
	"context"
	"io"
	"log/slog"

	"github.com/praetorian-inc/wmscan/pkg/types"
)

// Callback receives each blob. Returning an error stops enumeration.
type Callback func(content []byte, blobID types.BlobID, prov types.Provenance) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source. Implementations may invoke
	// callback from several goroutines at once.
	Enumerate(ctx context.Context, callback Callback) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// IncludeBinary yields blobs with a NUL byte in their first 8KB instead
	// of skipping them. It also applies to extracted members.
	IncludeBinary bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links to files.
	FollowSymlinks bool

	// Extract enables extraction from archives, documents and compressed
	// streams: a comma-separated list of extensions (zip,7z,gz,pdf,...) or "all".
	Extract string

	// ExtractLimits bounds decompression. Zero fields take their
	// DefaultExtractLimits value.
	ExtractLimits ExtractLimits

	// Workers is the number of parallel file readers (0 = NumCPU).
	Workers int

	// Logger receives skipped-file diagnostics. Nil discards them.
	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
