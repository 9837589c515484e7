package wumanber

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPatternSet is returned by New when no patterns are given.
	ErrEmptyPatternSet = errors.New("wumanber: empty pattern set")

	// ErrEmptyPattern is returned by New when a pattern has zero length.
	ErrEmptyPattern = errors.New("wumanber: empty pattern")

	// ErrInvalidBlockSize is returned by New for a negative block size.
	ErrInvalidBlockSize = errors.New("wumanber: invalid block size")

	// ErrUnknownKind is returned by New and ParseKind for an unsupported matcher kind.
	ErrUnknownKind = errors.New("wumanber: unknown matcher kind")

	// ErrBlockSizeExceedsMinPatternLength matches any *BlockSizeError under errors.Is.
	ErrBlockSizeExceedsMinPatternLength = errors.New("wumanber: block size exceeds minimum pattern length")
)

// BlockSizeError reports a block size larger than the shortest pattern.
type BlockSizeError struct {
	M int // shortest pattern length
	B int // requested block size
}

func (e *BlockSizeError) Error() string {
	return fmt.Sprintf("wumanber: block size %d exceeds minimum pattern length %d", e.B, e.M)
}

// Is reports whether target is ErrBlockSizeExceedsMinPatternLength.
func (e *BlockSizeError) Is(target error) bool {
	return target == ErrBlockSizeExceedsMinPatternLength
}
