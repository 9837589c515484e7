package types

import (
	"crypto/sha1"
	"encoding/hex"
	"unicode"
	"unicode/utf8"
)

// Pattern is a literal byte string to search for.
type Pattern struct {
	ID           string   // e.g. "markers.todo"
	Name         string   // human-readable name
	Literal      []byte   // exact bytes to find
	Description  string   // optional
	Categories   []string // classification tags
	StructuralID string   // SHA-1 of Literal (computed)
}

// ComputeStructuralID returns the SHA-1 of the literal. Two patterns with the
// same bytes share a structural ID regardless of their IDs or names.
func (p *Pattern) ComputeStructuralID() string {
	sum := sha1.Sum(p.Literal)
	return hex.EncodeToString(sum[:])
}

// IsText reports whether the literal is valid UTF-8 without control
// characters other than tab, newline and carriage return.
func (p *Pattern) IsText() bool {
	if !utf8.Valid(p.Literal) {
		return false
	}
	for _, r := range string(p.Literal) {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// PatternSet is a group of patterns compiled into one matcher.
type PatternSet struct {
	ID          string
	Name        string
	Description string
	Algorithm   string   // "wm" or "dhs"
	BlockSize   int      // 0 selects the engine default
	Keywords    []string // prefilter keywords; empty means always scan
	Patterns    []*Pattern
}

// Literals returns the literal of every pattern, in order.
func (s *PatternSet) Literals() [][]byte {
	out := make([][]byte, len(s.Patterns))
	for i, p := range s.Patterns {
		out[i] = p.Literal
	}
	return out
}

// LiteralBounds returns the shortest and longest literal lengths.
// Both are 0 for a set without patterns.
func (s *PatternSet) LiteralBounds() (shortest, longest int) {
	for i, p := range s.Patterns {
		n := len(p.Literal)
		if i == 0 || n < shortest {
			shortest = n
		}
		if n > longest {
			longest = n
		}
	}
	return shortest, longest
}

// HasBinaryLiterals reports whether any pattern is not text (see IsText).
func (s *PatternSet) HasBinaryLiterals() bool {
	for _, p := range s.Patterns {
		if !p.IsText() {
			return true
		}
	}
	return false
}
