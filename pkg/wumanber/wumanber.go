// Package wumanber implements Wu-Manber multi-pattern exact matching over
// byte slices, along with the DHS refinement that takes a larger step
// after each verification attempt.
//
// A Matcher is built once from a fixed pattern set and is immutable
// afterwards; Search and Each may be called from any number of goroutines.
package wumanber

import (
	"bytes"
	"fmt"
	"strings"
)

// Kind selects the step a Matcher takes after a verification attempt.
type Kind int

const (
	// KindBase always advances by one byte after a verification attempt.
	KindBase Kind = iota
	// KindDHS advances by the slip distance of the trigger block.
	KindDHS
)

// String returns the short name used in pattern set files and flags.
func (k Kind) String() string {
	switch k {
	case KindBase:
		return "wm"
	case KindDHS:
		return "dhs"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses "wm" (or "base", "wu-manber") and "dhs".
// The empty string selects KindBase.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wm", "base", "wu-manber", "wumanber":
		return KindBase, nil
	case "dhs":
		return KindDHS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Config controls Matcher construction.
type Config struct {
	Kind Kind
	// BlockSize is the hashing block width. Zero selects min(m, 2) where m
	// is the length of the shortest pattern.
	BlockSize int
}

// Span is a half-open byte range [Start, End) in a scanned buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result maps every pattern of a Matcher to its occurrences in ascending
// start order. Patterns without occurrences map to an empty slice.
type Result map[string][]Span

// Total returns the number of occurrences across all patterns.
func (r Result) Total() int {
	n := 0
	for _, spans := range r {
		n += len(spans)
	}
	return n
}

// Matcher holds the preprocessed tables for one pattern set.
type Matcher struct {
	kind     Kind
	patterns [][]byte
	m        int
	b        int
	other    int
	shift    map[string]int
	prefix   prefixIndex
	slip     map[string]int
}

// New builds a Matcher for patterns. Duplicate patterns are collapsed,
// keeping the order of first appearance. The patterns are copied.
func New(patterns [][]byte, cfg Config) (*Matcher, error) {
	if len(patterns) == 0 {
		return nil, ErrEmptyPatternSet
	}
	if cfg.Kind != KindBase && cfg.Kind != KindDHS {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(cfg.Kind))
	}
	if cfg.BlockSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, cfg.BlockSize)
	}

	uniq := make([][]byte, 0, len(patterns))
	seen := make(map[string]struct{}, len(patterns))
	m := -1
	for _, p := range patterns {
		if len(p) == 0 {
			return nil, ErrEmptyPattern
		}
		if _, dup := seen[string(p)]; dup {
			continue
		}
		seen[string(p)] = struct{}{}
		uniq = append(uniq, bytes.Clone(p))
		if m < 0 || len(p) < m {
			m = len(p)
		}
	}

	b := cfg.BlockSize
	if b == 0 {
		b = min(m, 2)
	}
	if b > m {
		return nil, &BlockSizeError{M: m, B: b}
	}

	mt := &Matcher{
		kind:     cfg.Kind,
		patterns: uniq,
		m:        m,
		b:        b,
		other:    m - b + 1,
	}
	mt.shift = buildShiftTable(uniq, m, b)
	mt.prefix = buildPrefixIndex(uniq, m, b, mt.shift)
	if mt.kind == KindDHS {
		mt.slip = buildSlipTable(uniq, m, b, mt.other, mt.shift)
	}
	return mt, nil
}

// NewString is New for string patterns.
func NewString(patterns []string, cfg Config) (*Matcher, error) {
	bs := make([][]byte, len(patterns))
	for i, p := range patterns {
		bs[i] = []byte(p)
	}
	return New(bs, cfg)
}

// Kind returns the matcher kind.
func (mt *Matcher) Kind() Kind { return mt.kind }

// M returns the length of the shortest pattern.
func (mt *Matcher) M() int { return mt.m }

// B returns the block size.
func (mt *Matcher) B() int { return mt.b }

// Other returns the shift used for blocks that occur in no pattern prefix.
func (mt *Matcher) Other() int { return mt.other }

// Len returns the number of distinct patterns.
func (mt *Matcher) Len() int { return len(mt.patterns) }

// Pattern returns the pattern with index i as reported by Each.
// The returned slice must not be modified.
func (mt *Matcher) Pattern(i int) []byte { return mt.patterns[i] }

// Patterns returns copies of the distinct patterns in index order.
func (mt *Matcher) Patterns() [][]byte {
	out := make([][]byte, len(mt.patterns))
	for i, p := range mt.patterns {
		out[i] = bytes.Clone(p)
	}
	return out
}

// Search returns every occurrence of every pattern in text.
func (mt *Matcher) Search(text []byte) Result {
	res := make(Result, len(mt.patterns))
	for _, p := range mt.patterns {
		res[string(p)] = make([]Span, 0)
	}
	mt.Each(text, func(i int, span Span) bool {
		key := string(mt.patterns[i])
		res[key] = append(res[key], span)
		return true
	})
	return res
}

// Contains reports whether any pattern occurs in text.
func (mt *Matcher) Contains(text []byte) bool {
	found := false
	mt.Each(text, func(int, Span) bool {
		found = true
		return false
	})
	return found
}

// Count returns the number of occurrences of all patterns in text.
func (mt *Matcher) Count(text []byte) int {
	n := 0
	mt.Each(text, func(int, Span) bool {
		n++
		return true
	})
	return n
}

// Each calls fn for every occurrence in text, in ascending start order.
// Occurrences sharing a start are reported in pattern index order.
// Returning false from fn stops the scan.
func (mt *Matcher) Each(text []byte, fn func(pattern int, span Span) bool) {
	n := len(text)
	if n < mt.b {
		return
	}

	lead := mt.m - mt.b
	for site := lead; site <= n-mt.b; {
		suffix := text[site : site+mt.b]
		step := mt.other

		if d, ok := mt.shift[string(suffix)]; ok {
			if d > 0 {
				step = d
			} else {
				start := site - lead
				for _, i := range mt.prefix.candidates(suffix, text[start:start+mt.b]) {
					p := mt.patterns[i]
					end := start + len(p)
					if end <= n && bytes.Equal(text[start:end], p) {
						if !fn(i, Span{Start: start, End: end}) {
							return
						}
					}
				}
				step = 1
				if mt.kind == KindDHS {
					if s, ok := mt.slip[string(suffix)]; ok {
						step = s
					}
				}
			}
		}

		if step < 1 {
			step = 1
		}
		site += step
	}
}
