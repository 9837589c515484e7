package matcher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/praetorian-inc/wmscan/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation drops a match whose literal and span were already
	// reported for the blob, e.g. the same literal in two sets. The first
	// set and pattern ID in compile order wins.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent keeps only the first occurrence of each pattern per blob.
	DedupeByContent

	// DedupeNone keeps every match.
	DedupeNone
)

func (m DedupeMode) String() string {
	switch m {
	case DedupeByLocation:
		return "location"
	case DedupeByContent:
		return "content"
	case DedupeNone:
		return "none"
	default:
		return fmt.Sprintf("DedupeMode(%d)", int(m))
	}
}

// ParseDedupeMode parses "location", "content" or "none".
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch strings.ToLower(s) {
	case "", "location":
		return DedupeByLocation, nil
	case "content":
		return DedupeByContent, nil
	case "none":
		return DedupeNone, nil
	default:
		return 0, fmt.Errorf("unknown dedupe mode %q (want location, content or none)", s)
	}
}

// Deduplicator remembers the matches of one blob. It is not safe for
// concurrent use; the matcher creates one per scan.
type Deduplicator struct {
	seen map[uint64]struct{}
	mode DedupeMode
}

// NewDeduplicator creates a deduplicator for mode.
func NewDeduplicator(mode DedupeMode) *Deduplicator {
	return &Deduplicator{
		seen: make(map[uint64]struct{}),
		mode: mode,
	}
}

// Keep reports whether m is new and records it.
func (d *Deduplicator) Keep(m *types.Match) bool {
	if d.mode == DedupeNone {
		return true
	}
	key := d.computeKey(m)
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

func (d *Deduplicator) computeKey(m *types.Match) uint64 {
	h := xxhash.New()
	switch d.mode {
	case DedupeByContent:
		h.WriteString(m.SetID)
		h.Write([]byte{0})
		h.WriteString(m.PatternID)
	default:
		h.Write(m.BlobID[:])
		h.Write(m.Snippet.Matching)
		h.Write([]byte{0})
		h.WriteString(strconv.FormatInt(m.Location.Offset.Start, 10))
		h.Write([]byte{0})
		h.WriteString(strconv.FormatInt(m.Location.Offset.End, 10))
	}
	return h.Sum64()
}
