package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is one occurrence of a pattern in a blob.
type Match struct {
	BlobID       BlobID
	StructuralID string // SHA-1(set_id, pattern_id, pattern_structural_id, blob_id, start, end)
	FindingID    string // see ComputeFindingID
	SetID        string
	PatternID    string
	PatternName  string
	Location     Location
	Snippet      Snippet
}

// ComputeStructuralID derives an ID that is stable for the same pattern of
// the same set at the same offsets of the same blob. SetID and PatternID
// must be set first.
func (m *Match) ComputeStructuralID(patternStructuralID string) string {
	h := sha1.New()
	h.Write([]byte(m.SetID))
	h.Write([]byte{0})
	h.Write([]byte(m.PatternID))
	h.Write([]byte{0})
	h.Write([]byte(patternStructuralID))
	h.Write([]byte{0})
	h.Write(m.BlobID[:])
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
