package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// Finding groups every match of one pattern literal within one set.
type Finding struct {
	ID        string
	SetID     string
	PatternID string
	Literal   []byte
	Matches   []*Match
}

// ComputeFindingID returns SHA-1(set_id + '\0' + pattern_structural_id).
func ComputeFindingID(setID, patternStructuralID string) string {
	h := sha1.New()
	h.Write([]byte(setID))
	h.Write([]byte{0})
	h.Write([]byte(patternStructuralID))
	return hex.EncodeToString(h.Sum(nil))
}
