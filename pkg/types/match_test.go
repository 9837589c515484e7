package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch_ComputeStructuralID(t *testing.T) {
	blob := ComputeBlobID([]byte("the basic concepts"))
	m := &Match{
		BlobID:    blob,
		SetID:     "a",
		PatternID: "a.secret",
		Location:  Location{Offset: OffsetSpan{Start: 4, End: 9}},
	}

	id := m.ComputeStructuralID("pattern-sid")
	assert.Len(t, id, 40)
	assert.Equal(t, id, m.ComputeStructuralID("pattern-sid"))
	assert.NotEqual(t, id, m.ComputeStructuralID("other-sid"))

	moved := *m
	moved.Location.Offset = OffsetSpan{Start: 5, End: 10}
	assert.NotEqual(t, id, moved.ComputeStructuralID("pattern-sid"))

	other := *m
	other.BlobID = ComputeBlobID([]byte("different"))
	assert.NotEqual(t, id, other.ComputeStructuralID("pattern-sid"))

	otherSet := *m
	otherSet.SetID = "b"
	otherSet.PatternID = "b.secret"
	assert.NotEqual(t, id, otherSet.ComputeStructuralID("pattern-sid"))

	alias := *m
	alias.PatternID = "a.alias"
	assert.NotEqual(t, id, alias.ComputeStructuralID("pattern-sid"))
}

func TestComputeFindingID(t *testing.T) {
	id := ComputeFindingID("markers", "sid")

	assert.Len(t, id, 40)
	assert.Equal(t, id, ComputeFindingID("markers", "sid"))
	assert.NotEqual(t, id, ComputeFindingID("markers", "sid2"))
	assert.NotEqual(t, id, ComputeFindingID("other", "sid"))
	// The separator keeps the two fields apart.
	assert.NotEqual(t, ComputeFindingID("ab", "c"), ComputeFindingID("a", "bc"))
}

func TestOffsetSpan_Len(t *testing.T) {
	assert.Equal(t, int64(5), OffsetSpan{Start: 32, End: 37}.Len())
}
