package patternset

import (
	"fmt"

	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/praetorian-inc/wmscan/pkg/wumanber"
)

// Validate checks that set can be compiled: required IDs, at least one
// non-empty literal, unique pattern IDs, a known algorithm and a block size
// no larger than the shortest literal.
func Validate(set *types.PatternSet) error {
	if set == nil {
		return fmt.Errorf("pattern set is nil")
	}
	if set.ID == "" {
		return fmt.Errorf("pattern set ID is required")
	}
	if len(set.Patterns) == 0 {
		return fmt.Errorf("pattern set %s has no patterns", set.ID)
	}
	if _, err := wumanber.ParseKind(set.Algorithm); err != nil {
		return fmt.Errorf("pattern set %s: %w", set.ID, err)
	}
	if set.BlockSize < 0 {
		return fmt.Errorf("pattern set %s: block size must not be negative, got %d", set.ID, set.BlockSize)
	}

	seen := make(map[string]bool, len(set.Patterns))
	for _, p := range set.Patterns {
		if p.ID == "" {
			return fmt.Errorf("pattern set %s: pattern ID is required", set.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("pattern set %s: duplicate pattern ID %s", set.ID, p.ID)
		}
		seen[p.ID] = true
		if len(p.Literal) == 0 {
			return fmt.Errorf("pattern set %s: pattern %s has an empty literal", set.ID, p.ID)
		}
		if p.StructuralID != "" && p.StructuralID != p.ComputeStructuralID() {
			return fmt.Errorf("pattern %s has inconsistent StructuralID: got %s, expected %s",
				p.ID, p.StructuralID, p.ComputeStructuralID())
		}
	}

	if shortest, _ := set.LiteralBounds(); set.BlockSize > shortest {
		return fmt.Errorf("pattern set %s: %w", set.ID, &wumanber.BlockSizeError{M: shortest, B: set.BlockSize})
	}
	return nil
}

// ValidateAll validates every set and rejects duplicate set IDs.
func ValidateAll(sets []*types.PatternSet) error {
	seen := make(map[string]bool, len(sets))
	for _, set := range sets {
		if err := Validate(set); err != nil {
			return err
		}
		if seen[set.ID] {
			return fmt.Errorf("duplicate pattern set ID %s", set.ID)
		}
		seen[set.ID] = true
	}
	return nil
}
