package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/wmscan/pkg/store"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMergeCmd creates a fresh merge command for testing
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "merge <source1.db> <source2.db> [source3.db...]",
		Args: cobra.MinimumNArgs(2),
		RunE: runMerge,
	}
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "")
	return cmd
}

// sourceDB creates a datastore holding one blob with a single match.
func sourceDB(t *testing.T, path string, content string) {
	t.Helper()
	s, err := store.NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	p := &types.Pattern{ID: "test.secret", Name: "Secret", Literal: []byte("SECRET")}
	p.StructuralID = p.ComputeStructuralID()
	set := &types.PatternSet{ID: "test", Name: "Test", Algorithm: "wm", Patterns: []*types.Pattern{p}}
	require.NoError(t, s.AddPatternSet(set))

	blobID := types.ComputeBlobID([]byte(content))
	require.NoError(t, s.AddBlob(blobID, int64(len(content))))
	require.NoError(t, s.AddProvenance(blobID, types.FileProvenance{FilePath: path + ".txt"}))

	m := &types.Match{
		BlobID:    blobID,
		SetID:     set.ID,
		PatternID: p.ID,
		Location:  types.Location{Offset: types.OffsetSpan{Start: 0, End: 6}},
		Snippet:   types.Snippet{Matching: p.Literal},
	}
	m.StructuralID = m.ComputeStructuralID(p.StructuralID)
	m.FindingID = types.ComputeFindingID(set.ID, p.StructuralID)
	require.NoError(t, store.RecordMatches(s, []*types.Match{m}))
}

func TestMergeCmd_RequiresMinimumArgs(t *testing.T) {
	cmd := newMergeCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")

	cmd = newMergeCmd()
	cmd.SetArgs([]string{"source1.db"})
	err = cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 2 arg")
}

func TestMergeCmd_MergesTwoDatabases(t *testing.T) {
	tmpDir := t.TempDir()
	source1 := filepath.Join(tmpDir, "source1.db")
	source2 := filepath.Join(tmpDir, "source2.db")
	output := filepath.Join(tmpDir, "merged.db")
	sourceDB(t, source1, "SECRET one")
	sourceDB(t, source2, "SECRET two")

	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{source1, source2, "-o", output})
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Sources processed: 2")
	assert.Contains(t, out, "Blobs merged: 2")
	assert.Contains(t, out, "Pattern sets merged: 1")
	assert.Contains(t, out, "Matches merged: 2")
	assert.Contains(t, out, "Findings merged: 1")
	assert.Contains(t, out, "Provenance merged: 2")
	assert.Contains(t, out, "Output: "+output)

	merged, err := store.NewSQLite(output)
	require.NoError(t, err)
	defer merged.Close()

	findings, err := merged.GetFindings()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].Matches, 2)
}

func TestMergeCmd_MissingSource(t *testing.T) {
	tmpDir := t.TempDir()
	source1 := filepath.Join(tmpDir, "source1.db")
	sourceDB(t, source1, "SECRET")

	cmd := newMergeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{source1, filepath.Join(tmpDir, "missing.db"), "-o", filepath.Join(tmpDir, "merged.db")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge failed")
}
