package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/praetorian-inc/wmscan/pkg/sarif"
	"github.com/praetorian-inc/wmscan/pkg/store"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPatternsYAML = `sets:
  - id: test
    name: Test
    patterns:
      - id: test.secret
        name: Secret marker
        literal: "SECRET"
      - id: test.token
        name: Token marker
        literal: "TOKEN"
`

// writePatterns writes testPatternsYAML into dir and returns its path.
func writePatterns(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPatternsYAML), 0644))
	return path
}

// resetScanFlags restores the scan flag defaults for a test.
func resetScanFlags(t *testing.T, patternsPath, outputPath string) {
	t.Helper()
	scanPatternsPath = patternsPath
	scanSetsInclude = ""
	scanSetsExclude = ""
	scanAlgorithm = ""
	scanBlockSize = 0
	scanOutputPath = outputPath
	scanOutputFormat = "human"
	scanGit = false
	scanMaxFileSize = 10 * 1024 * 1024
	scanIncludeHidden = false
	scanIncludeBinary = false
	scanContextLines = 2
	scanIncremental = false
	scanExtract = ""
	scanDedupe = "location"
	scanStoreBlobs = ""
}

// scanTarget creates a directory with one file holding two SECRETs.
func scanTarget(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "line one\nkey = SECRET\nanother SECRET here\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.txt"), []byte(content), 0644))
	return dir
}

func TestRunScan(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	resetScanFlags(t, writePatterns(t, tmpDir), filepath.Join(tmpDir, "scan.db"))

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runScan(cmd, []string{target})
	require.NoError(t, err)

	_, err = os.Stat(scanOutputPath)
	assert.NoError(t, err, "database file should be created")

	output := buf.String()
	assert.Contains(t, output, "Scan complete: 2 matches, 1 findings")
	assert.Contains(t, output, "test.secret")

	s, err := store.New(store.Config{Path: scanOutputPath})
	require.NoError(t, err)
	defer s.Close()

	matches, err := s.GetAllMatches()
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(15), matches[0].Location.Offset.Start)
	assert.Equal(t, 2, matches[0].Location.Source.Start.Line)

	sets, err := s.GetPatternSets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "test", sets[0].ID)
}

func TestRunScanInvalidTarget(t *testing.T) {
	resetScanFlags(t, "", store.MemoryPath)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	err := runScan(cmd, []string{"/nonexistent/path"})
	assert.Error(t, err, "should error on nonexistent target")
}

func TestRunScanInvalidOptions(t *testing.T) {
	target := scanTarget(t)

	tests := []struct {
		name  string
		setup func()
		want  string
	}{
		{"format", func() { scanOutputFormat = "xml" }, "unknown output format"},
		{"dedupe", func() { scanDedupe = "sometimes" }, "unknown dedupe mode"},
		{"algorithm", func() { scanAlgorithm = "boyer-moore" }, "unknown"},
		{"patterns file", func() { scanPatternsPath = "/nonexistent/patterns.yaml" }, "loading pattern sets"},
		{"empty filter", func() { scanSetsInclude = "^nothing$" }, "no pattern sets selected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetScanFlags(t, "", store.MemoryPath)
			tt.setup()

			cmd := &cobra.Command{}
			cmd.SetOut(&bytes.Buffer{})
			err := runScan(cmd, []string{target})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunScanRejectsDuplicateIDs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "pattern IDs",
			yaml: "sets:\n  - id: dup\n    patterns:\n      - id: dup.p\n        literal: SECRET\n      - id: dup.p\n        literal: TOKEN\n",
			want: "duplicate pattern ID dup.p",
		},
		{
			name: "set IDs",
			yaml: "sets:\n  - id: dup\n    literals: [SECRET]\n  - id: dup\n    literals: [TOKEN]\n",
			want: "duplicate pattern set ID dup",
		},
	}

	target := scanTarget(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "patterns.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))
			resetScanFlags(t, path, store.MemoryPath)

			cmd := &cobra.Command{}
			cmd.SetOut(&bytes.Buffer{})
			err := runScan(cmd, []string{target})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunScanBinaryFile(t *testing.T) {
	dir := t.TempDir()
	elf := append([]byte("\x7fELF\x02\x01\x01\x00"), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool"), elf, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("// TODO\n"), 0644))

	t.Run("builtin sets with byte literals", func(t *testing.T) {
		resetScanFlags(t, "", filepath.Join(t.TempDir(), "scan.db"))

		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		require.NoError(t, runScan(cmd, []string{dir}))
		assert.Contains(t, buf.String(), "magic.elf")

		s, err := store.New(store.Config{Path: scanOutputPath})
		require.NoError(t, err)
		defer s.Close()
		matches, err := s.GetAllMatches()
		require.NoError(t, err)
		var ids []string
		for _, m := range matches {
			ids = append(ids, m.PatternID)
		}
		assert.Contains(t, ids, "magic.elf")
		assert.Contains(t, ids, "markers.todo")
	})

	t.Run("text sets skip binary files", func(t *testing.T) {
		resetScanFlags(t, "", store.MemoryPath)
		scanSetsInclude = "^markers$"

		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		require.NoError(t, runScan(cmd, []string{dir}))
		assert.Contains(t, buf.String(), "Scan complete: 1 matches, 1 findings")
	})

	t.Run("include-binary flag", func(t *testing.T) {
		resetScanFlags(t, writePatterns(t, t.TempDir()), store.MemoryPath)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte("\x00\x01SECRET"), 0644))
		defer os.Remove(filepath.Join(dir, "blob.bin"))

		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		require.NoError(t, runScan(cmd, []string{dir}))
		assert.Contains(t, buf.String(), "No findings.")

		resetScanFlags(t, writePatterns(t, t.TempDir()), store.MemoryPath)
		scanIncludeBinary = true
		buf.Reset()
		require.NoError(t, runScan(cmd, []string{dir}))
		assert.Contains(t, buf.String(), "Scan complete: 1 matches, 1 findings")
	})
}

func TestRunScanDedupeNoneSharedLiteral(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "patterns.yaml")
	shared := "sets:\n  - id: a\n    patterns:\n      - id: a.secret\n        literal: SECRET\n  - id: b\n    patterns:\n      - id: b.secret\n        literal: SECRET\n"
	require.NoError(t, os.WriteFile(path, []byte(shared), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env"), []byte("KEY=SECRET\n"), 0644))
	resetScanFlags(t, path, filepath.Join(tmpDir, "scan.db"))
	scanDedupe = "none"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, buf.String(), "Scan complete: 2 matches, 2 findings")

	s, err := store.New(store.Config{Path: scanOutputPath})
	require.NoError(t, err)
	defer s.Close()

	matches, err := s.GetAllMatches()
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{matches[0].SetID, matches[1].SetID})
}

func TestRunScanBuiltinSets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("// TODO: remove\nfunc main() {}\n"), 0644))
	resetScanFlags(t, "", store.MemoryPath)
	scanSetsInclude = "^markers$"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, buf.String(), "Scan complete: 1 matches, 1 findings")
	assert.Contains(t, buf.String(), "markers.todo")
}

func TestRunScanNoFindings(t *testing.T) {
	tmpDir := t.TempDir()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.txt"), []byte("nothing to see"), 0644))
	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, buf.String(), "No findings.")
}

func TestRunScanJSONFormat(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)
	scanOutputFormat = "json"

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	require.NoError(t, runScan(cmd, []string{target}))

	var matches []map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &matches), "stdout should be pure JSON")
	assert.Len(t, matches, 2)
	assert.Equal(t, "test.secret", matches[0]["PatternID"])
	assert.Contains(t, stderr.String(), "Scan complete: 2 matches")
}

func TestRunScanSARIFFormat(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)
	scanOutputFormat = "sarif"

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	require.NoError(t, runScan(cmd, []string{target}))

	var report sarif.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, "2.1.0", report.Version)
	require.Len(t, report.Runs, 1)
	assert.Len(t, report.Runs[0].Tool.Driver.Rules, 2, "one rule per pattern")
	require.Len(t, report.Runs[0].Results, 2)
	assert.Equal(t, "test.secret", report.Runs[0].Results[0].RuleID)
	assert.Contains(t, report.Runs[0].Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI, "config.txt")
}

func TestRunScanIncremental(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	dbPath := filepath.Join(tmpDir, "scan.db")

	resetScanFlags(t, writePatterns(t, tmpDir), dbPath)
	scanIncremental = true

	var first bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&first)
	require.NoError(t, runScan(cmd, []string{target}))
	assert.Contains(t, first.String(), "Scan complete: 2 matches, 1 findings (0 blobs skipped)")

	var second bytes.Buffer
	cmd = &cobra.Command{}
	cmd.SetOut(&second)
	require.NoError(t, runScan(cmd, []string{target}))
	assert.Contains(t, second.String(), "Scan complete: 0 matches, 0 findings (1 blobs skipped)")
}

func TestRunScanStoreBlobs(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)
	scanStoreBlobs = filepath.Join(tmpDir, "blobs")

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runScan(cmd, []string{target}))

	content, err := os.ReadFile(filepath.Join(target, "config.txt"))
	require.NoError(t, err)

	bs := &store.BlobStore{Root: scanStoreBlobs}
	got, err := bs.Get(types.ComputeBlobID(content))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestRunScanDedupeContent(t *testing.T) {
	tmpDir := t.TempDir()
	target := scanTarget(t)
	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)
	scanDedupe = "content"

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{target}))
	assert.Contains(t, buf.String(), "Scan complete: 1 matches, 1 findings")
}

func TestRunScanGit(t *testing.T) {
	tmpDir := t.TempDir()
	repoDir := t.TempDir()

	repo, err := git.PlainInit(repoDir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "app.env"), []byte("API=TOKEN\n"), 0644))
	_, err = wt.Add("app.env")
	require.NoError(t, err)
	_, err = wt.Commit("add env", &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	resetScanFlags(t, writePatterns(t, tmpDir), store.MemoryPath)
	scanGit = true

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	require.NoError(t, runScan(cmd, []string{repoDir}))
	assert.Contains(t, buf.String(), "Scan complete: 1 matches, 1 findings")
	assert.Contains(t, buf.String(), "test.token")
}

func TestLoadPatternSets(t *testing.T) {
	sets, err := loadPatternSets("", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sets)

	filtered, err := loadPatternSets("", "", "^markers$")
	require.NoError(t, err)
	assert.Len(t, filtered, len(sets)-1)
	for _, s := range filtered {
		assert.NotEqual(t, "markers", s.ID)
	}

	_, err = loadPatternSets("", "[", "")
	assert.Error(t, err)
}
