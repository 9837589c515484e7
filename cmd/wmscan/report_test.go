package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/praetorian-inc/wmscan/pkg/sarif"
	"github.com/praetorian-inc/wmscan/pkg/store"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newReportCmd creates a fresh report command for testing
func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "report",
		RunE: runReport,
	}
	cmd.Flags().StringVar(&reportDatastore, "datastore", "wmscan.db", "")
	cmd.Flags().StringVar(&reportFormat, "format", "human", "")
	cmd.Flags().StringVar(&reportColor, "color", "never", "")
	cmd.Flags().IntVar(&reportMaxShown, "max-matches", 3, "")
	return cmd
}

// scannedDatastore runs a scan over scanTarget into a new database.
func scannedDatastore(t *testing.T) (dbPath, target string) {
	t.Helper()
	tmpDir := t.TempDir()
	target = scanTarget(t)
	dbPath = filepath.Join(tmpDir, "scan.db")
	resetScanFlags(t, writePatterns(t, tmpDir), dbPath)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runScan(cmd, []string{target}))
	return dbPath, target
}

func runReportCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	cmd := newReportCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestReportCommand_HumanFormat(t *testing.T) {
	dbPath, target := scannedDatastore(t)

	output, err := runReportCmd(t, "--datastore", dbPath, "--format", "human")
	require.NoError(t, err)

	assert.Contains(t, output, "Finding 1/1")
	assert.Contains(t, output, "Pattern: Secret marker [test]")
	assert.Contains(t, output, `Literal: "SECRET"`)
	assert.Contains(t, output, "Match 1/2")
	assert.Contains(t, output, "Match 2/2")
	assert.Contains(t, output, "File: "+filepath.Join(target, "config.txt"))
	assert.Contains(t, output, "Lines: 2:7-2:13")
	assert.NotContains(t, output, "\x1b[", "color disabled")
}

func TestReportCommand_MaxMatches(t *testing.T) {
	dbPath, _ := scannedDatastore(t)

	output, err := runReportCmd(t, "--datastore", dbPath, "--max-matches", "1")
	require.NoError(t, err)
	assert.Contains(t, output, "Showing 1/2 matches:")
	assert.NotContains(t, output, "Match 2/2")
}

func TestReportCommand_JSONFormat(t *testing.T) {
	dbPath, _ := scannedDatastore(t)

	output, err := runReportCmd(t, "--datastore", dbPath, "--format", "json")
	require.NoError(t, err)

	var findings []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &findings))
	require.Len(t, findings, 1)
	assert.Equal(t, "test.secret", findings[0]["PatternID"])
	assert.Len(t, findings[0]["Matches"], 2)
}

func TestReportCommand_SARIFFormat(t *testing.T) {
	dbPath, _ := scannedDatastore(t)

	output, err := runReportCmd(t, "--datastore", dbPath, "--format", "sarif")
	require.NoError(t, err)

	var report sarif.Report
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	require.Len(t, report.Runs, 1)
	assert.Len(t, report.Runs[0].Tool.Driver.Rules, 2)
	require.Len(t, report.Runs[0].Results, 2)
	assert.Equal(t, 0, report.Runs[0].Results[0].RuleIndex)
}

func TestReportCommand_EmptyDatastore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	s, err := store.New(store.Config{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	output, err := runReportCmd(t, "--datastore", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "No findings.")
}

func TestReportCommand_DefaultDatastore(t *testing.T) {
	dbPath, _ := scannedDatastore(t)

	origDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(origDir)
	require.NoError(t, os.Chdir(filepath.Dir(dbPath)))
	require.NoError(t, os.Rename(dbPath, "wmscan.db"))

	output, err := runReportCmd(t)
	require.NoError(t, err)
	assert.Contains(t, output, "Finding 1/1")
}

func TestReportCommand_Errors(t *testing.T) {
	_, err := runReportCmd(t, "--datastore", "/nonexistent/wmscan.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datastore not found")

	_, err = runReportCmd(t, "--datastore", store.MemoryPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-memory")

	dbPath, _ := scannedDatastore(t)
	_, err = runReportCmd(t, "--datastore", dbPath, "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestFormatSnippetWithParts(t *testing.T) {
	t.Run("short", func(t *testing.T) {
		parts := formatSnippetWithParts([]byte("key = "), []byte("SECRET"), []byte("\n"), 100)
		assert.Equal(t, snippetParts{before: "key = ", matching: "SECRET", after: "\n"}, parts)
	})

	t.Run("truncated around match", func(t *testing.T) {
		before := []byte(strings.Repeat("a", 100))
		after := []byte(strings.Repeat("b", 100))
		parts := formatSnippetWithParts(before, []byte("SECRET"), after, 40)

		assert.Equal(t, "...", parts.prefix)
		assert.Equal(t, "...", parts.suffix)
		assert.Equal(t, "SECRET", parts.matching)
		assert.Equal(t, 14, len(parts.before))
		assert.Equal(t, 14, len(parts.after))
	})

	t.Run("match at start", func(t *testing.T) {
		after := []byte(strings.Repeat("b", 100))
		parts := formatSnippetWithParts(nil, []byte("SECRET"), after, 40)

		assert.Empty(t, parts.prefix)
		assert.Empty(t, parts.before)
		assert.Equal(t, "...", parts.suffix)
	})

	t.Run("long match", func(t *testing.T) {
		parts := formatSnippetWithParts(nil, []byte(strings.Repeat("x", 50)), nil, 20)
		assert.Equal(t, strings.Repeat("x", 14), parts.matching)
		assert.Equal(t, "...", parts.prefix)
	})
}
