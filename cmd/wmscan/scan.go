package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/praetorian-inc/wmscan/pkg/enum"
	"github.com/praetorian-inc/wmscan/pkg/matcher"
	"github.com/praetorian-inc/wmscan/pkg/patternset"
	"github.com/praetorian-inc/wmscan/pkg/sarif"
	"github.com/praetorian-inc/wmscan/pkg/store"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanPatternsPath  string
	scanSetsInclude   string
	scanSetsExclude   string
	scanAlgorithm     string
	scanBlockSize     int
	scanOutputPath    string
	scanOutputFormat  string
	scanGit           bool
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanIncludeBinary bool
	scanContextLines  int
	scanIncremental   bool
	scanExtract       string
	scanDedupe        string
	scanStoreBlobs    string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for pattern occurrences",
	Long:  "Scan a file, directory, or git repository for exact occurrences of every pattern in the loaded sets",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanPatternsPath, "patterns", "", "Path to a pattern set file or directory (default: builtin sets)")
	scanCmd.Flags().StringVar(&scanSetsInclude, "sets-include", "", "Include sets whose ID matches a regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanSetsExclude, "sets-exclude", "", "Exclude sets whose ID matches a regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanAlgorithm, "algorithm", "", "Override every set's algorithm: wm, dhs")
	scanCmd.Flags().IntVar(&scanBlockSize, "block-size", 0, "Override every set's block size (0 keeps the set's value)")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "wmscan.db", "Output database path")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository (scan blobs of HEAD)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanIncludeBinary, "include-binary", false, "Scan files containing NUL bytes (on whenever a loaded set has non-text literals)")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 2, "Lines of context before/after matches (0 to disable)")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	scanCmd.Flags().StringVar(&scanExtract, "extract", "", "Extract text from archives and documents: comma-separated extensions or \"all\"")
	scanCmd.Flags().StringVar(&scanDedupe, "dedupe", "location", "Match deduplication: location, content, none")
	scanCmd.Flags().StringVar(&scanStoreBlobs, "store-blobs", "", "Directory to keep a copy of every scanned blob in")
}

// scanTally counts what a scan added. Enumerators call back concurrently.
type scanTally struct {
	mu       sync.Mutex
	blobDir  *store.BlobStore // nil unless --store-blobs
	blobs    int
	matches  int
	findings int
	skipped  int
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}
	switch scanOutputFormat {
	case "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}

	dedupe, err := matcher.ParseDedupeMode(scanDedupe)
	if err != nil {
		return err
	}

	sets, err := loadPatternSets(scanPatternsPath, scanSetsInclude, scanSetsExclude)
	if err != nil {
		return fmt.Errorf("loading pattern sets: %w", err)
	}

	m, err := matcher.New(matcher.Config{
		Sets:         sets,
		Algorithm:    scanAlgorithm,
		BlockSize:    scanBlockSize,
		ContextLines: scanContextLines,
		Dedupe:       dedupe,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	s, err := store.New(store.Config{Path: scanOutputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	for _, set := range sets {
		if err := s.AddPatternSet(set); err != nil {
			return fmt.Errorf("storing pattern set %s: %w", set.ID, err)
		}
	}

	includeBinary := scanIncludeBinary || hasBinaryLiterals(sets)
	logger.Debug("enumerating", "target", target, "git", scanGit, "include_binary", includeBinary)
	enumerator := createEnumerator(target, scanGit, includeBinary)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tally := &scanTally{}
	if scanStoreBlobs != "" {
		tally.blobDir, err = store.NewBlobStore(scanStoreBlobs)
		if err != nil {
			return err
		}
	}
	err = enumerator.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		matches, err := m.MatchContext(ctx, content, blobID)
		if err != nil {
			return fmt.Errorf("matching content: %w", err)
		}
		return tally.record(s, content, blobID, prov, matches)
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	logger.Debug("scan finished", "target", target, "blobs", tally.blobs, "matches", tally.matches)

	// Keep stdout pure JSON for the machine-readable formats.
	summary := cmd.OutOrStdout()
	if scanOutputFormat != "human" {
		summary = cmd.ErrOrStderr()
	}
	if scanIncremental {
		fmt.Fprintf(summary, "Scan complete: %d matches, %d findings (%d blobs skipped)\n", tally.matches, tally.findings, tally.skipped)
	} else {
		fmt.Fprintf(summary, "Scan complete: %d matches, %d findings\n", tally.matches, tally.findings)
	}
	fmt.Fprintf(summary, "Results stored in: %s\n", scanOutputPath)

	switch scanOutputFormat {
	case "json":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputMatches(cmd, matches)
	case "sarif":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputSARIF(cmd, s, sets, matches)
	default:
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		return outputFindings(cmd, findings)
	}
}

// record stores one scanned blob and its matches.
func (t *scanTally) record(s store.Store, content []byte, blobID types.BlobID, prov types.Provenance, matches []*types.Match) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if scanIncremental {
		exists, err := s.BlobExists(blobID)
		if err != nil {
			return fmt.Errorf("checking blob: %w", err)
		}
		if exists {
			t.skipped++
			return nil
		}
	}

	if err := s.AddBlob(blobID, int64(len(content))); err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	if err := s.AddProvenance(blobID, prov); err != nil {
		return fmt.Errorf("storing provenance: %w", err)
	}
	if t.blobDir != nil {
		if _, err := t.blobDir.Put(content); err != nil {
			return fmt.Errorf("storing blob content: %w", err)
		}
	}
	t.blobs++

	for _, match := range matches {
		exists, err := s.FindingExists(match.FindingID)
		if err != nil {
			return fmt.Errorf("checking finding: %w", err)
		}
		if !exists {
			t.findings++
		}
		if err := store.RecordMatches(s, []*types.Match{match}); err != nil {
			return fmt.Errorf("storing match: %w", err)
		}
		t.matches++
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadPatternSets loads sets from path, or the builtin sets when path is
// empty, and applies the include/exclude filters.
func loadPatternSets(path, include, exclude string) ([]*types.PatternSet, error) {
	loader := patternset.NewLoader()

	var sets []*types.PatternSet
	var err error
	if path != "" {
		sets, err = loader.LoadPath(path)
	} else {
		sets, err = loader.LoadBuiltin()
	}
	if err != nil {
		return nil, err
	}

	if include != "" || exclude != "" {
		sets, err = patternset.Filter(sets, patternset.FilterConfig{
			Include: patternset.ParsePatterns(include),
			Exclude: patternset.ParsePatterns(exclude),
		})
		if err != nil {
			return nil, fmt.Errorf("filtering pattern sets: %w", err)
		}
	}

	if len(sets) == 0 {
		return nil, fmt.Errorf("no pattern sets selected")
	}
	return sets, nil
}

// hasBinaryLiterals reports whether any set looks for non-text bytes, in
// which case binary files must reach the matcher.
func hasBinaryLiterals(sets []*types.PatternSet) bool {
	for _, set := range sets {
		if set.HasBinaryLiterals() {
			return true
		}
	}
	return false
}

func createEnumerator(target string, useGit, includeBinary bool) enum.Enumerator {
	config := enum.Config{
		Root:           target,
		IncludeHidden:  scanIncludeHidden,
		IncludeBinary:  includeBinary,
		MaxFileSize:    scanMaxFileSize,
		FollowSymlinks: false,
		Extract:        scanExtract,
		Logger:         logger,
	}

	if useGit {
		return enum.NewGitEnumerator(config)
	}
	return enum.NewFilesystemEnumerator(config)
}

func outputMatches(cmd *cobra.Command, matches []*types.Match) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(matches)
}

func outputFindings(cmd *cobra.Command, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	fmt.Fprintf(out, "\nFindings:\n")
	for i, f := range findings {
		fmt.Fprintf(out, "%d. %s %q (%d matches)\n", i+1, f.PatternID, f.Literal, len(f.Matches))
	}
	return nil
}

// outputSARIF writes matches as a SARIF 2.1.0 log.
func outputSARIF(cmd *cobra.Command, s store.Store, sets []*types.PatternSet, matches []*types.Match) error {
	report := sarif.NewReport()
	for _, set := range sets {
		report.AddPatternSet(set)
	}

	paths := make(map[types.BlobID]string)
	for _, match := range matches {
		filePath, ok := paths[match.BlobID]
		if !ok {
			filePath = provenancePath(s, match.BlobID)
			paths[match.BlobID] = filePath
		}
		report.AddResult(match, filePath)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(jsonBytes); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

// provenancePath returns the first recorded path of a blob, or its hex ID.
func provenancePath(s store.Store, blobID types.BlobID) string {
	provs, err := s.GetProvenance(blobID)
	if err != nil || len(provs) == 0 {
		return blobID.Hex()
	}
	return provs[0].Path()
}
