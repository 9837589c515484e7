package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/praetorian-inc/wmscan/pkg/matcher"
	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/praetorian-inc/wmscan/pkg/wumanber"
	"github.com/spf13/cobra"
)

var (
	patternsPath      string
	patternsFormat    string
	patternsAlgorithm string
	patternsBlockSize int
	patternsTables    bool
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage pattern sets",
	Long:  "Commands for listing and inspecting pattern sets",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available pattern sets",
	Long:  "Display every loaded pattern set with its algorithm and pattern count",
	RunE:  runPatternsList,
}

var patternsInspectCmd = &cobra.Command{
	Use:   "inspect <set-id>",
	Short: "Show the compiled tables of a pattern set",
	Long:  "Compile one pattern set and print its derived constants and table sizes, optionally the tables themselves",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsInspect,
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsInspectCmd)
	patternsCmd.PersistentFlags().StringVar(&patternsPath, "patterns", "", "Path to a pattern set file or directory (default: builtin sets)")
	patternsCmd.PersistentFlags().StringVar(&patternsFormat, "format", "table", "Output format: table, json")

	patternsInspectCmd.Flags().StringVar(&patternsAlgorithm, "algorithm", "", "Override the set's algorithm: wm, dhs")
	patternsInspectCmd.Flags().IntVar(&patternsBlockSize, "block-size", 0, "Override the set's block size")
	patternsInspectCmd.Flags().BoolVar(&patternsTables, "tables", false, "Also print the shift, prefix and slip tables")
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	sets, err := loadPatternSets(patternsPath, "", "")
	if err != nil {
		return fmt.Errorf("loading pattern sets: %w", err)
	}

	switch patternsFormat {
	case "json":
		return outputSetsJSON(cmd, sets)
	case "table":
		return outputSetsTable(cmd, sets)
	default:
		return fmt.Errorf("unknown output format: %s", patternsFormat)
	}
}

// setInspection is the JSON form of patterns inspect.
type setInspection struct {
	ID     string           `json:"id"`
	Stats  wumanber.Stats   `json:"stats"`
	Tables *wumanber.Tables `json:"tables,omitempty"`
}

func runPatternsInspect(cmd *cobra.Command, args []string) error {
	sets, err := loadPatternSets(patternsPath, "", "")
	if err != nil {
		return fmt.Errorf("loading pattern sets: %w", err)
	}

	var set *types.PatternSet
	for _, s := range sets {
		if s.ID == args[0] {
			set = s
			break
		}
	}
	if set == nil {
		return fmt.Errorf("pattern set not found: %s", args[0])
	}

	engine, err := matcher.CompileSet(set, patternsAlgorithm, patternsBlockSize)
	if err != nil {
		return err
	}

	insp := setInspection{ID: set.ID, Stats: engine.Stats()}
	if patternsTables {
		t := engine.Tables()
		insp.Tables = &t
	}

	switch patternsFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(insp)
	case "table":
		outputInspection(cmd, insp)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", patternsFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// setListing is the JSON form of one set in patterns list. Literals are
// printed as strings rather than base64.
type setListing struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Algorithm string           `json:"algorithm"`
	BlockSize int              `json:"block_size,omitempty"`
	Keywords  []string         `json:"keywords,omitempty"`
	Patterns  []patternListing `json:"patterns"`
}

type patternListing struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Literal string `json:"literal"`
}

func outputSetsJSON(cmd *cobra.Command, sets []*types.PatternSet) error {
	listing := make([]setListing, 0, len(sets))
	for _, s := range sets {
		l := setListing{
			ID:        s.ID,
			Name:      s.Name,
			Algorithm: setAlgorithm(s),
			BlockSize: s.BlockSize,
			Keywords:  s.Keywords,
			Patterns:  make([]patternListing, len(s.Patterns)),
		}
		for i, p := range s.Patterns {
			l.Patterns[i] = patternListing{ID: p.ID, Name: p.Name, Literal: string(p.Literal)}
		}
		listing = append(listing, l)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(listing)
}

func setAlgorithm(s *types.PatternSet) string {
	if s.Algorithm == "" {
		return wumanber.KindBase.String()
	}
	return s.Algorithm
}

func outputSetsTable(cmd *cobra.Command, sets []*types.PatternSet) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tAlgorithm\tPatterns\n")
	fmt.Fprintf(w, "--\t----\t---------\t--------\n")

	for _, s := range sets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, setAlgorithm(s), len(s.Patterns))
	}

	return nil
}

func outputInspection(cmd *cobra.Command, insp setInspection) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	st := insp.Stats
	fmt.Fprintf(w, "Set:\t%s\n", insp.ID)
	fmt.Fprintf(w, "Algorithm:\t%s\n", st.Kind)
	fmt.Fprintf(w, "Patterns:\t%d\n", st.Patterns)
	fmt.Fprintf(w, "Shortest (m):\t%d\n", st.M)
	fmt.Fprintf(w, "Block size (b):\t%d\n", st.B)
	fmt.Fprintf(w, "Other:\t%d\n", st.Other)
	fmt.Fprintf(w, "Shift blocks:\t%d\n", st.Blocks)
	fmt.Fprintf(w, "Trigger blocks:\t%d\n", st.Triggers)
	fmt.Fprintf(w, "Prefix buckets:\t%d\n", st.PrefixBuckets)
	if st.Kind == wumanber.KindDHS.String() {
		fmt.Fprintf(w, "Slip entries:\t%d\n", st.SlipEntries)
	}
	w.Flush()

	if insp.Tables == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nShift:\n")
	writeIntTable(out, insp.Tables.Shift)
	fmt.Fprintf(out, "\nPrefix:\n")
	for _, suffix := range sortedKeys(insp.Tables.Prefix) {
		bucket := insp.Tables.Prefix[suffix]
		for _, prefix := range sortedKeys(bucket) {
			fmt.Fprintf(out, "  %q %q -> %s\n", suffix, prefix, quoteAll(bucket[prefix]))
		}
	}
	if insp.Tables.Slip != nil {
		fmt.Fprintf(out, "\nSlip:\n")
		writeIntTable(out, insp.Tables.Slip)
	}
}

func writeIntTable(w io.Writer, table map[string]int) {
	for _, blk := range sortedKeys(table) {
		fmt.Fprintf(w, "  %q %d\n", blk, table[blk])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
