package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/praetorian-inc/wmscan/pkg/wumanber"
	"github.com/spf13/cobra"
)

var (
	matchPatterns  []string
	matchAlgorithm string
	matchBlockSize int
	matchFormat    string
)

var matchCmd = &cobra.Command{
	Use:   "match <text|->",
	Short: "Search text for ad-hoc patterns",
	Long: `Search a string (or stdin when the argument is "-") for every --pattern
literal and print the positions of each occurrence.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().StringArrayVarP(&matchPatterns, "pattern", "p", nil, "Literal to search for (repeatable)")
	matchCmd.Flags().StringVar(&matchAlgorithm, "algorithm", "wm", "Algorithm: wm, dhs")
	matchCmd.Flags().IntVar(&matchBlockSize, "block-size", 0, "Block size (0 = min(shortest pattern, 2))")
	matchCmd.Flags().StringVar(&matchFormat, "format", "text", "Output format: text, json")
}

func runMatch(cmd *cobra.Command, args []string) error {
	if len(matchPatterns) == 0 {
		return fmt.Errorf("at least one --pattern is required")
	}

	text := args[0]
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	kind, err := wumanber.ParseKind(matchAlgorithm)
	if err != nil {
		return err
	}
	mt, err := wumanber.NewString(matchPatterns, wumanber.Config{Kind: kind, BlockSize: matchBlockSize})
	if err != nil {
		return fmt.Errorf("building matcher: %w", err)
	}
	logger.Debug("matcher built", "kind", mt.Kind(), "m", mt.M(), "b", mt.B(), "patterns", mt.Len())

	result := mt.Search([]byte(text))

	switch matchFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		printResult(cmd.OutOrStdout(), mt, result)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", matchFormat)
	}
}

// printResult writes one block per distinct pattern in construction order.
func printResult(w io.Writer, mt *wumanber.Matcher, result wumanber.Result) {
	for i := 0; i < mt.Len(); i++ {
		p := string(mt.Pattern(i))
		spans := result[p]
		fmt.Fprintf(w, "%q: %d\n", p, len(spans))
		for _, sp := range spans {
			fmt.Fprintf(w, "  [%d, %d)\n", sp.Start, sp.End)
		}
	}
	fmt.Fprintf(w, "total: %d\n", result.Total())
}
