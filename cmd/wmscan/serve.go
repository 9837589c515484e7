package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/wmscan/pkg/scanner"
	"github.com/praetorian-inc/wmscan/pkg/serve"
	"github.com/spf13/cobra"
)

var (
	servePatternsPath string
	serveAlgorithm    string
	serveBlockSize    int
	serveContextLines int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming scan server",
	Long: `Run wmscan as a long-lived streaming server that accepts scan requests
via stdin and writes matches to stdout using NDJSON.

The process compiles its pattern sets once at startup and processes requests
until stdin closes, a close request arrives, or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&servePatternsPath, "patterns", "", "Path to a pattern set file (default: builtin sets)")
	serveCmd.Flags().StringVar(&serveAlgorithm, "algorithm", "", "Override every set's algorithm: wm, dhs")
	serveCmd.Flags().IntVar(&serveBlockSize, "block-size", 0, "Override every set's block size")
	serveCmd.Flags().IntVar(&serveContextLines, "context-lines", 2, "Lines of context before/after matches")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	patternSets := "builtin"
	if servePatternsPath != "" {
		data, err := os.ReadFile(servePatternsPath)
		if err != nil {
			return fmt.Errorf("reading pattern sets: %w", err)
		}
		patternSets = string(data)
	}

	core, err := scanner.NewCoreWithConfig(scanner.Config{
		PatternSets:  patternSets,
		Algorithm:    serveAlgorithm,
		BlockSize:    serveBlockSize,
		ContextLines: serveContextLines,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	return srv.Run(ctx)
}
