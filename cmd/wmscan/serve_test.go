package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func resetServeFlags(path string) {
	servePatternsPath = path
	serveAlgorithm = ""
	serveBlockSize = 0
	serveContextLines = 2
}

func TestServeCommand_Integration(t *testing.T) {
	resetServeFlags(writePatterns(t, t.TempDir()))

	pr, pw := io.Pipe()
	out := &bytes.Buffer{}

	testCmd := &cobra.Command{
		Use:  "serve",
		RunE: runServe,
	}
	testCmd.SetIn(pr)
	testCmd.SetOut(out)
	testCmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() {
		done <- testCmd.Execute()
	}()

	_, err := pw.Write([]byte(`{"type":"scan","payload":{"content":"x = SECRET","source":"req"}}` + "\n"))
	require.NoError(t, err)
	_, err = pw.Write([]byte(`{"type":"close","payload":{}}` + "\n"))
	require.NoError(t, err)
	pw.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("command did not exit in time")
	}

	var kinds []string
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var resp struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		kinds = append(kinds, resp.Type)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, "ready", kinds[0])
	assert.Contains(t, kinds, "scan")
	assert.Contains(t, out.String(), "test.secret")
}

func TestServeCommand_MissingPatterns(t *testing.T) {
	resetServeFlags("/nonexistent/patterns.yaml")

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(""))
	cmd.SetOut(&bytes.Buffer{})
	err := runServe(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading pattern sets")
}
