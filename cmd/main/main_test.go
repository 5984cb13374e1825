package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	geneText   = "gagggagaggcgagaaa"
	dickensTxt = "it was the best of times, it was the worst of times."
)

// writeTestConfig writes a config file whose database lives in a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Server.DatabasePath = filepath.Join(dir, "data", "kgram.db")
	cfg.Server.LogLevel = "error"

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "kgram.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// newTestApp opens an App over a fresh database and closes it with the test.
func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(writeTestConfig(t), strings.NewReader(""), io.Discard, io.Discard)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

// runCommand runs the CLI against configPath and returns what it wrote to stdout.
func runCommand(t *testing.T, configPath, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	args = append([]string{"-config", configPath}, args...)
	err := run(context.Background(), args, strings.NewReader(stdin), &out, io.Discard)
	return out.String(), err
}
