package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/qaforge/internal/scheduler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile := filepath.Join(t.TempDir(), "qaforge.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("generation:\n  backend: local\nresource:\n  min_battery_percent: 0\n  resume_battery_percent: 0\n"), 0o644))

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", cfgFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "qaforge dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestRunThenStatus(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"),
		[]byte("package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n"), 0o644))
	db := filepath.Join(t.TempDir(), "samples.db")

	out, err := execute(t, "--db", db, "--log-level", "error", "run", src)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "processed: 1")

	out, err = execute(t, "--db", db, "--log-level", "error", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Samples:        1")
	assert.Contains(t, out, "(completed,")
}

func TestRunRequiresRoot(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &scheduler.Summary{
		RunID: "r1", Total: 5, Skipped: 2, Processed: 2, Deferred: 1,
		Stopped: true, Duration: 1500 * time.Millisecond,
	})
	out := buf.String()
	assert.Contains(t, out, "stopped")
	assert.Contains(t, out, "deferred:  1")
	assert.NotContains(t, out, "abandoned")
}
