// File: cmd/root_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagepilot-ai/pagepilot/internal/observability"
)

// resetForTest restores the package-level injection points and clears the
// global logger so tests stay isolated from each other.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	osExit = os.Exit
	runEngineFactory = defaultEngineFactory
	runStoreProvider = newStoreProvider()
	t.Cleanup(func() {
		observability.ResetForTest()
		osExit = os.Exit
		runEngineFactory = defaultEngineFactory
		runStoreProvider = newStoreProvider()
	})
}

// writeTestConfig drops a minimal config file into a temp dir. File logging
// is disabled so tests leave nothing behind in the working directory.
func writeTestConfig(t *testing.T, extra string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "pagepilot.yaml")
	content := "logger:\n  level: error\n  format: console\n  log_file: \"\"\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	return cfgPath
}

// executeCommand runs a pristine root command with the given args and returns
// its combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmdVersionFlag(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "pagepilot version "+Version)
}

func TestRootCmdNoArgsPrintsHelp(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "PagePilot drives real browser sessions")
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "records")
}

func TestVersionCommand(t *testing.T) {
	resetForTest(t)

	out, err := executeCommand(t, "version", "--config", writeTestConfig(t, ""))
	require.NoError(t, err)
	assert.Contains(t, out, "pagepilot version "+Version)
}

func TestRootCmdMissingConfigFile(t *testing.T) {
	resetForTest(t)

	_, err := executeCommand(t, "version", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize configuration")
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	resetForTest(t)

	cfgPath := writeTestConfig(t, "engine:\n  max_sessions: -3\n")
	_, err := executeCommand(t, "version", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
	assert.Contains(t, err.Error(), "engine.max_sessions")
}
