package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dirsync/internal/config"
	"github.com/roach88/dirsync/internal/store"
)

const testRulesYAML = `
source:
  cmdb:
    kind: yaml
    key_column: hostname
    path: hosts.yaml
rule:
  hosts:
    object_type: host
    purge: true
    properties:
      - source: cmdb
        destination: object_name
        expression: ${hostname}
      - source: cmdb
        destination: address
        expression: ${ip}
`

const testHostsYAML = `
- hostname: www1
  ip: 10.0.0.1
- hostname: www2
  ip: 10.0.0.2
`

// fixture is a rules directory and an empty database wired into a
// RootOptions.
type fixture struct {
	opts     *RootOptions
	rulesDir string
	dbPath   string
}

func newFixture(t *testing.T, format string) *fixture {
	t.Helper()
	rulesDir := t.TempDir()
	writeTestFile(t, filepath.Join(rulesDir, "rules.yaml"), testRulesYAML)
	writeTestFile(t, filepath.Join(rulesDir, "hosts.yaml"), testHostsYAML)

	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "dirsync.db")
	cfg.RulesDir = rulesDir

	return &fixture{
		opts:     &RootOptions{Format: format, Config: cfg},
		rulesDir: rulesDir,
		dbPath:   cfg.DBPath,
	}
}

// setHosts replaces the rows of the cmdb source.
func (f *fixture) setHosts(t *testing.T, content string) {
	t.Helper()
	writeTestFile(t, filepath.Join(f.rulesDir, "hosts.yaml"), content)
}

// openStore opens the fixture database for inspection.
func (f *fixture) openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), f.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dirsync", cmd.Use)
	assert.Contains(t, cmd.Long, "activity log")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"validate"}, {"run"}, {"fields"}, {"columns"}, {"history"}, {"replay"}, {"test"},
		{"log", "latest"}, {"log", "show"}, {"log", "list"}, {"log", "verify"},
	}

	for _, path := range commands {
		t.Run(filepath.Join(path...), func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(t, cmd, "--format", "xml", "fields", "host")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestConfigLoadedOnce(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DIRSYNC_ACTOR", "nightly")

	opts := &RootOptions{Verbose: true}
	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, "nightly", cfg.Actor)
	assert.Equal(t, "debug", cfg.LogLevel)

	again, err := opts.config()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestConfigMissingFile(t *testing.T) {
	opts := &RootOptions{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := opts.config()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
