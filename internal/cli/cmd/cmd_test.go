package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/rfs/internal/config"
	"github.com/berrythewa/rfs/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := config.DefaultConfig()
	c.SystemPaths = config.ConfigPaths{
		BaseDir:      dir,
		ActiveConfig: filepath.Join(dir, "config.yaml"),
		DataDir:      dir,
		JournalFile:  filepath.Join(dir, "journal.db"),
		LogDir:       filepath.Join(dir, "logs"),
		RunDir:       filepath.Join(dir, "run"),
	}
	c.Journal.Path = c.SystemPaths.JournalFile
	c.Daemon.PIDFile = filepath.Join(c.SystemPaths.RunDir, "rfsd.pid")

	prev := cfg
	SetConfig(c)
	t.Cleanup(func() { SetConfig(prev) })
	return c
}

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestHistoryCmd(t *testing.T) {
	c := testConfig(t)

	assert.Equal(t, "No requests recorded.\n", run(t, newHistoryCmd()))

	j, err := storage.NewJournal(storage.JournalConfig{DBPath: c.Journal.Path})
	require.NoError(t, err)
	require.NoError(t, j.Append(&storage.Entry{Peer: "127.0.0.1:5000", Command: "pwd", OK: true}))
	require.NoError(t, j.Append(&storage.Entry{Peer: "127.0.0.1:5001", Command: "get", Args: []string{"a.txt"}, OK: true, Bytes: 12}))
	require.NoError(t, j.Append(&storage.Entry{Peer: "127.0.0.1:5002", Command: "cd", Args: []string{"/x"}}))

	t.Run("Text", func(t *testing.T) {
		out := run(t, newHistoryCmd(), "--no-colors", "-n", "2")
		assert.Contains(t, out, "Showing 2 of 3 requests")
		assert.Contains(t, out, "cd /x  failed")
		assert.Contains(t, out, "get a.txt  ok")
		assert.NotContains(t, out, "pwd")
	})

	t.Run("JSON", func(t *testing.T) {
		var entries []storage.Entry
		require.NoError(t, json.Unmarshal([]byte(run(t, newHistoryCmd(), "--json", "-n", "0")), &entries))
		require.Len(t, entries, 3)
		assert.Equal(t, "cd", entries[0].Command)
		assert.NotEmpty(t, entries[0].ID)
	})

	t.Run("Prune", func(t *testing.T) {
		run(t, newHistoryCmd(), "--prune", "1")
		n, err := j.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestStatusAndStopWhenNotRunning(t *testing.T) {
	c := testConfig(t)

	out := run(t, newStatusCmd())
	assert.Contains(t, out, "Status: stopped")

	var st map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(run(t, newStatusCmd(), "--json")), &st))
	assert.Equal(t, "stopped", st["status"])

	assert.Equal(t, "rfsd is not running\n", run(t, newStopCmd()))

	require.NoError(t, os.MkdirAll(c.SystemPaths.RunDir, 0755))
	require.NoError(t, os.WriteFile(c.Daemon.PIDFile, []byte("garbage"), 0644))
	cmd := newStatusCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)
	assert.Error(t, cmd.Execute())
}

func TestConfigCmds(t *testing.T) {
	c := testConfig(t)

	t.Run("ShowYAML", func(t *testing.T) {
		var decoded config.Config
		require.NoError(t, yaml.Unmarshal([]byte(run(t, newConfigCmd(), "show")), &decoded))
		assert.Equal(t, c.Server.Port, decoded.Server.Port)
		assert.Equal(t, c.Journal.Path, decoded.Journal.Path)
	})

	t.Run("ShowJSON", func(t *testing.T) {
		out := run(t, newConfigCmd(), "show", "--format", "json")
		assert.True(t, json.Valid([]byte(out)))
	})

	t.Run("Path", func(t *testing.T) {
		out := run(t, newConfigCmd(), "path")
		assert.Contains(t, out, c.SystemPaths.ActiveConfig)
		assert.Contains(t, out, c.Daemon.PIDFile)
	})

	t.Run("Init", func(t *testing.T) {
		out := run(t, newConfigCmd(), "init")
		assert.Contains(t, out, "Configuration initialized at: "+c.SystemPaths.ActiveConfig)
		assert.FileExists(t, c.SystemPaths.ActiveConfig)

		cmd := newConfigCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"init"})
		assert.Error(t, cmd.Execute(), "existing config needs --force")

		run(t, newConfigCmd(), "init", "--force")
	})
}

func TestVersionCmd(t *testing.T) {
	SetVersionInfo("1.2.3", "2024-01-01", "abc123")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "none") })

	out := run(t, NewVersionCmd("rfsd"))
	assert.Contains(t, out, "rfsd\n")
	assert.Contains(t, out, "Version:    1.2.3")
	assert.Contains(t, out, "Commit:     abc123")
}
