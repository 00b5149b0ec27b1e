package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfeed/blockfeed/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "blockfeed", "version output should name the binary")
	assert.Contains(t, out, Version)
}

func TestInitCommand_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, err := execute(t, "init", "--path", path)
	require.NoError(t, err, "init should succeed on a fresh path")
	assert.Contains(t, out, path)

	// The generated file must round-trip through the loader.
	cfg, err := config.Load(path)
	require.NoError(t, err, "generated config should load")
	assert.NoError(t, cfg.Validate(), "generated config should validate")
	assert.Equal(t, "rpc", cfg.Source.Kind)
}

func TestInitCommand_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("# existing"), 0o644))

	_, err := execute(t, "init", "--path", path)
	require.Error(t, err, "init should not clobber an existing file")
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--path", path, "--force")
	assert.NoError(t, err, "init --force should overwrite")
}

func TestConfigShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, err := execute(t, "init", "--path", path)
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "config", "show", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "endpoint: http://localhost:8545")

	out, err = execute(t, "--config", path, "config", "show", "--format", "toml")
	require.NoError(t, err)
	assert.Contains(t, out, "[source]")

	_, err = execute(t, "--config", path, "config", "show", "--format", "json")
	assert.Error(t, err, "unsupported format should be rejected")
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.toml")
	bad := filepath.Join(dir, "bad.toml")

	require.NoError(t, os.WriteFile(good,
		[]byte("[source]\nkind = \"rpc\"\nendpoint = \"http://localhost:8545\"\n"), 0o644))
	require.NoError(t, os.WriteFile(bad,
		[]byte("[source]\nkind = \"btc\"\nendpoint = \"http://localhost:8545\"\n"), 0o644))

	out, err := execute(t, "--config", good, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	_, err = execute(t, "--config", bad, "config", "validate")
	assert.Error(t, err, "invalid kind should fail validation")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	// No endpoint configured anywhere: run must refuse to start.
	_, err := execute(t, "run")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
