// File: cmd/root_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_VersionFlag(t *testing.T) {
	out, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "htmlunit version dev")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "htmlunit dev (go")
}

func TestRootCmd_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  version: netscape\n"), 0o600))

	_, _, err := execute(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "netscape")
}

func TestRootCmd_UnreadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: [unterminated\n"), 0o600))

	_, _, err := execute(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}
