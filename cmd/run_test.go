// File: cmd/run_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<html><head><title>t</title></head><body>"+body+"</body></html>"), 0o600))
	return path
}

func TestRunCommand_PrintsAlerts(t *testing.T) {
	path := writePage(t, `<script>alert('hello'); alert(1 + 1);</script>`)

	out, errOut, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n2\n", out)
	assert.Empty(t, errOut)
}

func TestRunCommand_ReportsScriptErrors(t *testing.T) {
	path := writePage(t, `<script>undefinedFunction();</script><script>alert('after');</script>`)

	out, errOut, err := execute(t, "run", path)
	require.NoError(t, err)
	assert.Equal(t, "after\n", out)
	assert.Contains(t, errOut, "script error:")
	assert.Contains(t, errOut, "undefinedFunction")
}

func TestRunCommand_ThrowOnError(t *testing.T) {
	path := writePage(t, `<script>undefinedFunction();</script><script>alert('after');</script>`)

	out, _, err := execute(t, "run", "--throw-on-error", path)
	require.Error(t, err)
	assert.Empty(t, out)
}

func TestRunCommand_Wait(t *testing.T) {
	path := writePage(t, `<script>setTimeout(function() { alert('timer'); }, 10);</script>`)

	out, _, err := execute(t, "run", "--wait", "500ms", path)
	require.NoError(t, err)
	assert.Equal(t, "timer\n", out)
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.html"))
	require.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	u, err := parseTarget("https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", u.String())

	u, err = parseTarget("about:blank")
	require.NoError(t, err)
	assert.Equal(t, "about", u.Scheme)

	u, err = parseTarget("page.html")
	require.NoError(t, err)
	assert.Equal(t, "file", u.Scheme)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(u.Path)))
	assert.Equal(t, "page.html", filepath.Base(u.Path))
}
