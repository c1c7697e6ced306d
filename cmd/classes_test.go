// File: cmd/classes_test.go
package cmd

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

func TestClassesCommand_Table(t *testing.T) {
	out, _, err := execute(t, "classes")
	require.NoError(t, err)

	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "Window")
	assert.Contains(t, out, "classes for Chrome 131 (chrome)")
}

func TestClassesCommand_JSON(t *testing.T) {
	out, _, err := execute(t, "classes", "--browser", "ff", "--json")
	require.NoError(t, err)

	var doc struct {
		Browser string                  `json:"browser"`
		Classes []jsconfig.ClassSummary `json:"classes"`
	}
	require.NoError(t, jsoniter.UnmarshalFromString(out, &doc))
	assert.Equal(t, "firefox", doc.Browser)
	require.NotEmpty(t, doc.Classes)

	names := make(map[string]bool, len(doc.Classes))
	for _, c := range doc.Classes {
		names[c.Name] = true
	}
	assert.True(t, names["Window"])
	assert.True(t, names["Document"])
}

func TestClassesCommand_UnknownBrowser(t *testing.T) {
	_, _, err := execute(t, "classes", "--browser", "mosaic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mosaic")
}
