package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want *BrowserVersion
	}{
		{"chrome", Chrome},
		{"CHROME", Chrome},
		{"edge", Edge},
		{"firefox", Firefox},
		{"ff", Firefox},
		{"firefox-esr", FirefoxESR},
		{"ff-esr", FirefoxESR},
		{"", Best},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Same(t, tt.want, got)
		})
	}

	_, err := Lookup("netscape")
	assert.Error(t, err)
}

func TestPredefinedFeatureTable(t *testing.T) {
	assert.True(t, Chrome.HasFeature(JSErrorStackTraceLimit))
	assert.True(t, Edge.HasFeature(JSPresentationRequest))
	assert.False(t, Firefox.HasFeature(JSPresentationRequest))
	assert.True(t, Firefox.HasFeature(JSWindowInstallTriggerNull))
	assert.False(t, Chrome.HasFeature(JSWindowInstallTriggerNull))
	assert.False(t, FirefoxESR.HasFeature(JSURLSearchParamsSize))
	assert.True(t, Firefox.IsFirefox())
	assert.True(t, FirefoxESR.IsFirefox())

	var nilVersion *BrowserVersion
	assert.False(t, nilVersion.HasFeature(JSErrorStackTraceLimit))
}

func TestBuilder(t *testing.T) {
	t.Run("does not mutate the base", func(t *testing.T) {
		custom := NewBuilder(Chrome).Disable(JSErrorStackTraceLimit).Build()
		assert.False(t, custom.HasFeature(JSErrorStackTraceLimit))
		assert.True(t, Chrome.HasFeature(JSErrorStackTraceLimit))
		assert.Equal(t, Chrome.Family(), custom.Family())
	})

	t.Run("generated nicknames follow the feature set", func(t *testing.T) {
		a := NewBuilder(Firefox).Enable(SubmitInputDefaultValueIfValueNotDefined).Build()
		b := NewBuilder(Firefox).Enable(SubmitInputDefaultValueIfValueNotDefined).Build()
		c := NewBuilder(Firefox).Build()
		assert.Equal(t, a.Nickname(), b.Nickname())
		assert.NotEqual(t, a.Nickname(), c.Nickname())
		assert.NotEqual(t, Firefox.Nickname(), a.Nickname())
	})

	t.Run("explicit nickname", func(t *testing.T) {
		v := NewBuilder(Edge).Nickname("edge-legacy").UserAgent("UA").Build()
		assert.Equal(t, "edge-legacy", v.Nickname())
		assert.Equal(t, "UA", v.UserAgent())
	})
}

func TestGates(t *testing.T) {
	assert.True(t, Gate(nil).Allows(Firefox))
	assert.True(t, Has(JSPresentationRequest).Allows(Chrome))
	assert.False(t, Has(JSPresentationRequest, JSWindowInstallTriggerNull).Allows(Chrome))
	assert.True(t, Not(Has(JSPresentationRequest)).Allows(Firefox))
	assert.True(t, Families(FamilyChrome, FamilyEdge).Allows(Edge))
	assert.False(t, Families(FamilyChrome, FamilyEdge).Allows(FirefoxESR))
}
