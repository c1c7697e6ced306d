package webclient_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/webclient"
	"github.com/duonglaiquang/htmlunit/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetBrowserVersion("ff-esr")
	cfg.SetEngineJavaScriptTimeout(3 * time.Second)
	cfg.NetworkCfg.RequestsPerSecond = 4

	opts, err := webclient.OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Same(t, features.FirefoxESR, opts.Version)
	assert.True(t, opts.JavaScriptEnabled)
	assert.True(t, opts.WebSocketEnabled)
	assert.Equal(t, 3*time.Second, opts.JavaScriptTimeout)
	assert.Equal(t, 4.0, opts.Network.RequestsPerSecond)

	cfg.SetBrowserVersion("lynx")
	_, err = webclient.OptionsFromConfig(cfg)
	assert.ErrorContains(t, err, "browser.version")
}

func TestDefaultOptions(t *testing.T) {
	opts := webclient.DefaultOptions()
	assert.Same(t, features.Chrome, opts.Version)
	assert.True(t, opts.JavaScriptEnabled)
	assert.False(t, opts.ThrowExceptionOnScriptError)
}
