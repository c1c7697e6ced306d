// internal/browser/webclient/options.go
package webclient

import (
	"fmt"
	"time"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsbind"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/network"
	"github.com/duonglaiquang/htmlunit/internal/config"
)

// Options configure a WebClient.
type Options struct {
	Version           *features.BrowserVersion
	JavaScriptEnabled bool
	// ThrowExceptionOnScriptError makes page loads fail on the first script error
	// instead of reporting it and carrying on.
	ThrowExceptionOnScriptError bool
	JavaScriptTimeout           time.Duration
	MaxCallStackSize            int
	WebSocketEnabled            bool
	FetchPolyfillEnabled        bool
	Polyfills                   []jsbind.Polyfill
	Network                     network.Config
}

// DefaultOptions emulates Chrome with scripting on and script errors reported only.
func DefaultOptions() Options {
	return Options{
		Version:           features.Chrome,
		JavaScriptEnabled: true,
		WebSocketEnabled:  true,
		Network:           network.Config{Timeout: network.DefaultTimeout},
	}
}

func (o Options) engineOptions() jsexec.Options {
	return jsexec.Options{
		ThrowExceptionOnScriptError: o.ThrowExceptionOnScriptError,
		JavaScriptTimeout:           o.JavaScriptTimeout,
		MaxCallStackSize:            o.MaxCallStackSize,
		Bootstrap: jsbind.Options{
			WebSocketEnabled:     o.WebSocketEnabled,
			FetchPolyfillEnabled: o.FetchPolyfillEnabled,
			Polyfills:            o.Polyfills,
		},
	}
}

func (o Options) networkConfig() network.Config {
	cfg := o.Network
	if cfg.UserAgent == "" {
		cfg.UserAgent = o.Version.UserAgent()
	}
	return cfg
}

// OptionsFromConfig maps the application configuration onto client options.
func OptionsFromConfig(cfg config.Interface) (Options, error) {
	b, e, n := cfg.Browser(), cfg.Engine(), cfg.Network()
	version, err := features.Lookup(b.Version)
	if err != nil {
		return Options{}, fmt.Errorf("browser.version: %w", err)
	}
	return Options{
		Version:                     version,
		JavaScriptEnabled:           b.JavaScriptEnabled,
		ThrowExceptionOnScriptError: b.ThrowExceptionOnScriptError,
		JavaScriptTimeout:           e.JavaScriptTimeout,
		MaxCallStackSize:            e.MaxCallStackSize,
		WebSocketEnabled:            b.WebSocketEnabled,
		FetchPolyfillEnabled:        b.FetchPolyfillEnabled,
		Network: network.Config{
			Timeout:           n.Timeout,
			UserAgent:         n.UserAgent,
			RequestsPerSecond: n.RequestsPerSecond,
			Burst:             n.Burst,
		},
	}, nil
}
