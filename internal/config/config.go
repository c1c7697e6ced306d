// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HTMLUNIT_BROWSER_VERSION.
const EnvPrefix = "HTMLUNIT"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Engine() EngineConfig
	Network() NetworkConfig

	SetBrowserVersion(string)
	SetBrowserThrowExceptionOnScriptError(bool)
	SetEngineJavaScriptTimeout(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	EngineCfg  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Engine() EngineConfig   { return c.EngineCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }

func (c *Config) SetBrowserVersion(v string) { c.BrowserCfg.Version = v }
func (c *Config) SetBrowserThrowExceptionOnScriptError(b bool) {
	c.BrowserCfg.ThrowExceptionOnScriptError = b
}
func (c *Config) SetEngineJavaScriptTimeout(d time.Duration) { c.EngineCfg.JavaScriptTimeout = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig selects the emulated browser and how its scripts behave.
type BrowserConfig struct {
	// Version is a browser nickname: chrome, edge, firefox or firefox-esr.
	Version                     string `mapstructure:"version" yaml:"version"`
	JavaScriptEnabled           bool   `mapstructure:"javascript_enabled" yaml:"javascript_enabled"`
	ThrowExceptionOnScriptError bool   `mapstructure:"throw_exception_on_script_error" yaml:"throw_exception_on_script_error"`
	WebSocketEnabled            bool   `mapstructure:"websocket_enabled" yaml:"websocket_enabled"`
	FetchPolyfillEnabled        bool   `mapstructure:"fetch_polyfill_enabled" yaml:"fetch_polyfill_enabled"`
}

// EngineConfig tunes the script engine.
type EngineConfig struct {
	// JavaScriptTimeout bounds one top-level script call; zero disables it.
	JavaScriptTimeout time.Duration `mapstructure:"javascript_timeout" yaml:"javascript_timeout"`
	MaxCallStackSize  int           `mapstructure:"max_call_stack_size" yaml:"max_call_stack_size"`
}

// NetworkConfig controls page and script downloads.
type NetworkConfig struct {
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CacheDir          string        `mapstructure:"cache_dir" yaml:"cache_dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "htmlunit")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.version", "chrome")
	v.SetDefault("browser.javascript_enabled", true)
	v.SetDefault("browser.throw_exception_on_script_error", false)
	v.SetDefault("browser.websocket_enabled", true)
	v.SetDefault("browser.fetch_polyfill_enabled", false)

	// -- Engine --
	v.SetDefault("engine.javascript_timeout", "0s")
	v.SetDefault("engine.max_call_stack_size", 0)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.user_agent", "")
	v.SetDefault("network.requests_per_second", 0.0)
	v.SetDefault("network.burst", 1)
	v.SetDefault("network.cache_dir", "~/.htmlunit/cache")
}

// BindEnv wires HTMLUNIT_ prefixed environment variables into v. Nested keys use
// underscores: HTMLUNIT_ENGINE_JAVASCRIPT_TIMEOUT overrides engine.javascript_timeout.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	dir, err := ExpandPath(cfg.NetworkCfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("network.cache_dir: %w", err)
	}
	cfg.NetworkCfg.CacheDir = dir
	if cfg.LoggerCfg.LogFile != "" {
		if cfg.LoggerCfg.LogFile, err = ExpandPath(cfg.LoggerCfg.LogFile); err != nil {
			return nil, fmt.Errorf("logger.log_file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPath resolves a leading ~ and cleans the result. Empty stays empty.
func ExpandPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(expanded), nil
}

var knownVersions = map[string]bool{"chrome": true, "edge": true, "firefox": true, "firefox-esr": true}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if !knownVersions[strings.ToLower(c.BrowserCfg.Version)] {
		return fmt.Errorf("browser.version %q is not one of chrome, edge, firefox, firefox-esr", c.BrowserCfg.Version)
	}
	if c.EngineCfg.JavaScriptTimeout < 0 {
		return fmt.Errorf("engine.javascript_timeout must not be negative")
	}
	if c.EngineCfg.MaxCallStackSize < 0 {
		return fmt.Errorf("engine.max_call_stack_size must not be negative")
	}
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.NetworkCfg.RequestsPerSecond < 0 {
		return fmt.Errorf("network.requests_per_second must not be negative")
	}
	if c.NetworkCfg.Burst <= 0 {
		return fmt.Errorf("network.burst must be a positive integer")
	}
	return nil
}
