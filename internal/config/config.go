// Package config loads and validates the research-core configuration: the
// settings the desktop shell persists for the user plus the tuning knobs of
// every subsystem (search, browser pool, page cache, fast path, rate
// limits).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clawdia/internal/browser"
	"clawdia/internal/fastpath"
	"clawdia/internal/pagecache"
	"clawdia/internal/ratelimit"
	"clawdia/internal/research"
	"clawdia/internal/search"
)

// Settings keys written by the desktop shell. Values support ${ENV_VAR}
// expansion so developer machines can keep keys in the environment.
const (
	KeyAnthropicAPIKey = "anthropicApiKey"
	KeySelectedModel   = "selectedModel"
	KeySerperAPIKey    = "serper_api_key"
	KeySerpAPIKey      = "serpapi_api_key"
	KeyBingAPIKey      = "bing_api_key"
	KeySearchBackend   = "search_backend"
	KeyAutonomyMode    = "autonomyMode"
)

// Autonomy modes.
const (
	AutonomyRestricted   = "restricted"
	AutonomyUnrestricted = "unrestricted"
)

// Settings is the key-value store the shell shares with the research core.
type Settings map[string]string

// Get returns a setting with ${ENV_VAR} placeholders expanded.
func (s Settings) Get(key string) string {
	return os.ExpandEnv(s[key])
}

// Config is the root configuration.
type Config struct {
	Port     int      `json:"port,omitempty"`
	DataDir  string   `json:"data_dir,omitempty"`
	Settings Settings `json:"settings,omitempty"`

	Search     search.Config                     `json:"search,omitempty"`
	Browser    browser.PoolConfig                `json:"browser,omitempty"`
	PageCache  pagecache.Config                  `json:"page_cache,omitempty"`
	FastPath   fastpath.Config                   `json:"fast_path,omitempty"`
	RateLimits map[string]ratelimit.BucketConfig `json:"rate_limits,omitempty"`
	Budget     research.Budget                   `json:"budget,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:     8200,
		Settings: Settings{},
		Search:   search.DefaultConfig(),
		Browser:  browser.DefaultPoolConfig(),
		FastPath: fastpath.DefaultConfig(),
		Budget:   research.DefaultBudget(),
	}
}

// Load reads a config file. A missing file yields the defaults; a present
// file is merged over them. Settings flow into the subsystem configs after
// env expansion.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.applySettings()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.expandTilde()
	cfg.applySettings()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// applySettings copies shell-managed settings into the subsystem configs.
// Explicit subsystem values in the config file win over settings.
func (c *Config) applySettings() {
	if c.Settings == nil {
		c.Settings = Settings{}
	}
	if c.Search.SerperAPIKey == "" {
		c.Search.SerperAPIKey = c.Settings.Get(KeySerperAPIKey)
	}
	if c.Search.SerpAPIKey == "" {
		c.Search.SerpAPIKey = c.Settings.Get(KeySerpAPIKey)
	}
	if c.Search.BingAPIKey == "" {
		c.Search.BingAPIKey = c.Settings.Get(KeyBingAPIKey)
	}
	if c.Search.Backend == "" {
		c.Search.Backend = c.Settings.Get(KeySearchBackend)
	}
	if c.Settings.Get(KeyAutonomyMode) == AutonomyUnrestricted {
		c.FastPath.Unrestricted = true
	}
}

// AnthropicAPIKey returns the key for the host LLM loop.
func (c *Config) AnthropicAPIKey() string {
	return c.Settings.Get(KeyAnthropicAPIKey)
}

// SelectedModel returns the model the shell selected, if any.
func (c *Config) SelectedModel() string {
	return c.Settings.Get(KeySelectedModel)
}

// RateLimitConfigs returns the configured buckets, defaults when unset.
func (c *Config) RateLimitConfigs() map[string]ratelimit.BucketConfig {
	if len(c.RateLimits) == 0 {
		return ratelimit.DefaultConfig()
	}
	return c.RateLimits
}

// Validate checks the whole tree.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	switch mode := c.Settings.Get(KeyAutonomyMode); mode {
	case "", AutonomyRestricted, AutonomyUnrestricted:
	default:
		return fmt.Errorf("unknown autonomy mode: %q", mode)
	}
	return nil
}

// expandTilde replaces a leading "~/" with the user's home directory in
// path-valued fields.
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	c.DataDir = expand(c.DataDir)
	c.PageCache.Path = expand(c.PageCache.Path)
	c.FastPath.ExtraRegistryFile = expand(c.FastPath.ExtraRegistryFile)
	for i, root := range c.FastPath.AllowedRoots {
		c.FastPath.AllowedRoots[i] = expand(root)
	}
}
