package search

import (
	"fmt"
	"time"
)

// Backend identifiers accepted in configuration.
const (
	BackendSerper     = "serper"
	BackendSerpAPI    = "serpapi"
	BackendBing       = "bing"
	BackendPlaywright = "playwright"
)

// Config configures the search subsystem: provider credentials, backend
// preference, per-vertical result counts and consensus cache behavior.
type Config struct {
	SerperAPIKey string `json:"serper_api_key,omitempty"`
	SerpAPIKey   string `json:"serpapi_api_key,omitempty"`
	BingAPIKey   string `json:"bing_api_key,omitempty"`

	// Backend pins a specific provider. Empty means automatic selection
	// in preference order: serper, serpapi, bing, playwright.
	Backend string `json:"backend,omitempty"`

	SerperEndpoint  string `json:"serper_endpoint,omitempty"`
	SerpAPIEndpoint string `json:"serpapi_endpoint,omitempty"`
	BingEndpoint    string `json:"bing_endpoint,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`

	WebResults      int `json:"web_results,omitempty"`
	NewsResults     int `json:"news_results,omitempty"`
	ShoppingResults int `json:"shopping_results,omitempty"`
	PlacesResults   int `json:"places_results,omitempty"`
	ImagesResults   int `json:"images_results,omitempty"`

	// Consensus cache TTLs by result class.
	GeneralTTL     time.Duration `json:"general_ttl,omitempty"`
	SpecializedTTL time.Duration `json:"specialized_ttl,omitempty"`
	NewsTTL        time.Duration `json:"news_ttl,omitempty"`

	CacheCapacity int `json:"cache_capacity,omitempty"`
}

// DefaultConfig returns the default search configuration
func DefaultConfig() Config {
	return Config{
		SerperEndpoint:  "https://google.serper.dev",
		SerpAPIEndpoint: "https://serpapi.com/search.json",
		BingEndpoint:    "https://api.bing.microsoft.com/v7.0/search",
		Timeout:         10 * time.Second,
		WebResults:      8,
		NewsResults:     8,
		ShoppingResults: 10,
		PlacesResults:   5,
		ImagesResults:   6,
		GeneralTTL:      5 * time.Minute,
		SpecializedTTL:  30 * time.Minute,
		NewsTTL:         1 * time.Hour,
		CacheCapacity:   100,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SerperEndpoint == "" {
		c.SerperEndpoint = def.SerperEndpoint
	}
	if c.SerpAPIEndpoint == "" {
		c.SerpAPIEndpoint = def.SerpAPIEndpoint
	}
	if c.BingEndpoint == "" {
		c.BingEndpoint = def.BingEndpoint
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.WebResults == 0 {
		c.WebResults = def.WebResults
	}
	if c.NewsResults == 0 {
		c.NewsResults = def.NewsResults
	}
	if c.ShoppingResults == 0 {
		c.ShoppingResults = def.ShoppingResults
	}
	if c.PlacesResults == 0 {
		c.PlacesResults = def.PlacesResults
	}
	if c.ImagesResults == 0 {
		c.ImagesResults = def.ImagesResults
	}
	if c.GeneralTTL == 0 {
		c.GeneralTTL = def.GeneralTTL
	}
	if c.SpecializedTTL == 0 {
		c.SpecializedTTL = def.SpecializedTTL
	}
	if c.NewsTTL == 0 {
		c.NewsTTL = def.NewsTTL
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = def.CacheCapacity
	}
	return c
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendSerper, BackendSerpAPI, BackendBing, BackendPlaywright:
	default:
		return fmt.Errorf("unknown search backend: %q", c.Backend)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("search timeout must not be negative")
	}
	if c.CacheCapacity < 0 {
		return fmt.Errorf("search cache capacity must not be negative")
	}
	return nil
}
