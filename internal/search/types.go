package search

import (
	"context"
	"strings"
)

// SourceKind labels where a result came from so downstream ranking can
// distinguish organic hits from news, shopping, places and image entries.
const (
	SourceOrganic  = "organic"
	SourceNews     = "news"
	SourceShopping = "shopping"
	SourcePlaces   = "places"
	SourceImages   = "images"
	SourceScrape   = "scrape"
)

// Result is a single web search hit in provider-neutral form.
type Result struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	SourceKind string `json:"source_kind"`
	Rank       int    `json:"rank"`
	Date       string `json:"date,omitempty"`
}

// NewsItem is a single news search hit.
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Date    string `json:"date,omitempty"`
}

// ShoppingItem is a single shopping search hit.
type ShoppingItem struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Price  string `json:"price"`
	Source string `json:"source"`
	Rating string `json:"rating,omitempty"`
}

// PlaceItem is a single local-places hit.
type PlaceItem struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Phone    string  `json:"phone,omitempty"`
	Website  string  `json:"website,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Category string  `json:"category,omitempty"`
}

// ImageItem is a single image search hit.
type ImageItem struct {
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	PageURL  string `json:"page_url"`
	Source   string `json:"source,omitempty"`
}

// Provider performs web searches against one backend.
type Provider interface {
	// Name returns the provider identifier ("serper", "serpapi", "bing", "browser")
	Name() string

	// Available reports whether the provider is configured and usable
	Available() bool

	// Search performs a web search and returns ranked results. An empty
	// list is not an error; callers decide what emptiness means.
	Search(ctx context.Context, query string) ([]Result, error)
}

// SpecializedProvider extends Provider with vertical search endpoints.
// Only serper implements all four.
type SpecializedProvider interface {
	Provider

	SearchNews(ctx context.Context, query string) ([]NewsItem, error)
	SearchShopping(ctx context.Context, query string) ([]ShoppingItem, error)
	SearchPlaces(ctx context.Context, query string) ([]PlaceItem, error)
	SearchImages(ctx context.Context, query string) ([]ImageItem, error)
}

// Confidence labels for consensus responses.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// NormalizeQuery canonicalizes a query for cache keys: lowercase, collapse
// internal whitespace runs to single spaces, trim the ends.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
