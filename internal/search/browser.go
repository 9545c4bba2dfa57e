package search

import (
	"context"

	"clawdia/internal/browser"
)

// SERPScraper is the slice of the page pool the scraping fallback consumes:
// a Google SERP load through a discovery view.
type SERPScraper interface {
	SearchGoogle(ctx context.Context, query string) ([]browser.SerpResult, error)
	Available() bool
}

// BrowserProvider is the no-key fallback: it scrapes the Google SERP through
// the headless page pool. Results carry no API ranking signals beyond order.
type BrowserProvider struct {
	pool SERPScraper
}

// NewBrowserProvider creates the scraping fallback over a page pool.
func NewBrowserProvider(pool SERPScraper) *BrowserProvider {
	return &BrowserProvider{pool: pool}
}

// Name returns the provider identifier
func (p *BrowserProvider) Name() string {
	return BackendPlaywright
}

// Available reports whether the page pool is usable
func (p *BrowserProvider) Available() bool {
	return p.pool != nil && p.pool.Available()
}

// Search scrapes the Google SERP for the query.
func (p *BrowserProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if !p.Available() {
		return nil, newProviderError(p.Name(), KindUnavailable, "browser pool not available", ErrBrowserFallback)
	}

	items, err := p.pool.SearchGoogle(ctx, query)
	if err != nil {
		return nil, newProviderError(p.Name(), KindParse, "SERP scrape failed", err)
	}

	results := make([]Result, len(items))
	for i, item := range items {
		results[i] = Result{
			Title:      item.Title,
			URL:        item.URL,
			Snippet:    item.Snippet,
			SourceKind: SourceScrape,
			Rank:       i + 1,
		}
	}
	return results, nil
}

var _ Provider = (*BrowserProvider)(nil)
