package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// BingProvider implements the Bing Web Search v7 API, the paid web fallback
// used when neither Google-backed provider is configured or healthy.
type BingProvider struct {
	apiKey     string
	endpoint   string
	config     Config
	httpClient *http.Client
}

// NewBingProvider creates a Bing Web Search provider.
func NewBingProvider(config Config) *BingProvider {
	config = config.withDefaults()
	return &BingProvider{
		apiKey:   config.BingAPIKey,
		endpoint: config.BingEndpoint,
		config:   config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier
func (b *BingProvider) Name() string {
	return BackendBing
}

// Available reports whether an API key is configured
func (b *BingProvider) Available() bool {
	return b.apiKey != ""
}

type bingWebPage struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	DateLastCrawl string `json:"dateLastCrawled,omitempty"`
}

// Search performs a web search via GET v7.0/search.
func (b *BingProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if b.apiKey == "" {
		return nil, newProviderError(b.Name(), KindNoKey, "bing API key not configured", ErrNoAPIKey)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.config.WebResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, newProviderError(b.Name(), KindParse, "failed to create request", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, b.mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		provErr := &ProviderError{
			Provider:   b.Name(),
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("API request failed: %s", string(body)),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			provErr.Kind = KindRateLimited
		}
		return nil, provErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(b.Name(), KindParse, "failed to read response body", err)
	}

	var parsed struct {
		WebPages struct {
			Value []bingWebPage `json:"value"`
		} `json:"webPages"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(b.Name(), KindParse, "failed to parse search response", err)
	}
	results := make([]Result, len(parsed.WebPages.Value))
	for i, p := range parsed.WebPages.Value {
		results[i] = Result{
			Title:      p.Name,
			URL:        p.URL,
			Snippet:    p.Snippet,
			SourceKind: SourceOrganic,
			Rank:       i + 1,
		}
	}
	return results, nil
}

func (b *BingProvider) mapNetworkError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return newProviderError(b.Name(), KindCancelled, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newProviderError(b.Name(), KindTimeout, "request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(b.Name(), KindTimeout, "request timed out", err)
	}
	return newProviderError(b.Name(), KindHTTPStatus, "network request failed", err)
}

var _ Provider = (*BingProvider)(nil)
