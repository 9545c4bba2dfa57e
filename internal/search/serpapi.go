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

// SerpAPIProvider implements the serpapi.com Google engine. It is the
// secondary provider raced against serper by the consensus engine.
type SerpAPIProvider struct {
	apiKey     string
	endpoint   string
	config     Config
	httpClient *http.Client
}

// NewSerpAPIProvider creates a serpapi.com provider.
func NewSerpAPIProvider(config Config) *SerpAPIProvider {
	config = config.withDefaults()
	return &SerpAPIProvider{
		apiKey:   config.SerpAPIKey,
		endpoint: config.SerpAPIEndpoint,
		config:   config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier
func (s *SerpAPIProvider) Name() string {
	return BackendSerpAPI
}

// Available reports whether an API key is configured
func (s *SerpAPIProvider) Available() bool {
	return s.apiKey != ""
}

type serpAPIOrganic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Search performs a web search via GET search.json?engine=google.
func (s *SerpAPIProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if s.apiKey == "" {
		return nil, newProviderError(s.Name(), KindNoKey, "serpapi API key not configured", ErrNoAPIKey)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("engine", "google")
	params.Set("num", strconv.Itoa(s.config.WebResults))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to create request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		provErr := &ProviderError{
			Provider:   s.Name(),
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
		return nil, newProviderError(s.Name(), KindParse, "failed to read response body", err)
	}

	var parsed struct {
		Organic []serpAPIOrganic `json:"organic_results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to parse search response", err)
	}
	results := make([]Result, len(parsed.Organic))
	for i, r := range parsed.Organic {
		results[i] = Result{
			Title:      r.Title,
			URL:        r.Link,
			Snippet:    r.Snippet,
			SourceKind: SourceOrganic,
			Rank:       i + 1,
			Date:       r.Date,
		}
	}
	return results, nil
}

func (s *SerpAPIProvider) mapNetworkError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return newProviderError(s.Name(), KindCancelled, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newProviderError(s.Name(), KindTimeout, "request timed out", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newProviderError(s.Name(), KindTimeout, "request timed out", err)
	}
	return newProviderError(s.Name(), KindHTTPStatus, "network request failed", err)
}

var _ Provider = (*SerpAPIProvider)(nil)
