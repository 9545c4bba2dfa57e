package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// SerperProvider implements the serper.dev Google search API. It is the
// primary provider and the only one with news, shopping, places and image
// verticals.
type SerperProvider struct {
	apiKey     string
	endpoint   string
	config     Config
	httpClient *http.Client
}

// NewSerperProvider creates a serper.dev provider. A missing API key is not
// an error here; Available reports false and searches fail with no_key.
func NewSerperProvider(config Config) *SerperProvider {
	config = config.withDefaults()
	return &SerperProvider{
		apiKey:   config.SerperAPIKey,
		endpoint: config.SerperEndpoint,
		config:   config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier
func (s *SerperProvider) Name() string {
	return BackendSerper
}

// Available reports whether an API key is configured
func (s *SerperProvider) Available() bool {
	return s.apiKey != ""
}

type serperOrganic struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

type serperNews struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Date    string `json:"date,omitempty"`
}

type serperShopping struct {
	Title  string  `json:"title"`
	Link   string  `json:"link"`
	Price  string  `json:"price"`
	Source string  `json:"source"`
	Rating float64 `json:"rating,omitempty"`
}

type serperPlace struct {
	Title    string  `json:"title"`
	Address  string  `json:"address"`
	Phone    string  `json:"phoneNumber,omitempty"`
	Website  string  `json:"website,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Category string  `json:"category,omitempty"`
}

type serperImage struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link"`
	Source   string `json:"source,omitempty"`
}

// Search performs a web search against the /search endpoint.
func (s *SerperProvider) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := s.post(ctx, "/search", query, s.config.WebResults)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Organic []serperOrganic `json:"organic"`
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

// SearchNews performs a news search against the /news endpoint.
func (s *SerperProvider) SearchNews(ctx context.Context, query string) ([]NewsItem, error) {
	body, err := s.post(ctx, "/news", query, s.config.NewsResults)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		News []serperNews `json:"news"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to parse news response", err)
	}
	items := make([]NewsItem, len(parsed.News))
	for i, n := range parsed.News {
		items[i] = NewsItem{
			Title:   n.Title,
			URL:     n.Link,
			Snippet: n.Snippet,
			Source:  n.Source,
			Date:    n.Date,
		}
	}
	return items, nil
}

// SearchShopping performs a product search against the /shopping endpoint.
func (s *SerperProvider) SearchShopping(ctx context.Context, query string) ([]ShoppingItem, error) {
	body, err := s.post(ctx, "/shopping", query, s.config.ShoppingResults)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Shopping []serperShopping `json:"shopping"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to parse shopping response", err)
	}
	items := make([]ShoppingItem, len(parsed.Shopping))
	for i, p := range parsed.Shopping {
		rating := ""
		if p.Rating > 0 {
			rating = strconv.FormatFloat(p.Rating, 'f', -1, 64)
		}
		items[i] = ShoppingItem{
			Title:  p.Title,
			URL:    p.Link,
			Price:  p.Price,
			Source: p.Source,
			Rating: rating,
		}
	}
	return items, nil
}

// SearchPlaces performs a local search against the /places endpoint.
func (s *SerperProvider) SearchPlaces(ctx context.Context, query string) ([]PlaceItem, error) {
	body, err := s.post(ctx, "/places", query, s.config.PlacesResults)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Places []serperPlace `json:"places"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to parse places response", err)
	}
	items := make([]PlaceItem, len(parsed.Places))
	for i, p := range parsed.Places {
		items[i] = PlaceItem{
			Name:     p.Title,
			Address:  p.Address,
			Phone:    p.Phone,
			Website:  p.Website,
			Rating:   p.Rating,
			Category: p.Category,
		}
	}
	return items, nil
}

// SearchImages performs an image search against the /images endpoint.
func (s *SerperProvider) SearchImages(ctx context.Context, query string) ([]ImageItem, error) {
	body, err := s.post(ctx, "/images", query, s.config.ImagesResults)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Images []serperImage `json:"images"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to parse images response", err)
	}
	items := make([]ImageItem, len(parsed.Images))
	for i, img := range parsed.Images {
		items[i] = ImageItem{
			Title:    img.Title,
			ImageURL: img.ImageURL,
			PageURL:  img.Link,
			Source:   img.Source,
		}
	}
	return items, nil
}

// post issues a serper API request and returns the raw body on HTTP 200.
func (s *SerperProvider) post(ctx context.Context, path, query string, num int) ([]byte, error) {
	if s.apiKey == "" {
		return nil, newProviderError(s.Name(), KindNoKey, "serper API key not configured", ErrNoAPIKey)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": num,
	})
	if err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to create request", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, s.mapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(s.Name(), KindParse, "failed to read response body", err)
	}
	return body, nil
}

func (s *SerperProvider) statusError(resp *http.Response) error {
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
	return provErr
}

func (s *SerperProvider) mapNetworkError(err error) error {
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

var _ SpecializedProvider = (*SerperProvider)(nil)
