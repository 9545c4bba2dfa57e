package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serperServer records the last request and serves a canned body per path.
func serperServer(t *testing.T, responses map[string]string) (*httptest.Server, *http.Request, *map[string]any) {
	t.Helper()
	var lastReq http.Request
	lastBody := map[string]any{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastReq = *r
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastBody))
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	return server, &lastReq, &lastBody
}

func TestSerperSearchWireFormat(t *testing.T) {
	server, lastReq, lastBody := serperServer(t, map[string]string{
		"/search": `{"organic":[{"title":"Go","link":"https://go.dev","snippet":"The Go language","position":1}]}`,
	})
	defer server.Close()

	provider := NewSerperProvider(Config{SerperAPIKey: "test-key", SerperEndpoint: server.URL})
	require.True(t, provider.Available())

	results, err := provider.Search(context.Background(), "golang")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, lastReq.Method)
	assert.Equal(t, "test-key", lastReq.Header.Get("X-API-KEY"))
	assert.Equal(t, "application/json", lastReq.Header.Get("Content-Type"))
	assert.Equal(t, "golang", (*lastBody)["q"])
	assert.Equal(t, float64(8), (*lastBody)["num"])

	require.Len(t, results, 1)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, "The Go language", results[0].Snippet)
	assert.Equal(t, SourceOrganic, results[0].SourceKind)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSerperVerticalNums(t *testing.T) {
	cases := []struct {
		path string
		num  float64
		call func(p *SerperProvider) error
	}{
		{"/news", 8, func(p *SerperProvider) error {
			_, err := p.SearchNews(context.Background(), "q")
			return err
		}},
		{"/shopping", 10, func(p *SerperProvider) error {
			_, err := p.SearchShopping(context.Background(), "q")
			return err
		}},
		{"/places", 5, func(p *SerperProvider) error {
			_, err := p.SearchPlaces(context.Background(), "q")
			return err
		}},
		{"/images", 6, func(p *SerperProvider) error {
			_, err := p.SearchImages(context.Background(), "q")
			return err
		}},
	}

	responses := map[string]string{
		"/news":     `{"news":[{"title":"t","link":"https://n","snippet":"s","source":"src","date":"today"}]}`,
		"/shopping": `{"shopping":[{"title":"t","link":"https://s","price":"$5","source":"shop","rating":4.5}]}`,
		"/places":   `{"places":[{"title":"t","address":"1 Main St","rating":4.2}]}`,
		"/images":   `{"images":[{"title":"t","imageUrl":"https://img","link":"https://page"}]}`,
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			server, lastReq, lastBody := serperServer(t, responses)
			defer server.Close()

			provider := NewSerperProvider(Config{SerperAPIKey: "k", SerperEndpoint: server.URL})
			require.NoError(t, tc.call(provider))
			assert.Equal(t, tc.path, lastReq.URL.Path)
			assert.Equal(t, tc.num, (*lastBody)["num"])
		})
	}
}

func TestSerperErrorKinds(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		provider := NewSerperProvider(Config{})
		assert.False(t, provider.Available())

		_, err := provider.Search(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, KindNoKey, ErrorKind(err))
	})

	t.Run("http status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		provider := NewSerperProvider(Config{SerperAPIKey: "k", SerperEndpoint: server.URL})
		_, err := provider.Search(context.Background(), "q")
		require.Error(t, err)
		assert.Equal(t, KindHTTPStatus, ErrorKind(err))

		var provErr *ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, http.StatusForbidden, provErr.StatusCode)
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		provider := NewSerperProvider(Config{SerperAPIKey: "k", SerperEndpoint: server.URL})
		_, err := provider.Search(context.Background(), "q")
		assert.Equal(t, KindRateLimited, ErrorKind(err))
	})

	t.Run("parse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		provider := NewSerperProvider(Config{SerperAPIKey: "k", SerperEndpoint: server.URL})
		_, err := provider.Search(context.Background(), "q")
		assert.Equal(t, KindParse, ErrorKind(err))
	})

	t.Run("empty is not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"organic":[]}`))
		}))
		defer server.Close()

		provider := NewSerperProvider(Config{SerperAPIKey: "k", SerperEndpoint: server.URL})
		results, err := provider.Search(context.Background(), "q")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
