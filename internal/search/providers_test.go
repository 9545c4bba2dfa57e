package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpAPIWireFormat(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"organic_results":[{"title":"Go","link":"https://go.dev","snippet":"lang"}]}`))
	}))
	defer server.Close()

	provider := NewSerpAPIProvider(Config{SerpAPIKey: "sk", SerpAPIEndpoint: server.URL})
	require.True(t, provider.Available())

	results, err := provider.Search(context.Background(), "golang tutorial")
	require.NoError(t, err)

	assert.Equal(t, "golang tutorial", query.Get("q"))
	assert.Equal(t, "google", query.Get("engine"))
	assert.Equal(t, "8", query.Get("num"))
	assert.Equal(t, "sk", query.Get("api_key"))

	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSerpAPINoKey(t *testing.T) {
	provider := NewSerpAPIProvider(Config{})
	assert.False(t, provider.Available())

	_, err := provider.Search(context.Background(), "q")
	assert.Equal(t, KindNoKey, ErrorKind(err))
}

func TestBingWireFormat(t *testing.T) {
	var gotKey string
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		query = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"webPages":{"value":[{"name":"Go","url":"https://go.dev","snippet":"lang"}]}}`))
	}))
	defer server.Close()

	provider := NewBingProvider(Config{BingAPIKey: "bk", BingEndpoint: server.URL})
	require.True(t, provider.Available())

	results, err := provider.Search(context.Background(), "golang")
	require.NoError(t, err)

	assert.Equal(t, "bk", gotKey)
	assert.Equal(t, "golang", query.Get("q"))
	assert.Equal(t, "8", query.Get("count"))

	require.Len(t, results, 1)
	assert.Equal(t, "Go", results[0].Title)
	assert.Equal(t, "https://go.dev", results[0].URL)
}

func TestBingEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"webPages":{"value":[]}}`))
	}))
	defer server.Close()

	provider := NewBingProvider(Config{BingAPIKey: "bk", BingEndpoint: server.URL})
	results, err := provider.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDefaultConfigTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, DefaultConfig().Timeout)
	// Zero-value configs pick up the same per-request timeout.
	assert.Equal(t, 10*time.Second, Config{}.withDefaults().Timeout)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeQuery("  Hello   World  "))
	assert.Equal(t, "a b c", NormalizeQuery("A\tB\nC"))
	assert.Equal(t, "", NormalizeQuery("   "))
	// Normalization is idempotent.
	q := NormalizeQuery("Some  QUERY here")
	assert.Equal(t, q, NormalizeQuery(q))
}
