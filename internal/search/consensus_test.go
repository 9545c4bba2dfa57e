package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a canned in-memory provider for consensus tests.
type stubProvider struct {
	name      string
	available bool
	results   []Result
	err       error
	calls     int
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }
func (s *stubProvider) Search(ctx context.Context, query string) ([]Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func snippetResults(snippets ...string) []Result {
	results := make([]Result, len(snippets))
	for i, s := range snippets {
		results[i] = Result{Title: "t", URL: "https://example.com", Snippet: s, Rank: i + 1}
	}
	return results
}

func TestConsensusNumericAgreement(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true,
		results: snippetResults("The plan costs $19.99/mo with a free trial")}
	secondary := &stubProvider{name: "serpapi", available: true,
		results: snippetResults("Pricing starts at $19.99/mo for individuals")}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "plan pricing")
	require.NoError(t, err)

	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.Contains(t, result.ConsensusText, "$19.99")
	assert.Equal(t, "serper+serpapi", result.Source)
	assert.NotEmpty(t, result.Primary)
	assert.NotEmpty(t, result.Secondary)
}

func TestConsensusKeyFactAgreement(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true,
		results: snippetResults("The museum opens daily at nine in the morning hours")}
	secondary := &stubProvider{name: "serpapi", available: true,
		results: snippetResults("Every day the museum opens for morning visitors during daily hours")}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "museum hours")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
	assert.NotEmpty(t, result.ConsensusText)
}

func TestConsensusOnlyPrimarySucceeds(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true, results: snippetResults("answer text here")}
	secondary := &stubProvider{name: "serpapi", available: true,
		err: newProviderError("serpapi", KindHTTPStatus, "boom", errors.New("boom"))}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "some question")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceMedium, result.Confidence)
	assert.Equal(t, "serper", result.Source)
}

func TestConsensusPrimaryFailsFallsBackToSecondary(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true,
		err: newProviderError("serper", KindHTTPStatus, "down", errors.New("down"))}
	secondary := &stubProvider{name: "serpapi", available: true, results: snippetResults("fallback answer")}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Equal(t, "serpapi", result.Source)
	// The raced secondary result is reused, not re-fetched.
	assert.Equal(t, 1, secondary.calls)
}

func TestConsensusEmptyPrimaryFallsBack(t *testing.T) {
	// The provider layer reports emptiness as an empty slice with no error;
	// the engine classifies that and moves to the next backend.
	primary := &stubProvider{name: "serper", available: true, results: []Result{}}
	secondary := &stubProvider{name: "serpapi", available: true, results: snippetResults("secondary answer")}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "serpapi", result.Source)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.NotEmpty(t, result.Primary)
}

func TestConsensusSequentialFallbackChain(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true, err: errors.New("down")}
	secondary := &stubProvider{name: "serpapi", available: true, err: errors.New("down")}
	third := &stubProvider{name: "bing", available: true, results: snippetResults("bing answer")}

	engine := NewEngine(Config{}, []Provider{primary, secondary, third}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, result.Confidence)
	assert.Equal(t, "bing", result.Source)
}

func TestConsensusAllProvidersFail(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true, err: errors.New("down")}
	secondary := &stubProvider{name: "serpapi", available: true, err: errors.New("down")}

	engine := NewEngine(Config{}, []Provider{primary, secondary}, nil)
	defer engine.Close()

	_, err := engine.Search(context.Background(), "question")
	assert.ErrorIs(t, err, ErrAllProvidersFail)
}

func TestConsensusSkipsUnavailableProviders(t *testing.T) {
	unavailable := &stubProvider{name: "serper", available: false}
	available := &stubProvider{name: "serpapi", available: true, results: snippetResults("answer")}

	engine := NewEngine(Config{}, []Provider{unavailable, available}, nil)
	defer engine.Close()

	result, err := engine.Search(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "serpapi", result.Source)
	assert.Equal(t, 0, unavailable.calls)
}

func TestConsensusCacheHit(t *testing.T) {
	primary := &stubProvider{name: "serper", available: true, results: snippetResults("answer")}

	engine := NewEngine(Config{}, []Provider{primary}, nil)
	defer engine.Close()

	first, err := engine.Search(context.Background(), "Cached  Query")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Different spacing and case normalize to the same cache key.
	second, err := engine.Search(context.Background(), "cached query")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, primary.calls)
}

func TestBuildProvidersPinnedBackend(t *testing.T) {
	providers := BuildProviders(Config{Backend: BackendBing}, nil)
	require.NotEmpty(t, providers)
	assert.Equal(t, BackendBing, providers[0].Name())
	assert.Len(t, providers, 3) // nil pool omits playwright
}

func TestMatcherTables(t *testing.T) {
	t.Run("numeric token intersection", func(t *testing.T) {
		text, confidence := matchConsensus(
			snippetResults("It holds 42 items total"),
			snippetResults("Capacity listed as 42 units"))
		assert.Equal(t, ConfidenceHigh, confidence)
		assert.Contains(t, text, "42")
	})

	t.Run("high implies both sets carry the token", func(t *testing.T) {
		primarySnips := []string{"Release happened on 2024-03-01 officially"}
		secondarySnips := []string{"Officially shipped 2024-03-01 worldwide"}
		text, confidence := matchConsensus(snippetResults(primarySnips...), snippetResults(secondarySnips...))
		require.Equal(t, ConfidenceHigh, confidence)
		require.NotEmpty(t, text)
		shared := extractNumericTokens([]string{text})
		secondaryTokens := extractNumericTokens(secondarySnips)
		found := false
		for token := range shared {
			if secondaryTokens[token] {
				found = true
			}
		}
		assert.True(t, found, "consensus text token must appear in both bags")
	})

	t.Run("top snippet overlap is medium", func(t *testing.T) {
		text, confidence := matchConsensus(
			snippetResults("wild alpine flowers bloom during late spring season"),
			snippetResults("alpine flowers bloom during spring season"))
		assert.Equal(t, ConfidenceMedium, confidence)
		assert.NotEmpty(t, text)
	})

	t.Run("no agreement is low with no text", func(t *testing.T) {
		text, confidence := matchConsensus(
			snippetResults("completely unrelated gardening subject matter"),
			snippetResults("quantum computing hardware discussion thread"))
		assert.Equal(t, ConfidenceLow, confidence)
		assert.Empty(t, text)
	})
}

func TestKeyFactSentenceFilter(t *testing.T) {
	sentences := keyFactSentences([]string{
		"Tiny", // too short
		"The store opens at dawn every day",
		"No fact verb in this particular sentence fragment at all zzz qqq www",
	})
	require.Len(t, sentences, 1)
	assert.Contains(t, sentences[0], "opens")
}
