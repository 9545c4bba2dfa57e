package search

import (
	"context"
	"fmt"
	"log"
	"time"

	"clawdia/internal/ratelimit"
)

// Acquirer is the slice of the rate limiter the engine consumes.
type Acquirer interface {
	Acquire(ctx context.Context, service string) error
}

// ConsensusResult is the engine's answer to one search: both raced result
// sets plus the agreement verdict. Confidence high guarantees a non-empty
// ConsensusText supported by both sets.
type ConsensusResult struct {
	Primary       []Result  `json:"primary"`
	Secondary     []Result  `json:"secondary,omitempty"`
	Source        string    `json:"source"`
	ConsensusText string    `json:"consensus_text,omitempty"`
	Confidence    string    `json:"confidence"`
	Cached        bool      `json:"cached"`
	Timestamp     time.Time `json:"timestamp"`
}

// Results returns the winning result set for callers that only want hits.
func (r *ConsensusResult) Results() []Result {
	return r.Primary
}

// Engine races search providers and scores their agreement. One engine per
// process; it owns the result cache and the usage tracker.
type Engine struct {
	config    Config
	providers []Provider // preference order
	limiter   Acquirer
	cache     *ResultCache
	usage     *UsageTracker
}

// NewEngine creates a consensus engine over preference-ordered providers.
// A nil limiter disables admission control (tests).
func NewEngine(config Config, providers []Provider, limiter Acquirer) *Engine {
	config = config.withDefaults()
	e := &Engine{
		config:    config,
		providers: providers,
		limiter:   limiter,
		cache:     NewResultCache(config.CacheCapacity),
		usage:     NewUsageTracker(),
	}
	e.cache.StartCleanup(time.Minute)
	return e
}

// BuildProviders constructs the standard provider set in preference order
// serper, serpapi, bing, playwright. A pinned Backend moves that provider to
// the front. A nil pool omits the scraping fallback.
func BuildProviders(config Config, pool SERPScraper) []Provider {
	providers := []Provider{
		NewSerperProvider(config),
		NewSerpAPIProvider(config),
		NewBingProvider(config),
	}
	if pool != nil {
		providers = append(providers, NewBrowserProvider(pool))
	}
	if config.Backend == "" {
		return providers
	}
	ordered := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.Name() == config.Backend {
			ordered = append(ordered, p)
			break
		}
	}
	for _, p := range providers {
		if p.Name() != config.Backend {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// Close stops the cache cleanup loop.
func (e *Engine) Close() {
	e.cache.Stop()
}

// EngineStats bundles usage and cache counters for status surfaces.
type EngineStats struct {
	Providers map[string]ProviderUsage `json:"providers"`
	Cache     CacheStats               `json:"cache"`
}

// Stats returns a snapshot of provider usage and cache effectiveness.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Providers: e.usage.Stats(),
		Cache:     e.cache.Stats(),
	}
}

// Search runs one consensus search: cache lookup, concurrent primary and
// secondary race, sequential fallback on primary failure, agreement scoring
// when both succeed.
func (e *Engine) Search(ctx context.Context, query string) (*ConsensusResult, error) {
	key := NormalizeQuery(query)
	if key == "" {
		return nil, ErrInvalidQuery
	}
	if cached, ok := e.cache.Get(key).(*ConsensusResult); ok {
		hit := *cached
		hit.Cached = true
		return &hit, nil
	}

	available := e.availableProviders()
	if len(available) == 0 {
		return nil, fmt.Errorf("no search provider configured: %w", ErrAllProvidersFail)
	}

	primary := available[0]
	var secondary Provider
	if len(available) > 1 {
		secondary = available[1]
	}

	type outcome struct {
		results []Result
		err     error
	}
	primaryCh := make(chan outcome, 1)
	secondaryCh := make(chan outcome, 1)

	go func() {
		results, err := e.callProvider(ctx, primary, query)
		primaryCh <- outcome{results, err}
	}()
	if secondary != nil {
		go func() {
			results, err := e.callProvider(ctx, secondary, query)
			secondaryCh <- outcome{results, err}
		}()
	} else {
		secondaryCh <- outcome{nil, ErrProviderDisabled}
	}

	primaryOut := <-primaryCh
	secondaryOut := <-secondaryCh

	// Providers report emptiness as a plain empty slice; for racing and
	// fallback purposes the engine treats it like a typed empty failure so
	// the next backend gets a chance.
	if primaryOut.err == nil && len(primaryOut.results) == 0 {
		primaryOut.err = newProviderError(primary.Name(), KindEmpty, "no results", ErrNoResults)
	}
	if secondary != nil && secondaryOut.err == nil && len(secondaryOut.results) == 0 {
		secondaryOut.err = newProviderError(secondary.Name(), KindEmpty, "no results", ErrNoResults)
	}

	var result *ConsensusResult
	switch {
	case primaryOut.err != nil:
		result = e.fallback(ctx, query, available, secondaryOut.results, secondaryOut.err)
		if result == nil {
			return nil, fmt.Errorf("primary %s and all fallbacks failed: %w", primary.Name(), ErrAllProvidersFail)
		}

	case secondary == nil || secondaryOut.err != nil:
		if secondaryOut.err != nil && secondary != nil {
			log.Printf("[Consensus] secondary %s failed: %v", secondary.Name(), secondaryOut.err)
		}
		result = &ConsensusResult{
			Primary:    primaryOut.results,
			Source:     primary.Name(),
			Confidence: ConfidenceMedium,
		}

	default:
		text, confidence := matchConsensus(primaryOut.results, secondaryOut.results)
		result = &ConsensusResult{
			Primary:       primaryOut.results,
			Secondary:     secondaryOut.results,
			Source:        primary.Name() + "+" + secondary.Name(),
			ConsensusText: text,
			Confidence:    confidence,
		}
	}

	result.Timestamp = time.Now()
	e.cache.Set(key, result, e.config.GeneralTTL)
	return result, nil
}

// fallback walks the remaining providers sequentially after a primary
// failure. The raced secondary result is reused when it already succeeded.
// Fallback hits are always low confidence.
func (e *Engine) fallback(ctx context.Context, query string, available []Provider, racedSecondary []Result, racedErr error) *ConsensusResult {
	if racedErr == nil && len(racedSecondary) > 0 {
		return &ConsensusResult{
			Primary:    racedSecondary,
			Source:     available[1].Name(),
			Confidence: ConfidenceLow,
		}
	}
	for i, p := range available {
		if i < 2 { // primary raced, secondary handled above
			continue
		}
		results, err := e.callProvider(ctx, p, query)
		if err != nil {
			log.Printf("[Consensus] fallback %s failed: %v", p.Name(), err)
			continue
		}
		if len(results) == 0 {
			continue
		}
		return &ConsensusResult{
			Primary:    results,
			Source:     p.Name(),
			Confidence: ConfidenceLow,
		}
	}
	return nil
}

// News runs a news search through the primary specialized provider.
func (e *Engine) News(ctx context.Context, query string) ([]NewsItem, error) {
	return cachedSpecialized(e, ctx, "news", query, e.config.NewsTTL,
		func(p SpecializedProvider) ([]NewsItem, error) { return p.SearchNews(ctx, query) })
}

// Shopping runs a product search through the primary specialized provider.
func (e *Engine) Shopping(ctx context.Context, query string) ([]ShoppingItem, error) {
	return cachedSpecialized(e, ctx, "shopping", query, e.config.SpecializedTTL,
		func(p SpecializedProvider) ([]ShoppingItem, error) { return p.SearchShopping(ctx, query) })
}

// Places runs a local search through the primary specialized provider.
func (e *Engine) Places(ctx context.Context, query string) ([]PlaceItem, error) {
	return cachedSpecialized(e, ctx, "places", query, e.config.SpecializedTTL,
		func(p SpecializedProvider) ([]PlaceItem, error) { return p.SearchPlaces(ctx, query) })
}

// Images runs an image search through the primary specialized provider.
func (e *Engine) Images(ctx context.Context, query string) ([]ImageItem, error) {
	return cachedSpecialized(e, ctx, "images", query, e.config.SpecializedTTL,
		func(p SpecializedProvider) ([]ImageItem, error) { return p.SearchImages(ctx, query) })
}

// cachedSpecialized wraps one vertical endpoint with the kind-prefixed cache
// and the limiter/usage bookkeeping every provider call gets.
func cachedSpecialized[T any](e *Engine, ctx context.Context, kind, query string, ttl time.Duration, call func(SpecializedProvider) ([]T, error)) ([]T, error) {
	key := kind + ":" + NormalizeQuery(query)
	if cached, ok := e.cache.Get(key).([]T); ok {
		return cached, nil
	}

	provider := e.specializedProvider()
	if provider == nil {
		return nil, fmt.Errorf("no specialized search provider available: %w", ErrAllProvidersFail)
	}

	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, ratelimit.ServiceSearch); err != nil {
			return nil, fmt.Errorf("search rate limit: %w", err)
		}
	}
	start := time.Now()
	items, err := call(provider)
	e.usage.Record(provider.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}

	e.cache.Set(key, items, ttl)
	return items, nil
}

// availableProviders filters the preference order down to usable backends.
func (e *Engine) availableProviders() []Provider {
	available := make([]Provider, 0, len(e.providers))
	for _, p := range e.providers {
		if p.Available() {
			available = append(available, p)
		}
	}
	return available
}

// specializedProvider returns the first available provider with vertical
// endpoints, in preference order.
func (e *Engine) specializedProvider() SpecializedProvider {
	for _, p := range e.providers {
		if sp, ok := p.(SpecializedProvider); ok && p.Available() {
			return sp
		}
	}
	return nil
}

// callProvider wraps one provider call with rate limiting and a usage tick.
func (e *Engine) callProvider(ctx context.Context, p Provider, query string) ([]Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, ratelimit.ServiceSearch); err != nil {
			return nil, fmt.Errorf("search rate limit: %w", err)
		}
	}
	start := time.Now()
	results, err := p.Search(ctx, query)
	e.usage.Record(p.Name(), err, time.Since(start))
	return results, err
}
