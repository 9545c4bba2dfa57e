package browser

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Category partitions the pool: discovery views load SERPs, evidence views
// read article pages. There is no stealing across categories.
type Category string

const (
	CategoryDiscovery Category = "discovery"
	CategoryEvidence  Category = "evidence"
)

// PoolConfig bounds the pool.
type PoolConfig struct {
	DiscoverySlots  int           `json:"discovery_slots"`
	EvidenceSlots   int           `json:"evidence_slots"`
	MaxConcurrency  int           `json:"max_concurrency"`
	LoadTimeout     time.Duration `json:"load_timeout"`
	MaxContentChars int           `json:"max_content_chars"`
}

// DefaultPoolConfig returns the default pool bounds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		DiscoverySlots:  2,
		EvidenceSlots:   3,
		MaxConcurrency:  5,
		LoadTimeout:     3 * time.Second,
		MaxContentChars: 6000,
	}
}

func (c PoolConfig) withDefaults() PoolConfig {
	def := DefaultPoolConfig()
	if c.DiscoverySlots <= 0 {
		c.DiscoverySlots = def.DiscoverySlots
	}
	if c.EvidenceSlots <= 0 {
		c.EvidenceSlots = def.EvidenceSlots
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = def.MaxContentChars
	}
	return c
}

// SerpResult is one scraped Google SERP entry.
type SerpResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// slotSet is the bounded view set for one category. The semaphore enforces
// exclusive slot ownership; idle views are reused in LIFO order.
type slotSet struct {
	sem  *semaphore.Weighted
	mu   sync.Mutex
	idle []View
}

func newSlotSet(slots int) *slotSet {
	return &slotSet{sem: semaphore.NewWeighted(int64(slots))}
}

// Pool is the bounded headless view pool.
type Pool struct {
	config    PoolConfig
	factory   ViewFactory
	discovery *slotSet
	evidence  *slotSet

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool over a view factory.
func NewPool(config PoolConfig, factory ViewFactory) *Pool {
	config = config.withDefaults()
	return &Pool{
		config:    config,
		factory:   factory,
		discovery: newSlotSet(config.DiscoverySlots),
		evidence:  newSlotSet(config.EvidenceSlots),
	}
}

// Available reports whether the pool can serve operations.
func (p *Pool) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.factory != nil && p.factory.Available()
}

// Close drops every idle view and the underlying factory. In-flight
// operations finish on their checked-out views.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for _, set := range []*slotSet{p.discovery, p.evidence} {
		set.mu.Lock()
		for _, v := range set.idle {
			if err := v.Close(); err != nil {
				log.Printf("[PagePool] WARNING: view close failed: %v", err)
			}
		}
		set.idle = nil
		set.mu.Unlock()
	}
	if p.factory != nil {
		return p.factory.Close()
	}
	return nil
}

func (p *Pool) slots(category Category) (*slotSet, error) {
	switch category {
	case CategoryDiscovery:
		return p.discovery, nil
	case CategoryEvidence:
		return p.evidence, nil
	default:
		return nil, fmt.Errorf("unknown view category %q", category)
	}
}

// WithView checks out a view of the requested category, runs fn, and
// releases the view on every exit path. Acquisition blocks until a slot
// frees or ctx is cancelled.
func (p *Pool) WithView(ctx context.Context, category Category, fn func(View) error) error {
	set, err := p.slots(category)
	if err != nil {
		return err
	}
	if !p.Available() {
		return fmt.Errorf("page pool closed")
	}

	if err := set.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire %s view: %w", category, err)
	}
	defer set.sem.Release(1)

	view, err := p.checkout(ctx, set)
	if err != nil {
		return err
	}
	fnErr := fn(view)
	p.checkin(set, view, fnErr)
	return fnErr
}

// checkout reuses an idle view or asks the factory for a new one.
func (p *Pool) checkout(ctx context.Context, set *slotSet) (View, error) {
	set.mu.Lock()
	if n := len(set.idle); n > 0 {
		view := set.idle[n-1]
		set.idle = set.idle[:n-1]
		set.mu.Unlock()
		return view, nil
	}
	set.mu.Unlock()

	view, err := p.factory.NewView(ctx)
	if err != nil {
		return nil, fmt.Errorf("create view: %w", err)
	}
	return view, nil
}

// checkin returns a view to the idle list. Views that just failed an
// operation are closed instead of reused; a broken page poisons later reads.
func (p *Pool) checkin(set *slotSet, view View, opErr error) {
	if opErr != nil {
		if err := view.Close(); err != nil {
			log.Printf("[PagePool] WARNING: view close failed: %v", err)
		}
		return
	}
	set.mu.Lock()
	set.idle = append(set.idle, view)
	set.mu.Unlock()
}

// GoogleSERPURL builds the SERP URL used by the scrape fallback and shown in
// progress previews.
func GoogleSERPURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query) + "&hl=en&num=5"
}

// serpScrapeJS walks Google result containers and returns up to 4 entries.
const serpScrapeJS = `() => {
	const out = [];
	for (const el of document.querySelectorAll('div.g, div[data-hveid] div[lang]')) {
		const a = el.querySelector('a[href^="http"]');
		const h3 = el.querySelector('h3');
		if (!a || !h3) continue;
		if (out.some(r => r.url === a.href)) continue;
		const sn = el.querySelector('.VwiC3b, [data-sncf], [style*="line-clamp"]');
		out.push({
			url: a.href,
			title: h3.innerText.trim(),
			snippet: sn ? sn.innerText.trim() : ''
		});
		if (out.length >= 4) break;
	}
	return out;
}`

// SearchGoogle loads the Google SERP for a query on a discovery view and
// scrapes up to 4 results.
func (p *Pool) SearchGoogle(ctx context.Context, query string) ([]SerpResult, error) {
	var results []SerpResult
	err := p.WithView(ctx, CategoryDiscovery, func(v View) error {
		p.softLoad(ctx, v, GoogleSERPURL(query))
		if err := v.Eval(ctx, serpScrapeJS, &results); err != nil {
			return fmt.Errorf("scrape SERP: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchPageText loads a URL on an evidence view and returns its visible
// text, compressed to the pool's content bound.
func (p *Pool) FetchPageText(ctx context.Context, pageURL string) (string, error) {
	var text string
	err := p.WithView(ctx, CategoryEvidence, func(v View) error {
		p.softLoad(ctx, v, pageURL)
		raw, err := v.Text(ctx)
		if err != nil {
			return fmt.Errorf("extract text from %s: %w", pageURL, err)
		}
		text = Compress(raw, p.config.MaxContentChars)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// softLoad navigates with the pool's load timeout. A timed-out load is not
// an error; whatever rendered before the cutoff is still readable.
func (p *Pool) softLoad(ctx context.Context, v View, pageURL string) {
	loadCtx, cancel := context.WithTimeout(ctx, p.config.LoadTimeout)
	defer cancel()
	if err := v.Load(loadCtx, pageURL); err != nil {
		log.Printf("[PagePool] partial load for %s: %v", pageURL, err)
	}
}
