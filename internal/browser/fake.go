package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// FakeView is an in-memory View for tests. Page text and SERP entries are
// keyed by URL on the owning FakeFactory.
type FakeView struct {
	factory *FakeFactory
	url     string
	closed  bool
}

// FakeFactory builds FakeViews and records concurrency for pool tests.
type FakeFactory struct {
	mu       sync.Mutex
	pages    map[string]string       // url -> page text
	titles   map[string]string       // url -> title
	serp     map[string][]SerpResult // url -> scraped entries
	loadErr  map[string]error        // url -> forced load failure
	textErr  map[string]error        // url -> forced text failure
	created  int
	active   int32
	maxSeen  int32
	closed   bool
	evalHook func(js string, out any) error
}

// NewFakeFactory creates an empty fake view factory.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{
		pages:   make(map[string]string),
		titles:  make(map[string]string),
		serp:    make(map[string][]SerpResult),
		loadErr: make(map[string]error),
		textErr: make(map[string]error),
	}
}

// SetPage registers the text and title served for a URL.
func (f *FakeFactory) SetPage(url, title, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = text
	f.titles[url] = title
}

// SetSERP registers the scrape result for a SERP URL.
func (f *FakeFactory) SetSERP(serpURL string, results []SerpResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serp[serpURL] = results
}

// FailLoad forces Load to fail for a URL.
func (f *FakeFactory) FailLoad(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr[url] = err
}

// FailText forces Text to fail for a URL.
func (f *FakeFactory) FailText(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textErr[url] = err
}

// Created returns how many views the factory has built.
func (f *FakeFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// MaxActive returns the highest concurrent in-use view count observed.
func (f *FakeFactory) MaxActive() int {
	return int(atomic.LoadInt32(&f.maxSeen))
}

// NewView builds a fake view.
func (f *FakeFactory) NewView(ctx context.Context) (View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("fake factory closed")
	}
	f.created++
	return &FakeView{factory: f}, nil
}

// Available reports whether the factory is open.
func (f *FakeFactory) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// Close marks the factory closed.
func (f *FakeFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (v *FakeView) Load(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	active := atomic.AddInt32(&v.factory.active, 1)
	for {
		seen := atomic.LoadInt32(&v.factory.maxSeen)
		if active <= seen || atomic.CompareAndSwapInt32(&v.factory.maxSeen, seen, active) {
			break
		}
	}
	defer atomic.AddInt32(&v.factory.active, -1)

	v.factory.mu.Lock()
	err := v.factory.loadErr[url]
	v.factory.mu.Unlock()
	if err != nil {
		return err
	}
	v.url = url
	return nil
}

func (v *FakeView) Text(ctx context.Context) (string, error) {
	v.factory.mu.Lock()
	defer v.factory.mu.Unlock()
	if err := v.factory.textErr[v.url]; err != nil {
		return "", err
	}
	return v.factory.pages[v.url], nil
}

func (v *FakeView) Title(ctx context.Context) (string, error) {
	v.factory.mu.Lock()
	defer v.factory.mu.Unlock()
	return v.factory.titles[v.url], nil
}

func (v *FakeView) HTML(ctx context.Context) (string, error) {
	text, err := v.Text(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, para := range strings.Split(text, "\n\n") {
		b.WriteString("<p>" + para + "</p>")
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

// Eval serves the SERP scrape script from registered SERP fixtures; any
// other script returns the page text.
func (v *FakeView) Eval(ctx context.Context, js string, out any) error {
	if v.factory.evalHook != nil {
		return v.factory.evalHook(js, out)
	}
	v.factory.mu.Lock()
	defer v.factory.mu.Unlock()

	var value any
	if results, ok := v.factory.serp[v.url]; ok && strings.Contains(js, "querySelectorAll") {
		value = results
	} else {
		if err := v.factory.textErr[v.url]; err != nil {
			return err
		}
		value = v.factory.pages[v.url]
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (v *FakeView) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png:" + v.url), nil
}

func (v *FakeView) PDF(ctx context.Context) ([]byte, error) {
	return []byte("pdf:" + v.url), nil
}

func (v *FakeView) Close() error {
	v.closed = true
	return nil
}

var (
	_ View        = (*FakeView)(nil)
	_ ViewFactory = (*FakeFactory)(nil)
)
