package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodFactory launches one headless Chrome lazily and opens pages on it.
type RodFactory struct {
	mu       sync.Mutex
	bin      string
	headless bool
	browser  *rod.Browser
	closed   bool
}

// NewRodFactory creates a factory. Chrome is not launched until the first
// view is requested. An empty bin uses the launcher's own download/lookup.
func NewRodFactory(bin string, headless bool) *RodFactory {
	return &RodFactory{bin: bin, headless: headless}
}

// Available reports whether the factory can still produce views.
func (f *RodFactory) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// NewView opens a fresh page on the shared browser, launching it on first use.
func (f *RodFactory) NewView(ctx context.Context) (View, error) {
	browser, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &rodView{page: page}, nil
}

func (f *RodFactory) connect(ctx context.Context) (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("browser factory closed")
	}
	if f.browser != nil {
		return f.browser, nil
	}

	launch := launcher.New().Headless(f.headless)
	if f.bin != "" {
		launch = launch.Bin(f.bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	log.Printf("[Browser] headless chrome connected")
	f.browser = browser
	return browser, nil
}

// Close shuts the shared browser down. Views created earlier become invalid.
func (f *RodFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.browser != nil {
		err := f.browser.Close()
		f.browser = nil
		return err
	}
	return nil
}

// rodView adapts one rod page to the View interface.
type rodView struct {
	page *rod.Page
}

func (v *rodView) Load(ctx context.Context, url string) error {
	page := v.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Soft wait: a deadline hit here is not fatal, the caller reads what
	// rendered so far.
	if err := page.WaitLoad(); err != nil {
		log.Printf("[Browser] load wait ended early for %s: %v", url, err)
	}
	return nil
}

func (v *rodView) Text(ctx context.Context) (string, error) {
	var text string
	if err := v.Eval(ctx, innerTextJS, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (v *rodView) Title(ctx context.Context) (string, error) {
	info, err := v.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (v *rodView) HTML(ctx context.Context) (string, error) {
	return v.page.Context(ctx).HTML()
}

func (v *rodView) Eval(ctx context.Context, js string, out any) error {
	res, err := v.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode eval result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode eval result: %w", err)
	}
	return nil
}

func (v *rodView) Screenshot(ctx context.Context) ([]byte, error) {
	return v.page.Context(ctx).Screenshot(false, nil)
}

func (v *rodView) PDF(ctx context.Context) ([]byte, error) {
	stream, err := v.page.Context(ctx).PDF(&proto.PagePrintToPDF{})
	if err != nil {
		return nil, err
	}
	defer stream.Close()
	return io.ReadAll(stream)
}

func (v *rodView) Close() error {
	return v.page.Close()
}
