// Package browser provides the bounded headless page pool the research core
// uses for SERP discovery and article evidence reads.
package browser

import "context"

// View is one headless browser page. Views are owned exclusively while
// checked out of the pool and reused across operations.
type View interface {
	// Load navigates to a URL. A context deadline makes the load soft:
	// callers may still read whatever rendered before the cutoff.
	Load(ctx context.Context, url string) error

	// Text returns the page's visible text (body innerText).
	Text(ctx context.Context) (string, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// HTML returns the serialized document for fragment extraction.
	HTML(ctx context.Context) (string, error)

	// Eval runs a JS function in the page and unmarshals its value into out.
	// A nil out discards the result.
	Eval(ctx context.Context, js string, out any) error

	// Screenshot captures the viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// PDF renders the page to PDF bytes.
	PDF(ctx context.Context) ([]byte, error)

	Close() error
}

// ViewFactory creates views on demand. The pool holds one factory and asks
// it for a view the first time each slot is used.
type ViewFactory interface {
	NewView(ctx context.Context) (View, error)

	// Available reports whether views can currently be created.
	Available() bool

	Close() error
}

const innerTextJS = `() => document.body.innerText || document.documentElement.innerText || ""`
