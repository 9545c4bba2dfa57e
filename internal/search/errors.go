package search

import (
	"errors"
	"fmt"
)

// Failure kinds reported by providers and the consensus engine. These are
// stable strings surfaced in progress events and logs.
const (
	KindNoKey       = "no_key"
	KindRateLimited = "rate_limited"
	KindTimeout     = "timeout"
	KindHTTPStatus  = "http_status"
	KindParse       = "parse"
	KindEmpty       = "empty"
	KindUnavailable = "unavailable"
	KindValidation  = "validation"
	KindCancelled   = "cancelled"
)

// Common search errors
var (
	ErrNoAPIKey          = errors.New("search provider API key not configured")
	ErrNoResults         = errors.New("search returned no results")
	ErrAllProvidersFail  = errors.New("all search providers failed")
	ErrProviderDisabled  = errors.New("search provider is disabled")
	ErrInvalidQuery      = errors.New("search query is empty or invalid")
	ErrBrowserFallback   = errors.New("browser scrape fallback unavailable")
	ErrProviderUnhealthy = errors.New("search provider is unavailable")
)

// ProviderError describes a failure from a single search provider. Kind is
// one of the Kind* constants; StatusCode is set only for http_status kinds.
type ProviderError struct {
	Provider   string `json:"provider"`
	Kind       string `json:"kind"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %s: %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("search %s: %s: %s", e.Provider, e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError builds a ProviderError with a wrapped cause.
func newProviderError(provider, kind, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Message:  message,
		Err:      err,
	}
}

// IsRetryableError reports whether a failure is worth retrying on another
// provider. Missing keys and validation failures never are; transient
// network and server-side conditions are.
func IsRetryableError(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case KindNoKey, KindValidation, KindCancelled:
			return false
		case KindHTTPStatus:
			// Retry on rate limiting and server errors, not client errors.
			return provErr.StatusCode == 429 || provErr.StatusCode >= 500
		default:
			return true
		}
	}
	return errors.Is(err, ErrNoResults) || errors.Is(err, ErrProviderUnhealthy)
}

// ErrorKind extracts the failure kind from an error chain; unknown errors
// report as parse failures since they originate inside a provider.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	switch {
	case errors.Is(err, ErrNoAPIKey):
		return KindNoKey
	case errors.Is(err, ErrNoResults):
		return KindEmpty
	case errors.Is(err, ErrInvalidQuery):
		return KindValidation
	default:
		return KindParse
	}
}
