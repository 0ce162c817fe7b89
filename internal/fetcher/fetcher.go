package fetcher

import (
	"context"
	"net/http"

	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// Fetcher retrieves a page. Every failure (network, timeout, non-2xx)
// comes back as a *types.FetchError, which matches types.ErrUnavailable.
type Fetcher interface {
	// Fetch retrieves the content at rawURL. headers may be nil.
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*types.Page, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// Renderer is a Fetcher backed by a browser that can also pull listing
// rows out of a script-populated page.
type Renderer interface {
	Fetcher

	// Rows loads rawURL and returns up to limit rows from the first of
	// selectors that matches at least one element.
	Rows(ctx context.Context, rawURL string, selectors []string, limit int) ([]types.RenderedRow, error)
}
