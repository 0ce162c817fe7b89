package types

import (
	"bytes"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is the result of fetching a listing or detail URL.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after any redirects. Relative links on the
	// page resolve against it.
	FinalURL string

	// StatusCode is the HTTP status code (200 for rendered pages).
	StatusCode int

	// ContentType is the MIME type of the response.
	ContentType string

	// Body is the raw response body bytes.
	Body []byte

	// Rendered is true when the body came from a headless browser.
	Rendered bool

	// FetchDuration is how long the fetch took.
	FetchDuration time.Duration

	// FetchedAt is when this page was received.
	FetchedAt time.Time

	doc *goquery.Document
}

// Document returns a parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, &ParseError{URL: p.URL, Err: err}
	}
	if base, err := url.Parse(p.BaseURL()); err == nil {
		doc.Url = base
	}
	p.doc = doc
	return doc, nil
}

// BaseURL returns the URL relative references on this page resolve against.
func (p *Page) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// Text returns the body as a string.
func (p *Page) Text() string {
	return string(p.Body)
}
