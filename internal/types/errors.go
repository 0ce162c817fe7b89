package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrUnavailable    = errors.New("source unavailable")
	ErrEmptyListing   = errors.New("listing selectors matched nothing")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrImageTooSmall  = errors.New("image below minimum size")
	ErrNoCredentials  = errors.New("api credentials not configured")
	ErrBrowserMissing = errors.New("source requires rendering but no browser is available")
)

// FetchError wraps errors that occur during fetching. Every FetchError
// is also an ErrUnavailable so callers can branch with errors.Is.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrUnavailable }

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors returned by the record store or a ledger backend.
type StorageError struct {
	Backend    string
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *StorageError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("storage error (%s %s, status %d): %v: %s", e.Backend, e.Op, e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the per-item pipeline.
type PipelineError struct {
	Stage string
	Title string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %q: %v", e.Stage, e.Title, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
