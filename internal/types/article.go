package types

import "time"

// ArticleStub is one discovered listing row. It lives for a single
// orchestrator iteration and is never persisted directly.
type ArticleStub struct {
	// Title is trimmed and whitespace-collapsed.
	Title string `json:"title"`

	// URL is absolute.
	URL string `json:"url"`

	// PublishedText is the raw date text from the listing, if any.
	PublishedText string `json:"published_text,omitempty"`

	// Summary is set by extractors that get one for free (feeds, search APIs).
	Summary string `json:"summary,omitempty"`
}

// Extraction records how an article body was obtained.
type Extraction string

const (
	ExtractionSelector    Extraction = "selector"
	ExtractionReadability Extraction = "readability"
	ExtractionMeta        Extraction = "meta"
	ExtractionFallback    Extraction = "fallback"
)

// ArticleDetail is the best-effort content pulled from an article's own page.
type ArticleDetail struct {
	BodyHTML     string     `json:"body_html"`
	LeadImageURL string     `json:"lead_image_url,omitempty"`
	Summary      string     `json:"summary"`
	Extraction   Extraction `json:"extraction"`
}

// StatusPublished is the status every ingested article is created with.
const StatusPublished = "published"

// ArticleRecord is the record written to the store's articles collection.
type ArticleRecord struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	IsHeadline  bool      `json:"is_headline"`
	IsBreaking  bool      `json:"is_breaking"`
	Views       int       `json:"views"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
}

// Fields returns the record as a field-value map for the store API.
func (r *ArticleRecord) Fields() map[string]any {
	return map[string]any{
		"title":        r.Title,
		"slug":         r.Slug,
		"summary":      r.Summary,
		"content":      r.Content,
		"category":     r.Category,
		"status":       r.Status,
		"is_headline":  r.IsHeadline,
		"is_breaking":  r.IsBreaking,
		"views":        r.Views,
		"tags":         r.Tags,
		"published_at": r.PublishedAt.UTC().Format("2006-01-02 15:04:05.000Z"),
	}
}

// Outcome is the terminal state of one candidate.
type Outcome string

const (
	OutcomePending        Outcome = ""
	OutcomeAdded          Outcome = "added"
	OutcomeAddedWithImage Outcome = "added_with_image"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeFailed         Outcome = "failed"
)

// Candidate carries one stub through the per-item pipeline.
type Candidate struct {
	Stub       ArticleStub
	SourceName string
	SourceTag  string
	ListingURL string

	// Rendered detail pages are loaded through the browser.
	Rendered bool

	// Source-specific selectors tried before the generic ones.
	ContentSelectors []string
	ImageSelectors   []string

	Detail   *ArticleDetail
	Category string
	Tags     []string
	Record   *ArticleRecord
	RecordID string

	ImageAttached bool
	ImageErr      error
	Outcome       Outcome
}

// NewCandidate creates a Candidate for a stub discovered on a source.
func NewCandidate(stub ArticleStub, sourceName, sourceTag string) *Candidate {
	return &Candidate{
		Stub:       stub,
		SourceName: sourceName,
		SourceTag:  sourceTag,
	}
}

// Extraction returns the provenance of the candidate's body.
func (c *Candidate) Extraction() Extraction {
	if c.Detail == nil {
		return ExtractionFallback
	}
	return c.Detail.Extraction
}

// RenderedRow is the first anchor of one listing row read from a live
// browser page.
type RenderedRow struct {
	Text    string
	Href    string
	Handler string
}
