package pipeline

import (
	"context"
	"html"
	"log/slog"
	"net/http"

	"github.com/gyeonginblue/dailyfeed/internal/fetcher"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// DetailStage fetches the article page and extracts its body, lead image
// and summary. It never fails the candidate: an unreachable or empty page
// leaves Detail nil and the body is synthesized from the stub.
type DetailStage struct {
	pages     fetcher.Fetcher
	renderer  fetcher.Renderer
	extractor *parser.DetailExtractor
	logger    *slog.Logger
}

// NewDetailStage creates the detail stage. renderer may be nil when no
// selected source needs one.
func NewDetailStage(pages fetcher.Fetcher, renderer fetcher.Renderer, extractor *parser.DetailExtractor, logger *slog.Logger) *DetailStage {
	return &DetailStage{
		pages:     pages,
		renderer:  renderer,
		extractor: extractor,
		logger:    logger.With("component", "detail_stage"),
	}
}

func (s *DetailStage) Name() string { return "detail" }

func (s *DetailStage) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	page, err := s.fetch(ctx, c)
	if err != nil {
		s.logger.Warn("detail unreachable, using fallback body",
			"source", c.SourceName,
			"url", c.Stub.URL,
			"error", err,
		)
		return c, nil
	}

	c.Detail = s.extractor.Extract(page, parser.DetailRule{
		ContentSelectors: c.ContentSelectors,
		ImageSelectors:   c.ImageSelectors,
	})
	if c.Detail == nil {
		s.logger.Info("detail extraction empty, using fallback body", "source", c.SourceName, "url", c.Stub.URL)
	}
	return c, nil
}

func (s *DetailStage) fetch(ctx context.Context, c *types.Candidate) (*types.Page, error) {
	if c.Rendered && s.renderer != nil {
		return s.renderer.Fetch(ctx, c.Stub.URL, nil)
	}
	var headers http.Header
	if c.ListingURL != "" {
		headers = http.Header{"Referer": []string{c.ListingURL}}
	}
	return s.pages.Fetch(ctx, c.Stub.URL, headers)
}

// Body returns the candidate's article body: the extracted block, or the
// synthetic fallback built from the stub.
func Body(c *types.Candidate) string {
	if c.Detail != nil && c.Detail.BodyHTML != "" {
		return c.Detail.BodyHTML
	}
	body := parser.FallbackBody(c.Stub.Title, c.SourceName, c.Stub.URL)
	if c.Stub.Summary != "" {
		body = "<p>" + html.EscapeString(c.Stub.Summary) + "</p>\n" + body
	}
	return body
}
