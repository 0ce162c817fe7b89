package parser

import (
	"bytes"
	"html"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// DefaultContentSelectors run from board-specific body containers down to a
// bare article element.
var DefaultContentSelectors = []string{
	".view_content",
	".view_cont",
	".bbs_view .content",
	".board_view .view_con",
	"#bbs_content",
	".board-view-content",
	".news_view",
	"#article_body",
	"div.content",
	"#content",
	"article",
}

// DetailRule holds per-source selectors tried before the defaults.
type DetailRule struct {
	ContentSelectors []string
	ImageSelectors   []string
}

// DetailExtractor pulls the body, lead image and summary out of an article
// page.
type DetailExtractor struct {
	minContent int
	summaryLen int
	logger     *slog.Logger
}

// NewDetailExtractor creates a detail extractor using the run thresholds.
func NewDetailExtractor(cfg *config.RunConfig, logger *slog.Logger) *DetailExtractor {
	return &DetailExtractor{
		minContent: cfg.MinContentLength,
		summaryLen: cfg.SummaryLength,
		logger:     logger.With("component", "detail_extractor"),
	}
}

// Extract returns the best-effort detail for page, or nil when neither the
// selector chain, readability, nor the page's meta description yields
// anything usable.
func (de *DetailExtractor) Extract(page *types.Page, rule DetailRule) *types.ArticleDetail {
	doc, err := page.Document()
	if err != nil {
		de.logger.Debug("detail page unparseable", "url", page.URL, "error", err)
		return nil
	}

	meta := ReadMeta(doc)
	base := page.BaseURL()
	doc.Find("script, style, noscript, iframe, form").Remove()

	detail := &types.ArticleDetail{}
	var readable *readability.Article

	if body, sel := de.contentBlock(doc, append(append([]string{}, rule.ContentSelectors...), DefaultContentSelectors...)); body != "" {
		detail.BodyHTML = body
		detail.Extraction = types.ExtractionSelector
		de.logger.Debug("content matched", "url", page.URL, "selector", sel)
	} else if article, ok := de.readable(page, base); ok {
		readable = &article
		detail.BodyHTML = strings.TrimSpace(article.Content)
		detail.Extraction = types.ExtractionReadability
	} else if s := meta.Summary(); s != "" {
		detail.BodyHTML = "<p>" + html.EscapeString(s) + "</p>"
		detail.Extraction = types.ExtractionMeta
	} else {
		return nil
	}

	imageSelectors := append(append([]string{}, rule.ImageSelectors...), DefaultImageSelectors...)
	detail.LeadImageURL = LeadImage(doc, imageSelectors, meta, base)
	if detail.LeadImageURL == "" && readable != nil && IsContentImage(readable.Image) {
		detail.LeadImageURL = ResolveURL(base, readable.Image)
	}

	if s := meta.Summary(); s != "" {
		detail.Summary = Truncate(s, de.summaryLen)
	} else {
		detail.Summary = Truncate(StripTags(detail.BodyHTML), de.summaryLen)
	}

	return detail
}

// contentBlock returns the inner HTML of the first element, across the
// selector list, whose text reaches the minimum content length.
func (de *DetailExtractor) contentBlock(doc *goquery.Document, selectors []string) (string, string) {
	for _, sel := range selectors {
		var body string
		Select(doc.Selection, sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
			if RuneLen(NormalizeSpace(s.Text())) < de.minContent {
				return true
			}
			inner, err := s.Html()
			if err != nil {
				return true
			}
			body = strings.TrimSpace(inner)
			return body == ""
		})
		if body != "" {
			return body, sel
		}
	}
	return "", ""
}

func (de *DetailExtractor) readable(page *types.Page, base string) (readability.Article, bool) {
	pageURL, err := url.Parse(base)
	if err != nil {
		return readability.Article{}, false
	}
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		de.logger.Debug("readability failed", "url", page.URL, "error", err)
		return readability.Article{}, false
	}
	if RuneLen(NormalizeSpace(article.TextContent)) < de.minContent {
		return readability.Article{}, false
	}
	return article, true
}

// FallbackBody builds the synthetic body used when the detail page yields
// nothing: the title and a link back to the original.
func FallbackBody(title, sourceName, articleURL string) string {
	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</p>\n")
	if sourceName != "" {
		b.WriteString("<p>출처: ")
		b.WriteString(html.EscapeString(sourceName))
		b.WriteString("</p>\n")
	}
	b.WriteString(`<p><a href="`)
	b.WriteString(html.EscapeString(articleURL))
	b.WriteString(`" target="_blank" rel="noopener noreferrer">원문 보기</a></p>`)
	return b.String()
}
