package parser

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// DefaultRowSelectors are generic row shapes tried when a source names none,
// and the candidates the rendering fetcher probes on script-built listings.
var DefaultRowSelectors = []string{
	"table tbody tr",
	"table tr",
	".board_list li, .board-list li, .bbs_list li, .bbs-list li",
	"ul.list li, ul.news_list li",
	"article",
}

// ListingRule describes how rows, titles, dates and links are located on a
// source's listing page. Every selector list is tried in order and the
// first non-empty match wins.
type ListingRule struct {
	// BaseURL resolves relative links; the page URL is used when empty.
	BaseURL string

	RowSelectors   []string
	TitleSelectors []string
	DateSelector   string

	// Link defaults to AttributeLink{Attr: "href"}.
	Link LinkResolver
}

func (r ListingRule) rowSelectors() []string {
	if len(r.RowSelectors) == 0 {
		return DefaultRowSelectors
	}
	return r.RowSelectors
}

func (r ListingRule) link() LinkResolver {
	if r.Link == nil {
		return AttributeLink{}
	}
	return r.Link
}

// ListingExtractor turns a listing page into a bounded list of stubs.
type ListingExtractor struct {
	rowCap   int
	minTitle int
	logger   *slog.Logger
}

// NewListingExtractor creates a listing extractor bounded by the run caps.
func NewListingExtractor(cfg *config.RunConfig, logger *slog.Logger) *ListingExtractor {
	return &ListingExtractor{
		rowCap:   cfg.RowCap,
		minTitle: cfg.MinTitleLength,
		logger:   logger.With("component", "listing_extractor"),
	}
}

// Extract reads up to the row cap of rows from page. Rows whose title or
// link cannot be resolved are dropped. An empty result is not an error;
// only an unparseable document is.
func (le *ListingExtractor) Extract(page *types.Page, rule ListingRule) ([]types.ArticleStub, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	rows, used := FirstMatch(doc.Selection, rule.rowSelectors())
	if rows.Length() == 0 {
		le.logger.Debug("no row selector matched", "url", page.URL)
		return nil, nil
	}

	base := rule.BaseURL
	if base == "" {
		base = page.BaseURL()
	}
	link := rule.link()

	var stubs []types.ArticleStub
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= le.rowCap {
			return false
		}
		if stub, ok := le.extractRow(row, rule, link, base); ok {
			stubs = append(stubs, stub)
		}
		return true
	})

	le.logger.Debug("listing extracted",
		"url", page.URL,
		"selector", used,
		"rows", rows.Length(),
		"stubs", len(stubs),
	)
	return stubs, nil
}

func (le *ListingExtractor) extractRow(row *goquery.Selection, rule ListingRule, link LinkResolver, base string) (types.ArticleStub, bool) {
	var title *goquery.Selection
	if len(rule.TitleSelectors) == 0 {
		title = row.Find("a").First()
	} else {
		found, _ := FirstMatch(row, rule.TitleSelectors)
		title = found.First()
	}
	if title.Length() == 0 {
		return types.ArticleStub{}, false
	}

	text := NormalizeSpace(title.Text())
	if RuneLen(text) < le.minTitle {
		return types.ArticleStub{}, false
	}

	href, ok := link.Resolve(row, title, base)
	if !ok {
		return types.ArticleStub{}, false
	}

	stub := types.ArticleStub{Title: text, URL: href}
	if rule.DateSelector != "" {
		stub.PublishedText = NormalizeSpace(Select(row, rule.DateSelector).First().Text())
	}
	return stub, true
}

// FromRows builds stubs from rows read off a rendered page. A row whose
// href is missing or a script pseudo-URL gets its target recovered from the
// inline handler, using the source's handler pattern when it has one.
func (le *ListingExtractor) FromRows(rows []types.RenderedRow, rule ListingRule, pageURL string) []types.ArticleStub {
	base := rule.BaseURL
	if base == "" {
		base = pageURL
	}
	inline, hasPattern := rule.Link.(InlineHandlerLink)

	var stubs []types.ArticleStub
	for i, row := range rows {
		if i >= le.rowCap {
			break
		}
		text := NormalizeSpace(row.Text)
		if RuneLen(text) < le.minTitle {
			continue
		}

		href := ""
		if !IsScriptURL(row.Href) {
			href = ResolveURL(base, row.Href)
		}
		for _, handler := range []string{row.Handler, row.Href} {
			if href != "" {
				break
			}
			if hasPattern {
				href, _ = inline.FromHandler(handler, base)
			}
			if href == "" {
				href, _ = RecoverHandlerURL(handler, base)
			}
		}
		if href == "" {
			continue
		}
		stubs = append(stubs, types.ArticleStub{Title: text, URL: href})
	}
	return stubs
}
