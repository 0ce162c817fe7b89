package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// RSSFeed reads stubs from an RSS or Atom press-release feed.
var RSSFeed = &CustomExtractor{Name: "rss_feed", Extract: extractFeed}

// NaverSearch reads stubs from a news search API response.
var NaverSearch = &CustomExtractor{Name: "naver_search", Extract: extractSearch}

// CardGrid reads stubs from card or gallery listings, where each card is
// a link block rather than a table row.
var CardGrid = &CustomExtractor{Name: "card_grid", Extract: extractCards}

// A body the fetcher already decoded to UTF-8 may still carry a legacy
// encoding declaration, which would make the feed parser decode it twice.
// Undecoded bodies keep the declaration.
var xmlEncodingDecl = regexp.MustCompile(`^(\s*<\?xml[^>]*?)\s+encoding=["'][^"']*["']`)

func extractFeed(page *types.Page, src *Source) ([]types.ArticleStub, error) {
	body := page.Body
	if utf8.Valid(body) {
		body = xmlEncodingDecl.ReplaceAll(body, []byte("$1"))
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &types.ParseError{URL: page.URL, Selector: "rss", Err: err}
	}

	base := src.BaseURL
	if base == "" {
		base = page.BaseURL()
	}

	var stubs []types.ArticleStub
	for _, item := range feed.Items {
		title := parser.StripTags(item.Title)
		link := parser.ResolveURL(base, item.Link)
		if title == "" || link == "" {
			continue
		}
		stubs = append(stubs, types.ArticleStub{
			Title:         title,
			URL:           link,
			PublishedText: item.Published,
			Summary:       parser.StripTags(item.Description),
		})
	}
	return stubs, nil
}

type searchResponse struct {
	Total int          `json:"total"`
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

func extractSearch(page *types.Page, _ *Source) ([]types.ArticleStub, error) {
	var resp searchResponse
	if err := json.Unmarshal(page.Body, &resp); err != nil {
		return nil, &types.ParseError{URL: page.URL, Selector: "json", Err: err}
	}

	var stubs []types.ArticleStub
	for _, item := range resp.Items {
		link := item.OriginalLink
		if link == "" {
			link = item.Link
		}
		link = parser.ResolveURL("", link)
		title := parser.StripTags(item.Title)
		if title == "" || link == "" {
			continue
		}
		stubs = append(stubs, types.ArticleStub{
			Title:         title,
			URL:           link,
			PublishedText: item.PubDate,
			Summary:       parser.StripTags(item.Description),
		})
	}
	return stubs, nil
}

var defaultCardTitles = []string{".tit", ".title", "strong", "h3", "h4"}

func extractCards(page *types.Page, src *Source) ([]types.ArticleStub, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	rule := src.ListingRule()
	if len(rule.RowSelectors) == 0 {
		return nil, fmt.Errorf("card grid %s: no card selectors", src.Name)
	}
	base := rule.BaseURL
	if base == "" {
		base = page.BaseURL()
	}
	titles := rule.TitleSelectors
	if len(titles) == 0 {
		titles = defaultCardTitles
	}

	cards, _ := parser.FirstMatch(doc.Selection, rule.RowSelectors)

	var stubs []types.ArticleStub
	cards.Each(func(_ int, card *goquery.Selection) {
		titleEl, _ := parser.FirstMatch(card, titles)
		title := parser.NormalizeSpace(titleEl.First().Text())
		if title == "" {
			// Some grids only carry the title on the image's alt text.
			title = parser.NormalizeSpace(card.Find("img").First().AttrOr("alt", ""))
		}

		link, ok := parser.AttributeLink{}.Resolve(card, card.Find("a").First(), base)
		if title == "" || !ok {
			return
		}
		stub := types.ArticleStub{Title: title, URL: link}
		if rule.DateSelector != "" {
			stub.PublishedText = parser.NormalizeSpace(parser.Select(card, rule.DateSelector).First().Text())
		}
		stubs = append(stubs, stub)
	})
	return stubs, nil
}
