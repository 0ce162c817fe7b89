package parser

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func makePage(url, body string) *types.Page {
	return &types.Page{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(body),
	}
}

func newListing() *ListingExtractor {
	return NewListingExtractor(&config.DefaultConfig().Run, testLogger)
}

func TestListingAttributeLink(t *testing.T) {
	const base = "https://www.suwon.go.kr"
	html := `<html><body><table><tbody>
		<tr><td class="subject"><a href="/view?id=1">제목입니다만충분히깁니다</a></td></tr>
	</tbody></table></body></html>`

	rule := ListingRule{
		BaseURL:        base,
		TitleSelectors: []string{"td.subject a"},
		Link:           AttributeLink{Attr: "href"},
	}

	stubs, err := newListing().Extract(makePage(base+"/list", html), rule)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].Title, "제목입니다만충분히깁니다")
	assert.Equal(t, stubs[0].URL, base+"/view?id=1")
}

func TestListingRowCap(t *testing.T) {
	var rows strings.Builder
	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&rows, `<tr><td class="title"><a href="/news/%d">%d번째 보도자료 제목</a></td></tr>`, i, i)
	}
	html := "<table><tbody>" + rows.String() + "</tbody></table>"

	stubs, err := newListing().Extract(makePage("https://example.go.kr/list", html), ListingRule{
		TitleSelectors: []string{"td.title a"},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(stubs) != 5 {
		t.Fatalf("expected row cap of 5, got %d", len(stubs))
	}
	assert.Equal(t, stubs[0].URL, "https://example.go.kr/news/1")
	assert.Equal(t, stubs[4].URL, "https://example.go.kr/news/5")
}

func TestListingDropsShortTitlesAndMissingLinks(t *testing.T) {
	html := `<table><tbody>
		<tr><td class="title"><a href="/a">짧음</a></td></tr>
		<tr><td class="title"><span>링크가 없는 행의 제목</span></td></tr>
		<tr><td class="title"><a href="javascript:void(0)">스크립트 링크만 있는 행</a></td></tr>
		<tr><td class="title"><a href="/ok">  정상적인   기사 제목  </a></td><td class="date">2026-10-17</td></tr>
	</tbody></table>`

	stubs, err := newListing().Extract(makePage("https://example.go.kr/list", html), ListingRule{
		TitleSelectors: []string{"td.title a", "td.title span"},
		DateSelector:   "td.date",
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].Title, "정상적인 기사 제목")
	assert.Equal(t, stubs[0].PublishedText, "2026-10-17")
}

func TestListingRowSelectorFallback(t *testing.T) {
	html := `<ul class="news_list">
		<li><a href="view.do?idx=10">두 번째 선택자로 찾은 기사</a></li>
	</ul>`

	stubs, err := newListing().Extract(makePage("https://example.go.kr/board/list.do", html), ListingRule{
		RowSelectors: []string{"table.board tbody tr", "ul.news_list li"},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].URL, "https://example.go.kr/board/view.do?idx=10")
}

func TestListingXPathSelectors(t *testing.T) {
	html := `<div id="board"><dl><dt><a href="/press/77">XPath로 찾은 보도자료</a></dt></dl></div>`

	stubs, err := newListing().Extract(makePage("https://example.go.kr/", html), ListingRule{
		RowSelectors:   []string{"xpath://div[@id='board']/dl"},
		TitleSelectors: []string{"xpath:.//dt/a"},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].URL, "https://example.go.kr/press/77")
}

func TestListingInlineHandlerLink(t *testing.T) {
	html := `<table><tbody>
		<tr><td class="subject"><a href="#" onclick="fn_view('2026', '4417'); return false;">인라인 핸들러 기사 제목</a></td></tr>
	</tbody></table>`

	rule := ListingRule{
		BaseURL:        "https://www.seongnam.go.kr",
		TitleSelectors: []string{"td.subject a"},
		Link: InlineHandlerLink{
			Pattern:  regexp.MustCompile(`fn_view\('(\d+)',\s*'(\d+)'\)`),
			Template: "/city/bbsView.do?year={1}&idx={2}",
		},
	}

	stubs, err := newListing().Extract(makePage("https://www.seongnam.go.kr/city/bbsList.do", html), rule)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].URL, "https://www.seongnam.go.kr/city/bbsView.do?year=2026&idx=4417")
}

func TestListingNoMatchIsEmptyNotError(t *testing.T) {
	stubs, err := newListing().Extract(makePage("https://example.go.kr/", "<p>점검 중입니다</p>"), ListingRule{
		RowSelectors: []string{"table.board tr"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	assert.Equal(t, len(stubs), 0)
}

func TestFromRows(t *testing.T) {
	rows := []types.RenderedRow{
		{Text: "일반 링크가 있는 기사 제목", Href: "/news/view.do?id=1"},
		{Text: "핸들러에서 복구한 기사 제목", Href: "javascript:;", Handler: "location.href='/news/view.do?id=2'"},
		{Text: "링크를 전혀 찾을 수 없는 행", Href: "javascript:void(0)", Handler: "doSomething()"},
		{Text: "짧다", Href: "/news/view.do?id=4"},
	}

	stubs := newListing().FromRows(rows, ListingRule{}, "https://www.goyang.go.kr/news/list.do")
	assert.Equal(t, len(stubs), 2)
	assert.Equal(t, stubs[0].URL, "https://www.goyang.go.kr/news/view.do?id=1")
	assert.Equal(t, stubs[1].URL, "https://www.goyang.go.kr/news/view.do?id=2")
}

func TestFromRowsUsesSourcePattern(t *testing.T) {
	rows := []types.RenderedRow{
		{Text: "패턴으로 복구한 기사 제목", Href: "javascript:goView('991')"},
	}
	rule := ListingRule{
		BaseURL: "https://www.bucheon.go.kr",
		Link: InlineHandlerLink{
			Pattern:  regexp.MustCompile(`goView\('(\d+)'\)`),
			Template: "/site/board/view.do?no={1}",
		},
	}

	stubs := newListing().FromRows(rows, rule, "https://www.bucheon.go.kr/site/board/list.do")
	assert.Equal(t, len(stubs), 1)
	assert.Equal(t, stubs[0].URL, "https://www.bucheon.go.kr/site/board/view.do?no=991")
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://a.go.kr/x/list.do", "view.do?id=1", "https://a.go.kr/x/view.do?id=1"},
		{"https://a.go.kr/x/list.do", "/y", "https://a.go.kr/y"},
		{"https://a.go.kr/", "https://b.go.kr/z#frag", "https://b.go.kr/z"},
		{"https://a.go.kr/", "mailto:press@a.go.kr", ""},
		{"", "/relative", ""},
		{"https://a.go.kr/", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, ResolveURL(tt.base, tt.ref), tt.want)
	}
}

func TestNormalizeSpaceAndTruncate(t *testing.T) {
	assert.Equal(t, NormalizeSpace("  경기도 \n 보도자료\t "), "경기도 보도자료")
	assert.Equal(t, Truncate("가나다라마", 3), "가나다")
	assert.Equal(t, Truncate("가나", 3), "가나")
	assert.Equal(t, StripTags("<b>굵은</b> 글씨 &amp; 본문"), "굵은 글씨 & 본문")
}
