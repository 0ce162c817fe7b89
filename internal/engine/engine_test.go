package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/fetcher"
	"github.com/gyeonginblue/dailyfeed/internal/media"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/sources"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// --- fake store ---

type fakePocketBase struct {
	mu      sync.Mutex
	records []map[string]any
	files   map[string]string
}

var titleFilter = regexp.MustCompile(`^\(title~'(.*)'\)$`)

func (pb *fakePocketBase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	const prefix = "/api/collections/articles/records"
	switch {
	case r.Method == http.MethodGet && r.URL.Path == prefix:
		m := titleFilter.FindStringSubmatch(r.URL.Query().Get("filter"))
		if m == nil {
			http.Error(w, `{"message":"bad filter"}`, http.StatusBadRequest)
			return
		}
		like := likePattern(strings.ReplaceAll(m[1], `\'`, `'`))
		n := 0
		for _, rec := range pb.records {
			if like.MatchString(rec["title"].(string)) {
				n++
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"page": 1, "perPage": 1, "totalItems": n, "items": []any{}})

	case r.Method == http.MethodPost && r.URL.Path == prefix:
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec["id"] = fmt.Sprintf("rec%03d", len(pb.records)+1)
		pb.records = append(pb.records, rec)
		json.NewEncoder(w).Encode(rec)

	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, prefix+"/"):
		id := strings.TrimPrefix(r.URL.Path, prefix+"/")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("thumbnail")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if pb.files == nil {
			pb.files = make(map[string]string)
		}
		pb.files[id] = header.Filename
		json.NewEncoder(w).Encode(map[string]any{"id": id})

	default:
		http.NotFound(w, r)
	}
}

// likePattern compiles a "~" operand the way the store evaluates it: the
// operand is wrapped in %...% unless it already holds an unescaped %, then
// matched as a LIKE pattern with \ as the escape character.
func likePattern(operand string) *regexp.Regexp {
	wildcard := false
	for i := 0; i < len(operand); i++ {
		if operand[i] == '\\' {
			i++
			continue
		}
		if operand[i] == '%' {
			wildcard = true
		}
	}
	if !wildcard {
		operand = "%" + operand + "%"
	}

	var b strings.Builder
	b.WriteString(`(?is)^`)
	runes := []rune(operand)
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; {
		case r == '\\' && i+1 < len(runes):
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case r == '%':
			b.WriteString(`.*`)
		case r == '_':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	return regexp.MustCompile(b.String())
}

func (pb *fakePocketBase) count() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return len(pb.records)
}

// --- fake municipal site ---

func pngPayload(size int) []byte {
	header := []byte("\x89PNG\r\n\x1a\n")
	return append(header, bytes.Repeat([]byte{0x42}, size-len(header))...)
}

var listingTitles = []string{
	"시민 안전 점검 결과 발표",
	"청년 창업 지원 사업 공모",
	"가을 문화 축제 일정 안내",
	"도서관 야간 개방 확대 운영",
	"버스 노선 개편 설명회 개최",
	"어린이 놀이터 정비 완료 안내",
	"겨울철 제설 대책 추진 상황",
}

const (
	percentTitle    = "경기도 청년 고용률 전년 대비 5% 상승, 일자리 정책 효과 나타나 하반기에도 지속 추진"
	underscoreTitle = "스마트시티_데이터 허브 구축 사업 착수 보고회 개최 및 향후 운영 계획 발표"
)

const articleBody = `<p>시는 이번 사업을 통해 주민 생활 여건을 개선하고 지역 공동체의 활력을 높일 계획이라고 밝혔다. 세부 일정은 누리집에 공개된다.</p>`

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var b strings.Builder
		b.WriteString(`<html><body><table class="board"><thead><tr><th>제목</th></tr></thead><tbody>`)
		for i, title := range listingTitles {
			fmt.Fprintf(&b, `<tr><td class="subject"><a href="/view?id=%d">%s</a></td><td class="date">2026-10-1%d</td></tr>`, i+1, title, i)
		}
		b.WriteString(`</tbody></table></body></html>`)
		w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/percent", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><table><tbody>` +
			`<tr><td class="subject"><a href="/view?id=20">` + percentTitle + `</a></td></tr>` +
			`<tr><td class="subject"><a href="/view?id=21">` + underscoreTitle + `</a></td></tr>` +
			`</tbody></table></body></html>`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><p>등록된 게시물이 없습니다.</p></body></html>`))
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Query().Get("id") {
		case "2":
			http.Error(w, "internal error", http.StatusInternalServerError)
		case "1":
			fmt.Fprintf(w, `<html><body><div class="view_content"><img src="/img/photo1.png">%s</div></body></html>`, articleBody)
		case "3":
			fmt.Fprintf(w, `<html><body><div class="view_content"><img src="/img/photo3.png">%s</div></body></html>`, articleBody)
		default:
			fmt.Fprintf(w, `<html><body><div class="view_content">%s</div></body></html>`, articleBody)
		}
	})
	mux.HandleFunc("/img/photo1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngPayload(8000))
	})
	mux.HandleFunc("/img/photo3.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngPayload(1000))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// --- harness ---

type harness struct {
	cfg    *config.Config
	site   *httptest.Server
	store  *fakePocketBase
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: &fakePocketBase{}, site: newSite(t)}
	pbSrv := httptest.NewServer(h.store)
	t.Cleanup(pbSrv.Close)

	h.cfg = config.DefaultConfig()
	h.cfg.Store.BaseURL = pbSrv.URL
	h.cfg.Fetcher.Timeout = 5 * time.Second
	return h
}

func (h *harness) source(name, path string) *sources.Source {
	return &sources.Source{
		Name:       name,
		Tag:        "수원",
		ListingURL: h.site.URL + path,
		BaseURL:    h.site.URL,
		Rule: parser.ListingRule{
			TitleSelectors: []string{"td.subject a"},
			DateSelector:   "td.date",
		},
	}
}

func (h *harness) engine(t *testing.T, srcs ...*sources.Source) *Engine {
	t.Helper()
	pages, err := fetcher.NewHTTPFetcher(h.cfg, testLogger)
	if err != nil {
		t.Fatalf("NewHTTPFetcher: %v", err)
	}
	t.Cleanup(func() { pages.Close() })

	e := New(h.cfg, testLogger)
	e.SetSources(srcs)
	e.SetFetcher(pages)
	e.SetStore(storage.NewPocketBase(&h.cfg.Store, testLogger))
	e.SetImages(media.NewDownloader(h.cfg, testLogger))
	e.SetSleep(func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	})
	return e
}

// --- tests ---

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	skipped := h.source("네이버 뉴스: 수원시", "/search")
	skipped.Skip = types.ErrNoCredentials

	e := h.engine(t,
		h.source("테스트시청", "/list"),
		h.source("점검중시청", "/down"),
		h.source("빈게시판시청", "/empty"),
		skipped,
	)

	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := report.Stats

	assert.Equal(t, s.SourcesAttempted, 3)
	assert.Equal(t, s.SourcesWithCandidates, 1)
	assert.Equal(t, s.ListingFailures, 1)
	assert.Equal(t, s.EmptyListings, 1)
	assert.Equal(t, s.Candidates, 3)
	assert.Equal(t, s.Added, 3)
	assert.Equal(t, s.AddedWithImage, 1)
	assert.Equal(t, s.DetailFallbacks, 1)
	assert.Equal(t, s.ImageFailures, 1)
	assert.Equal(t, s.Failed, 0)
	assert.Equal(t, e.GetState(), StateIdle)

	assert.Equal(t, h.store.count(), 3)
	assert.Equal(t, h.store.files["rec001"], "photo1.png")
	if _, ok := h.store.files["rec003"]; ok {
		t.Error("undersized image should not be attached")
	}

	// The unreachable detail page still produced an article.
	fallback := h.store.records[1]
	assert.Equal(t, fallback["title"], listingTitles[1])
	content := fallback["content"].(string)
	if !strings.Contains(content, listingTitles[1]) || !strings.Contains(content, h.site.URL+"/view?id=2") {
		t.Errorf("fallback content missing title or link: %q", content)
	}

	cfg := h.cfg.Run
	assert.Equal(t, h.sleeps, []time.Duration{
		cfg.ItemDelay, cfg.ItemDelay, cfg.ItemDelay,
		cfg.SourceDelay, cfg.SourceDelay, cfg.SourceDelay,
	})
}

func TestRerunAddsNothing(t *testing.T) {
	h := newHarness(t)
	src := h.source("테스트시청", "/list")

	first, err := h.engine(t, src).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	assert.Equal(t, first.Stats.Added, 3)

	second, err := h.engine(t, src).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	assert.Equal(t, second.Stats.Added, 0)
	assert.Equal(t, second.Stats.SkippedDuplicate, 3)
	assert.Equal(t, h.store.count(), 3)
	if first.RunID == second.RunID {
		t.Error("each run should get its own id")
	}
}

func TestRerunWithWildcardCharactersInTitle(t *testing.T) {
	h := newHarness(t)
	src := h.source("테스트시청", "/percent")

	first, err := h.engine(t, src).Run(context.Background())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	assert.Equal(t, first.Stats.Added, 2)

	second, err := h.engine(t, src).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	assert.Equal(t, second.Stats.Added, 0)
	assert.Equal(t, second.Stats.SkippedDuplicate, 2)
	assert.Equal(t, h.store.count(), 2)
}

func TestLikePatternWrapping(t *testing.T) {
	tests := []struct {
		operand string
		title   string
		want    bool
	}{
		{`대비 5\% 상승`, percentTitle, true},
		{`경기도 청년 고용률 전년 대비 5% 상승, 일자리 정`, percentTitle, false},
		{`스마트시티\_데이터`, underscoreTitle, true},
		{`스마트시티\_데이터`, "스마트시티-데이터 허브", false},
	}
	for _, tt := range tests {
		assert.Equal(t, likePattern(tt.operand).MatchString(tt.title), tt.want)
	}
}

func TestRowCapBoundsCandidates(t *testing.T) {
	h := newHarness(t)
	h.cfg.Run.ItemCap = 10

	report, err := h.engine(t, h.source("테스트시청", "/list")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assert.Equal(t, report.Stats.Candidates, h.cfg.Run.RowCap)
	assert.Equal(t, h.store.count(), h.cfg.Run.RowCap)
}

func TestItemCapBoundsPersisted(t *testing.T) {
	h := newHarness(t)
	h.cfg.Run.ItemCap = 2

	report, err := h.engine(t, h.source("테스트시청", "/list")).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assert.Equal(t, report.Stats.Added, 2)
	assert.Equal(t, h.store.count(), 2)
}

func TestURLSeenEarlierInRunIsSkipped(t *testing.T) {
	h := newHarness(t)

	report, err := h.engine(t,
		h.source("테스트시청", "/list"),
		h.source("같은게시판", "/list"),
	).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assert.Equal(t, report.Stats.SourcesWithCandidates, 2)
	assert.Equal(t, report.Stats.Candidates, 3)
	assert.Equal(t, report.Stats.SkippedDuplicate, 0)
}

func TestLedgerRecordsProvenance(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ledger, err := storage.NewJSONLLedger(path, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	e := h.engine(t, h.source("테스트시청", "/list"))
	e.SetLedger(ledger)
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var entries []storage.Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry storage.Entry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("bad ledger line %q: %v", sc.Text(), err)
		}
		entries = append(entries, entry)
	}

	assert.Equal(t, len(entries), 4)
	assert.Equal(t, entries[0].Extraction, string(types.ExtractionSelector))
	assert.Equal(t, entries[0].Outcome, string(types.OutcomeAddedWithImage))
	assert.Equal(t, entries[1].Extraction, string(types.ExtractionFallback))
	assert.Equal(t, entries[2].Outcome, string(types.OutcomeAdded))
	if entries[2].Error == "" {
		t.Error("image rejection should be recorded")
	}
	assert.Equal(t, entries[3].Kind, storage.EntrySummary)
	assert.Equal(t, entries[3].RunID, report.RunID)
	assert.Equal(t, entries[3].Stats["added"], 3)
}

// --- rendering sources ---

type fakeRenderer struct {
	rows   []types.RenderedRow
	pages  map[string]string
	closed bool
}

func (f *fakeRenderer) Fetch(_ context.Context, rawURL string, _ http.Header) (*types.Page, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &types.FetchError{URL: rawURL, Err: types.ErrUnavailable}
	}
	return &types.Page{URL: rawURL, StatusCode: 200, Body: []byte(body), Rendered: true}, nil
}

func (f *fakeRenderer) Rows(_ context.Context, _ string, selectors []string, limit int) ([]types.RenderedRow, error) {
	if len(selectors) == 0 {
		return nil, errors.New("no selectors")
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeRenderer) Close() error { f.closed = true; return nil }
func (f *fakeRenderer) Type() string { return "fake" }

var _ fetcher.Renderer = (*fakeRenderer)(nil)

func TestRenderingSource(t *testing.T) {
	h := newHarness(t)
	base := "https://www.goyang.go.kr"
	r := &fakeRenderer{
		rows: []types.RenderedRow{
			{Text: "고양 호수공원 가을 꽃 전시회", Href: "javascript:void(0)", Handler: "opView('501')"},
			{Text: "고양시 스마트 교통 시스템 도입", Href: "/www/news/view.do?id=502"},
		},
		pages: map[string]string{
			base + "/www/view.do?sn=501":      `<html><body><div class="view_content">` + articleBody + `</div></body></html>`,
			base + "/www/news/view.do?id=502": `<html><body><div class="view_content">` + articleBody + `</div></body></html>`,
		},
	}

	src := &sources.Source{
		Name:       "고양시청",
		Tag:        "고양",
		ListingURL: base + "/www/list.do",
		BaseURL:    base,
		Rendering:  true,
		Rule: parser.ListingRule{
			Link: parser.InlineHandlerLink{
				Pattern:  regexp.MustCompile(`opView\('(\d+)'\)`),
				Template: "/www/view.do?sn={1}",
			},
		},
	}

	e := h.engine(t, src)
	e.SetRendererFactory(func() (fetcher.Renderer, error) { return r, nil })
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assert.Equal(t, report.Stats.Added, 2)
	assert.Equal(t, report.Stats.DetailFallbacks, 0)
	assert.Equal(t, r.closed, true)
}

func TestBrowserLaunchFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	src := h.source("고양시청", "/list")
	src.Rendering = true

	e := h.engine(t, src)
	e.SetRendererFactory(func() (fetcher.Renderer, error) { return nil, types.ErrBrowserMissing })
	if _, err := e.Run(context.Background()); !errors.Is(err, types.ErrBrowserMissing) {
		t.Fatalf("expected browser error, got %v", err)
	}
	assert.Equal(t, h.store.count(), 0)
}

func TestBrowserDisabledFailsOnlyRenderingSources(t *testing.T) {
	h := newHarness(t)
	h.cfg.Browser.Enabled = false
	rendered := h.source("고양시청", "/list")
	rendered.Rendering = true

	e := h.engine(t, rendered, h.source("테스트시청", "/list"))
	e.SetRendererFactory(func() (fetcher.Renderer, error) {
		t.Fatal("browser should not start when disabled")
		return nil, nil
	})
	report, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assert.Equal(t, report.Stats.ListingFailures, 1)
	assert.Equal(t, report.Stats.Added, 3)
}

func TestCancelledRunStops(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine(t, h.source("테스트시청", "/list")).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCanonicalizeURL(t *testing.T) {
	set := NewURLSet(4)
	assert.Equal(t, set.Add("https://Www.Suwon.go.kr:443/view.do?nttId=2&bbsId=7#top"), true)
	assert.Equal(t, set.Add("https://www.suwon.go.kr/view.do?bbsId=7&nttId=2"), false)
	assert.Equal(t, set.Add("https://www.suwon.go.kr/view.do?bbsId=7&nttId=3"), true)
	assert.Equal(t, set.Len(), 2)
}
