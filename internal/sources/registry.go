package sources

import (
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gyeonginblue/dailyfeed/internal/config"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// searchRegions are queried on the news search API, in order.
var searchRegions = []string{"경기도", "인천시", "수원시", "성남시", "용인시"}

var regionSuffix = regexp.MustCompile(`(시|도|군)$`)

// Registry returns every configured source in processing order: press
// feeds, municipal sites, then news search queries. now picks the search
// query year.
func Registry(cfg *config.Config, now time.Time) []*Source {
	var all []*Source
	all = append(all, feeds()...)
	all = append(all, municipal()...)
	all = append(all, search(&cfg.Naver, now)...)
	return all
}

func feeds() []*Source {
	return []*Source{
		{
			Name:       "경기도청",
			Tag:        "경기",
			ListingURL: "https://www.gg.go.kr/bbs/rssManager.do?bbsId=BBSMSTR_000000000125",
			BaseURL:    "https://www.gg.go.kr",
			Custom:     RSSFeed,
			ContentSelectors: []string{
				".bbs_view .view_cont",
				".board-view-content",
			},
		},
		{
			Name:       "인천시청",
			Tag:        "인천",
			ListingURL: "https://www.incheon.go.kr/rss/IC010000.xml",
			BaseURL:    "https://www.incheon.go.kr",
			Custom:     RSSFeed,
			ContentSelectors: []string{
				".board-view-contents",
				".board-article-content",
			},
		},
	}
}

func municipal() []*Source {
	return []*Source{
		{
			Name:       "수원시청",
			Tag:        "수원",
			ListingURL: "https://www.suwon.go.kr/web/board/BD_board.list.do?bbsCd=1042",
			BaseURL:    "https://www.suwon.go.kr",
			Rule: parser.ListingRule{
				RowSelectors:   []string{"table.board_list tbody tr", "table tbody tr"},
				TitleSelectors: []string{"td.subject a", "td.title a"},
				DateSelector:   "td.date",
			},
			ContentSelectors: []string{".board_view .view_cont", ".bbs_view_cont"},
		},
		{
			Name:       "성남시청",
			Tag:        "성남",
			ListingURL: "https://www.seongnam.go.kr/city/1000060/30001/bbsList.do",
			BaseURL:    "https://www.seongnam.go.kr",
			Rule: parser.ListingRule{
				RowSelectors:   []string{"table.board-list tbody tr", "table tbody tr"},
				TitleSelectors: []string{"td.subject a", "td.title a"},
				DateSelector:   "td.date",
				Link: parser.InlineHandlerLink{
					Pattern:  regexp.MustCompile(`fn_view\(\s*'(\d+)'\s*\)`),
					Template: "/city/1000060/30001/bbsView.do?idx={1}",
				},
			},
			ContentSelectors: []string{".board-view .view-content", "#bbsViewContent"},
		},
		{
			Name:       "용인시청",
			Tag:        "용인",
			ListingURL: "https://www.yongin.go.kr/user/bbs/BD_selectBbsList.do?q_bbsCode=1020",
			BaseURL:    "https://www.yongin.go.kr",
			Rule: parser.ListingRule{
				TitleSelectors: []string{"td.title a", "td.subject a", "td.tal a"},
				DateSelector:   "td.date",
			},
			ContentSelectors: []string{".bbs_view .view_con", ".bbs_view_content"},
		},
		{
			Name:       "고양시청",
			Tag:        "고양",
			ListingURL: "https://www.goyang.go.kr/www/user/bbs/BD_selectBbsList.do?q_bbsCode=1090",
			BaseURL:    "https://www.goyang.go.kr",
			Rendering:  true,
			Rule: parser.ListingRule{
				Link: parser.InlineHandlerLink{
					Pattern:  regexp.MustCompile(`opView\(\s*'(\d+)'\s*\)`),
					Template: "/www/user/bbs/BD_selectBbs.do?q_bbsCode=1090&q_bbscttSn={1}",
				},
			},
			ContentSelectors: []string{".bbs_view .view_cont"},
		},
		{
			Name:       "화성시청",
			Tag:        "화성",
			ListingURL: "https://www.hscity.go.kr/www/user/bbs/BD_selectBbsList.do?q_bbsCode=1019",
			BaseURL:    "https://www.hscity.go.kr",
			Rendering:  true,
			ContentSelectors: []string{
				".bbs_view .view_cont",
				".board_view_con",
			},
		},
		{
			Name:       "부천시청",
			Tag:        "부천",
			ListingURL: "https://www.bucheon.go.kr/site/program/board/basicboard/list?boardtypeid=26844&menuid=148003002",
			BaseURL:    "https://www.bucheon.go.kr",
			Rule: parser.ListingRule{
				TitleSelectors: []string{"td.subject a", "td.title a"},
				DateSelector:   "td.date",
				Link: parser.InlineHandlerLink{
					Pattern:  regexp.MustCompile(`goView\(\s*'?(\d+)'?\s*\)`),
					Template: "/site/program/board/basicboard/view?boardtypeid=26844&menuid=148003002&boardid={1}",
					Attrs:    []string{"href", "onclick"},
				},
			},
			ContentSelectors: []string{".board_view .view_content", ".bbs_content"},
		},
		{
			Name:       "안산시청",
			Tag:        "안산",
			ListingURL: "https://www.iansan.net/ko/selectBbsNttList.do?bbsNo=164&key=1220",
			BaseURL:    "https://www.iansan.net",
			Rule: parser.ListingRule{
				RowSelectors:   []string{".photo_list li", ".gallery_list li", ".card_list li"},
				TitleSelectors: []string{".tit", ".title", "strong"},
				DateSelector:   ".date",
			},
			Custom:           CardGrid,
			ContentSelectors: []string{".bbs_view .bbs_content", ".view_content"},
			ImageSelectors:   []string{".bbs_content img", ".view_img img"},
		},
		{
			Name:       "경기도의회",
			Tag:        "경기",
			ListingURL: "https://www.ggc.go.kr/site/main/board/report/list",
			BaseURL:    "https://www.ggc.go.kr",
			Rule: parser.ListingRule{
				RowSelectors:   []string{parser.XPathPrefix + `//table[contains(@class,"board")]//tbody/tr`},
				TitleSelectors: []string{parser.XPathPrefix + `.//td[contains(@class,"subject")]//a`},
				DateSelector:   parser.XPathPrefix + `.//td[contains(@class,"date")]`,
			},
			ContentSelectors: []string{".board_view .contents", ".view_contents"},
		},
	}
}

func search(cfg *config.NaverConfig, now time.Time) []*Source {
	var out []*Source
	for _, region := range searchRegions {
		query := region + " 보도자료 " + strconv.Itoa(now.Year())
		params := url.Values{
			"query":   {query},
			"display": {strconv.Itoa(cfg.Display)},
			"sort":    {"date"},
		}

		src := &Source{
			Name:       "네이버 뉴스: " + region,
			Tag:        regionSuffix.ReplaceAllString(region, ""),
			ListingURL: cfg.Endpoint + "?" + params.Encode(),
			BaseURL:    cfg.Endpoint,
			Custom:     NaverSearch,
		}
		if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
			src.Skip = types.ErrNoCredentials
		} else {
			src.Headers = http.Header{
				"X-Naver-Client-Id":     {cfg.ClientID},
				"X-Naver-Client-Secret": {cfg.ClientSecret},
				"Accept":                {"application/json"},
			}
		}
		out = append(out, src)
	}
	return out
}
