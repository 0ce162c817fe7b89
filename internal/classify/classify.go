// Package classify assigns a category and a small tag set to an article.
package classify

import (
	"regexp"
	"strings"
)

// Taxonomy keys. The store's category record ids are looked up from these
// through configuration.
const (
	Politics = "politics"
	Economy  = "economy"
	Society  = "society"
	Culture  = "culture"
	Sports   = "sports"
	IT       = "it"
)

// Default is returned when no rule matches.
const Default = Society

// Keys lists every taxonomy key.
var Keys = []string{Politics, Economy, Society, Culture, Sports, IT}

type rule struct {
	key     string
	pattern *regexp.Regexp
}

// rules are checked in order; the first match decides the category.
// The sports rule avoids a bare 경기 since it is also the province name.
var rules = []rule{
	{Politics, regexp.MustCompile(`선거|의회|정당|국회|정치`)},
	{Economy, regexp.MustCompile(`기업|일자리|경제|투자|창업|산업`)},
	{Culture, regexp.MustCompile(`축제|문화|예술|공연|전시|관광`)},
	{Sports, regexp.MustCompile(`체육|스포츠|대회|경기장|선수`)},
	{IT, regexp.MustCompile(`\bai\b|\bit\b|스마트|과학|기술|디지털`)},
}

// Category returns exactly one taxonomy key for title and body.
func Category(title, body string) string {
	text := strings.ToLower(title + " " + body)
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.key
		}
	}
	return Default
}

// Regions are place names that become tags when they appear in a title.
var Regions = []string{
	"경기", "인천", "수원", "성남", "용인", "고양", "화성", "부천",
	"안산", "안양", "남양주", "평택", "의정부", "시흥", "파주", "광명",
	"김포", "군포", "광주", "이천", "양주", "오산", "구리", "안성",
	"포천", "의왕", "하남", "여주", "동두천", "과천", "양평", "가평", "연천",
}

// Tags starts from the source tag, adds regions named in title, drops
// duplicates and keeps at most max entries.
func Tags(sourceTag, title string, max int) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] || len(tags) >= max {
			return
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	add(sourceTag)
	for _, region := range Regions {
		if strings.Contains(title, region) {
			add(region)
		}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}
