package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkResolver turns a listing row into an absolute article URL.
type LinkResolver interface {
	// Resolve returns the article URL for row, whose title element is
	// title, resolving relative references against base.
	Resolve(row, title *goquery.Selection, base string) (string, bool)

	// Kind names the strategy for logs and the sources listing.
	Kind() string
}

// AttributeLink reads a URL straight out of an attribute.
type AttributeLink struct {
	// Attr defaults to "href".
	Attr string
}

func (l AttributeLink) Kind() string { return "attribute" }

func (l AttributeLink) Resolve(row, title *goquery.Selection, base string) (string, bool) {
	attr := l.Attr
	if attr == "" {
		attr = "href"
	}
	for _, sel := range anchorCandidates(row, title) {
		v, ok := sel.Attr(attr)
		if !ok || IsScriptURL(v) {
			continue
		}
		if u := ResolveURL(base, v); u != "" {
			return u, true
		}
	}
	return "", false
}

// InlineHandlerLink recovers identifying parameters from an inline event
// handler (onclick="fn_view('123')" or href="javascript:goView(...)") and
// substitutes them into Template as {1}, {2}, ...
type InlineHandlerLink struct {
	Pattern  *regexp.Regexp
	Template string

	// Attrs are searched in order; defaults to onclick then href.
	Attrs []string
}

func (l InlineHandlerLink) Kind() string { return "inline_handler" }

func (l InlineHandlerLink) Resolve(row, title *goquery.Selection, base string) (string, bool) {
	attrs := l.Attrs
	if len(attrs) == 0 {
		attrs = []string{"onclick", "href"}
	}
	for _, sel := range anchorCandidates(row, title) {
		for _, attr := range attrs {
			v, ok := sel.Attr(attr)
			if !ok {
				continue
			}
			if u, ok := l.FromHandler(v, base); ok {
				return u, true
			}
		}
	}
	return "", false
}

// FromHandler applies the pattern to a single handler string.
func (l InlineHandlerLink) FromHandler(handler, base string) (string, bool) {
	if l.Pattern == nil || handler == "" {
		return "", false
	}
	m := l.Pattern.FindStringSubmatch(handler)
	if m == nil {
		return "", false
	}
	out := l.Template
	for i := len(m) - 1; i >= 1; i-- {
		out = strings.ReplaceAll(out, "{"+strconv.Itoa(i)+"}", m[i])
	}
	u := ResolveURL(base, out)
	return u, u != ""
}

// anchorCandidates lists the elements a link may live on: the title
// element itself, its first anchor, the row's first anchor, then the row.
func anchorCandidates(row, title *goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	if title != nil && title.Length() > 0 {
		out = append(out, title.First(), title.Find("a").First())
	}
	if row != nil && row.Length() > 0 {
		out = append(out, row.Find("a").First(), row.First())
	}
	return out
}

var quotedPath = regexp.MustCompile(`['"]((?:https?://|/|\./|\.\./)[^'"\s]*|[\w\-./]+\.(?:do|jsp|php|aspx?|html?)(?:\?[^'"\s]*)?)['"]`)

// RecoverHandlerURL pulls the first quoted path-like token out of an inline
// handler, e.g. onclick="location.href='/news/view.do?id=7'".
func RecoverHandlerURL(handler, base string) (string, bool) {
	m := quotedPath.FindStringSubmatch(handler)
	if m == nil {
		return "", false
	}
	u := ResolveURL(base, m[1])
	return u, u != ""
}
