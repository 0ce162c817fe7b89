package parser

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultImageSelectors locate the first image inside an article body.
var DefaultImageSelectors = []string{
	".view_content img",
	".view_cont img",
	".bbs_view img",
	".board_view img",
	"#bbs_content img",
	".content img",
	"article img",
}

// nonContentImage are name fragments that mark layout images rather than
// photos.
var nonContentImage = []string{
	"icon", "ico_", "bullet", "btn", "button", "logo", "bg_", "_bg", "bg.",
	"background", "blank", "spacer", "banner", "arrow", "sprite", "1x1",
	"pixel", "loading",
}

// IsContentImage reports whether src looks like an article photo rather
// than an icon, bullet, button, logo or background image.
func IsContentImage(src string) bool {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
		return false
	}

	name := strings.ToLower(src)
	if u, err := url.Parse(src); err == nil {
		name = strings.ToLower(u.Path)
		if u.RawQuery != "" {
			name += "?" + strings.ToLower(u.RawQuery)
		}
	}
	for _, frag := range nonContentImage {
		if strings.Contains(name, frag) {
			return false
		}
	}
	return path.Ext(strings.ToLower(strings.SplitN(src, "?", 2)[0])) != ".svg"
}

// LeadImage returns the first acceptable in-content image, resolved against
// base, or the page's OpenGraph or Twitter image when there is none.
func LeadImage(doc *goquery.Document, selectors []string, meta PageMeta, base string) string {
	for _, sel := range selectors {
		var found string
		Select(doc.Selection, sel).EachWithBreak(func(i int, img *goquery.Selection) bool {
			src := imageSource(img)
			if !IsContentImage(src) {
				return true
			}
			found = ResolveURL(base, src)
			return found == ""
		})
		if found != "" {
			return found
		}
	}

	for _, src := range []string{meta.OGImage, meta.TwitterImage} {
		if IsContentImage(src) {
			if u := ResolveURL(base, src); u != "" {
				return u
			}
		}
	}
	return ""
}

// imageSource prefers lazy-load attributes over a placeholder src.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"data-src", "data-original", "src"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
