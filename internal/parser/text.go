package parser

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeSpace trims s and collapses every run of whitespace
// (including non-breaking spaces) into a single space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, isSpace), " ")
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v', '\u00a0', '\u3000', '\u200b':
		return true
	}
	return false
}

// StripTags returns the whitespace-normalized text content of an HTML
// fragment. Input that is not markup comes back normalized.
func StripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return NormalizeSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return NormalizeSpace(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	return NormalizeSpace(doc.Text())
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// RuneLen returns the number of characters in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsScriptURL reports whether href is empty, a fragment, or a script
// pseudo-URL that cannot be followed.
func IsScriptURL(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	return h == "" || strings.HasPrefix(h, "#") || strings.HasPrefix(h, "javascript:")
}

// ResolveURL resolves ref against base. It returns "" if either fails to
// parse or the result is not http(s).
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !refURL.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || base == "" {
			return ""
		}
		refURL = baseURL.ResolveReference(refURL)
	}
	if refURL.Scheme != "http" && refURL.Scheme != "https" {
		return ""
	}
	refURL.Fragment = ""
	return refURL.String()
}
