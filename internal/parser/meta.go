package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta holds the head metadata the detail extractor falls back on.
type PageMeta struct {
	Description   string
	OGDescription string
	OGImage       string
	TwitterImage  string
}

// Summary returns the preferred page-provided summary.
func (m PageMeta) Summary() string {
	if m.Description != "" {
		return m.Description
	}
	return m.OGDescription
}

// ReadMeta collects standard, OpenGraph and Twitter card meta tags.
func ReadMeta(doc *goquery.Document) PageMeta {
	var m PageMeta

	m.Description = metaContent(doc, `meta[name="description"], meta[name="Description"]`)

	og := make(map[string]string)
	doc.Find(`meta[property^="og:"]`).Each(func(i int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		key := strings.TrimPrefix(property, "og:")
		if content = strings.TrimSpace(content); content != "" {
			if _, seen := og[key]; !seen {
				og[key] = content
			}
		}
	})
	m.OGDescription = NormalizeSpace(og["description"])
	m.OGImage = og["image"]
	if m.OGImage == "" {
		m.OGImage = og["image:url"]
	}

	m.TwitterImage = metaContent(doc, `meta[name="twitter:image"], meta[property="twitter:image"]`)

	m.Description = NormalizeSpace(m.Description)
	return m
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}
