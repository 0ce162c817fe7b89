package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathPrefix marks a selector in a selector list as an XPath expression.
// Everything else is a CSS selector.
const XPathPrefix = "xpath:"

// Select evaluates one selector beneath root. XPath expressions are run with
// htmlquery against every node in root and the results are mapped back into
// a goquery selection so callers can mix both kinds freely. An invalid
// selector of either kind matches nothing.
func Select(root *goquery.Selection, selector string) *goquery.Selection {
	expr, isXPath := strings.CutPrefix(selector, XPathPrefix)
	if !isXPath {
		return root.Find(selector)
	}

	var nodes []*html.Node
	for _, n := range root.Nodes {
		found, err := htmlquery.QueryAll(n, expr)
		if err != nil {
			return root.FindNodes()
		}
		nodes = append(nodes, found...)
	}
	return root.FindNodes(nodes...)
}

// FirstMatch tries selectors in order and returns the first non-empty
// selection along with the selector that produced it.
func FirstMatch(root *goquery.Selection, selectors []string) (*goquery.Selection, string) {
	for _, sel := range selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if found := Select(root, sel); found.Length() > 0 {
			return found, sel
		}
	}
	return root.FindNodes(), ""
}
