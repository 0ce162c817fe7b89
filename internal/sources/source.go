// Package sources holds the static registry of news sources and the custom
// listing extractors used by sources whose listings are not row-based.
package sources

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// Link-extraction strategies.
const (
	StrategyAttribute     = "attribute"
	StrategyInlineHandler = "inline_handler"
	StrategyCustom        = "custom"
)

// CustomExtractor reads stubs straight from a fetched listing page,
// bypassing the row and selector logic.
type CustomExtractor struct {
	Name    string
	Extract func(page *types.Page, src *Source) ([]types.ArticleStub, error)
}

// Source is one external site's scraping configuration.
type Source struct {
	Name       string
	Tag        string
	ListingURL string
	BaseURL    string

	// Rendering sources have script-built listings and are read through
	// the browser.
	Rendering bool

	Rule parser.ListingRule

	ContentSelectors []string
	ImageSelectors   []string

	// Custom replaces row extraction when set.
	Custom *CustomExtractor

	// Headers are sent with the listing request.
	Headers http.Header

	// Skip, when set, makes the orchestrator pass over the source with
	// this reason instead of fetching it.
	Skip error
}

// Strategy names the source's link-extraction variant.
func (s *Source) Strategy() string {
	switch {
	case s.Custom != nil:
		return StrategyCustom
	case s.Rule.Link != nil:
		return s.Rule.Link.Kind()
	default:
		return StrategyAttribute
	}
}

// ListingRule returns the rule with the source's base URL filled in.
func (s *Source) ListingRule() parser.ListingRule {
	rule := s.Rule
	if rule.BaseURL == "" {
		rule.BaseURL = s.BaseURL
	}
	return rule
}

// Candidate wraps a stub from this source for the item pipeline.
func (s *Source) Candidate(stub types.ArticleStub) *types.Candidate {
	c := types.NewCandidate(stub, s.Name, s.Tag)
	c.ListingURL = s.ListingURL
	c.Rendered = s.Rendering
	c.ContentSelectors = s.ContentSelectors
	c.ImageSelectors = s.ImageSelectors
	return c
}

func (s *Source) String() string {
	return fmt.Sprintf("%s [%s] %s", s.Name, s.Tag, s.ListingURL)
}

// Select keeps the sources named in names, matched against Name or Tag,
// in registry order. An empty names list keeps everything.
func Select(all []*Source, names []string) ([]*Source, error) {
	if len(names) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}

	var out []*Source
	matched := make(map[string]bool)
	for _, s := range all {
		switch {
		case want[s.Name]:
			matched[s.Name] = true
		case want[s.Tag]:
			matched[s.Tag] = true
		default:
			continue
		}
		out = append(out, s)
	}

	for n := range want {
		if !matched[n] {
			return nil, fmt.Errorf("unknown source %q", n)
		}
	}
	return out, nil
}

// NeedsRenderer reports whether any source requires the browser.
func NeedsRenderer(all []*Source) bool {
	for _, s := range all {
		if s.Rendering && s.Skip == nil {
			return true
		}
	}
	return false
}
