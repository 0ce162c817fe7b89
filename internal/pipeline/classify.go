package pipeline

import (
	"context"

	"github.com/gyeonginblue/dailyfeed/internal/classify"
	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// ClassifyStage assigns the category record id and tags.
type ClassifyStage struct {
	categories map[string]string
	maxTags    int
}

// NewClassifyStage maps taxonomy keys through categories to store ids.
func NewClassifyStage(categories map[string]string, maxTags int) *ClassifyStage {
	return &ClassifyStage{categories: categories, maxTags: maxTags}
}

func (s *ClassifyStage) Name() string { return "classify" }

func (s *ClassifyStage) Process(_ context.Context, c *types.Candidate) (*types.Candidate, error) {
	text := c.Stub.Summary
	if c.Detail != nil {
		text += " " + parser.StripTags(c.Detail.BodyHTML)
	}
	key := classify.Category(c.Stub.Title, text)

	c.Category = s.categories[key]
	if c.Category == "" {
		c.Category = s.categories[classify.Default]
	}
	c.Tags = classify.Tags(c.SourceTag, c.Stub.Title, s.maxTags)
	return c, nil
}
