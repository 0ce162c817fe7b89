package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// NewSlug returns a slug unique without coordination: a timestamp plus
// eight random hex characters.
func NewSlug(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("news-%s-%s", now.UTC().Format("20060102150405"), id[:8])
}

// PersistStage creates the article record. A rejected create fails the
// candidate; it is not retried within the run.
type PersistStage struct {
	store      storage.RecordStore
	collection string
	titleLen   int
	summaryLen int
	now        func() time.Time
	logger     *slog.Logger
}

// NewPersistStage creates the record-creation stage.
func NewPersistStage(store storage.RecordStore, collection string, titleLen, summaryLen int, logger *slog.Logger) *PersistStage {
	return &PersistStage{
		store:      store,
		collection: collection,
		titleLen:   titleLen,
		summaryLen: summaryLen,
		now:        time.Now,
		logger:     logger.With("component", "persist_stage"),
	}
}

// WithClock replaces the stage's time source.
func (s *PersistStage) WithClock(now func() time.Time) *PersistStage {
	s.now = now
	return s
}

func (s *PersistStage) Name() string { return "persist" }

func (s *PersistStage) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	now := s.now()
	rec := &types.ArticleRecord{
		Title:       parser.Truncate(c.Stub.Title, s.titleLen),
		Slug:        NewSlug(now),
		Summary:     s.summary(c),
		Content:     Body(c),
		Category:    c.Category,
		Status:      types.StatusPublished,
		Views:       0,
		Tags:        c.Tags,
		PublishedAt: now,
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}

	id, err := s.store.Create(ctx, s.collection, rec.Fields())
	if err != nil {
		s.logger.Error("record creation failed",
			"source", c.SourceName,
			"title", c.Stub.Title,
			"error", err,
		)
		return nil, err
	}

	c.Record = rec
	c.RecordID = id
	c.Outcome = types.OutcomeAdded
	s.logger.Info("article added",
		"source", c.SourceName,
		"title", parser.Truncate(c.Stub.Title, 40),
		"id", id,
		"extraction", c.Extraction(),
	)
	return c, nil
}

func (s *PersistStage) summary(c *types.Candidate) string {
	switch {
	case c.Detail != nil && c.Detail.Summary != "":
		return parser.Truncate(c.Detail.Summary, s.summaryLen)
	case c.Stub.Summary != "":
		return parser.Truncate(c.Stub.Summary, s.summaryLen)
	default:
		return parser.Truncate(c.Stub.Title, s.summaryLen)
	}
}
