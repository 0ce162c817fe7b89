package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gyeonginblue/dailyfeed/internal/parser"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// quoteStripper removes the quote characters press-release titles wrap
// names and slogans in.
var quoteStripper = strings.NewReplacer(
	`"`, "", `'`, "", "`", "",
	"“", "", "”", "", "‘", "", "’", "",
	"「", "", "」", "", "『", "", "』", "",
	"《", "", "》", "", "〈", "", "〉", "",
)

// TitlePrefix is the dedup key: the title with quotes removed, cut to n
// characters.
func TitlePrefix(title string, n int) string {
	return strings.TrimSpace(parser.Truncate(strings.TrimSpace(quoteStripper.Replace(title)), n))
}

// DedupStage stops candidates whose title prefix already appears in a
// stored record's title. A failed lookup lets the candidate through.
type DedupStage struct {
	store      storage.RecordStore
	collection string
	prefixLen  int
	logger     *slog.Logger
}

// NewDedupStage creates the dedup gate.
func NewDedupStage(store storage.RecordStore, collection string, prefixLen int, logger *slog.Logger) *DedupStage {
	return &DedupStage{
		store:      store,
		collection: collection,
		prefixLen:  prefixLen,
		logger:     logger.With("component", "dedup_gate"),
	}
}

func (s *DedupStage) Name() string { return "dedup" }

func (s *DedupStage) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	prefix := TitlePrefix(c.Stub.Title, s.prefixLen)
	if prefix == "" {
		return c, nil
	}

	res, err := s.store.List(ctx, s.collection, storage.ContainsFilter("title", prefix), 1)
	if err != nil {
		s.logger.Warn("duplicate check failed, treating as new",
			"source", c.SourceName,
			"title", c.Stub.Title,
			"error", err,
		)
		return c, nil
	}

	if res.TotalItems > 0 {
		c.Outcome = types.OutcomeDuplicate
		s.logger.Info("duplicate skipped", "source", c.SourceName, "title", c.Stub.Title)
		return nil, nil
	}
	return c, nil
}
