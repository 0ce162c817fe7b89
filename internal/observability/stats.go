package observability

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// Stats accumulates run counters. Each source step returns its own Stats
// and the orchestrator merges them, so nothing here is shared or global.
type Stats struct {
	SourcesAttempted      int
	SourcesWithCandidates int
	ListingFailures       int
	EmptyListings         int

	Candidates       int
	Added            int
	AddedWithImage   int
	SkippedDuplicate int
	Failed           int

	DetailFallbacks int
	ImageFailures   int
}

// Record counts the terminal outcome of one candidate.
func (s *Stats) Record(c *types.Candidate) {
	s.Candidates++
	switch c.Outcome {
	case types.OutcomeAddedWithImage:
		s.Added++
		s.AddedWithImage++
	case types.OutcomeAdded:
		s.Added++
	case types.OutcomeDuplicate:
		s.SkippedDuplicate++
	case types.OutcomeFailed:
		s.Failed++
	}
	if c.Record != nil && c.Extraction() == types.ExtractionFallback {
		s.DetailFallbacks++
	}
	if c.ImageErr != nil {
		s.ImageFailures++
	}
}

// Merge adds other's counters into s.
func (s *Stats) Merge(other Stats) {
	s.SourcesAttempted += other.SourcesAttempted
	s.SourcesWithCandidates += other.SourcesWithCandidates
	s.ListingFailures += other.ListingFailures
	s.EmptyListings += other.EmptyListings
	s.Candidates += other.Candidates
	s.Added += other.Added
	s.AddedWithImage += other.AddedWithImage
	s.SkippedDuplicate += other.SkippedDuplicate
	s.Failed += other.Failed
	s.DetailFallbacks += other.DetailFallbacks
	s.ImageFailures += other.ImageFailures
}

// Snapshot returns all counters as a map.
func (s Stats) Snapshot() map[string]int {
	return map[string]int{
		"sources_attempted":       s.SourcesAttempted,
		"sources_with_candidates": s.SourcesWithCandidates,
		"listing_failures":        s.ListingFailures,
		"empty_listings":          s.EmptyListings,
		"candidates":              s.Candidates,
		"added":                   s.Added,
		"added_with_image":        s.AddedWithImage,
		"skipped_duplicate":       s.SkippedDuplicate,
		"failed":                  s.Failed,
		"detail_fallbacks":        s.DetailFallbacks,
		"image_failures":          s.ImageFailures,
	}
}

// LogSummary writes the run summary as a single info line.
func (s Stats) LogSummary(logger *slog.Logger, runID string, elapsed time.Duration) {
	logger.Info("daily update complete",
		"run_id", runID,
		"elapsed", elapsed.Round(time.Millisecond),
		"sources_attempted", s.SourcesAttempted,
		"sources_with_candidates", s.SourcesWithCandidates,
		"added", s.Added,
		"added_with_image", s.AddedWithImage,
		"skipped_duplicate", s.SkippedDuplicate,
		"failed", s.Failed,
		"detail_fallbacks", s.DetailFallbacks,
		"image_failures", s.ImageFailures,
		"listing_failures", s.ListingFailures,
		"empty_listings", s.EmptyListings,
	)
}

// WriteText prints the counters one per line, sorted by name.
func (s Stats) WriteText(w io.Writer) error {
	snap := s.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%-24s %d\n", k, snap[k]); err != nil {
			return err
		}
	}
	return nil
}
