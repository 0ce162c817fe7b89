package pipeline

import (
	"context"
	"log/slog"

	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// Stage processes a candidate and returns it, possibly enriched.
// Return nil to stop the candidate here; the stage sets its Outcome first.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Process works on one candidate. Return nil to stop processing.
	Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error)
}

// Pipeline chains stages together.
type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a stage to the chain.
func (p *Pipeline) Use(s Stage) {
	p.stages = append(p.stages, s)
	p.logger.Debug("stage added", "name", s.Name(), "position", len(p.stages))
}

// Process runs c through every stage in order. A stage error marks the
// candidate failed and is returned as a *types.PipelineError; the candidate
// is always returned so callers can record its outcome.
func (p *Pipeline) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	current := c

	for _, s := range p.stages {
		result, err := s.Process(ctx, current)
		if err != nil {
			current.Outcome = types.OutcomeFailed
			return current, &types.PipelineError{
				Stage: s.Name(),
				Title: current.Stub.Title,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("candidate stopped", "stage", s.Name(), "url", current.Stub.URL, "outcome", current.Outcome)
			return current, nil
		}
		current = result
	}

	return current, nil
}
