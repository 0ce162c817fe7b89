package pipeline

import (
	"context"
	"log/slog"

	"github.com/gyeonginblue/dailyfeed/internal/media"
	"github.com/gyeonginblue/dailyfeed/internal/storage"
	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// ImageSource downloads a lead image.
type ImageSource interface {
	Download(ctx context.Context, rawURL, referer string) (*media.Image, error)
}

// AttachStage downloads the lead image and attaches it to the created
// record. Its failures never undo the record; they are kept on the
// candidate as ImageErr.
type AttachStage struct {
	images     ImageSource
	store      storage.RecordStore
	collection string
	field      string
	logger     *slog.Logger
}

// NewAttachStage creates the image attachment stage.
func NewAttachStage(images ImageSource, store storage.RecordStore, collection, field string, logger *slog.Logger) *AttachStage {
	return &AttachStage{
		images:     images,
		store:      store,
		collection: collection,
		field:      field,
		logger:     logger.With("component", "attach_stage"),
	}
}

func (s *AttachStage) Name() string { return "attach" }

func (s *AttachStage) Process(ctx context.Context, c *types.Candidate) (*types.Candidate, error) {
	if c.RecordID == "" || c.Detail == nil || c.Detail.LeadImageURL == "" {
		return c, nil
	}
	imageURL := c.Detail.LeadImageURL

	img, err := s.images.Download(ctx, imageURL, c.Stub.URL)
	if err != nil {
		c.ImageErr = err
		s.logger.Warn("lead image rejected", "source", c.SourceName, "url", imageURL, "error", err)
		return c, nil
	}

	if err := s.store.AttachFile(ctx, s.collection, c.RecordID, s.field, img.Filename, img.Data); err != nil {
		c.ImageErr = err
		s.logger.Warn("image attach failed", "source", c.SourceName, "id", c.RecordID, "error", err)
		return c, nil
	}

	c.ImageAttached = true
	c.Outcome = types.OutcomeAddedWithImage
	s.logger.Info("image attached", "source", c.SourceName, "id", c.RecordID, "bytes", img.Size())
	return c, nil
}
