package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gyeonginblue/dailyfeed/internal/config"
)

// Entry kinds written to a ledger.
const (
	EntryItem    = "item"
	EntrySummary = "summary"
)

// Entry is one line of the run ledger: either a per-item outcome or the
// run summary. The store's article record carries none of this.
type Entry struct {
	RunID     string    `json:"run_id"               bson:"run_id"`
	Kind      string    `json:"kind"                 bson:"kind"`
	Timestamp time.Time `json:"timestamp"            bson:"timestamp"`

	Source        string `json:"source,omitempty"         bson:"source,omitempty"`
	SourceTag     string `json:"source_tag,omitempty"     bson:"source_tag,omitempty"`
	Title         string `json:"title,omitempty"          bson:"title,omitempty"`
	URL           string `json:"url,omitempty"            bson:"url,omitempty"`
	Outcome       string `json:"outcome,omitempty"        bson:"outcome,omitempty"`
	Extraction    string `json:"extraction,omitempty"     bson:"extraction,omitempty"`
	Category      string `json:"category,omitempty"       bson:"category,omitempty"`
	RecordID      string `json:"record_id,omitempty"      bson:"record_id,omitempty"`
	ImageAttached bool   `json:"image_attached,omitempty" bson:"image_attached,omitempty"`
	Error         string `json:"error,omitempty"          bson:"error,omitempty"`

	Stats map[string]int `json:"stats,omitempty" bson:"stats,omitempty"`
}

// Ledger is the interface for run ledger backends.
type Ledger interface {
	// Record appends entries.
	Record(ctx context.Context, entries ...Entry) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// NopLedger discards everything.
type NopLedger struct{}

func (NopLedger) Record(context.Context, ...Entry) error { return nil }
func (NopLedger) Close() error                           { return nil }
func (NopLedger) Name() string                           { return "none" }

// NewLedger opens the backend named by cfg.Type.
func NewLedger(cfg *config.LedgerConfig, logger *slog.Logger) (Ledger, error) {
	switch cfg.Type {
	case "", "none":
		return NopLedger{}, nil
	case "jsonl":
		return NewJSONLLedger(cfg.OutputPath, logger)
	case "mongodb":
		return NewMongoLedger(cfg.MongoURI, cfg.Database, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Type)
	}
}
