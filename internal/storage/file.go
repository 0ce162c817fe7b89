package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// JSONLLedger appends entries as newline-delimited JSON. Runs accumulate
// in the same file.
type JSONLLedger struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLLedger opens outputPath for appending, creating it if needed.
func NewJSONLLedger(outputPath string, logger *slog.Logger) (*JSONLLedger, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)

	return &JSONLLedger{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_ledger"),
	}, nil
}

func (l *JSONLLedger) Name() string { return "jsonl" }

func (l *JSONLLedger) Record(_ context.Context, entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		if err := l.enc.Encode(e); err != nil {
			return &types.StorageError{Backend: "jsonl", Op: "record", Err: err}
		}
		l.count++
	}
	return nil
}

func (l *JSONLLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	l.logger.Debug("ledger closed", "path", l.path, "entries", l.count)
	return l.file.Close()
}
