package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gyeonginblue/dailyfeed/internal/types"
)

// MongoLedger writes ledger entries to a MongoDB collection.
type MongoLedger struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoLedger connects to uri and verifies the server is reachable.
func NewMongoLedger(uri, database, collection string, logger *slog.Logger) (*MongoLedger, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoLedger{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_ledger"),
	}, nil
}

func (l *MongoLedger) Name() string { return "mongodb" }

func (l *MongoLedger) Record(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := l.collection.InsertMany(ctx, docs); err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "record", Err: err}
	}

	l.count += len(entries)
	return nil
}

func (l *MongoLedger) Close() error {
	l.logger.Debug("mongodb ledger closing", "entries", l.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.client.Disconnect(ctx)
}
