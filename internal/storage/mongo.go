package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ KV = (*MongoKV)(nil)

type mongoEntry struct {
	ID    string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoKV stores one document per key with _id "<namespace>:<key>".
type MongoKV struct {
	coll      *mongo.Collection
	namespace string
	logger    *slog.Logger
}

func NewMongoKV(coll *mongo.Collection, namespace string, logger *slog.Logger) *MongoKV {
	return &MongoKV{coll: coll, namespace: namespace, logger: logger}
}

func (m *MongoKV) docID(key string) string {
	return m.namespace + ":" + key
}

func (m *MongoKV) Get(ctx context.Context, key string) ([]byte, error) {
	var entry mongoEntry
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: m.docID(key)}}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		m.logger.ErrorContext(ctx, "Failed to read key from mongo", slog.String("key", key), slog.Any("error", err))
		return nil, fmt.Errorf("mongo error reading %s: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (m *MongoKV) Set(ctx context.Context, key string, value []byte) error {
	id := m.docID(key)
	_, err := m.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		mongoEntry{ID: id, Value: string(value)},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to write key to mongo", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("mongo error writing %s: %w", key, err)
	}
	return nil
}
