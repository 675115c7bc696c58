package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"btc_tracker_backend/models"
	"btc_tracker_backend/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB database and collection names
const (
	MongoDBName           = "btc_data"
	MongoCandleCollection = "1h_price_data"
	MongoLockCollection   = "update_locks"
)

// ErrStoreUnavailable marks a store read/write failure. Writes already made
// before the failure stay in place; the run is safely retryable.
var ErrStoreUnavailable = errors.New("candle store unavailable")

// CandleStore is the persistence contract the updater depends on: load the
// most recent n documents ascending by timestamp, and insert-or-replace one
// document keyed by its timestamp.
type CandleStore interface {
	LoadRecent(ctx context.Context, n int) ([]models.CandleDocument, error)
	Upsert(ctx context.Context, doc models.CandleDocument) error
}

// MongoCandleStore persists candle documents in MongoDB Atlas.
type MongoCandleStore struct {
	client  *mongo.Client
	candles *mongo.Collection
	locks   *mongo.Collection
}

// NewMongoCandleStore connects to MongoDB, verifies the connection and
// ensures indexes.
func NewMongoCandleStore(ctx context.Context, uri string) (*MongoCandleStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(MongoDBName)
	store := &MongoCandleStore{
		client:  client,
		candles: db.Collection(MongoCandleCollection),
		locks:   db.Collection(MongoLockCollection),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		logger.Warn("failed to create MongoDB indexes", zap.Error(err))
	}

	logger.Info("MongoDB connected")
	return store, nil
}

// Close disconnects the underlying client.
func (s *MongoCandleStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ensureIndexes creates the unique timestamp key and the lock TTL index.
func (s *MongoCandleStore) ensureIndexes(ctx context.Context) error {
	_, err := s.candles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	// Expired locks are reaped by MongoDB itself; TryLock also treats an
	// expired-but-unreaped lock as free.
	_, err = s.locks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

// LoadRecent returns the most recent n candle documents, ascending by
// timestamp.
func (s *MongoCandleStore) LoadRecent(ctx context.Context, n int) ([]models.CandleDocument, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(n)).
		SetProjection(bson.M{"_id": 0})

	cursor, err := s.candles.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent candles: %v", ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var docs []models.CandleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode recent candles: %v", ErrStoreUnavailable, err)
	}

	// Reverse into ascending order.
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
	return docs, nil
}

// Upsert inserts or fully replaces the document for doc.Timestamp. Replaying
// the same document is a no-op at the data level.
func (s *MongoCandleStore) Upsert(ctx context.Context, doc models.CandleDocument) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.candles.ReplaceOne(ctx, bson.M{"timestamp": doc.Timestamp}, doc, opts)
	if err != nil {
		return fmt.Errorf("%w: upsert candle at %s: %v", ErrStoreUnavailable, doc.Timestamp.Format(time.RFC3339), err)
	}
	return nil
}

// Count returns the number of persisted candle documents.
func (s *MongoCandleStore) Count(ctx context.Context) (int64, error) {
	return s.candles.CountDocuments(ctx, bson.M{})
}

// TryLock acquires the named advisory lock if it is free or expired. Returns
// false without error when another holder has it. Best-effort only: the lock
// avoids duplicate feed calls from overlapping runs, it is not mutual
// exclusion — upserts stay idempotent regardless.
func (s *MongoCandleStore) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	_, err := s.locks.UpdateOne(ctx,
		bson.M{"_id": name, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"expires_at": now.Add(ttl)}},
		options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	return true, nil
}

// Unlock releases the named advisory lock.
func (s *MongoCandleStore) Unlock(ctx context.Context, name string) error {
	_, err := s.locks.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("release lock %q: %w", name, err)
	}
	return nil
}
