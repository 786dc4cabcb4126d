package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	fieldKey     = "_key"
	fieldVersion = "_version"
)

// Mongo implements Store on a MongoDB database. Each document carries a
// unique "_key" and a monotonically increasing "_version"; versioned
// replaces are conditional writes on both, so losing a race surfaces as
// ErrConflict instead of a silent overwrite.
type Mongo struct {
	db      *mongo.Database
	timeout time.Duration
	logger  *zap.Logger
}

// NewMongo wraps a mongo database with per-call timeouts.
func NewMongo(db *mongo.Database, timeout time.Duration, logger *zap.Logger) *Mongo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mongo{db: db, timeout: timeout, logger: logger}
}

// EnsureIndexes creates the unique key index on each collection. Call once
// at startup.
func (s *Mongo) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, coll := range collections {
		_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: fieldKey, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("ensure index on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Mongo) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Mongo) FindOne(ctx context.Context, collection string, f Filter, out any) (Version, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var raw bson.Raw
	err := s.db.Collection(collection).FindOne(ctx, mongoFilter(f)).Decode(&raw)
	if err != nil {
		return 0, s.mapErr(err)
	}
	version := Version(0)
	if v, lookupErr := raw.LookupErr(fieldVersion); lookupErr == nil {
		version = Version(v.AsInt64())
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return 0, fmt.Errorf("decode document: %w", err)
	}
	return version, nil
}

func (s *Mongo) Find(ctx context.Context, collection string, f Filter, out any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	cur, err := s.db.Collection(collection).Find(ctx, mongoFilter(f))
	if err != nil {
		return s.mapErr(err)
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *Mongo) Count(ctx context.Context, collection string, f Filter) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	n, err := s.db.Collection(collection).CountDocuments(ctx, mongoFilter(f))
	if err != nil {
		return 0, s.mapErr(err)
	}
	return n, nil
}

func (s *Mongo) Insert(ctx context.Context, collection, key string, doc any) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	m, err := toDocument(doc)
	if err != nil {
		return err
	}
	m[fieldKey] = key
	m[fieldVersion] = int64(1)
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		return s.mapErr(err)
	}
	return nil
}

func (s *Mongo) Replace(ctx context.Context, collection, key string, doc any, expected Version) (Version, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	m, err := toDocument(doc)
	if err != nil {
		return 0, err
	}
	next := int64(expected) + 1
	m[fieldKey] = key
	m[fieldVersion] = next

	filter := bson.M{fieldKey: key, fieldVersion: int64(expected)}
	res, err := s.db.Collection(collection).ReplaceOne(ctx, filter, m)
	if err != nil {
		return 0, s.mapErr(err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a vanished document.
		n, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{fieldKey: key})
		if err != nil {
			return 0, s.mapErr(err)
		}
		if n == 0 {
			return 0, ErrNotFound
		}
		return 0, ErrConflict
	}
	return Version(next), nil
}

func (s *Mongo) Delete(ctx context.Context, collection, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{fieldKey: key})
	if err != nil {
		return s.mapErr(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Mongo) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicateKey
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		s.logger.Error("store operation failed", zap.Error(err))
		return err
	}
}

// mongoFilter translates a structured Filter into a bson query. Array
// containment is Mongo's native equality-against-array match; ranges are
// half-open.
func mongoFilter(f Filter) bson.M {
	q := bson.M{}
	for field, v := range f.Eq {
		q[field] = v
	}
	for field, v := range f.Contains {
		q[field] = v
	}
	for field, r := range f.Range {
		cond := bson.M{}
		if r.Min != nil {
			cond["$gte"] = r.Min
		}
		if r.Max != nil {
			cond["$lt"] = r.Max
		}
		q[field] = cond
	}
	return q
}

func toDocument(doc any) (bson.M, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return m, nil
}
