// Package featureflags implements the FeatureFlag store from
// SPEC_FULL.md §3.6: a thin reader/writer over its own small
// `feature_flags` collection (infrastructure config, not tenant business
// data, so it deliberately sits outside the polymorphic document kernel in
// internal/platform/repository) with an in-process ristretto-cached read
// path, grounded on pkg/cache.PermissionCache's Cache[V]-wrapping pattern.
package featureflags

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inspectra/platform-core/pkg/cache"
	"github.com/inspectra/platform-core/pkg/errors"
)

const collectionName = "feature_flags"

// globalScope is the tenantId value stored for a flag that applies to
// every tenant, per SPEC_FULL.md §3.6's "tenantId|null for global".
const globalScope = ""

// Flag is one feature flag record, scoped globally or to one tenant.
type Flag struct {
	Key               string    `bson:"key" json:"key"`
	TenantID          string    `bson:"tenant_id,omitempty" json:"tenantId,omitempty"`
	Enabled           bool      `bson:"enabled" json:"enabled"`
	RolloutPercentage int       `bson:"rollout_percentage" json:"rolloutPercentage"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updatedAt"`
	UpdatedBy         string    `bson:"updated_by,omitempty" json:"updatedBy,omitempty"`
}

// Store reads and writes flags, caching resolved lookups.
type Store struct {
	collection *mongo.Collection
	cache      *cache.Cache[Flag]
}

// New builds a Store backed by db, with a cache of the given size/TTL. A
// zero or negative cacheMaxEntries or cacheTTL falls back to
// pkg/cache.New's own defaults.
func New(db *mongo.Database, cacheMaxEntries int64, cacheTTL time.Duration) (*Store, error) {
	c, err := cache.New[Flag](cache.Config{MaxEntries: cacheMaxEntries, TTL: cacheTTL})
	if err != nil {
		return nil, fmt.Errorf("failed to build feature flag cache: %w", err)
	}
	return &Store{
		collection: db.Collection(collectionName),
		cache:      c,
	}, nil
}

// EnsureIndexes creates the unique (key, tenantId) index named in
// SPEC_FULL.md §6.2.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(collectionName)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}, {Key: "tenant_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("creating feature_flags index: %w", err)
	}
	return nil
}

func cacheKey(key, tenantID string) string {
	return key + ":" + tenantID
}

// IsEnabled resolves key for tenantID: a tenant-scoped flag overrides a
// global one with the same key; an absent flag resolves to false.
// RolloutPercentage is evaluated by the caller (routes gate on the
// returned Flag, not just the boolean, when they need a percentage-based
// rollout decision) — IsEnabled is the common "flat on/off" case.
func (s *Store) IsEnabled(ctx context.Context, key, tenantID string) (bool, error) {
	flag, err := s.resolve(ctx, key, tenantID)
	if err != nil {
		return false, err
	}
	if flag == nil {
		return false, nil
	}
	return flag.Enabled, nil
}

// Resolve returns the effective flag for (key, tenantID), or nil if
// neither a tenant-scoped nor a global flag exists.
func (s *Store) Resolve(ctx context.Context, key, tenantID string) (*Flag, error) {
	return s.resolve(ctx, key, tenantID)
}

func (s *Store) resolve(ctx context.Context, key, tenantID string) (*Flag, error) {
	if cached, ok := s.cache.Get(cacheKey(key, tenantID)); ok {
		if cached.Key == "" {
			return nil, nil
		}
		f := cached
		return &f, nil
	}

	flag, err := s.findOne(ctx, key, tenantID)
	if err != nil {
		return nil, err
	}
	if flag == nil && tenantID != globalScope {
		flag, err = s.findOne(ctx, key, globalScope)
		if err != nil {
			return nil, err
		}
	}

	if flag == nil {
		s.cache.Set(cacheKey(key, tenantID), Flag{})
		return nil, nil
	}

	s.cache.Set(cacheKey(key, tenantID), *flag)
	return flag, nil
}

func (s *Store) findOne(ctx context.Context, key, tenantID string) (*Flag, error) {
	var flag Flag
	err := s.collection.FindOne(ctx, bson.M{"key": key, "tenant_id": tenantID}).Decode(&flag)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.ErrDatabase(err, "featureflags.findOne")
	}
	return &flag, nil
}

// Set upserts a flag and invalidates its cached entries (both the exact
// tenant scope this write targets, and nothing else — a global write does
// not know which tenant-scoped overrides might shadow it, so those remain
// cached until their own TTL expires).
func (s *Store) Set(ctx context.Context, key, tenantID string, enabled bool, rolloutPercentage int, updatedBy string) (Flag, error) {
	now := time.Now().UTC()
	flag := Flag{
		Key:               key,
		TenantID:          tenantID,
		Enabled:           enabled,
		RolloutPercentage: rolloutPercentage,
		UpdatedAt:         now,
		UpdatedBy:         updatedBy,
	}

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key, "tenant_id": tenantID},
		bson.M{"$set": flag},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return Flag{}, errors.ErrDatabase(err, "featureflags.set")
	}

	s.cache.Del(cacheKey(key, tenantID))
	return flag, nil
}

// List returns every flag, global and tenant-scoped, for admin
// introspection routes.
func (s *Store) List(ctx context.Context) ([]Flag, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.ErrDatabase(err, "featureflags.list")
	}
	defer cursor.Close(ctx)

	var flags []Flag
	if err := cursor.All(ctx, &flags); err != nil {
		return nil, errors.ErrDatabase(err, "featureflags.list.decode")
	}
	return flags, nil
}

// Close releases the cache.
func (s *Store) Close() {
	s.cache.Close()
}
