// Package snapcache provides a Redis read-through cache for immutable snapshots.
package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"sowdiff/api/internal/revdiff"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "snapshot:"
	DefaultTTL = 10 * time.Minute
)

// Source is the version store the cache sits in front of.
type Source interface {
	GetSnapshot(ctx context.Context, id string) (revdiff.Snapshot, error)
	Ping(ctx context.Context) error
}

type Store struct {
	client *redis.Client
	source Source
	prefix string
	ttl    time.Duration
}

// New connects to redisURL and verifies the connection before returning.
func New(redisURL string, source Source, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, source, ttl), nil
}

func NewWithClient(client *redis.Client, source Source, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		client: client,
		source: source,
		prefix: keyPrefix,
		ttl:    ttl,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// GetSnapshot serves id from Redis when present, otherwise loads it from the
// source and caches it. Redis failures fall through to the source.
func (s *Store) GetSnapshot(ctx context.Context, id string) (revdiff.Snapshot, error) {
	key := s.key(id)
	payload, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var snapshot revdiff.Snapshot
		decodeErr := json.Unmarshal(payload, &snapshot)
		if decodeErr == nil {
			return snapshot, nil
		}
		log.Printf("snapcache: discard undecodable entry %s: %v", key, decodeErr)
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("snapcache: get %s: %v", key, err)
	}

	snapshot, err := s.source.GetSnapshot(ctx, id)
	if err != nil {
		return revdiff.Snapshot{}, err
	}

	// Only the canonical id is cached; aliases such as abbreviated hashes
	// are always resolved by the source.
	if snapshot.ID != id {
		return snapshot, nil
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("snapcache: encode %s: %v", key, err)
		return snapshot, nil
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		log.Printf("snapcache: set %s: %v", key, err)
	}
	return snapshot, nil
}

// Ping checks the source first, then Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.source.Ping(ctx); err != nil {
		return err
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
