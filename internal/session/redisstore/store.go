// Package redisstore keeps sessions in Redis as JSON documents.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/session"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Client is the subset of *redis.Client the store uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store is a session.Store backed by Redis. Each session is one key that
// expires after the configured TTL.
type Store struct {
	client Client
	ttl    time.Duration
}

// NewStore wraps a Redis client. A ttl of zero stores keys without expiry.
func NewStore(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Connect parses a Redis address or URL, connects and pings the server.
// A bare host:port is accepted as well as a redis:// URL.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		opt, err = redis.ParseURL("redis://" + addr)
		if err != nil {
			opt = &redis.Options{Addr: addr}
		}
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Connect: failed to connect to redis: %w", err)
	}
	return client, nil
}

// Key returns the Redis key of a session ID.
func Key(id string) string {
	return keyPrefix + id
}

// Save implements session.Store.
func (s *Store) Save(ctx context.Context, sess *session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("Save: session ID is required")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("Save: marshal session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, Key(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("Save: set %s: %w", Key(sess.ID), err)
	}
	return nil
}

// Get implements session.Store.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("Get: %s: %w", id, session.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: get %s: %w", Key(id), err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("Get: decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete implements session.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("Delete: del %s: %w", Key(id), err)
	}
	return nil
}

var (
	_ session.Store = (*Store)(nil)
	_ Client        = (*redis.Client)(nil)
)
