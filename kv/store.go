package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnconfigured is returned by every write on a store that was
	// started without connection secrets.
	ErrUnconfigured = errors.New("kv store not configured")
	// ErrUnavailable wraps unexpected Redis failures.
	ErrUnavailable = errors.New("kv store unavailable")
	// ErrNotFound reports an absent key or member.
	ErrNotFound = errors.New("kv key not found")
)

// Env carries the connection secrets read from the process environment.
// An empty Addr means the store runs unconfigured.
type Env struct {
	Addr     string `env:"GATEKIT_REDIS_ADDR"`
	Password string `env:"GATEKIT_REDIS_PASSWORD"`
	DB       int    `env:"GATEKIT_REDIS_DB" envDefault:"0"`
}

// Store adapts a Redis client to the minimal surface the identity and
// session stores need. The zero value is an unconfigured store.
type Store struct {
	client redis.UniversalClient
}

// New wraps an existing client. A nil client yields an unconfigured store.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

// NewFromEnv reads connection secrets from the environment and decides the
// store mode once: present secrets produce a configured store, absent ones
// an unconfigured store that fails closed on writes.
func NewFromEnv() (*Store, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse kv env: %w", err)
	}

	if e.Addr == "" {
		return &Store{}, nil
	}

	return New(redis.NewClient(&redis.Options{
		Addr:     e.Addr,
		Password: e.Password,
		DB:       e.DB,
	})), nil
}

// Configured reports whether the store was started with connection secrets.
func (s *Store) Configured() bool {
	return s != nil && s.client != nil
}

// Client exposes the underlying Redis client for stores that need
// pipelines or scripts. Nil when unconfigured.
func (s *Store) Client() redis.UniversalClient {
	if s == nil {
		return nil
	}
	return s.client
}

// Get returns the value at key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.Configured() {
		return nil, ErrNotFound
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Set stores value at key without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if !s.Configured() {
		return ErrUnconfigured
	}

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetEx stores value at key with a store-level TTL.
func (s *Store) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !s.Configured() {
		return ErrUnconfigured
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SetNX stores value at key only when the key is absent, and reports
// whether the claim won. Used for the email uniqueness index.
func (s *Store) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	if !s.Configured() {
		return false, ErrUnconfigured
	}

	ok, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Del removes key. Deleting an absent key is not an error.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if !s.Configured() {
		return ErrUnconfigured
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SAdd adds members to the set at key.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	if !s.Configured() {
		return ErrUnconfigured
	}

	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SAdd(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SRem removes members from the set at key.
func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	if !s.Configured() {
		return ErrUnconfigured
	}

	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := s.client.SRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// SMembers returns every member of the set at key. An absent set is empty.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	if !s.Configured() {
		return []string{}, nil
	}

	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return members, nil
}

// Scan walks keys matching pattern. This is an admin-only O(n) operation
// and must not be used in request hot paths.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	if !s.Configured() {
		return []string{}, nil
	}

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

// Ping returns a point-in-time availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	if !s.Configured() {
		return 0, ErrUnconfigured
	}

	start := time.Now()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
