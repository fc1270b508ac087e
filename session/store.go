package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dealgrid/gatekit/internal"
	"github.com/dealgrid/gatekit/kv"
)

// ErrNotFound covers absent, expired, and malformed sessions alike; callers
// treat all three as "not authenticated".
var ErrNotFound = errors.New("session not found")

const minTTL = time.Second

// deleteSessionScript removes the set membership before the record, so no
// interleaved reader can observe a deleted record whose id the set still
// claims.
const deleteSessionScript = `
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is the Redis-backed session store.
type Store struct {
	kv            *kv.Store
	prefix        string
	userSetPrefix string
}

// NewStore creates a session [Store] on the given adapter. prefix sets the
// record key namespace; the per-user id sets live under "su:".
func NewStore(kvStore *kv.Store, prefix string) *Store {
	if prefix == "" {
		prefix = "ss"
	}
	return &Store{
		kv:            kvStore,
		prefix:        prefix,
		userSetPrefix: "su:",
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.userSetPrefix + userID
}

// Create allocates a session id, stores the record with a store-level TTL
// equal to the remaining lifetime, and tracks the id in the owner's set.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	if !s.kv.Configured() {
		return nil, kv.ErrUnconfigured
	}
	if ttl < minTTL {
		return nil, fmt.Errorf("session ttl %v below minimum %v", ttl, minTTL)
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:        sid.String(),
		UserID:    userID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.kv.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), data, ttl)
		pipe.SAdd(ctx, s.userKey(userID), sess.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}

	return sess, nil
}

// Get returns the session for id, reconciling lazily on the way: a record
// whose expiry has passed is deleted, pruned from its owner's set, and
// reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := internal.ParseSessionID(sessionID); err != nil {
		return nil, ErrNotFound
	}

	data, err := s.kv.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sess, err := Decode(data)
	if err != nil {
		// A corrupt record is unusable; reconcile it away. The owner is
		// unknown, so only the record itself can be removed.
		_ = s.kv.Del(ctx, s.key(sessionID))
		return nil, ErrNotFound
	}
	sess.ID = sessionID

	if sess.Expired(time.Now()) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return sess, nil
}

// Refresh recomputes the absolute expiry from now and rewrites the record
// with a matching store TTL. A missing or expired session is a no-op that
// returns ErrNotFound; nothing is created. Two concurrent refreshes are
// safe: both recompute from "now" and the last write wins.
func (s *Store) Refresh(ctx context.Context, sessionID string, ttl time.Duration) (*Session, error) {
	if ttl < minTTL {
		return nil, fmt.Errorf("session ttl %v below minimum %v", ttl, minTTL)
	}

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.ExpiresAt = time.Now().Add(ttl).Unix()

	data, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	_, err = s.kv.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sessionID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}

	return sess, nil
}

// Delete revokes one session. Unknown and repeated ids are not errors.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.kv.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}

	sess, err := Decode(data)
	if err != nil {
		return s.kv.Del(ctx, s.key(sessionID))
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser revokes every tracked session for userID in one pass.
// Exposed for forced-logout and password-change flows.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	if !s.kv.Configured() {
		return kv.ErrUnconfigured
	}

	sessionIDs, err := s.kv.SMembers(ctx, s.userKey(userID))
	if err != nil {
		return err
	}

	_, err = s.kv.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, sid := range sessionIDs {
			pipe.Del(ctx, s.key(sid))
		}
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns the tracked session ids for a user. The set may
// briefly lead the records: ids of store-evicted sessions linger until the
// next lookup or revocation prunes them.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	return s.kv.SMembers(ctx, s.userKey(userID))
}

// ActiveSessionCount returns the size of the user's tracked session set.
func (s *Store) ActiveSessionCount(ctx context.Context, userID string) (int, error) {
	ids, err := s.ActiveSessionIDs(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	if !s.kv.Configured() {
		return nil
	}

	keys := []string{s.key(sessionID), s.userKey(userID)}
	if err := deleteSessionLua.Run(ctx, s.kv.Client(), keys, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", kv.ErrUnavailable, err)
	}

	return nil
}
