package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dealgrid/gatekit/kv"
	"github.com/dealgrid/gatekit/password"
)

var (
	// ErrDuplicateEmail reports a sign-up against an email the index
	// already resolves. Safe to surface verbatim.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound reports an absent user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInput reports a rejected create or update payload.
	ErrInvalidInput = errors.New("invalid identity input")
)

const (
	userPrefix       = "usr:"
	emailIndexPrefix = "uem:"
	credentialPrefix = "ucr:"
)

// Store is the Redis-backed identity store.
type Store struct {
	kv     *kv.Store
	hasher *password.Hasher
	logger *slog.Logger
}

// NewStore wires the identity store. logger may be nil.
func NewStore(kvStore *kv.Store, hasher *password.Hasher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kvStore, hasher: hasher, logger: logger}
}

func userKey(id string) string       { return userPrefix + id }
func emailKey(email string) string   { return emailIndexPrefix + normalizeEmail(email) }
func credentialKey(id string) string { return credentialPrefix + id }
func idFromEmailKey(key string) bool { return strings.HasPrefix(key, emailIndexPrefix) }

// Create allocates a user, claims the email index, and writes the profile
// and credential records. Write order matters: the index claim goes first so
// a crash mid-create can orphan an index entry but never produce two users
// sharing one email.
func (s *Store) Create(ctx context.Context, input CreateInput, plaintext string) (*User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email required", ErrInvalidInput)
	}
	role := input.Role
	if role == "" {
		role = RoleCustomer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}

	// Hash before any write so a rejected password leaves no state behind.
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	user := &User{
		ID:          id,
		Email:       email,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		PhoneNumber: input.PhoneNumber,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	claimed, err := s.kv.SetNX(ctx, emailKey(email), []byte(id))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDuplicateEmail
	}

	encoded, err := encodeUser(user)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, userKey(id), encoded); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, credentialKey(id), []byte(hash)); err != nil {
		return nil, err
	}

	return user, nil
}

// FindByID returns the user record, or ErrUserNotFound.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	data, err := s.kv.Get(ctx, userKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return decodeUser(data)
}

// FindByEmail resolves the email index, then the user record.
func (s *Store) FindByEmail(ctx context.Context, email string) (*User, error) {
	id, err := s.kv.Get(ctx, emailKey(email))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.FindByID(ctx, string(id))
}

// VerifyPassword returns the user when email and password match, and nil on
// every failure: unknown email, wrong password, missing credential record,
// or an unreachable store. The outcomes are deliberately indistinguishable
// to resist user enumeration; store failures are logged here with detail.
func (s *Store) VerifyPassword(ctx context.Context, email, plaintext string) *User {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error("identity: email lookup failed", "error", err)
		}
		return nil
	}

	hash, err := s.kv.Get(ctx, credentialKey(user.ID))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Error("identity: credential lookup failed", "error", err)
		}
		return nil
	}

	if !s.hasher.Verify(plaintext, string(hash)) {
		return nil
	}
	return user
}

// PasswordHash returns the raw stored hash for id. Only the orchestrator's
// change-password flow calls this; the hash never travels further.
func (s *Store) PasswordHash(ctx context.Context, id string) (string, error) {
	hash, err := s.kv.Get(ctx, credentialKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return string(hash), nil
}

// SetPassword re-hashes and replaces the credential record for id.
func (s *Store) SetPassword(ctx context.Context, id, plaintext string) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.kv.Set(ctx, credentialKey(id), []byte(hash))
}

// Update applies a partial profile mutation. Email is not updatable here.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.PhoneNumber != nil {
		user.PhoneNumber = *patch.PhoneNumber
	}
	user.UpdatedAt = time.Now().UTC()

	encoded, err := encodeUser(user)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, userKey(id), encoded); err != nil {
		return nil, err
	}
	return user, nil
}

// SweepOrphans deletes email index entries whose user record no longer
// exists — the leftovers of a crash between the index claim and the profile
// write. It is an admin-invoked O(n) reconciliation pass, not request-path
// code. Returns the number of entries reclaimed.
func (s *Store) SweepOrphans(ctx context.Context) (int, error) {
	keys, err := s.kv.Scan(ctx, emailIndexPrefix+"*")
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, key := range keys {
		if !idFromEmailKey(key) {
			continue
		}

		id, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return reclaimed, err
		}

		_, err = s.kv.Get(ctx, userPrefix+string(id))
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return reclaimed, err
		}

		if err := s.kv.Del(ctx, key); err != nil {
			return reclaimed, err
		}
		s.logger.Warn("identity: reclaimed orphaned email index entry", "key", key)
		reclaimed++
	}

	return reclaimed, nil
}
