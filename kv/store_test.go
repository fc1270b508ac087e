package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb), mr
}

func TestUnconfiguredFailsClosed(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	if s.Configured() {
		t.Fatal("nil-client store must report unconfigured")
	}

	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("Set: expected ErrUnconfigured, got %v", err)
	}
	if err := s.SetEx(ctx, "k", []byte("v"), time.Minute); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("SetEx: expected ErrUnconfigured, got %v", err)
	}
	if _, err := s.SetNX(ctx, "k", []byte("v")); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("SetNX: expected ErrUnconfigured, got %v", err)
	}
	if err := s.SAdd(ctx, "k", "m"); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("SAdd: expected ErrUnconfigured, got %v", err)
	}

	// Reads report absence, never fabricate.
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get: expected ErrNotFound, got %v", err)
	}
	members, err := s.SMembers(ctx, "k")
	if err != nil || len(members) != 0 {
		t.Fatalf("SMembers: expected empty, got %v %v", members, err)
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get returned %q, %v", got, err)
	}

	if err := s.Del(ctx, "k"); err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSetExExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	if err := s.SetEx(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetEx failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestSetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	ok, err := s.SetNX(ctx, "idx", []byte("first"))
	if err != nil || !ok {
		t.Fatalf("first claim: %v %v", ok, err)
	}
	ok, err = s.SetNX(ctx, "idx", []byte("second"))
	if err != nil || ok {
		t.Fatalf("second claim must lose: %v %v", ok, err)
	}

	got, err := s.Get(ctx, "idx")
	if err != nil || string(got) != "first" {
		t.Fatalf("index holds %q, %v", got, err)
	}
}

func TestSetOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.SAdd(ctx, "set", "a", "b"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	members, err := s.SMembers(ctx, "set")
	if err != nil || len(members) != 2 {
		t.Fatalf("SMembers returned %v, %v", members, err)
	}

	if err := s.SRem(ctx, "set", "a"); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	members, err = s.SMembers(ctx, "set")
	if err != nil || len(members) != 1 || members[0] != "b" {
		t.Fatalf("SMembers after SRem returned %v, %v", members, err)
	}
}

func TestUnavailableWraps(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	if err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
