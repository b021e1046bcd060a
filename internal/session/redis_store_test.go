package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"lingx/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return s, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	s, mr := setupTestRedis(t)
	defer s.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "usr_abc", DisplayName: "Mina", Email: "mina@example.com"}

	if err := s.SaveRefreshSession(ctx, "hash-1", user, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	got, err := s.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession: %v", err)
	}
	if got.ID != user.ID || got.DisplayName != user.DisplayName || got.Email != user.Email {
		t.Errorf("got %+v, want %+v", got, user)
	}
}

func TestLookupAfterExpiry(t *testing.T) {
	s, mr := setupTestRedis(t)
	defer s.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "usr_exp"}
	if err := s.SaveRefreshSession(ctx, "hash-exp", user, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := s.LookupRefreshSession(ctx, "hash-exp"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	s, mr := setupTestRedis(t)
	defer s.Close()
	defer mr.Close()

	if _, err := s.LookupRefreshSession(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsPastExpiry(t *testing.T) {
	s, mr := setupTestRedis(t)
	defer s.Close()
	defer mr.Close()

	err := s.SaveRefreshSession(context.Background(), "hash-past", store.User{ID: "u"}, time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error for past expiry")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	s, mr := setupTestRedis(t)
	defer s.Close()
	defer mr.Close()

	ctx := context.Background()
	user := store.User{ID: "usr_rev"}
	if err := s.SaveRefreshSession(ctx, "hash-rev", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession: %v", err)
	}
	if err := s.RevokeRefreshSession(ctx, "hash-rev"); err != nil {
		t.Fatalf("RevokeRefreshSession: %v", err)
	}
	if _, err := s.LookupRefreshSession(ctx, "hash-rev"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
}
