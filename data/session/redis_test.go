package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/internal/model"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestSession(t *testing.T) (*RedisSession, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{SessionExpiration: time.Hour}

	return NewRedisSession(rdb, cfg), mr
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestSession(t)

	if err := s.SetSession(ctx, "abc", model.Session{UserID: 42}); err != nil {
		t.Fatalf("SetSession() unexpected error: %v", err)
	}
	if ttl := mr.TTL("session:abc"); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}

	sess, err := s.GetSession(ctx, "abc")
	if err != nil {
		t.Fatalf("GetSession() unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("UserID = %d, want 42", sess.UserID)
	}

	if err = s.DeleteSession(ctx, "abc"); err != nil {
		t.Fatalf("DeleteSession() unexpected error: %v", err)
	}
	if _, err = s.GetSession(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after delete error = %v, want %v", err, ErrNotFound)
	}

	// deleting an absent session is not an error
	if err = s.DeleteSession(ctx, "abc"); err != nil {
		t.Errorf("DeleteSession() of absent session unexpected error: %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestSession(t)

	if err := s.SetSession(ctx, "abc", model.Session{UserID: 1}); err != nil {
		t.Fatalf("SetSession() unexpected error: %v", err)
	}

	mr.FastForward(time.Hour + time.Second)

	if _, err := s.GetSession(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() after expiration error = %v, want %v", err, ErrNotFound)
	}
}

func TestSessionCorrupted(t *testing.T) {
	s, mr := newTestSession(t)

	if err := mr.Set("session:bad", "not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetSession(context.Background(), "bad"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession() error = %v, want %v", err, ErrNotFound)
	}
}
