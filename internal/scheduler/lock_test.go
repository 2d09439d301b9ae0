package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestAcquireLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if lock == nil {
		t.Fatal("Expected lock, got nil")
	}
	if lock.Key() != "test:lock" {
		t.Errorf("Key() = %q", lock.Key())
	}
	if ttl := mr.TTL("test:lock"); ttl != 10*time.Second {
		t.Errorf("TTL = %v, want 10s", ttl)
	}

	second, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if second != nil {
		t.Error("Expected nil lock while held")
	}
}

func TestLock_ReleaseOnlyOwnLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, _ := AcquireLock(ctx, client, "test:lock", time.Second)

	// The lock expires and another instance takes it
	mr.FastForward(2 * time.Second)
	other, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
	if err != nil || other == nil {
		t.Fatalf("Expected to re-acquire expired lock, got %v, %v", other, err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !mr.Exists("test:lock") {
		t.Error("Stale owner released someone else's lock")
	}

	if err := other.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if mr.Exists("test:lock") {
		t.Error("Expected lock to be released")
	}
	// Releasing twice is harmless
	if err := other.Release(ctx); err != nil {
		t.Errorf("Second Release() error = %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, _ := AcquireLock(ctx, client, "test:lock", time.Second)
	if err := lock.Extend(ctx, 30*time.Second); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if ttl := mr.TTL("test:lock"); ttl != 30*time.Second {
		t.Errorf("TTL after extend = %v, want 30s", ttl)
	}

	mr.FastForward(31 * time.Second)
	if err := lock.Extend(ctx, 30*time.Second); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("Expected ErrLockNotHeld after expiry, got %v", err)
	}
}

func TestAcquireLock_ConcurrentAttempts(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	results := make(chan *Lock, 10)
	for i := 0; i < 10; i++ {
		go func() {
			lock, err := AcquireLock(ctx, client, "test:lock", 10*time.Second)
			if err != nil {
				t.Errorf("AcquireLock() error = %v", err)
			}
			results <- lock
		}()
	}

	acquired := 0
	for i := 0; i < 10; i++ {
		if lock := <-results; lock != nil {
			acquired++
		}
	}
	if acquired != 1 {
		t.Errorf("Expected exactly 1 successful lock, got %d", acquired)
	}
}
