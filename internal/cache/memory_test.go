package cache

import (
	"context"
	"testing"
	"time"
)

func newTestMemory(now *time.Time) *Memory {
	c := &Memory{
		items:     make(map[string]Entry),
		stopSweep: make(chan struct{}),
		now:       func() time.Time { return *now },
	}
	return c
}

func TestMemoryGetPut(t *testing.T) {
	now := time.Now()
	c := newTestMemory(&now)
	ctx := context.Background()

	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Put(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, found, err := c.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("expected hit, found=%v err=%v", found, err)
	}
	if string(entry.Payload) != "v" {
		t.Fatalf("unexpected payload %q", entry.Payload)
	}
}

func TestMemoryInclusiveExpiry(t *testing.T) {
	now := time.Now()
	c := newTestMemory(&now)
	ctx := context.Background()

	if err := c.Put(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}

	now = now.Add(time.Hour - time.Nanosecond)
	if _, found, _ := c.Get(ctx, "k"); !found {
		t.Fatal("entry just under TTL must still be live")
	}

	// Exactly at TTL the entry is treated as expired.
	now = now.Add(time.Nanosecond)
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatal("entry exactly at TTL must be expired")
	}
	if c.Len() != 0 {
		t.Fatalf("lazy expiry should have removed the entry, len=%d", c.Len())
	}
}

func TestMemoryPutReplaces(t *testing.T) {
	now := time.Now()
	c := newTestMemory(&now)
	ctx := context.Background()

	_ = c.Put(ctx, "k", []byte("old"), time.Hour)
	first, _, _ := c.Get(ctx, "k")

	now = now.Add(time.Minute)
	_ = c.Put(ctx, "k", []byte("new"), time.Hour)
	second, found, _ := c.Get(ctx, "k")
	if !found {
		t.Fatal("expected hit after replace")
	}
	if string(second.Payload) != "new" {
		t.Fatalf("expected replaced payload, got %q", second.Payload)
	}
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatal("replacement must carry a newer timestamp")
	}
}

func TestMemoryPutCopiesPayload(t *testing.T) {
	now := time.Now()
	c := newTestMemory(&now)
	ctx := context.Background()

	buf := []byte("value")
	_ = c.Put(ctx, "k", buf, time.Hour)
	buf[0] = 'X'
	entry, _, _ := c.Get(ctx, "k")
	if string(entry.Payload) != "value" {
		t.Fatalf("cache must not alias the caller's buffer, got %q", entry.Payload)
	}
}

func TestMemorySweepRemovesExpired(t *testing.T) {
	c := NewMemory(10 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	_ = c.Put(ctx, "k", []byte("v"), time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
