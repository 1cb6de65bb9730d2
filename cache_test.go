package dataperm

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := NewMemoryCache()
	c.nowFn = clock.Now

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if v, ok := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected fresh entry, got %q ok=%v", v, ok)
	}

	clock.Advance(2 * time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected entry expired")
	}
	if c.Len() != 0 {
		t.Fatalf("expected lazy removal on read, len=%d", c.Len())
	}
}

func TestMemoryCacheZeroTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.Set(ctx, "k", []byte("v"), 0)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatalf("expected zero-ttl set to store nothing")
	}
}

func TestMemoryCacheRemovePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, userCachePrefix("bob")+"decision:posts:p1:read", []byte("1"), time.Minute)
	c.Set(ctx, userCachePrefix("bob")+"scope:posts", []byte("{}"), time.Minute)
	c.Set(ctx, userCachePrefix("alice")+"scope:posts", []byte("{}"), time.Minute)

	c.RemovePrefix(ctx, userCachePrefix("bob"))
	if c.Len() != 1 {
		t.Fatalf("expected only alice's entry to survive, len=%d", c.Len())
	}
	if _, ok := c.Get(ctx, userCachePrefix("alice")+"scope:posts"); !ok {
		t.Fatalf("expected other users' entries untouched")
	}
}

func TestDecisionCacheKeyShape(t *testing.T) {
	key := decisionCacheKey("bob", ResourcePosts, "p1", OpRead)
	if key != "dataperm:u:bob:decision:posts:p1:read" {
		t.Fatalf("unexpected key %q", key)
	}
	if scopeCacheKey("bob", ResourcePosts) != "dataperm:u:bob:scope:posts" {
		t.Fatalf("unexpected scope key %q", scopeCacheKey("bob", ResourcePosts))
	}
}
