package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCache_StoreReceipt_Success(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, 10*time.Second)

	sentAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("HKT", 8*3600))
	err := cache.StoreReceipt(context.Background(), Receipt{
		Table:    "Rental",
		Row:      3,
		Phone:    "+85212345678",
		Template: "woocommerce_default_follow_up_v2",
		SentAt:   sentAt,
	})
	if err != nil {
		t.Fatalf("StoreReceipt() error: %v", err)
	}

	key := "receipt:Rental:3"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got receiptValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.Phone != "+85212345678" {
		t.Fatalf("unexpected phone %q", got.Phone)
	}
	if got.SheetRow != 5 {
		t.Fatalf("expected sheet row 5, got %d", got.SheetRow)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v in UTC, got %v", sentAt.UTC(), got.SentAt)
	}
}

func TestRedisCache_StoreReceipt_Overwrites(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if err := cache.StoreReceipt(ctx, Receipt{Table: "VIP", Row: 0, Template: "first", SentAt: time.Now()}); err != nil {
		t.Fatalf("first StoreReceipt() error: %v", err)
	}
	if err := cache.StoreReceipt(ctx, Receipt{Table: "VIP", Row: 0, Template: "second", SentAt: time.Now()}); err != nil {
		t.Fatalf("second StoreReceipt() error: %v", err)
	}

	raw, err := mr.Get("receipt:VIP:0")
	if err != nil {
		t.Fatalf("failed to get key: %v", err)
	}

	var got receiptValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.Template != "second" {
		t.Fatalf("expected overwritten template %q, got %q", "second", got.Template)
	}
}

func TestRedisCache_Ping(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, time.Minute)

	if err := cache.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}

	mr.Close()
	if err := cache.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error after server close")
	}
}

func TestRedisCache_StoreReceipt_ContextCanceled(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreReceipt(ctx, Receipt{Table: "Rental"}); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
