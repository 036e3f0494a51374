package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sheet-messaging/internal/sheet"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type receiptValue struct {
	Phone    string    `json:"phone"`
	Template string    `json:"template"`
	SheetRow int       `json:"sheetRow"`
	SentAt   time.Time `json:"sentAt"`
}

func receiptKey(table string, row int) string {
	return fmt.Sprintf("receipt:%s:%d", table, row)
}

// StoreReceipt writes receipt:<table>:<row> as JSON with the configured TTL.
func (c *RedisCache) StoreReceipt(ctx context.Context, r Receipt) error {
	val := receiptValue{
		Phone:    r.Phone,
		Template: r.Template,
		SheetRow: sheet.SheetRow(r.Row),
		SentAt:   r.SentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, receiptKey(r.Table, r.Row), b, c.ttl).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
