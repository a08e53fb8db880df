package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/cache"
)

// ReceiptCache remembers successful checkouts by Idempotency-Key so a retried
// request gets the original receipt back.
type ReceiptCache interface {
	Get(ctx context.Context, userID uuid.UUID, key string) (*Receipt, error)
	Put(ctx context.Context, userID uuid.UUID, key string, r *Receipt) error
}

type receiptCache struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewReceiptCache(c cache.Cache, ttl time.Duration) ReceiptCache {
	return &receiptCache{cache: c, ttl: ttl}
}

func (c *receiptCache) key(userID uuid.UUID, key string) string {
	return c.cache.Key("checkout", userID.String(), key)
}

func (c *receiptCache) Get(ctx context.Context, userID uuid.UUID, key string) (*Receipt, error) {
	raw, err := c.cache.Get(ctx, c.key(userID, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}

func (c *receiptCache) Put(ctx context.Context, userID uuid.UUID, key string, r *Receipt) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	if err := c.cache.Set(ctx, c.key(userID, key), raw, c.ttl); err != nil {
		return fmt.Errorf("failed to store receipt: %w", err)
	}
	return nil
}
