package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	catalogKey           = "catalog:item_classes"
)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
	catalogTTL     time.Duration
}

func NewRedisAdapter(client *redis.Client, idempotencyTTL, catalogTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client:         client,
		idempotencyTTL: idempotencyTTL,
		catalogTTL:     catalogTTL,
	}
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

type cachedItemClass struct {
	ID        string          `json:"id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Available int             `json:"available"`
	Total     int             `json:"total"`
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) GetCatalog(ctx context.Context) ([]domain.ItemClass, bool, error) {
	raw, err := r.client.Get(ctx, catalogKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cached []cachedItemClass
	if err := json.Unmarshal(raw, &cached); err != nil {
		// A corrupt entry is a miss; the next SetCatalog overwrites it.
		return nil, false, nil
	}

	items := make([]domain.ItemClass, 0, len(cached))
	for _, c := range cached {
		items = append(items, domain.ItemClass{
			ID:        c.ID,
			UnitPrice: c.UnitPrice,
			Available: c.Available,
			Total:     c.Total,
		})
	}
	return items, true, nil
}

func (r *RedisAdapter) SetCatalog(ctx context.Context, items []domain.ItemClass) error {
	cached := make([]cachedItemClass, 0, len(items))
	for _, item := range items {
		cached = append(cached, cachedItemClass{
			ID:        item.ID,
			UnitPrice: item.UnitPrice,
			Available: item.Available,
			Total:     item.Total,
		})
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	return r.client.Set(ctx, catalogKey, raw, r.catalogTTL).Err()
}

func (r *RedisAdapter) InvalidateCatalog(ctx context.Context) error {
	return r.client.Del(ctx, catalogKey).Err()
}
