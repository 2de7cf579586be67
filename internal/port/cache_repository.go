package port

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetCatalog returns the cached catalog; ok is false on a miss
	GetCatalog(ctx context.Context) (items []domain.ItemClass, ok bool, err error)

	// SetCatalog stores a catalog snapshot
	SetCatalog(ctx context.Context, items []domain.ItemClass) error

	// InvalidateCatalog drops the cached catalog after inventory or price changes
	InvalidateCatalog(ctx context.Context) error
}
