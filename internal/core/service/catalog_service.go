package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

// CatalogService serves the lock-free catalog read. Results may lag behind
// committed bookings by up to the cache TTL.
type CatalogService struct {
	store  port.DatabaseRepository
	cache  port.CacheRepository
	logger zerolog.Logger
}

func NewCatalogService(store port.DatabaseRepository, cache port.CacheRepository, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		store:  store,
		cache:  cache,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

func (s *CatalogService) ListItemClasses(ctx context.Context) ([]domain.ItemClass, error) {
	if s.cache != nil {
		items, ok, err := s.cache.GetCatalog(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache read failed")
		}
		if ok {
			return items, nil
		}
	}

	items, err := s.ListItemClassesFresh(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCatalog(ctx, items); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return items, nil
}

// ListItemClassesFresh reads the catalog from the store, bypassing the
// cache. Used by callers that compare stock before and after a run.
func (s *CatalogService) ListItemClassesFresh(ctx context.Context) ([]domain.ItemClass, error) {
	items, err := s.store.ListItemClasses(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("list item classes failed")
		return nil, &domain.InfrastructureError{Cause: err}
	}
	return items, nil
}

// UpdateUnitPrice changes the price future bookings pay. Committed orders
// keep the price they were booked at.
func (s *CatalogService) UpdateUnitPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	if itemID == "" {
		return domain.NewInvalidInput("item id is empty")
	}
	if price.IsNegative() {
		return domain.NewInvalidInput("price must not be negative")
	}
	price = price.Round(2)

	err := s.store.UpdateUnitPrice(ctx, itemID, price)
	if errors.Is(err, domain.ErrItemClassNotFound) {
		return &domain.UnknownTierError{ItemID: itemID}
	}
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID).Msg("update unit price failed")
		return &domain.InfrastructureError{Cause: err}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateCatalog(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
		}
	}

	s.logger.Info().Str("item_id", itemID).Str("unit_price", price.StringFixed(2)).Msg("unit price updated")
	return nil
}
