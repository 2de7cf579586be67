package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

const (
	DefaultTransactionTimeout = 5 * time.Second

	postCommitTimeout = 2 * time.Second
)

var tracer = otel.Tracer("github.com/rl1809/ticket-booking/internal/core/service")

type BookingRequest struct {
	// RequestID is optional. When set, a repeated submission is rejected
	// with domain.ErrDuplicateRequest.
	RequestID string
	BuyerID   string
	Items     []domain.CartItem
}

// BookingService coordinates the booking transaction: lock the cart's item
// classes in id order, validate, charge, then write the order and the
// decrements in one commit.
type BookingService struct {
	store     port.DatabaseRepository
	reader    port.OrderReader
	payments  port.PaymentGate
	cache     port.CacheRepository
	publisher port.EventPublisher
	metrics   *Metrics
	logger    zerolog.Logger
	txTimeout time.Duration
	now       func() time.Time
	newID     func() string
}

type Option func(*BookingService)

func WithCache(cache port.CacheRepository) Option {
	return func(s *BookingService) { s.cache = cache }
}

func WithPublisher(publisher port.EventPublisher) Option {
	return func(s *BookingService) { s.publisher = publisher }
}

func WithMetrics(metrics *Metrics) Option {
	return func(s *BookingService) { s.metrics = metrics }
}

func WithTransactionTimeout(d time.Duration) Option {
	return func(s *BookingService) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *BookingService) { s.now = now }
}

func NewBookingService(store port.DatabaseRepository, reader port.OrderReader, payments port.PaymentGate, logger zerolog.Logger, opts ...Option) *BookingService {
	s := &BookingService{
		store:     store,
		reader:    reader,
		payments:  payments,
		logger:    logger.With().Str("component", "booking").Logger(),
		txTimeout: DefaultTransactionTimeout,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*domain.BookingReceipt, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "BookingService.Book")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.buyer_id", req.BuyerID),
		attribute.Int("booking.cart_items", len(req.Items)),
	)

	receipt, err := s.book(ctx, req)

	outcome := outcomeOf(err)
	s.metrics.observeBooking(outcome, time.Since(start))
	span.SetAttributes(attribute.String("booking.outcome", outcome))

	logger := s.loggerFor(ctx).With().
		Str("idempotency_key", req.RequestID).
		Str("buyer_id", req.BuyerID).
		Str("outcome", outcome).
		Logger()

	switch {
	case err == nil:
		span.SetAttributes(attribute.String("booking.order_id", receipt.OrderID))
		logger.Info().
			Str("order_id", receipt.OrderID).
			Str("total", receipt.TotalAmount.StringFixed(2)).
			Msg("booking committed")
	case errors.Is(err, domain.ErrInfrastructure):
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Error().Err(errors.Unwrap(err)).Msg("booking aborted")
	default:
		logger.Warn().Err(err).Msg("booking rejected")
	}

	return receipt, err
}

func (s *BookingService) book(ctx context.Context, req BookingRequest) (*domain.BookingReceipt, error) {
	if req.BuyerID == "" {
		return nil, domain.NewInvalidInput("buyer id is empty")
	}
	items, err := domain.NormalizeCart(req.Items)
	if err != nil {
		return nil, err
	}

	if req.RequestID != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, req.RequestID)
		if err != nil {
			return nil, &domain.InfrastructureError{Cause: fmt.Errorf("idempotency check failed: %w", err)}
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var order domain.Order
	err = s.store.WithinTransaction(txCtx, func(ctx context.Context, tx port.Tx) error {
		var err error
		order, err = s.reserve(ctx, tx, req.BuyerID, items)
		return err
	})
	if err != nil {
		if req.RequestID != "" && s.cache != nil {
			s.releaseIdempotency(ctx, req.RequestID)
		}
		return nil, classify(err)
	}

	s.afterCommit(ctx, order)

	receipt := domain.ReceiptFor(order)
	return &receipt, nil
}

// reserve runs inside the transaction. Items arrive sorted by id, which is
// the lock order every booking follows.
func (s *BookingService) reserve(ctx context.Context, tx port.Tx, buyerID string, items []domain.CartItem) (domain.Order, error) {
	order := domain.Order{
		ID:        s.newID(),
		BuyerID:   buyerID,
		Status:    domain.OrderStatusPaid,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		Lines:     make([]domain.OrderLine, 0, len(items)),
	}

	for _, item := range items {
		class, err := tx.LockAndRead(ctx, item.ItemID)
		if errors.Is(err, domain.ErrItemClassNotFound) {
			return domain.Order{}, &domain.UnknownTierError{ItemID: item.ItemID}
		}
		if err != nil {
			return domain.Order{}, err
		}

		if item.Quantity > class.Available {
			return domain.Order{}, &domain.InsufficientStockError{
				ItemID:    item.ItemID,
				Requested: item.Quantity,
				Available: class.Available,
			}
		}

		order.Lines = append(order.Lines, domain.OrderLine{
			ID:                  s.newID(),
			OrderID:             order.ID,
			ItemClassID:         class.ID,
			Quantity:            item.Quantity,
			UnitPriceAtPurchase: class.UnitPrice,
		})
	}
	order.TotalAmount = domain.SumLines(order.Lines).Round(2)

	approved, err := s.charge(ctx, buyerID, order.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("payment gate: %w", err)
	}
	if !approved {
		return domain.Order{}, domain.ErrPaymentDeclined
	}

	if err := tx.AppendOrder(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("append order: %w", err)
	}
	for _, item := range items {
		if err := tx.Decrement(ctx, item.ItemID, item.Quantity); err != nil {
			return domain.Order{}, fmt.Errorf("decrement: %w", err)
		}
	}

	return order, nil
}

func (s *BookingService) charge(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error) {
	ctx, span := tracer.Start(ctx, "PaymentGate.Charge")
	defer span.End()
	span.SetAttributes(attribute.String("payment.amount", amount.StringFixed(2)))

	start := time.Now()
	approved, err := s.payments.Charge(ctx, buyerID, amount)
	s.metrics.observePayment(time.Since(start))

	span.SetAttributes(attribute.Bool("payment.approved", approved))
	if err != nil {
		span.RecordError(err)
	}
	return approved, err
}

// afterCommit never fails the booking; the order is already durable.
func (s *BookingService) afterCommit(ctx context.Context, order domain.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.InvalidateCatalog(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishOrderPlaced(ctx, order); err != nil {
			s.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order placed event not published")
		}
	}
}

func (s *BookingService) releaseIdempotency(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
	defer cancel()

	if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("idempotency key not released")
	}
}

// ListOrdersByBuyer returns a buyer's orders, newest first.
func (s *BookingService) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if buyerID == "" {
		return nil, domain.NewInvalidInput("buyer id is empty")
	}

	orders, err := s.reader.ListByBuyer(ctx, buyerID)
	if err != nil {
		logger := s.loggerFor(ctx)
		logger.Error().Err(err).Str("buyer_id", buyerID).Msg("list orders failed")
		return nil, &domain.InfrastructureError{Cause: err}
	}
	return orders, nil
}

// loggerFor prefers the request-scoped logger carried by ctx, which holds the
// transport's request and trace ids.
func (s *BookingService) loggerFor(ctx context.Context) zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return s.logger
	}
	return l.With().Str("component", "booking").Logger()
}

func classify(err error) error {
	if domain.IsBookingError(err) {
		return err
	}
	return &domain.InfrastructureError{Cause: err}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUnknownTier):
		return "unknown_tier"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrPaymentDeclined):
		return "payment_declined"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate_request"
	default:
		return "infrastructure_failure"
	}
}
