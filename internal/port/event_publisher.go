package port

import (
	"context"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type EventPublisher interface {
	// PublishOrderPlaced announces a committed order
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}
