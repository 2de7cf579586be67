package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type InventoryTx interface {
	// LockAndRead takes the exclusive lock on an item class for the rest of the
	// transaction and returns its current state. Returns domain.ErrItemClassNotFound
	// if the id does not exist.
	LockAndRead(ctx context.Context, itemID string) (domain.ItemClass, error)

	// Decrement subtracts quantity from available. The lock from LockAndRead must be held.
	Decrement(ctx context.Context, itemID string, quantity int) error
}

type LedgerTx interface {
	// AppendOrder inserts an order and its lines as part of the enclosing transaction
	AppendOrder(ctx context.Context, order domain.Order) error
}

// Tx is one atomic unit of work spanning inventory and ledger.
type Tx interface {
	InventoryTx
	LedgerTx
}

type DatabaseRepository interface {
	// WithinTransaction runs fn in a transaction. It commits when fn returns nil
	// and rolls back otherwise; all locks are released either way.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListItemClasses reads the catalog without locking
	ListItemClasses(ctx context.Context) ([]domain.ItemClass, error)

	// SeedItemClasses creates missing item classes at startup and never
	// touches the stock of existing ones
	SeedItemClasses(ctx context.Context, items []domain.ItemClass) error

	// UpdateUnitPrice changes the catalog price of an item class
	UpdateUnitPrice(ctx context.Context, itemID string, price decimal.Decimal) error
}

type OrderReader interface {
	// ListByBuyer returns a buyer's orders with their lines, newest first
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
}
