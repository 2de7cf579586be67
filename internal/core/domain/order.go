package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPaid   OrderStatus = "PAID"
	OrderStatusFailed OrderStatus = "FAILED"
)

type Order struct {
	ID          string
	BuyerID     string
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Lines       []OrderLine
	CreatedAt   time.Time
}

type OrderLine struct {
	ID                  string
	OrderID             string
	ItemClassID         string
	Quantity            int
	UnitPriceAtPurchase decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines returns the exact sum of the line subtotals.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Validate checks that an order is fit to be appended to the ledger.
func (o Order) Validate() error {
	if o.ID == "" || o.BuyerID == "" {
		return fmt.Errorf("%w: order id and buyer id are required", ErrInvariantViolation)
	}
	if len(o.Lines) == 0 {
		return fmt.Errorf("%w: order %s has no lines", ErrInvariantViolation, o.ID)
	}
	for _, l := range o.Lines {
		if l.OrderID != o.ID {
			return fmt.Errorf("%w: line %s belongs to order %s, not %s", ErrInvariantViolation, l.ID, l.OrderID, o.ID)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %s has quantity %d", ErrInvariantViolation, l.ID, l.Quantity)
		}
	}
	if !o.TotalAmount.Equal(SumLines(o.Lines).Round(2)) {
		return fmt.Errorf("%w: order %s total %s does not match its lines", ErrInvariantViolation, o.ID, o.TotalAmount)
	}
	return nil
}

func (o Order) Clone() Order {
	c := o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return c
}

// BookingReceipt is what a successful booking returns to the caller.
type BookingReceipt struct {
	OrderID     string
	BuyerID     string
	TotalAmount decimal.Decimal
	Status      OrderStatus
	Lines       []OrderLine
	CreatedAt   time.Time
}

func ReceiptFor(o Order) BookingReceipt {
	return BookingReceipt{
		OrderID:     o.ID,
		BuyerID:     o.BuyerID,
		TotalAmount: o.TotalAmount,
		Status:      o.Status,
		Lines:       append([]OrderLine(nil), o.Lines...),
		CreatedAt:   o.CreatedAt,
	}
}
