package port

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentGate interface {
	// Charge returns true when the charge is accepted. An error means the gate
	// could not decide and is treated as an infrastructure failure.
	Charge(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error)
}
