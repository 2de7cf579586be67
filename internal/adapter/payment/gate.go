package payment

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/port"
)

// GateFunc adapts a plain function to port.PaymentGate.
type GateFunc func(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error)

func (f GateFunc) Charge(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error) {
	return f(ctx, buyerID, amount)
}

// Static always gives the same answer.
type Static bool

const (
	ApproveAll Static = true
	DeclineAll Static = false
)

func (s Static) Charge(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error) {
	return bool(s), nil
}

// SimulatedGate approves a fraction of charges after a fixed delay. It stands
// in for a real processor until one is integrated.
type SimulatedGate struct {
	approvalRate float64
	latency      time.Duration
}

func NewSimulatedGate(approvalRate float64, latency time.Duration) *SimulatedGate {
	return &SimulatedGate{approvalRate: approvalRate, latency: latency}
}

var (
	_ port.PaymentGate = (*SimulatedGate)(nil)
	_ port.PaymentGate = Static(true)
	_ port.PaymentGate = GateFunc(nil)
)

func (g *SimulatedGate) Charge(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error) {
	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if amount.IsZero() {
		return true, nil
	}
	return rand.Float64() < g.approvalRate, nil
}
