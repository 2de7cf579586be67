package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSimulatedGate_Rates(t *testing.T) {
	ctx := context.Background()
	amount := decimal.RequireFromString("25.00")

	always := NewSimulatedGate(1, 0)
	never := NewSimulatedGate(0, 0)

	for i := 0; i < 50; i++ {
		ok, err := always.Charge(ctx, "buyer", amount)
		if err != nil || !ok {
			t.Fatalf("expected approval, got ok=%v err=%v", ok, err)
		}

		ok, err = never.Charge(ctx, "buyer", amount)
		if err != nil || ok {
			t.Fatalf("expected decline, got ok=%v err=%v", ok, err)
		}
	}
}

func TestSimulatedGate_HonoursContext(t *testing.T) {
	gate := NewSimulatedGate(1, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gate.Charge(ctx, "buyer", decimal.RequireFromString("1.00"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got: %v", err)
	}
}

func TestStaticAndFunc(t *testing.T) {
	ctx := context.Background()

	if ok, _ := ApproveAll.Charge(ctx, "b", decimal.Zero); !ok {
		t.Error("ApproveAll declined")
	}
	if ok, _ := DeclineAll.Charge(ctx, "b", decimal.Zero); ok {
		t.Error("DeclineAll approved")
	}

	var seen decimal.Decimal
	gate := GateFunc(func(ctx context.Context, buyerID string, amount decimal.Decimal) (bool, error) {
		seen = amount
		return buyerID == "vip-buyer", nil
	})

	ok, _ := gate.Charge(ctx, "vip-buyer", decimal.RequireFromString("99.99"))
	if !ok || !seen.Equal(decimal.RequireFromString("99.99")) {
		t.Errorf("unexpected func gate result ok=%v amount=%s", ok, seen)
	}
}
