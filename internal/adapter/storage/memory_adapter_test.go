package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

func seededMemory(t *testing.T, items ...domain.ItemClass) *MemoryAdapter {
	t.Helper()
	m := NewMemoryAdapter()
	if err := m.SeedItemClasses(context.Background(), items); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return m
}

func itemClass(id string, available int) domain.ItemClass {
	return domain.ItemClass{ID: id, UnitPrice: decimal.RequireFromString("10.00"), Available: available, Total: available}
}

func paidOrder(id, buyer, item string, qty int, at time.Time) domain.Order {
	price := decimal.RequireFromString("10.00")
	return domain.Order{
		ID:          id,
		BuyerID:     buyer,
		Status:      domain.OrderStatusPaid,
		TotalAmount: price.Mul(decimal.NewFromInt(int64(qty))),
		CreatedAt:   at,
		Lines: []domain.OrderLine{
			{ID: id + "-l", OrderID: id, ItemClassID: item, Quantity: qty, UnitPriceAtPurchase: price},
		},
	}
}

func TestMemory_CommitAppliesDecrementAndOrder(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 10))
	ctx := context.Background()

	err := m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
		item, err := tx.LockAndRead(ctx, "VIP")
		if err != nil {
			return err
		}
		if item.Available != 10 {
			t.Errorf("expected available 10, got %d", item.Available)
		}
		if err := tx.AppendOrder(ctx, paidOrder("o-1", "buyer", "VIP", 3, time.Now())); err != nil {
			return err
		}
		return tx.Decrement(ctx, "VIP", 3)
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	item, _ := m.GetItemClass(ctx, "VIP")
	if item.Available != 7 || item.Total != 10 {
		t.Errorf("expected 7/10, got %d/%d", item.Available, item.Total)
	}
	orders, _ := m.ListByBuyer(ctx, "buyer")
	if len(orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(orders))
	}
}

func TestMemory_RollbackDiscardsEverything(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 10))
	ctx := context.Background()

	err := m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.LockAndRead(ctx, "VIP"); err != nil {
			return err
		}
		if err := tx.AppendOrder(ctx, paidOrder("o-1", "buyer", "VIP", 3, time.Now())); err != nil {
			return err
		}
		if err := tx.Decrement(ctx, "VIP", 3); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected abort error")
	}

	item, _ := m.GetItemClass(ctx, "VIP")
	if item.Available != 10 {
		t.Errorf("expected available 10 after rollback, got %d", item.Available)
	}
	orders, _ := m.ListByBuyer(ctx, "buyer")
	if len(orders) != 0 {
		t.Errorf("expected no orders after rollback, got %d", len(orders))
	}
}

func TestMemory_LockAndReadNotFound(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 1))

	err := m.WithinTransaction(context.Background(), func(ctx context.Context, tx port.Tx) error {
		_, err := tx.LockAndRead(ctx, "NOPE")
		return err
	})
	if !errors.Is(err, domain.ErrItemClassNotFound) {
		t.Errorf("expected ErrItemClassNotFound, got: %v", err)
	}
}

func TestMemory_DecrementRequiresLockAndStock(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 2))

	err := m.WithinTransaction(context.Background(), func(ctx context.Context, tx port.Tx) error {
		return tx.Decrement(ctx, "VIP", 1)
	})
	if !errors.Is(err, domain.ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld, got: %v", err)
	}

	err = m.WithinTransaction(context.Background(), func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.LockAndRead(ctx, "VIP"); err != nil {
			return err
		}
		return tx.Decrement(ctx, "VIP", 3)
	})
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got: %v", err)
	}

	item, _ := m.GetItemClass(context.Background(), "VIP")
	if item.Available != 2 {
		t.Errorf("expected available 2, got %d", item.Available)
	}
}

func TestMemory_LockBlocksUntilRelease(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 5))
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	go m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.LockAndRead(ctx, "VIP"); err != nil {
			return err
		}
		close(locked)
		<-release
		return tx.Decrement(ctx, "VIP", 2)
	})
	<-locked

	var acquired atomic.Bool
	seen := make(chan int, 1)
	go func() {
		m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
			item, err := tx.LockAndRead(ctx, "VIP")
			acquired.Store(true)
			if err == nil {
				seen <- item.Available
			}
			return err
		})
	}()

	time.Sleep(30 * time.Millisecond)
	if acquired.Load() {
		t.Fatal("second transaction acquired a held lock")
	}

	close(release)
	select {
	case got := <-seen:
		if got != 3 {
			t.Errorf("waiter should see the committed decrement, got available %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestMemory_LockWaitHonoursDeadline(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 5))

	locked := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go m.WithinTransaction(context.Background(), func(ctx context.Context, tx port.Tx) error {
		if _, err := tx.LockAndRead(ctx, "VIP"); err != nil {
			return err
		}
		close(locked)
		<-release
		return nil
	})
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
		_, err := tx.LockAndRead(ctx, "VIP")
		return err
	})
	if !errors.Is(err, domain.ErrLockTimeout) {
		t.Errorf("expected ErrLockTimeout, got: %v", err)
	}
}

func TestMemory_ConcurrentDecrementsNeverOversell(t *testing.T) {
	m := seededMemory(t, itemClass("GA", 20))
	ctx := context.Background()

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
				item, err := tx.LockAndRead(ctx, "GA")
				if err != nil {
					return err
				}
				if item.Available < 1 {
					return domain.ErrInsufficientStock
				}
				return tx.Decrement(ctx, "GA", 1)
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 20 {
		t.Errorf("expected 20 successes, got %d", successCount.Load())
	}
	item, _ := m.GetItemClass(ctx, "GA")
	if item.Available != 0 {
		t.Errorf("expected available 0, got %d", item.Available)
	}
}

func TestMemory_SeedRejectsBrokenInvariant(t *testing.T) {
	m := NewMemoryAdapter()
	err := m.SeedItemClasses(context.Background(), []domain.ItemClass{{ID: "BAD", Available: 5, Total: 3}})
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got: %v", err)
	}
}

func TestMemory_ReseedKeepsConsumedStock(t *testing.T) {
	seed := []domain.ItemClass{itemClass("VIP", 1)}
	m := seededMemory(t, seed...)
	ctx := context.Background()

	book := func(id string) error {
		return m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
			item, err := tx.LockAndRead(ctx, "VIP")
			if err != nil {
				return err
			}
			if item.Available < 1 {
				return domain.ErrInsufficientStock
			}
			if err := tx.AppendOrder(ctx, paidOrder(id, "buyer", "VIP", 1, time.Now())); err != nil {
				return err
			}
			return tx.Decrement(ctx, "VIP", 1)
		})
	}

	if err := book("o-1"); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}

	// A restart seeds the same tiers again.
	if err := m.SeedItemClasses(ctx, seed); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	if err := book("o-2"); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected sold-out tier after reseed, got: %v", err)
	}

	item, _ := m.GetItemClass(ctx, "VIP")
	orders, _ := m.ListByBuyer(ctx, "buyer")
	sold := 0
	for _, o := range orders {
		for _, l := range o.Lines {
			sold += l.Quantity
		}
	}
	if item.Available != 0 || item.Total-item.Available != sold {
		t.Errorf("conservation broken: total=%d available=%d sold=%d", item.Total, item.Available, sold)
	}
}

func TestMemory_UpdateUnitPrice(t *testing.T) {
	m := seededMemory(t, itemClass("VIP", 5))
	ctx := context.Background()

	if err := m.UpdateUnitPrice(ctx, "VIP", decimal.RequireFromString("12.00")); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	item, _ := m.GetItemClass(ctx, "VIP")
	if !item.UnitPrice.Equal(decimal.RequireFromString("12")) {
		t.Errorf("expected 12.00, got %s", item.UnitPrice)
	}

	if err := m.UpdateUnitPrice(ctx, "NOPE", decimal.RequireFromString("1")); !errors.Is(err, domain.ErrItemClassNotFound) {
		t.Errorf("expected ErrItemClassNotFound, got: %v", err)
	}
}

func TestMemory_ListByBuyerNewestFirst(t *testing.T) {
	m := seededMemory(t, itemClass("GA", 10))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		paidOrder("old", "buyer", "GA", 1, base),
		paidOrder("new", "buyer", "GA", 1, base.Add(time.Hour)),
		paidOrder("other", "someone-else", "GA", 1, base.Add(2*time.Hour)),
	}
	for _, o := range orders {
		err := m.WithinTransaction(ctx, func(ctx context.Context, tx port.Tx) error {
			return tx.AppendOrder(ctx, o)
		})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	got, _ := m.ListByBuyer(ctx, "buyer")
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "old" {
		t.Errorf("unexpected order list: %+v", got)
	}
}
