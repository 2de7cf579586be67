package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

// MemoryAdapter keeps inventory and ledger in process. Each item class owns a
// one-slot channel used as its transaction-scoped lock, so waiting honours the
// context deadline. Nothing survives a restart.
type MemoryAdapter struct {
	mu     sync.RWMutex
	rows   map[string]*memoryRow
	ledger []ledgerEntry
	seq    int64
}

type memoryRow struct {
	lock chan struct{}
	item domain.ItemClass
}

type ledgerEntry struct {
	seq   int64
	order domain.Order
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{rows: make(map[string]*memoryRow)}
}

var _ port.DatabaseRepository = (*MemoryAdapter)(nil)
var _ port.OrderReader = (*MemoryAdapter)(nil)

func (m *MemoryAdapter) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	tx := &memoryTx{
		store:      m,
		held:       make(map[string]chan struct{}),
		decrements: make(map[string]int),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

func (m *MemoryAdapter) ListItemClasses(ctx context.Context) ([]domain.ItemClass, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.ItemClass, 0, len(m.rows))
	for _, row := range m.rows {
		items = append(items, row.item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *MemoryAdapter) GetItemClass(ctx context.Context, itemID string) (*domain.ItemClass, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[itemID]
	if !ok {
		return nil, nil
	}
	item := row.item
	return &item, nil
}

// SeedItemClasses creates missing item classes. Existing rows keep their
// stock, which only bookings may change.
func (m *MemoryAdapter) SeedItemClasses(ctx context.Context, items []domain.ItemClass) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, item := range items {
		if _, ok := m.rows[item.ID]; ok {
			continue
		}
		item.UpdatedAt = now
		m.rows[item.ID] = &memoryRow{lock: make(chan struct{}, 1), item: item}
	}
	return nil
}

func (m *MemoryAdapter) UpdateUnitPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", domain.ErrInvariantViolation, itemID)
	}

	m.mu.RLock()
	row, ok := m.rows[itemID]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrItemClassNotFound
	}

	return m.withRowLock(ctx, row, func() {
		row.item.UnitPrice = price
		row.item.UpdatedAt = time.Now()
	})
}

func (m *MemoryAdapter) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	m.mu.RLock()
	var entries []ledgerEntry
	for _, e := range m.ledger {
		if e.order.BuyerID == buyerID {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].order.CreatedAt.Equal(entries[j].order.CreatedAt) {
			return entries[i].order.CreatedAt.After(entries[j].order.CreatedAt)
		}
		return entries[i].seq > entries[j].seq
	})

	orders := make([]domain.Order, 0, len(entries))
	for _, e := range entries {
		orders = append(orders, e.order.Clone())
	}
	return orders, nil
}

// withRowLock runs fn while holding the row lock, so admin writes queue
// behind in-flight bookings like any other transaction.
func (m *MemoryAdapter) withRowLock(ctx context.Context, row *memoryRow, fn func()) error {
	select {
	case row.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, ctx.Err())
	}
	defer func() { <-row.lock }()

	m.mu.Lock()
	fn()
	m.mu.Unlock()
	return nil
}

type memoryTx struct {
	store      *MemoryAdapter
	held       map[string]chan struct{}
	decrements map[string]int
	orders     []domain.Order
}

func (t *memoryTx) LockAndRead(ctx context.Context, itemID string) (domain.ItemClass, error) {
	if _, ok := t.held[itemID]; !ok {
		t.store.mu.RLock()
		row, exists := t.store.rows[itemID]
		t.store.mu.RUnlock()
		if !exists {
			return domain.ItemClass{}, domain.ErrItemClassNotFound
		}

		if err := ctx.Err(); err != nil {
			return domain.ItemClass{}, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, itemID, err)
		}
		select {
		case row.lock <- struct{}{}:
			t.held[itemID] = row.lock
		case <-ctx.Done():
			return domain.ItemClass{}, fmt.Errorf("%w: %s: %v", domain.ErrLockTimeout, itemID, ctx.Err())
		}
	}

	item := t.current(itemID)
	if err := item.CheckInvariant(); err != nil {
		return domain.ItemClass{}, err
	}
	return item, nil
}

func (t *memoryTx) Decrement(ctx context.Context, itemID string, quantity int) error {
	if _, ok := t.held[itemID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, itemID)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: decrement of %d for %s", domain.ErrInvariantViolation, quantity, itemID)
	}

	item := t.current(itemID)
	item.Available -= quantity
	if err := item.CheckInvariant(); err != nil {
		return err
	}

	t.decrements[itemID] += quantity
	return nil
}

func (t *memoryTx) AppendOrder(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	t.orders = append(t.orders, order.Clone())
	return nil
}

// current returns the committed row with this transaction's pending decrements applied.
func (t *memoryTx) current(itemID string) domain.ItemClass {
	t.store.mu.RLock()
	item := t.store.rows[itemID].item
	t.store.mu.RUnlock()

	item.Available -= t.decrements[itemID]
	return item
}

func (t *memoryTx) commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, qty := range t.decrements {
		next := s.rows[id].item
		next.Available -= qty
		if err := next.CheckInvariant(); err != nil {
			return err
		}
	}

	now := time.Now()
	for id, qty := range t.decrements {
		row := s.rows[id]
		row.item.Available -= qty
		row.item.UpdatedAt = now
	}
	for _, order := range t.orders {
		s.seq++
		s.ledger = append(s.ledger, ledgerEntry{seq: s.seq, order: order})
	}
	return nil
}

func (t *memoryTx) release() {
	for id, lock := range t.held {
		<-lock
		delete(t.held, id)
	}
}
