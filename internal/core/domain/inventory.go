package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ItemClass is one bookable tier with shared price and countable stock.
type ItemClass struct {
	ID        string
	UnitPrice decimal.Decimal
	Available int
	Total     int
	UpdatedAt time.Time
}

func (c ItemClass) CheckInvariant() error {
	if c.Available < 0 || c.Available > c.Total {
		return fmt.Errorf("%w: item class %s has available=%d total=%d",
			ErrInvariantViolation, c.ID, c.Available, c.Total)
	}
	return nil
}

func (c ItemClass) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: item class id is empty", ErrInvariantViolation)
	}
	if c.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: item class %s has negative price", ErrInvariantViolation, c.ID)
	}
	return c.CheckInvariant()
}

type CartItem struct {
	ItemID   string
	Quantity int
}

// NormalizeCart validates a cart, merges repeated item ids and returns the
// lines sorted by item id, which is the global lock acquisition order.
func NormalizeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, NewInvalidInput("cart is empty")
	}

	merged := make(map[string]int, len(items))
	for i, item := range items {
		if item.ItemID == "" {
			return nil, NewInvalidInput(fmt.Sprintf("item %d has empty item id", i))
		}
		if item.Quantity <= 0 {
			return nil, NewInvalidInput(fmt.Sprintf("item %s has non-positive quantity %d", item.ItemID, item.Quantity))
		}
		if merged[item.ItemID] > math.MaxInt32-item.Quantity {
			return nil, NewInvalidInput(fmt.Sprintf("item %s quantity exceeds %d", item.ItemID, math.MaxInt32))
		}
		merged[item.ItemID] += item.Quantity
	}

	out := make([]CartItem, 0, len(merged))
	for id, qty := range merged {
		out = append(out, CartItem{ItemID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })

	return out, nil
}
