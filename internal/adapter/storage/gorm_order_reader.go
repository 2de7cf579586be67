package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

// OrderModel maps the orders table for read queries.
type OrderModel struct {
	Seq         int64           `gorm:"column:seq"`
	ID          string          `gorm:"column:id;primaryKey"`
	BuyerID     string          `gorm:"column:buyer_id"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(14,2)"`
	Status      string          `gorm:"column:status"`
	CreatedAt   time.Time       `gorm:"column:created_at"`

	Lines []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

func (OrderModel) TableName() string {
	return "orders"
}

type OrderLineModel struct {
	ID                  string          `gorm:"column:id;primaryKey"`
	OrderID             string          `gorm:"column:order_id"`
	LineNo              int             `gorm:"column:line_no"`
	ItemClassID         string          `gorm:"column:item_class_id"`
	Quantity            int             `gorm:"column:quantity"`
	UnitPriceAtPurchase decimal.Decimal `gorm:"column:unit_price_at_purchase;type:decimal(12,2)"`
}

func (OrderLineModel) TableName() string {
	return "order_lines"
}

// GormOrderReader serves ledger reads, typically from a replica. It never
// takes locks.
type GormOrderReader struct {
	db *gorm.DB
}

func NewGormOrderReader(db *gorm.DB) *GormOrderReader {
	return &GormOrderReader{db: db}
}

// OpenGorm opens a read-only style session against dsn.
func OpenGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

var _ port.OrderReader = (*GormOrderReader)(nil)

func (r *GormOrderReader) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("seq DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list orders by buyer: %w", err)
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomainOrder(&models[i]))
	}
	return orders, nil
}

func toDomainOrder(m *OrderModel) domain.Order {
	order := domain.Order{
		ID:          m.ID,
		BuyerID:     m.BuyerID,
		TotalAmount: m.TotalAmount,
		Status:      domain.OrderStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		Lines:       make([]domain.OrderLine, 0, len(m.Lines)),
	}
	for _, l := range m.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:                  l.ID,
			OrderID:             l.OrderID,
			ItemClassID:         l.ItemClassID,
			Quantity:            l.Quantity,
			UnitPriceAtPurchase: l.UnitPriceAtPurchase,
		})
	}
	return order
}
