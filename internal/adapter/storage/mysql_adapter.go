package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrCheckViolated   = 3819
)

// Schema creates the three relations. Lines are owned by their order and go
// with it; item_class_id is a plain reference.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS item_classes (
		id         VARCHAR(64)    NOT NULL PRIMARY KEY,
		unit_price DECIMAL(12, 2) NOT NULL,
		available  INT            NOT NULL,
		total      INT            NOT NULL,
		created_at TIMESTAMP(6)   NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at TIMESTAMP(6)   NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		CONSTRAINT chk_item_classes_stock CHECK (available >= 0 AND available <= total)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		seq          BIGINT         NOT NULL AUTO_INCREMENT,
		id           CHAR(36)       NOT NULL PRIMARY KEY,
		buyer_id     VARCHAR(128)   NOT NULL,
		total_amount DECIMAL(14, 2) NOT NULL,
		status       VARCHAR(16)    NOT NULL,
		created_at   TIMESTAMP(6)   NOT NULL,
		UNIQUE KEY uk_orders_seq (seq),
		KEY idx_orders_buyer (buyer_id, created_at, seq)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id                     CHAR(36)       NOT NULL PRIMARY KEY,
		order_id               CHAR(36)       NOT NULL,
		line_no                INT            NOT NULL,
		item_class_id          VARCHAR(64)    NOT NULL,
		quantity               INT            NOT NULL,
		unit_price_at_purchase DECIMAL(12, 2) NOT NULL,
		KEY idx_order_lines_item (item_class_id),
		CONSTRAINT fk_order_lines_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE,
		CONSTRAINT chk_order_lines_quantity CHECK (quantity > 0)
	) ENGINE=InnoDB`,
}

type MySQLAdapter struct {
	db              *sql.DB
	lockWaitTimeout time.Duration
}

// NewMySQLAdapter wraps a pool. lockWaitTimeout bounds how long a booking
// waits on a contended row; zero keeps the server default.
func NewMySQLAdapter(db *sql.DB, lockWaitTimeout time.Duration) *MySQLAdapter {
	return &MySQLAdapter{db: db, lockWaitTimeout: lockWaitTimeout}
}

var _ port.DatabaseRepository = (*MySQLAdapter)(nil)

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx port.Tx) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("checkout conn: %w", translateError(ctx, err))
	}
	defer conn.Close()

	if m.lockWaitTimeout > 0 {
		seconds := int(m.lockWaitTimeout / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		if _, err := conn.ExecContext(ctx, `SET SESSION innodb_lock_wait_timeout = ?`, seconds); err != nil {
			return fmt.Errorf("set lock wait timeout: %w", translateError(ctx, err))
		}
	}

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", translateError(ctx, err))
	}
	defer sqlTx.Rollback()

	tx := &mysqlTx{tx: sqlTx, locked: make(map[string]struct{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translateError(ctx, err))
	}
	return nil
}

func (m *MySQLAdapter) ListItemClasses(ctx context.Context) ([]domain.ItemClass, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, unit_price, available, total, updated_at
		FROM item_classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query item classes: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemClass
	for rows.Next() {
		var item domain.ItemClass
		if err := rows.Scan(&item.ID, &item.UnitPrice, &item.Available, &item.Total, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan item class: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) GetItemClass(ctx context.Context, itemID string) (*domain.ItemClass, error) {
	var item domain.ItemClass
	err := m.db.QueryRowContext(ctx, `
		SELECT id, unit_price, available, total, updated_at
		FROM item_classes WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.UnitPrice, &item.Available, &item.Total, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item class: %w", err)
	}
	return &item, nil
}

// SeedItemClasses creates missing item classes. Existing rows are left
// untouched so a restart never resets stock that bookings have consumed.
func (m *MySQLAdapter) SeedItemClasses(ctx context.Context, items []domain.ItemClass) error {
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO item_classes (id, unit_price, available, total)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE id = id`,
			item.ID, item.UnitPrice, item.Available, item.Total,
		)
		if err != nil {
			return fmt.Errorf("seed item class %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) UpdateUnitPrice(ctx context.Context, itemID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", domain.ErrInvariantViolation, itemID)
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE item_classes SET unit_price = ? WHERE id = ?`, price, itemID)
	if err != nil {
		return fmt.Errorf("update unit price: %w", translateError(ctx, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update unit price: %w", err)
	}
	if rows == 0 {
		// MySQL reports 0 affected rows when the value is unchanged, so confirm the row exists.
		item, err := m.GetItemClass(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemClassNotFound
		}
	}
	return nil
}

type mysqlTx struct {
	tx     *sql.Tx
	locked map[string]struct{}
}

func (t *mysqlTx) LockAndRead(ctx context.Context, itemID string) (domain.ItemClass, error) {
	var item domain.ItemClass
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, unit_price, available, total, updated_at
		FROM item_classes WHERE id = ? FOR UPDATE`, itemID,
	).Scan(&item.ID, &item.UnitPrice, &item.Available, &item.Total, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.ItemClass{}, domain.ErrItemClassNotFound
	}
	if err != nil {
		return domain.ItemClass{}, fmt.Errorf("lock item class %s: %w", itemID, translateError(ctx, err))
	}

	t.locked[itemID] = struct{}{}
	if err := item.CheckInvariant(); err != nil {
		return domain.ItemClass{}, err
	}
	return item, nil
}

func (t *mysqlTx) Decrement(ctx context.Context, itemID string, quantity int) error {
	if _, ok := t.locked[itemID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, itemID)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: decrement of %d for %s", domain.ErrInvariantViolation, quantity, itemID)
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE item_classes
		SET available = available - ?
		WHERE id = ? AND available >= ?`,
		quantity, itemID, quantity,
	)
	if err != nil {
		return fmt.Errorf("decrement %s: %w", itemID, translateError(ctx, err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement %s: %w", itemID, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: decrement of %d would drive %s below zero", domain.ErrInvariantViolation, quantity, itemID)
	}
	return nil
}

func (t *mysqlTx) AppendOrder(ctx context.Context, order domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.ID, order.BuyerID, order.TotalAmount, string(order.Status), order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", translateError(ctx, err))
	}

	for i, line := range order.Lines {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, line_no, item_class_id, quantity, unit_price_at_purchase)
			VALUES (?, ?, ?, ?, ?, ?)`,
			line.ID, order.ID, i, line.ItemClassID, line.Quantity, line.UnitPriceAtPurchase,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", translateError(ctx, err))
		}
	}
	return nil
}

// translateError maps lock waits, deadlocks and expired contexts to
// domain.ErrLockTimeout and CHECK failures to domain.ErrInvariantViolation.
func translateError(ctx context.Context, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
		case mysqlErrCheckViolated:
			return fmt.Errorf("%w: %v", domain.ErrInvariantViolation, err)
		}
	}
	if ctx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	return err
}
