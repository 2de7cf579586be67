package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type mockWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func testOrder() domain.Order {
	return domain.Order{
		ID:          "order-1",
		BuyerID:     "buyer-1",
		TotalAmount: decimal.RequireFromString("150.00"),
		Status:      domain.OrderStatusPaid,
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Lines: []domain.OrderLine{
			{ID: "l-1", OrderID: "order-1", ItemClassID: "VIP", Quantity: 2, UnitPriceAtPurchase: decimal.RequireFromString("75.00")},
		},
	}
}

func TestPublishOrderPlaced(t *testing.T) {
	writer := &mockWriter{}
	pub := NewKafkaPublisher(writer)

	if err := pub.PublishOrderPlaced(context.Background(), testOrder()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != "buyer-1" {
		t.Errorf("expected key buyer-1, got %s", msg.Key)
	}

	var event OrderPlacedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if event.Type != OrderPlacedEventType || event.OrderID != "order-1" {
		t.Errorf("unexpected event: %+v", event)
	}
	if !event.TotalAmount.Equal(decimal.RequireFromString("150")) {
		t.Errorf("expected total 150, got %s", event.TotalAmount)
	}
	if len(event.Lines) != 1 || event.Lines[0].Quantity != 2 {
		t.Errorf("unexpected lines: %+v", event.Lines)
	}
}

func TestPublishOrderPlaced_WriterError(t *testing.T) {
	writer := &mockWriter{err: errors.New("broker down")}
	pub := NewKafkaPublisher(writer)

	if err := pub.PublishOrderPlaced(context.Background(), testOrder()); err == nil {
		t.Error("expected error from writer")
	}
}
