package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ticket-booking/internal/core/domain"
	"github.com/rl1809/ticket-booking/internal/port"
)

const OrderPlacedEventType = "order.placed"

type OrderPlacedEvent struct {
	Type        string            `json:"type"`
	OrderID     string            `json:"order_id"`
	BuyerID     string            `json:"buyer_id"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Lines       []OrderPlacedLine `json:"lines"`
	CreatedAt   time.Time         `json:"created_at"`
}

type OrderPlacedLine struct {
	ItemClassID string          `json:"item_class_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	msg, err := orderPlacedMessage(order)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write order placed event: %w", err)
	}
	return nil
}

// orderPlacedMessage keys by buyer so a buyer's events stay on one partition.
func orderPlacedMessage(order domain.Order) (kafka.Message, error) {
	event := OrderPlacedEvent{
		Type:        OrderPlacedEventType,
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	}
	for _, l := range order.Lines {
		event.Lines = append(event.Lines, OrderPlacedLine{
			ItemClassID: l.ItemClassID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPriceAtPurchase,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order placed event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(order.BuyerID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(OrderPlacedEventType)},
		},
	}, nil
}
