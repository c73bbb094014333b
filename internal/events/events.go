// Package events publishes order notifications for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/segmentio/kafka-go"
)

// OrderPlaced is emitted after an order has been recorded
type OrderPlaced struct {
	OrderID    string    `json:"order_id"`
	Channel    string    `json:"channel"`
	Status     string    `json:"status"`
	Customer   string    `json:"customer"`
	TotalCents int64     `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewOrderPlaced builds the event for order
func NewOrderPlaced(order *domain.Order) OrderPlaced {
	items := 0
	for _, it := range order.Items {
		items += it.Quantity
	}
	return OrderPlaced{
		OrderID:    order.ID.String(),
		Channel:    string(order.Channel),
		Status:     string(order.Status),
		Customer:   order.Customer.Name,
		TotalCents: order.TotalCents,
		ItemCount:  items,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends order events
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by order id
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for topic on brokers
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error {
	msg, err := orderPlacedMessage(evt)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write order event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func orderPlacedMessage(evt OrderPlaced) (kafka.Message, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal order event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.placed")},
		},
	}, nil
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }

func (NopPublisher) Close() error { return nil }

// NewPublisher returns a KafkaPublisher, or a NopPublisher when brokers is empty
func NewPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
