package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the fulfillment channel an order is handed off to
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPayPal   Channel = "paypal"
	ChannelMMG      Channel = "mmg"
	ChannelCash     Channel = "cash"
)

// Valid reports whether c is a known channel
func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelPayPal, ChannelMMG, ChannelCash:
		return true
	}
	return false
}

// OrderStatus represents the lifecycle state of a recorded order
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
)

// Customer holds the contact details collected at checkout
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// OrderItem is a product line frozen into an order
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// LineTotal returns unit price times quantity
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is a checkout recorded for the store owner
type Order struct {
	ID         uuid.UUID   `json:"id"`
	Channel    Channel     `json:"channel"`
	Status     OrderStatus `json:"status"`
	Customer   Customer    `json:"customer"`
	Items      []OrderItem `json:"items"`
	TotalCents int64       `json:"total_cents"`
	PaymentRef *string     `json:"payment_ref,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
