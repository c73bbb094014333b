package repository

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/database"
	"storefront/internal/domain"

	"github.com/google/uuid"
)

// OrderRepository persists orders placed through the manual and PayPal channels
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	ListRecent(ctx context.Context, limit int) ([]*domain.Order, error)
	Count(ctx context.Context) (int, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order and its items in a single transaction
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := database.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, channel, status, customer_name, customer_email, customer_phone,
			                    customer_address, total_cents, payment_ref, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			order.ID,
			string(order.Channel),
			string(order.Status),
			order.Customer.Name,
			nullString(order.Customer.Email),
			nullString(order.Customer.Phone),
			nullString(order.Customer.Address),
			order.TotalCents,
			order.PaymentRef,
			order.CreatedAt,
		)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create order: %w", err)
		}

		for i, item := range order.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, position, product_id, name, unit_price_cents, quantity)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, order.ID, i, item.ProductID, item.Name, item.UnitPrice, item.Quantity)
			if err != nil {
				return struct{}{}, fmt.Errorf("failed to create order item: %w", err)
			}
		}

		return struct{}{}, nil
	})

	return err
}

// ListRecent returns up to limit orders, newest first, with their items
func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		WITH recent AS (
			SELECT id, channel, status, customer_name, customer_email, customer_phone,
			       customer_address, total_cents, payment_ref, created_at
			FROM orders
			ORDER BY created_at DESC, id
			LIMIT $1
		)
		SELECT o.id, o.channel, o.status, o.customer_name, o.customer_email, o.customer_phone,
		       o.customer_address, o.total_cents, o.payment_ref, o.created_at,
		       oi.product_id, oi.name, oi.unit_price_cents, oi.quantity
		FROM recent o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		ORDER BY o.created_at DESC, o.id, oi.position
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		var (
			o                     domain.Order
			email, phone, address sql.NullString
			productID, name       sql.NullString
			unitPrice             sql.NullInt64
			quantity              sql.NullInt32
			channel, status       string
		)
		err := rows.Scan(
			&o.ID, &channel, &status, &o.Customer.Name, &email, &phone,
			&address, &o.TotalCents, &o.PaymentRef, &o.CreatedAt,
			&productID, &name, &unitPrice, &quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		order, ok := byID[o.ID]
		if !ok {
			o.Channel = domain.Channel(channel)
			o.Status = domain.OrderStatus(status)
			o.Customer.Email = email.String
			o.Customer.Phone = phone.String
			o.Customer.Address = address.String
			o.Items = []domain.OrderItem{}
			order = &o
			byID[o.ID] = order
			orders = append(orders, order)
		}

		if productID.Valid {
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: productID.String,
				Name:      name.String,
				UnitPrice: unitPrice.Int64,
				Quantity:  int(quantity.Int32),
			})
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// Count returns the number of recorded orders
func (r *orderRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
