package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// RecentOrdersOnDashboard is how many orders the dashboard shows
const RecentOrdersOnDashboard = 5

// publishTimeout bounds the order placed announcement on the request path
const publishTimeout = 5 * time.Second

// DashboardStats summarizes the store for the admin landing page
type DashboardStats struct {
	Products     int             `json:"products"`
	Categories   int             `json:"categories"`
	Orders       int             `json:"orders"`
	LowStock     int             `json:"low_stock"`
	RecentOrders []*domain.Order `json:"recent_orders"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// OrderService records orders and reports on them
type OrderService interface {
	Record(ctx context.Context, order *domain.Order) error
	List(ctx context.Context, limit int) ([]*domain.Order, error)
	Dashboard(ctx context.Context) (*DashboardStats, error)
}

type orderService struct {
	orders     repository.OrderRepository
	products   repository.ProductRepository
	categories repository.CategoryRepository
	publisher  events.Publisher
	logger     *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	publisher events.Publisher,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orders:     orders,
		products:   products,
		categories: categories,
		publisher:  publisher,
		logger:     logger,
	}
}

// Record stores the order, then announces it. A failed announcement is
// logged and does not fail the order.
func (s *orderService) Record(ctx context.Context, order *domain.Order) error {
	if err := s.orders.Create(ctx, order); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.publisher.PublishOrderPlaced(pubCtx, events.NewOrderPlaced(order)); err != nil {
		s.logger.Warn("Failed to publish order placed event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return nil
}

func (s *orderService) List(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.orders.ListRecent(ctx, limit)
}

func (s *orderService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}

	lowStock, err := s.products.CountLowStock(ctx, domain.LowStockThreshold)
	if err != nil {
		return nil, err
	}

	recent, err := s.orders.ListRecent(ctx, RecentOrdersOnDashboard)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}

	return &DashboardStats{
		Products:     products,
		Categories:   len(categories),
		Orders:       orders,
		LowStock:     lowStock,
		RecentOrders: recent,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}
