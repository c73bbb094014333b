package domain

import (
	"time"

	"github.com/google/uuid"
)

// LowStockThreshold is the stock level at or below which an in-stock product
// is reported as running low on the admin dashboard.
const LowStockThreshold = 5

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description" db:"description"`
	PriceCents  int64      `json:"price_cents" db:"price_cents"`
	Stock       int        `json:"stock" db:"stock"`
	CategoryID  *uuid.UUID `json:"category_id" db:"category_id"`
	Active      bool       `json:"active" db:"active"`
	ImageURL    *string    `json:"image_url" db:"image_url"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CatalogProduct is a product as shown on the storefront, decorated with the
// stock display flags derived from the site settings.
type CatalogProduct struct {
	*Product
	ShowStock bool `json:"show_stock"`
	SoldOut   bool `json:"sold_out"`
	CanAdd    bool `json:"can_add"`
}

// NewCatalogProduct decorates p. A zero stock only blocks adding to the cart
// when stock is displayed.
func NewCatalogProduct(p *Product, showStock bool) CatalogProduct {
	soldOut := showStock && p.Stock <= 0
	return CatalogProduct{
		Product:   p,
		ShowStock: showStock,
		SoldOut:   soldOut,
		CanAdd:    !soldOut,
	}
}
