package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// ErrProductUnavailable is returned for products that are missing or inactive
var ErrProductUnavailable = errors.New("product not available")

// SettingsReader is the read half of SettingsService
type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// CatalogService is the storefront's read-only view of products and categories
type CatalogService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListProducts(ctx context.Context, categoryID *uuid.UUID, search string) ([]domain.CatalogProduct, error)
	GetProduct(ctx context.Context, id uuid.UUID) (domain.CatalogProduct, error)
}

type catalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	settings   SettingsReader
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	settings SettingsReader,
) CatalogService {
	return &catalogService{
		products:   products,
		categories: categories,
		settings:   settings,
	}
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

// ListProducts returns active products, filtered by category in the query
// and by a case-insensitive name substring afterwards.
func (s *catalogService) ListProducts(ctx context.Context, categoryID *uuid.UUID, search string) ([]domain.CatalogProduct, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	products, _, err := s.products.List(ctx, repository.ProductFilter{
		CategoryID: categoryID,
		ActiveOnly: true,
		SortBy:     "name",
		SortOrder:  repository.SortOrderAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog products: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.CatalogProduct, 0, len(products))
	for _, p := range products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		out = append(out, domain.NewCatalogProduct(p, settings.StockDisplay))
	}

	return out, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (domain.CatalogProduct, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.CatalogProduct{}, ErrProductUnavailable
		}
		return domain.CatalogProduct{}, err
	}
	if !p.Active {
		return domain.CatalogProduct{}, ErrProductUnavailable
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.CatalogProduct{}, err
	}

	return domain.NewCatalogProduct(p, settings.StockDisplay), nil
}
