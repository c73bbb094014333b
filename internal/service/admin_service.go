package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrCategoryInUse = errors.New("category has associated products")
)

// CategoryInput is the editable part of a category
type CategoryInput struct {
	Name        string
	Description *string
}

// ProductInput is the editable part of a product. A nil Active means true.
type ProductInput struct {
	Name        string
	Description *string
	PriceCents  int64
	Stock       int
	CategoryID  *uuid.UUID
	Active      *bool
	ImageURL    *string
}

// ProductQuery selects a page of products for the admin listing
type ProductQuery struct {
	CategoryID *uuid.UUID
	Search     string
	Page       int
	PageSize   int
}

// AdminService implements the admin CRUD screens for categories and products
type AdminService interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListProducts(ctx context.Context, q ProductQuery) ([]*domain.Product, int, error)
	CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type adminService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
}

// NewAdminService creates a new instance of AdminService
func NewAdminService(categories repository.CategoryRepository, products repository.ProductRepository) AdminService {
	return &adminService{
		categories: categories,
		products:   products,
	}
}

// optionalString trims s and maps blank to nil
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *adminService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

func (s *adminService) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: optionalString(in.Description),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.categories.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

func (s *adminService) UpdateCategory(ctx context.Context, id uuid.UUID, in CategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = name
	category.Description = optionalString(in.Description)

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// DeleteCategory refuses to delete a category that products still point at
func (s *adminService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	count, err := s.categories.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return categoryInUse(count)
	}

	err = s.categories.Delete(ctx, id)
	if errors.Is(err, repository.ErrCategoryReferenced) {
		// a product was assigned between the count and the delete
		return categoryInUse(1)
	}
	return err
}

func categoryInUse(count int) error {
	noun := "products"
	if count == 1 {
		noun = "product"
	}
	return fmt.Errorf("%w: %d %s still in this category", ErrCategoryInUse, count, noun)
}

func (s *adminService) ListProducts(ctx context.Context, q ProductQuery) ([]*domain.Product, int, error) {
	return s.products.List(ctx, repository.ProductFilter{
		CategoryID: q.CategoryID,
		NameQuery:  q.Search,
		SortBy:     "created_at",
		SortOrder:  repository.SortOrderDesc,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
}

func (s *adminService) normalizeProduct(ctx context.Context, in ProductInput, p *domain.Product) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}

	if in.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *in.CategoryID); err != nil {
			return err
		}
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	p.Name = name
	p.Description = optionalString(in.Description)
	p.PriceCents = max(0, in.PriceCents)
	p.Stock = max(0, in.Stock)
	p.CategoryID = in.CategoryID
	p.Active = active
	p.ImageURL = optionalString(in.ImageURL)
	return nil
}

func (s *adminService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.normalizeProduct(ctx, in, product); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *adminService) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.normalizeProduct(ctx, in, product); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

func (s *adminService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.products.Delete(ctx, id)
}
