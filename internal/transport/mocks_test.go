package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/payment/paypal"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSessionSecret = "0123456789abcdef0123456789abcdef"
	testCookieName    = "storefront_session"
)

// Mock services for testing
type mockCatalogService struct {
	mu         sync.Mutex
	products   map[uuid.UUID]domain.CatalogProduct
	categories []*domain.Category
	lastFilter *uuid.UUID
	lastSearch string
}

func newMockCatalogService() *mockCatalogService {
	return &mockCatalogService{products: make(map[uuid.UUID]domain.CatalogProduct)}
}

func (m *mockCatalogService) addProduct(name string, price int64, stock int, showStock bool) uuid.UUID {
	p := &domain.Product{ID: uuid.New(), Name: name, PriceCents: price, Stock: stock, Active: true}
	m.products[p.ID] = domain.NewCatalogProduct(p, showStock)
	return p.ID
}

func (m *mockCatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return m.categories, nil
}

func (m *mockCatalogService) ListProducts(ctx context.Context, categoryID *uuid.UUID, search string) ([]domain.CatalogProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter, m.lastSearch = categoryID, search

	out := make([]domain.CatalogProduct, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (domain.CatalogProduct, error) {
	p, ok := m.products[id]
	if !ok {
		return domain.CatalogProduct{}, service.ErrProductUnavailable
	}
	return p, nil
}

type mockSettingsService struct {
	mu        sync.Mutex
	settings  domain.Settings
	err       error
	updateErr error
	patches   []map[string]json.RawMessage
}

func (m *mockSettingsService) Get(ctx context.Context) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.err
}

func (m *mockSettingsService) Update(ctx context.Context, patch map[string]json.RawMessage) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return domain.Settings{}, m.updateErr
	}
	m.patches = append(m.patches, patch)
	if raw, ok := patch[domain.SettingBusinessName]; ok {
		_ = json.Unmarshal(raw, &m.settings.BusinessName)
	}
	return m.settings, nil
}

type mockAdminService struct {
	categories   map[uuid.UUID]*domain.Category
	products     map[uuid.UUID]*domain.Product
	inUse        map[uuid.UUID]int
	lastQuery    service.ProductQuery
	lastInput    service.ProductInput
	createCatErr error
}

func newMockAdminService() *mockAdminService {
	return &mockAdminService{
		categories: make(map[uuid.UUID]*domain.Category),
		products:   make(map[uuid.UUID]*domain.Product),
		inUse:      make(map[uuid.UUID]int),
	}
}

func (m *mockAdminService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockAdminService) CreateCategory(ctx context.Context, in service.CategoryInput) (*domain.Category, error) {
	if m.createCatErr != nil {
		return nil, m.createCatErr
	}
	for _, c := range m.categories {
		if c.Name == in.Name {
			return nil, repository.ErrCategoryAlreadyExists
		}
	}
	c := &domain.Category{ID: uuid.New(), Name: in.Name, Description: in.Description}
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockAdminService) UpdateCategory(ctx context.Context, id uuid.UUID, in service.CategoryInput) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	c.Name, c.Description = in.Name, in.Description
	return c, nil
}

func (m *mockAdminService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	if n := m.inUse[id]; n > 0 {
		return errors.Join(service.ErrCategoryInUse, errors.New("used by products"))
	}
	delete(m.categories, id)
	return nil
}

func (m *mockAdminService) ListProducts(ctx context.Context, q service.ProductQuery) ([]*domain.Product, int, error) {
	m.lastQuery = q
	out := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockAdminService) CreateProduct(ctx context.Context, in service.ProductInput) (*domain.Product, error) {
	m.lastInput = in
	if in.CategoryID != nil {
		if _, ok := m.categories[*in.CategoryID]; !ok {
			return nil, repository.ErrCategoryNotFound
		}
	}
	p := &domain.Product{ID: uuid.New(), Name: in.Name, PriceCents: in.PriceCents, Stock: in.Stock, CategoryID: in.CategoryID, Active: true}
	m.products[p.ID] = p
	return p, nil
}

func (m *mockAdminService) UpdateProduct(ctx context.Context, id uuid.UUID, in service.ProductInput) (*domain.Product, error) {
	m.lastInput = in
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Name, p.PriceCents, p.Stock = in.Name, in.PriceCents, in.Stock
	return p, nil
}

func (m *mockAdminService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

type mockOrderService struct {
	mu        sync.Mutex
	orders    []*domain.Order
	recordErr error
	lastLimit int
}

func (m *mockOrderService) Record(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	m.orders = append(m.orders, order)
	return nil
}

func (m *mockOrderService) List(ctx context.Context, limit int) ([]*domain.Order, error) {
	m.lastLimit = limit
	return m.orders, nil
}

func (m *mockOrderService) Dashboard(ctx context.Context) (*service.DashboardStats, error) {
	return &service.DashboardStats{Products: 3, Categories: 1, Orders: len(m.orders), LowStock: 1}, nil
}

func (m *mockOrderService) recorded() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Order(nil), m.orders...)
}

type mockStock struct {
	mu    sync.Mutex
	stock map[uuid.UUID]int
}

func (m *mockStock) GetStock(ctx context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stock, ok := m.stock[id]
	if !ok {
		return 0, repository.ErrProductNotFound
	}
	return stock, nil
}

func (m *mockStock) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[id] = stock
	return nil
}

type mockCapturer struct {
	err      error
	amount   string
	currency string
}

func (m *mockCapturer) Capture(ctx context.Context, orderID string) (*paypal.Capture, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &paypal.Capture{
		OrderID:   orderID,
		CaptureID: "CAP-" + orderID,
		Status:    "COMPLETED",
		Amount:    m.amount,
		Currency:  m.currency,
	}, nil
}

// storefront wires the public handlers the way the server does, over mocks
type storefront struct {
	catalog  *mockCatalogService
	settings *mockSettingsService
	orders   *mockOrderService
	stock    *mockStock
	carts    *cart.MemoryPersister
	router   chi.Router
}

func newStorefront(t *testing.T, payments checkout.PaymentCapturer) *storefront {
	t.Helper()

	formatter, err := money.NewFormatter("GYD", "GY$")
	require.NoError(t, err)

	sf := &storefront{
		catalog: newMockCatalogService(),
		settings: &mockSettingsService{settings: domain.Settings{
			BusinessName:   "Corner Shop",
			Theme:          domain.ThemeLight,
			WhatsAppNumber: "5926001234",
		}},
		orders: &mockOrderService{},
		stock:  &mockStock{stock: make(map[uuid.UUID]int)},
		carts:  cart.NewMemoryPersister(),
	}

	logger := zap.NewNop()
	orchestrator := checkout.NewOrchestrator(sf.settings, sf.stock, sf.orders, payments, formatter, logger)

	router := chi.NewRouter()
	NewCatalogHandler(sf.catalog, sf.settings, logger).RegisterRoutes(router)
	router.Group(func(r chi.Router) {
		r.Use(middleware.CartSession(middleware.NewCookieStore(testSessionSecret, 3600, false), testCookieName, logger))
		NewCartHandler(sf.carts, sf.catalog, logger).RegisterRoutes(r)
		NewCheckoutHandler(sf.carts, orchestrator, logger).RegisterRoutes(r)
	})
	sf.router = router

	return sf
}

// session replays the cart cookie between requests
type session struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (sf *storefront) session(t *testing.T) *session {
	return &session{t: t, router: sf.router}
}

func (s *session) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == testCookieName {
			s.cookie = c
		}
	}
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}
