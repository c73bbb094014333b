package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/money"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryRequest is the body of category create and update
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

var errPriceRequired = errors.New("price_cents or price is required")

// ProductRequest is the body of product create and update. The price must be
// sent as integer price_cents or as a decimal price in major units.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description *string         `json:"description"`
	PriceCents  *int64          `json:"price_cents"`
	Price       json.RawMessage `json:"price"`
	Stock       *int            `json:"stock" validate:"required"`
	CategoryID  *string         `json:"category_id" validate:"omitempty,uuid"`
	Active      *bool           `json:"active"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,max=500"`
}

func (p ProductRequest) toInput() (service.ProductInput, error) {
	in := service.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		ImageURL:    p.ImageURL,
	}
	if p.Stock != nil {
		in.Stock = *p.Stock
	}

	switch {
	case p.PriceCents != nil:
		in.PriceCents = *p.PriceCents
	case len(p.Price) > 0 && string(p.Price) != "null":
		cents, err := parsePrice(p.Price)
		if err != nil {
			return in, err
		}
		in.PriceCents = cents
	default:
		return in, errPriceRequired
	}

	if p.CategoryID != nil && *p.CategoryID != "" {
		id, err := uuid.Parse(*p.CategoryID)
		if err != nil {
			return in, err
		}
		in.CategoryID = &id
	}

	return in, nil
}

// parsePrice accepts "12.50", "1,200" or 12.5
func parsePrice(raw json.RawMessage) (int64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return money.ParseAmount(s)
	}
	return money.ParseAmount(string(raw))
}

// ProductPage is one page of the admin product listing
type ProductPage struct {
	Data     any `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// AdminHandler serves the admin CRUD screens
type AdminHandler struct {
	admin    service.AdminService
	settings service.SettingsService
	orders   service.OrderService
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	admin service.AdminService,
	settings service.SettingsService,
	orders service.OrderService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		settings: settings,
		orders:   orders,
		logger:   logger,
	}
}

// RegisterRoutes registers the admin routes behind the given guards
func (h *AdminHandler) RegisterRoutes(r chi.Router, guards ...func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(guards...)

		r.Get("/categories", h.ListCategories)
		r.Post("/categories", h.CreateCategory)
		r.Put("/categories/{id}", h.UpdateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)

		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Get("/orders", h.ListOrders)
		r.Get("/dashboard", h.Dashboard)
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.admin.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list categories")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, categories)
}

func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.admin.CreateCategory(r.Context(), service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create category")
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	middleware.RespondWithData(w, http.StatusCreated, category)
}

func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.admin.UpdateCategory(r.Context(), id, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update category")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, category)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteCategory(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete category")
		return
	}

	h.logger.Info("Category deleted", zap.String("category_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts handles GET /api/admin/products?category=&q=&page=&page_size=
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := service.ProductQuery{
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Page:     max(1, queryInt(r, "page", 1)),
		PageSize: min(100, max(1, queryInt(r, "page_size", 20))),
	}
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		q.CategoryID = &id
	}

	products, total, err := h.admin.ListProducts(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductPage{
		Data:     products,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
}

func (h *AdminHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return service.ProductInput{}, false
	}

	in, err := req.toInput()
	if errors.Is(err, errPriceRequired) {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
			{Field: "PriceCents", Message: "This field is required"},
		})
		return service.ProductInput{}, false
	}
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price or category")
		return service.ProductInput{}, false
	}
	return in, true
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.admin.CreateProduct(r.Context(), in)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithData(w, http.StatusCreated, product)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	in, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.admin.UpdateProduct(r.Context(), id, in)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, product)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.admin.DeleteProduct(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load settings")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, settings)
}

// UpdateSettings upserts the recognised keys of a JSON object; unknown keys are ignored
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, middleware.MaxBodyBytes)).Decode(&patch); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	settings, err := h.settings.Update(r.Context(), patch)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to save settings")
		return
	}

	h.logger.Info("Settings updated", zap.Int("keys", len(patch)))
	middleware.RespondWithData(w, http.StatusOK, settings)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, orders)
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Dashboard(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load dashboard")
		return
	}
	middleware.RespondWithData(w, http.StatusOK, stats)
}
