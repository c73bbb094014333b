package transport

import (
	"errors"
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddToCartRequest is the body of POST /api/cart/add
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       *int   `json:"qty" validate:"omitempty,gte=1,lte=999"`
}

// UpdateCartRequest is the body of POST /api/cart/update
type UpdateCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty"`
}

// RemoveFromCartRequest is the body of POST /api/cart/remove
type RemoveFromCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// CartResponse describes the session cart after a read or change
type CartResponse struct {
	OK        bool        `json:"ok"`
	CartCount int         `json:"cart_count"`
	Subtotal  *int64      `json:"subtotal,omitempty"`
	Lines     []cart.Line `json:"lines,omitempty"`
}

// CartHandler serves the session cart. The cart key comes from the session
// cookie set by middleware.CartSession.
type CartHandler struct {
	persister cart.Persister
	catalog   service.CatalogService
	logger    *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(persister cart.Persister, catalog service.CatalogService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		persister: persister,
		catalog:   catalog,
		logger:    logger,
	}
}

// RegisterRoutes registers the session cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/cart", h.GetCart)
	r.Post("/api/cart/add", h.Add)
	r.Post("/api/cart/update", h.Update)
	r.Post("/api/cart/remove", h.Remove)
}

// openStore returns the hydrated cart store of the request's session
func openStore(r *http.Request, persister cart.Persister) (*cart.Store, error) {
	cartID, ok := middleware.CartIDFromContext(r.Context())
	if !ok {
		return nil, errors.New("request has no cart session")
	}

	store := cart.NewStore(persister, cartID)
	if err := store.Hydrate(r.Context()); err != nil {
		return nil, err
	}
	return store, nil
}

func cartCount(store *cart.Store) int {
	c, err := store.Snapshot()
	if err != nil {
		return 0
	}
	return c.Count()
}

func (h *CartHandler) open(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store, err := openStore(r, h.persister)
	if err != nil {
		h.logger.Error("Failed to open cart", zap.Error(err))
		respondCartFailure(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is unavailable, please retry", nil, 0)
		return nil, false
	}
	return store, true
}

// GetCart returns the session cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.open(w, r)
	if !ok {
		return
	}

	c, _ := store.Snapshot()
	subtotal := c.Subtotal()
	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{
		OK:        true,
		CartCount: c.Count(),
		Subtotal:  &subtotal,
		Lines:     c.Lines(),
	})
}

// Add puts a product into the session cart, copying its current name and
// price. Sold out products are refused while stock is displayed.
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Add to cart validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	store, ok := h.open(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), uuid.MustParse(req.ProductID))
	if err != nil {
		if errors.Is(err, service.ErrProductUnavailable) {
			respondCartFailure(w, http.StatusNotFound, "not_found", "product not found", nil, cartCount(store))
			return
		}
		respondServiceError(w, h.logger, err, "failed to add to cart")
		return
	}

	if !product.CanAdd {
		respondCartFailure(w, http.StatusConflict, "out_of_stock", "Out of stock", nil, cartCount(store))
		return
	}

	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	err = store.Add(r.Context(), cart.Line{
		ProductID: product.ID.String(),
		Name:      product.Name,
		UnitPrice: product.PriceCents,
		Quantity:  qty,
	})
	if err != nil {
		h.logger.Error("Failed to add to cart", zap.String("product_id", req.ProductID), zap.Error(err))
		respondCartFailure(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved", nil, cartCount(store))
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{OK: true, CartCount: cartCount(store)})
}

// Update sets the quantity of a line. Quantities below one become one.
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	store, ok := h.open(w, r)
	if !ok {
		return
	}

	err := store.UpdateQuantity(r.Context(), req.ProductID, req.Qty)
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		respondCartFailure(w, http.StatusNotFound, "not_found", "product is not in the cart", nil, cartCount(store))
		return
	case err != nil:
		h.logger.Error("Failed to update cart", zap.String("product_id", req.ProductID), zap.Error(err))
		respondCartFailure(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved", nil, cartCount(store))
		return
	}

	c, _ := store.Snapshot()
	line, _ := c.Line(req.ProductID)
	subtotal := line.Total()
	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{OK: true, CartCount: c.Count(), Subtotal: &subtotal})
}

// Remove drops a line. Removing a product that is not in the cart succeeds.
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req RemoveFromCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	store, ok := h.open(w, r)
	if !ok {
		return
	}

	if err := store.Remove(r.Context(), req.ProductID); err != nil {
		h.logger.Error("Failed to remove from cart", zap.String("product_id", req.ProductID), zap.Error(err))
		respondCartFailure(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be saved", nil, cartCount(store))
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CartResponse{OK: true, CartCount: cartCount(store)})
}
