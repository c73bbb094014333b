package transport

import (
	"net/http"

	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CartLineRequest is one line of a browser-held cart
type CartLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	UnitPrice int64  `json:"unit_price" validate:"gte=0"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

// CustomerRequest carries the contact details typed at checkout. Which
// fields are required depends on the channel.
type CustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c CustomerRequest) toDomain() domain.Customer {
	return domain.Customer{Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address}
}

// ClientCheckoutRequest is the body of POST /api/cart/checkout
type ClientCheckoutRequest struct {
	Cart       []CartLineRequest `json:"cart" validate:"dive"`
	Customer   CustomerRequest   `json:"customer"`
	Channel    string            `json:"channel" validate:"omitempty,oneof=whatsapp paypal mmg cash"`
	PaymentRef string            `json:"payment_ref"`
}

// OrderRequest is the body of POST /api/order/{channel}
type OrderRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PayPalOrderID string `json:"paypal_order_id"`
}

// CheckoutResponse reports a successful hand-off
type CheckoutResponse struct {
	OK          bool   `json:"ok"`
	CartCount   int    `json:"cart_count"`
	OrderID     string `json:"order_id,omitempty"`
	Status      string `json:"status,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Summary     string `json:"summary"`
	Total       int64  `json:"total"`
}

func newCheckoutResponse(res *checkout.Result) CheckoutResponse {
	resp := CheckoutResponse{
		OK:          true,
		RedirectURL: res.RedirectURL,
		Summary:     res.Summary,
		Total:       res.Total,
		Status:      string(res.Status),
	}
	if res.OrderID != nil {
		resp.OrderID = res.OrderID.String()
	}
	return resp
}

// CheckoutHandler submits carts to the checkout orchestrator
type CheckoutHandler struct {
	persister    cart.Persister
	orchestrator *checkout.Orchestrator
	logger       *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler. persister holds the session carts.
func NewCheckoutHandler(persister cart.Persister, orchestrator *checkout.Orchestrator, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		persister:    persister,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes registers the checkout routes
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/cart/checkout", h.CheckoutClientCart)
	r.Post("/api/order/{channel}", h.PlaceOrder)
}

// CheckoutClientCart checks out a cart kept in browser storage. The lines
// are taken as submitted.
func (h *CheckoutHandler) CheckoutClientCart(w http.ResponseWriter, r *http.Request) {
	var req ClientCheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Checkout validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	cartID, ok := middleware.CartIDFromContext(r.Context())
	if !ok {
		h.logger.Error("Checkout request has no cart session")
		respondCartFailure(w, http.StatusInternalServerError, "cart_unavailable", "cart session is missing", nil, 0)
		return
	}
	key := "client:" + cartID

	lines := make([]cart.Line, 0, len(req.Cart))
	for _, l := range req.Cart {
		lines = append(lines, cart.Line{ProductID: l.ProductID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	persister := cart.NewMemoryPersister()
	if err := persister.Save(r.Context(), key, lines); err != nil {
		respondCartFailure(w, http.StatusInternalServerError, "internal_server_error", "checkout failed", nil, 0)
		return
	}
	store := cart.NewStore(persister, key)
	if err := store.Hydrate(r.Context()); err != nil {
		respondCartFailure(w, http.StatusInternalServerError, "internal_server_error", "checkout failed", nil, 0)
		return
	}

	res, err := h.orchestrator.Checkout(r.Context(), store, checkout.Request{
		Channel:    domain.Channel(req.Channel),
		Customer:   req.Customer.toDomain(),
		PaymentRef: req.PaymentRef,
	})
	if err != nil {
		respondCheckoutError(w, h.logger, err, cartCount(store))
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCheckoutResponse(res))
}

// PlaceOrder checks out the session cart through paypal, mmg or cash
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	channel := domain.Channel(chi.URLParam(r, "channel"))
	if channel == domain.ChannelWhatsApp || !channel.Valid() {
		middleware.RespondWithError(w, http.StatusNotFound, "unknown order channel")
		return
	}

	var req OrderRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	store, err := openStore(r, h.persister)
	if err != nil {
		h.logger.Error("Failed to open cart", zap.Error(err))
		respondCartFailure(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is unavailable, please retry", nil, 0)
		return
	}

	res, err := h.orchestrator.Checkout(r.Context(), store, checkout.Request{
		Channel: channel,
		Customer: domain.Customer{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		},
		PaymentRef: req.PayPalOrderID,
	})
	if err != nil {
		respondCheckoutError(w, h.logger, err, cartCount(store))
		return
	}

	h.logger.Info("Order placed",
		zap.String("channel", string(channel)),
		zap.String("order_id", res.OrderID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, newCheckoutResponse(res))
}
