package transport

import (
	"errors"
	"net/http"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// respondServiceError maps domain errors to HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with the fallback message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
	case errors.Is(err, repository.ErrCategoryAlreadyExists):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "category_exists", err.Error(), nil)
	case errors.Is(err, service.ErrCategoryInUse):
		middleware.RespondWithErrorDetails(w, http.StatusConflict, "category_in_use", err.Error(), nil)
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidSetting):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// cartFailure is an error body for cart and order routes. It carries the
// usual error fields plus the cart state the storefront script expects.
type cartFailure struct {
	OK        bool `json:"ok"`
	CartCount int  `json:"cart_count"`
	middleware.ErrorResponse
}

func respondCartFailure(w http.ResponseWriter, status int, code, message string, details map[string]any, cartCount int) {
	body := cartFailure{CartCount: cartCount}
	body.Error = message
	body.Code = code
	body.Details = details
	body.Timestamp = nowRFC3339()
	middleware.RespondWithJSON(w, status, body)
}

// respondCheckoutError maps orchestrator errors. The cart is intact in every case.
func respondCheckoutError(w http.ResponseWriter, logger *zap.Logger, err error, cartCount int) {
	var verr *checkout.ValidationError
	var perr *checkout.PaymentError

	switch {
	case errors.As(err, &verr):
		respondCartFailure(w, http.StatusBadRequest, "validation_failed", err.Error(),
			map[string]any{"validation_errors": verr.Fields}, cartCount)
	case errors.Is(err, checkout.ErrEmptyCart):
		respondCartFailure(w, http.StatusBadRequest, "empty_cart", "Cart is empty", nil, cartCount)
	case errors.Is(err, checkout.ErrUnknownChannel):
		respondCartFailure(w, http.StatusBadRequest, "unknown_channel", err.Error(), nil, cartCount)
	case errors.Is(err, checkout.ErrChannelUnavailable):
		respondCartFailure(w, http.StatusUnprocessableEntity, "channel_unavailable", err.Error(), nil, cartCount)
	case errors.As(err, &perr):
		respondCartFailure(w, http.StatusPaymentRequired, "payment_failed", "payment could not be completed", nil, cartCount)
	case errors.Is(err, checkout.ErrRecordOrder):
		logger.Error("Order submission failed", zap.Error(err))
		respondCartFailure(w, http.StatusBadGateway, "order_failed", "order could not be submitted, please try again", nil, cartCount)
	default:
		logger.Error("Checkout failed", zap.Error(err))
		respondCartFailure(w, http.StatusInternalServerError, "internal_server_error", "checkout failed", nil, cartCount)
	}
}
