// Package checkout turns a cart into an order handed off to one channel.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/money"
	"storefront/internal/payment/paypal"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SettingsReader supplies the current site settings
type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// StockStore reads and overwrites product stock
type StockStore interface {
	GetStock(ctx context.Context, id uuid.UUID) (int, error)
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
}

// OrderRecorder persists a placed order
type OrderRecorder interface {
	Record(ctx context.Context, order *domain.Order) error
}

// PaymentCapturer captures an approved online payment
type PaymentCapturer interface {
	Capture(ctx context.Context, orderID string) (*paypal.Capture, error)
}

// Request is what the customer submitted with the checkout
type Request struct {
	Channel    domain.Channel
	Customer   domain.Customer
	PaymentRef string
}

// Result describes a successful hand-off
type Result struct {
	Channel     domain.Channel
	Status      domain.OrderStatus
	OrderID     *uuid.UUID
	RedirectURL string
	Summary     string
	Total       int64
}

// Orchestrator runs checkouts. It is safe for concurrent use.
type Orchestrator struct {
	settings SettingsReader
	stock    StockStore
	orders   OrderRecorder
	payments PaymentCapturer
	money    *money.Formatter
	validate *validator.Validate
	logger   *zap.Logger

	inflight singleflight.Group
}

// NewOrchestrator creates an orchestrator. payments may be nil, which
// leaves the paypal channel unavailable.
func NewOrchestrator(
	settings SettingsReader,
	stock StockStore,
	orders OrderRecorder,
	payments PaymentCapturer,
	formatter *money.Formatter,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		settings: settings,
		stock:    stock,
		orders:   orders,
		payments: payments,
		money:    formatter,
		validate: validator.New(),
		logger:   logger,
	}
}

// Checkout validates the request against the hydrated store, adjusts stock,
// hands the order to req.Channel and clears the cart on success. Concurrent
// identical submissions for the same cart key share one execution and one result.
func (o *Orchestrator) Checkout(ctx context.Context, store *cart.Store, req Request) (*Result, error) {
	key, err := submissionKey(store, req)
	if err != nil {
		return nil, err
	}

	v, err, shared := o.inflight.Do(key, func() (any, error) {
		return o.checkout(ctx, store, req)
	})
	if shared {
		o.logger.Debug("Collapsed duplicate checkout", zap.String("cart", store.Key()))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// submissionKey identifies one submission: the cart key plus a digest of
// everything the customer sent. Only identical submissions share a run.
func submissionKey(store *cart.Store, req Request) (string, error) {
	c, err := store.Snapshot()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	err = json.NewEncoder(h).Encode(struct {
		Channel    domain.Channel
		Customer   domain.Customer
		PaymentRef string
		Lines      []cart.Line
	}{req.Channel, req.Customer, req.PaymentRef, c.Lines()})
	if err != nil {
		return "", fmt.Errorf("failed to digest checkout: %w", err)
	}

	return store.Key() + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

func (o *Orchestrator) checkout(ctx context.Context, store *cart.Store, req Request) (*Result, error) {
	c, err := store.Snapshot()
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if req.Channel == "" {
		req.Channel = domain.ChannelWhatsApp
	}
	if !req.Channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}

	req.Customer = trimCustomer(req.Customer)
	req.PaymentRef = strings.TrimSpace(req.PaymentRef)
	if err := o.validateRequest(req); err != nil {
		return nil, err
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := o.channelAvailable(req.Channel, settings); err != nil {
		return nil, err
	}

	if settings.StockDisplay {
		o.decrementStock(ctx, c.Lines())
	}

	result := &Result{
		Channel: req.Channel,
		Summary: Summary(o.money, settings.BusinessName, req.Customer, c),
		Total:   c.Subtotal(),
	}

	switch req.Channel {
	case domain.ChannelWhatsApp:
		result.RedirectURL = WhatsAppURL(settings.WhatsAppNumber, result.Summary)

	case domain.ChannelPayPal:
		capture, err := o.payments.Capture(ctx, req.PaymentRef)
		if err != nil {
			o.logger.Warn("Payment capture failed",
				zap.String("payment_ref", req.PaymentRef),
				zap.Error(err),
			)
			return nil, &PaymentError{Ref: req.PaymentRef, Err: err}
		}

		ref := capture.CaptureID
		if ref == "" {
			ref = req.PaymentRef
		}

		status := domain.OrderStatusPaid
		if err := o.verifyCapture(capture, c.Subtotal()); err != nil {
			o.logger.Error("Captured payment does not cover the cart, order left pending",
				zap.String("payment_ref", req.PaymentRef),
				zap.String("capture_id", ref),
				zap.Int64("total", c.Subtotal()),
				zap.Error(err),
			)
			status = domain.OrderStatusPending
		}

		// the money has moved; finish even if the client went away
		order, err := o.record(context.WithoutCancel(ctx), req, c, status, &ref)
		if err != nil {
			o.logger.Error("Captured payment has no recorded order",
				zap.String("payment_ref", req.PaymentRef),
				zap.String("capture_id", ref),
				zap.Error(err),
			)
			return nil, err
		}
		result.OrderID = &order.ID
		result.Status = order.Status

	case domain.ChannelMMG, domain.ChannelCash:
		order, err := o.record(ctx, req, c, domain.OrderStatusPending, nil)
		if err != nil {
			return nil, err
		}
		result.OrderID = &order.ID
		result.Status = order.Status
	}

	if err := store.Clear(ctx); err != nil {
		o.logger.Warn("Failed to clear cart after checkout",
			zap.String("cart", store.Key()),
			zap.Error(err),
		)
	}

	return result, nil
}

func trimCustomer(c domain.Customer) domain.Customer {
	return domain.Customer{
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
		Address: strings.TrimSpace(c.Address),
	}
}

func (o *Orchestrator) validateRequest(req Request) error {
	var fields []FieldError
	required := func(field, value string) {
		if value == "" {
			fields = append(fields, FieldError{Field: field, Message: "is required"})
		}
	}

	required("name", req.Customer.Name)
	if req.Channel != domain.ChannelWhatsApp {
		required("email", req.Customer.Email)
		required("phone", req.Customer.Phone)
		required("address", req.Customer.Address)
	}
	if req.Channel == domain.ChannelPayPal {
		required("payment_ref", req.PaymentRef)
	}

	if req.Customer.Email != "" {
		if err := o.validate.Var(req.Customer.Email, "email"); err != nil {
			fields = append(fields, FieldError{Field: "email", Message: "must be a valid email address"})
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (o *Orchestrator) channelAvailable(channel domain.Channel, settings domain.Settings) error {
	switch channel {
	case domain.ChannelWhatsApp:
		if domain.DigitsOnly(settings.WhatsAppNumber) == "" {
			return fmt.Errorf("%w: no whatsapp number set", ErrChannelUnavailable)
		}
	case domain.ChannelPayPal:
		if o.payments == nil {
			return fmt.Errorf("%w: paypal credentials missing", ErrChannelUnavailable)
		}
	}
	return nil
}

// verifyCapture checks the captured amount and currency against the cart total
func (o *Orchestrator) verifyCapture(capture *paypal.Capture, total int64) error {
	if !strings.EqualFold(capture.Currency, o.money.Currency()) {
		return fmt.Errorf("%w: currency %q, want %q", ErrCaptureMismatch, capture.Currency, o.money.Currency())
	}

	cents, err := money.ParseAmount(capture.Amount)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureMismatch, err)
	}
	if cents != total {
		return fmt.Errorf("%w: captured %d, want %d", ErrCaptureMismatch, cents, total)
	}
	return nil
}

// decrementStock lowers stock line by line. Failures are logged and skipped;
// nothing is rolled back.
func (o *Orchestrator) decrementStock(ctx context.Context, lines []cart.Line) {
	for _, l := range lines {
		id, err := uuid.Parse(l.ProductID)
		if err != nil {
			o.logger.Warn("Skipping stock update for unknown product id", zap.String("product_id", l.ProductID))
			continue
		}

		stock, err := o.stock.GetStock(ctx, id)
		if err != nil {
			o.logger.Warn("Failed to read stock", zap.String("product_id", l.ProductID), zap.Error(err))
			continue
		}

		if err := o.stock.SetStock(ctx, id, max(0, stock-l.Quantity)); err != nil {
			o.logger.Warn("Failed to write stock", zap.String("product_id", l.ProductID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) record(
	ctx context.Context,
	req Request,
	c *cart.Cart,
	status domain.OrderStatus,
	paymentRef *string,
) (*domain.Order, error) {
	lines := c.Lines()
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}

	order := &domain.Order{
		ID:         uuid.New(),
		Channel:    req.Channel,
		Status:     status,
		Customer:   req.Customer,
		Items:      items,
		TotalCents: c.Subtotal(),
		PaymentRef: paymentRef,
		CreatedAt:  time.Now().UTC(),
	}

	if err := o.orders.Record(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecordOrder, err)
	}
	return order, nil
}
