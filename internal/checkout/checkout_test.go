package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/money"
	"storefront/internal/payment/paypal"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSettings struct {
	settings domain.Settings
	err      error
}

func (f *fakeSettings) Get(ctx context.Context) (domain.Settings, error) {
	return f.settings, f.err
}

type fakeStock struct {
	mu      sync.Mutex
	stock   map[uuid.UUID]int
	reads   int
	writes  int
	readErr error
}

func newFakeStock() *fakeStock {
	return &fakeStock{stock: make(map[uuid.UUID]int)}
}

func (f *fakeStock) GetStock(ctx context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	s, ok := f.stock[id]
	if !ok {
		return 0, errors.New("product not found")
	}
	return s, nil
}

func (f *fakeStock) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.stock[id] = stock
	return nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	orders  []*domain.Order
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeRecorder) Record(ctx context.Context, order *domain.Order) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeCapturer struct {
	calls    int
	err      error
	amount   string
	currency string
}

func (f *fakeCapturer) Capture(ctx context.Context, orderID string) (*paypal.Capture, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &paypal.Capture{
		OrderID:   orderID,
		CaptureID: "CAP-" + orderID,
		Status:    "COMPLETED",
		Amount:    f.amount,
		Currency:  f.currency,
	}, nil
}

type fixture struct {
	settings *fakeSettings
	stock    *fakeStock
	orders   *fakeRecorder
	payments *fakeCapturer
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	formatter, err := money.NewFormatter("GYD", "GY$")
	require.NoError(t, err)

	settings := domain.DefaultSettings()
	settings.BusinessName = "Corner Shop"
	settings.WhatsAppNumber = "5926001234"

	f := &fixture{
		settings: &fakeSettings{settings: settings},
		stock:    newFakeStock(),
		orders:   &fakeRecorder{},
		payments: &fakeCapturer{amount: "15.00", currency: "GYD"},
	}
	f.orch = NewOrchestrator(f.settings, f.stock, f.orders, f.payments, formatter, zap.NewNop())
	return f
}

func newHydratedStore(t *testing.T, lines ...cart.Line) *cart.Store {
	t.Helper()
	ctx := context.Background()
	persister := cart.NewMemoryPersister()
	store := cart.NewStore(persister, uuid.NewString())
	require.NoError(t, store.Hydrate(ctx))
	for _, l := range lines {
		require.NoError(t, store.Add(ctx, l))
	}
	return store
}

var fullCustomer = domain.Customer{
	Name:    "Ada Lovelace",
	Email:   "ada@example.com",
	Phone:   "600-1234",
	Address: "1 Main St, Georgetown",
}

func TestCheckout_WhatsApp(t *testing.T) {
	f := newFixture(t)
	store := newHydratedStore(t,
		cart.Line{ProductID: uuid.NewString(), Name: "Mug", UnitPrice: 1500, Quantity: 2},
		cart.Line{ProductID: uuid.NewString(), Name: "Cap", UnitPrice: 900, Quantity: 1},
	)

	res, err := f.orch.Checkout(context.Background(), store, Request{Customer: domain.Customer{Name: "Ada"}})
	require.NoError(t, err)

	assert.Equal(t, domain.ChannelWhatsApp, res.Channel, "whatsapp is the default channel")
	assert.Nil(t, res.OrderID)
	assert.Equal(t, int64(3900), res.Total)
	assert.True(t, strings.HasPrefix(res.RedirectURL, "https://wa.me/5926001234?text="))
	assert.NotContains(t, res.RedirectURL, "+")

	parsed, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, res.Summary, parsed.Query().Get("text"))

	assert.Zero(t, f.orders.count(), "whatsapp orders are not recorded")

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty(), "cart is cleared on success")
}

func TestCheckout_Summary(t *testing.T) {
	f := newFixture(t)
	store := newHydratedStore(t,
		cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 3},
		cart.Line{ProductID: "p2", Name: "Cap", UnitPrice: 90000, Quantity: 1},
	)

	res, err := f.orch.Checkout(context.Background(), store, Request{
		Channel:  domain.ChannelCash,
		Customer: fullCustomer,
	})
	require.NoError(t, err)

	want := "Order for Corner Shop\n\n" +
		"Customer: Ada Lovelace\n" +
		"Email: ada@example.com\n" +
		"Phone: 600-1234\n" +
		"Address: 1 Main St, Georgetown\n\n" +
		"- Mug x3 @ GY$15.00 = GY$45.00\n" +
		"- Cap x1 @ GY$900.00 = GY$900.00\n\n" +
		"Total: GY$945.00"
	assert.Equal(t, want, res.Summary)
}

func TestCheckout_SummaryOmitsEmptyContactLines(t *testing.T) {
	f := newFixture(t)
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	res, err := f.orch.Checkout(context.Background(), store, Request{Customer: domain.Customer{Name: "Ada"}})
	require.NoError(t, err)

	assert.NotContains(t, res.Summary, "Email:")
	assert.NotContains(t, res.Summary, "Phone:")
	assert.NotContains(t, res.Summary, "Address:")
}

func TestCheckout_CashAndMMGRecordPending(t *testing.T) {
	for _, channel := range []domain.Channel{domain.ChannelCash, domain.ChannelMMG} {
		t.Run(string(channel), func(t *testing.T) {
			f := newFixture(t)
			store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 2})

			res, err := f.orch.Checkout(context.Background(), store, Request{Channel: channel, Customer: fullCustomer})
			require.NoError(t, err)

			require.Equal(t, 1, f.orders.count())
			order := f.orders.orders[0]
			assert.Equal(t, channel, order.Channel)
			assert.Equal(t, domain.OrderStatusPending, order.Status)
			assert.Equal(t, int64(3000), order.TotalCents)
			assert.Nil(t, order.PaymentRef)
			require.NotNil(t, res.OrderID)
			assert.Equal(t, order.ID, *res.OrderID)
			assert.Empty(t, res.RedirectURL)
		})
	}
}

func TestCheckout_PayPal(t *testing.T) {
	f := newFixture(t)
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	res, err := f.orch.Checkout(context.Background(), store, Request{
		Channel:    domain.ChannelPayPal,
		Customer:   fullCustomer,
		PaymentRef: "ORDER-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.payments.calls)
	require.Equal(t, 1, f.orders.count())
	order := f.orders.orders[0]
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentRef)
	assert.Equal(t, "CAP-ORDER-1", *order.PaymentRef)
	assert.Equal(t, domain.OrderStatusPaid, res.Status)
}

func TestCheckout_PayPalCaptureMismatchLeftPending(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
	}{
		{"underpaid", "0.01", "GYD"},
		{"wrong currency", "15.00", "USD"},
		{"underpaid in another currency", "0.01", "USD"},
		{"unreadable amount", "fifteen", "GYD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payments.amount, f.payments.currency = tt.amount, tt.currency
			store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

			res, err := f.orch.Checkout(context.Background(), store, Request{
				Channel:    domain.ChannelPayPal,
				Customer:   fullCustomer,
				PaymentRef: "ORDER-1",
			})
			require.NoError(t, err)

			require.Equal(t, 1, f.orders.count())
			order := f.orders.orders[0]
			assert.Equal(t, domain.OrderStatusPending, order.Status)
			assert.Equal(t, int64(1500), order.TotalCents)
			require.NotNil(t, order.PaymentRef)
			assert.Equal(t, "CAP-ORDER-1", *order.PaymentRef)
			assert.Equal(t, domain.OrderStatusPending, res.Status)
		})
	}
}

func TestCheckout_PayPalCaptureCurrencyIgnoresCase(t *testing.T) {
	f := newFixture(t)
	f.payments.currency = "gyd"
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	res, err := f.orch.Checkout(context.Background(), store, Request{
		Channel:    domain.ChannelPayPal,
		Customer:   fullCustomer,
		PaymentRef: "ORDER-1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, res.Status)
}

func TestCheckout_PayPalCaptureFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.payments.err = errors.New("declined")
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{
		Channel:    domain.ChannelPayPal,
		Customer:   fullCustomer,
		PaymentRef: "ORDER-1",
	})

	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "ORDER-1", payErr.Ref)
	assert.Zero(t, f.orders.count())

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count())
}

func TestCheckout_PayPalUnavailable(t *testing.T) {
	f := newFixture(t)
	f.orch.payments = nil
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{
		Channel:    domain.ChannelPayPal,
		Customer:   fullCustomer,
		PaymentRef: "ORDER-1",
	})
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestCheckout_WhatsAppWithoutNumber(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.WhatsAppNumber = ""
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{Customer: fullCustomer})
	assert.ErrorIs(t, err, ErrChannelUnavailable)
}

func TestCheckout_RecordFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.orders.err = errors.New("connection reset")
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
	assert.ErrorIs(t, err, ErrRecordOrder)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.False(t, snap.IsEmpty())
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.StockDisplay = true
	store := newHydratedStore(t)

	_, err := f.orch.Checkout(context.Background(), store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, f.stock.reads)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_UnhydratedStore(t *testing.T) {
	f := newFixture(t)
	store := cart.NewStore(cart.NewMemoryPersister(), "k")

	_, err := f.orch.Checkout(context.Background(), store, Request{Customer: fullCustomer})
	assert.ErrorIs(t, err, cart.ErrNotHydrated)
}

func TestCheckout_UnknownChannel(t *testing.T) {
	f := newFixture(t)
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{Channel: "pigeon", Customer: fullCustomer})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		invalid []string
	}{
		{
			name:    "blank name on whatsapp",
			req:     Request{Channel: domain.ChannelWhatsApp, Customer: domain.Customer{Name: "   "}},
			invalid: []string{"name"},
		},
		{
			name:    "cash needs contact details",
			req:     Request{Channel: domain.ChannelCash, Customer: domain.Customer{Name: "Ada"}},
			invalid: []string{"email", "phone", "address"},
		},
		{
			name:    "paypal needs a payment reference",
			req:     Request{Channel: domain.ChannelPayPal, Customer: fullCustomer},
			invalid: []string{"payment_ref"},
		},
		{
			name:    "malformed email on whatsapp",
			req:     Request{Customer: domain.Customer{Name: "Ada", Email: "ada-at-example"}},
			invalid: []string{"email"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.settings.settings.StockDisplay = true
			id := uuid.New()
			f.stock.stock[id] = 5
			store := newHydratedStore(t, cart.Line{ProductID: id.String(), Name: "Mug", UnitPrice: 1500, Quantity: 2})

			_, err := f.orch.Checkout(context.Background(), store, tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.invalid, fields)

			assert.Zero(t, f.stock.reads)
			assert.Zero(t, f.stock.writes)
			assert.Zero(t, f.payments.calls)
			assert.Zero(t, f.orders.count())
			assert.Equal(t, 5, f.stock.stock[id])

			snap, err := store.Snapshot()
			require.NoError(t, err)
			assert.Equal(t, 2, snap.Count(), "cart is untouched")
		})
	}
}

func TestCheckout_DecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.StockDisplay = true

	plenty, scarce := uuid.New(), uuid.New()
	f.stock.stock[plenty] = 5
	f.stock.stock[scarce] = 1

	store := newHydratedStore(t,
		cart.Line{ProductID: plenty.String(), Name: "Mug", UnitPrice: 1500, Quantity: 2},
		cart.Line{ProductID: scarce.String(), Name: "Cap", UnitPrice: 900, Quantity: 5},
	)

	_, err := f.orch.Checkout(context.Background(), store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
	require.NoError(t, err)

	assert.Equal(t, 3, f.stock.stock[plenty])
	assert.Equal(t, 0, f.stock.stock[scarce], "stock never goes negative")
}

func TestCheckout_StockFailuresDoNotAbort(t *testing.T) {
	f := newFixture(t)
	f.settings.settings.StockDisplay = true
	f.stock.readErr = errors.New("timeout")

	store := newHydratedStore(t,
		cart.Line{ProductID: "not-a-uuid", Name: "Legacy", UnitPrice: 100, Quantity: 1},
		cart.Line{ProductID: uuid.NewString(), Name: "Mug", UnitPrice: 1500, Quantity: 1},
	)

	_, err := f.orch.Checkout(context.Background(), store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
	require.NoError(t, err)
	assert.Equal(t, 1, f.stock.reads, "unparseable ids are skipped before reading")
	assert.Zero(t, f.stock.writes)
	assert.Equal(t, 1, f.orders.count())
}

func TestCheckout_SettingsFailure(t *testing.T) {
	f := newFixture(t)
	f.settings.err = errors.New("db down")
	store := newHydratedStore(t, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1})

	_, err := f.orch.Checkout(context.Background(), store, Request{Customer: fullCustomer})
	assert.Error(t, err)
	assert.Zero(t, f.orders.count())
}

func TestCheckout_DuplicateSubmissionRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.orders.entered = make(chan struct{}, 2)
	f.orders.release = make(chan struct{})

	persister := cart.NewMemoryPersister()
	ctx := context.Background()
	seed := cart.NewStore(persister, "session-1")
	require.NoError(t, seed.Hydrate(ctx))
	require.NoError(t, seed.Add(ctx, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 1500, Quantity: 1}))

	results := make([]*Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup

	run := func(i int) {
		defer wg.Done()
		store := cart.NewStore(persister, "session-1")
		if err := store.Hydrate(ctx); err != nil {
			errs[i] = err
			return
		}
		results[i], errs[i] = f.orch.Checkout(ctx, store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
	}

	wg.Add(1)
	go run(0)
	<-f.orders.entered

	wg.Add(1)
	go run(1)
	time.Sleep(100 * time.Millisecond)
	close(f.orders.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, *results[0].OrderID, *results[1].OrderID)
}

func TestCheckout_DifferentSubmissionsAreNotCollapsed(t *testing.T) {
	f := newFixture(t)
	f.orders.entered = make(chan struct{}, 2)
	f.orders.release = make(chan struct{})

	persister := cart.NewMemoryPersister()
	ctx := context.Background()
	seed := cart.NewStore(persister, "session-1")
	require.NoError(t, seed.Hydrate(ctx))
	require.NoError(t, seed.Add(ctx, cart.Line{ProductID: "p1", Name: "Mug", UnitPrice: 100, Quantity: 1}))

	results := make([]*Result, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup

	run := func(i int, channel domain.Channel, extra *cart.Line) {
		defer wg.Done()
		store := cart.NewStore(persister, "session-1")
		if err := store.Hydrate(ctx); err != nil {
			errs[i] = err
			return
		}
		if extra != nil {
			if err := store.Add(ctx, *extra); err != nil {
				errs[i] = err
				return
			}
		}
		results[i], errs[i] = f.orch.Checkout(ctx, store, Request{Channel: channel, Customer: fullCustomer})
	}

	wg.Add(2)
	go run(0, domain.ChannelCash, nil)
	<-f.orders.entered
	go run(1, domain.ChannelMMG, &cart.Line{ProductID: "p2", Name: "Teapot", UnitPrice: 9999, Quantity: 4})
	<-f.orders.entered
	close(f.orders.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, f.orders.count())

	assert.Equal(t, domain.ChannelCash, results[0].Channel)
	assert.Equal(t, int64(100), results[0].Total)
	assert.Equal(t, domain.ChannelMMG, results[1].Channel)
	assert.Equal(t, int64(40096), results[1].Total)
	assert.NotEqual(t, *results[0].OrderID, *results[1].OrderID)
}

// Feature: storefront, Property 6: With stock tracking off, checkout never reads or writes stock
func TestProperty_NoStockAccessWhenTrackingOff(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stock store is untouched", prop.ForAll(
		func(quantities []int) bool {
			f := newFixture(t)
			f.settings.settings.StockDisplay = false

			var lines []cart.Line
			for _, q := range quantities {
				id := uuid.New()
				f.stock.stock[id] = 3
				lines = append(lines, cart.Line{ProductID: id.String(), Name: "Item", UnitPrice: 100, Quantity: q})
			}
			store := newHydratedStore(t, lines...)

			_, err := f.orch.Checkout(context.Background(), store, Request{Channel: domain.ChannelCash, Customer: fullCustomer})
			if err != nil {
				t.Logf("FAIL: checkout returned %v", err)
				return false
			}
			return f.stock.reads == 0 && f.stock.writes == 0
		},
		gen.SliceOfN(4, gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}

// Feature: storefront, Property 9: Checkout leaves stock at max(0, stock - quantity)
func TestProperty_StockDecrementClampsAtZero(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("remaining stock", prop.ForAll(
		func(stock, qty int) bool {
			f := newFixture(t)
			f.settings.settings.StockDisplay = true
			id := uuid.New()
			f.stock.stock[id] = stock
			store := newHydratedStore(t, cart.Line{ProductID: id.String(), Name: "Item", UnitPrice: 100, Quantity: qty})

			if _, err := f.orch.Checkout(context.Background(), store, Request{Customer: fullCustomer}); err != nil {
				t.Logf("FAIL: checkout returned %v", err)
				return false
			}
			return f.stock.stock[id] == max(0, stock-qty)
		},
		gen.IntRange(0, 100),
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}
