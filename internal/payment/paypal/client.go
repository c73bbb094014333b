// Package paypal captures approved PayPal checkout orders through the REST API.
package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const statusCompleted = "COMPLETED"

var (
	ErrNotCompleted = errors.New("paypal order was not completed")
	ErrUnavailable  = errors.New("paypal is unavailable")
)

// APIError is a non-2xx answer from PayPal
type APIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("paypal returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("paypal returned status %d: %s: %s", e.StatusCode, e.Name, e.Message)
}

// Declined reports whether PayPal rejected the request itself rather than failing
func (e *APIError) Declined() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Config holds the REST credentials
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Capture is the result of a completed capture
type Capture struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    string
	Currency  string
}

// Client talks to the PayPal Orders v2 API
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*Capture]

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a client. Calls are traced and guarded by a circuit
// breaker that opens after five consecutive transport or server failures.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	c.breaker = gobreaker.NewCircuitBreaker[*Capture](gobreaker.Settings{
		Name:        "paypal",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Declined()
			}
			return err == nil || errors.Is(err, ErrNotCompleted)
		},
	})

	return c
}

// Capture captures the approved PayPal order orderID
func (c *Client) Capture(ctx context.Context, orderID string) (*Capture, error) {
	result, err := c.breaker.Execute(func() (*Capture, error) {
		return c.capture(ctx, orderID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return result, err
}

type captureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (c *Client) capture(ctx context.Context, orderID string) (*Capture, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", c.cfg.BaseURL, url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to build capture request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	// PayPal replays the first result for a repeated request id
	req.Header.Set("PayPal-Request-Id", "capture-"+orderID)

	var body captureResponse
	if err := c.do(req, &body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.resetToken()
		}
		return nil, err
	}

	if body.Status != statusCompleted {
		return nil, fmt.Errorf("%w: status %s", ErrNotCompleted, body.Status)
	}

	capture := &Capture{OrderID: body.ID, Status: body.Status}
	if len(body.PurchaseUnits) > 0 && len(body.PurchaseUnits[0].Payments.Captures) > 0 {
		cp := body.PurchaseUnits[0].Payments.Captures[0]
		capture.CaptureID = cp.ID
		capture.Amount = cp.Amount.Value
		capture.Currency = cp.Amount.CurrencyCode
	}
	return capture, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body tokenResponse
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("failed to obtain paypal token: %w", err)
	}

	c.token = body.AccessToken
	// refresh a minute early
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call paypal: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read paypal response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return nil
}
