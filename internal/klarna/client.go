// Package klarna is a client for the Klarna Order Management API.
//
// Every call is addressed by a WooCommerce order: the order decides the
// endpoint region, playground or production, the credentials and the Klarna
// order ID.
package klarna

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"kom-bridge/internal/metrics"
	"kom-bridge/internal/model"
)

const (
	ordersPath = "/ordermanagement/v1/orders/"
	userAgent  = "kom-bridge/1.0"

	idempotencyHeader = "Klarna-Idempotency-Key"
)

// Operation names used for logging and metrics.
const (
	OpRetrieve = "retrieve"
	OpCapture  = "capture"
	OpCancel   = "cancel"
	OpUpdate   = "update_order_lines"
	OpRefund   = "refund"
)

// Config holds Klarna client configuration.
type Config struct {
	Settings Settings

	// BaseURL replaces the region-derived endpoint for every call.
	// Used for tests and local mocks.
	BaseURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Registry

	// DebugLog logs request and response bodies. They are logged at info
	// level so the setting works without LOG_LEVEL=debug.
	DebugLog bool
}

// Client calls the OM API.
type Client struct {
	settings   Settings
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Registry
	debugLog   bool
}

// New creates a Klarna OM client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		settings:   cfg.Settings,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
		debugLog:   cfg.DebugLog,
	}
}

type idempotencyKey struct{}

// WithIdempotencyKey makes the next capture or refund made with ctx send key
// instead of a generated one.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKeyFrom returns the key set by WithIdempotencyKey, or "".
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

func idempotencyKeyFor(ctx context.Context) string {
	if key := IdempotencyKeyFrom(ctx); key != "" {
		return key
	}
	return uuid.NewString()
}

// Target resolves endpoint and credentials for an order. Failures are
// *model.APIError values wrapping ErrUnsupportedGateway,
// ErrMissingCredentials or ErrMissingOrderID.
func (c *Client) Target(order *model.Order) (*Target, error) {
	t, err := c.settings.Resolve(order)
	if err != nil {
		return nil, targetError(err)
	}
	if t.KlarnaOrderID == "" {
		return nil, targetError(ErrMissingOrderID)
	}
	if c.baseURL != "" {
		t.BaseURL = c.baseURL
	}
	return t, nil
}

// Retrieve fetches the Klarna order behind a WooCommerce order.
func (c *Client) Retrieve(ctx context.Context, order *model.Order) (*model.KlarnaOrder, error) {
	t, err := c.Target(order)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, t, OpRetrieve, http.MethodGet, "", nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, parseError(resp.status, resp.body)
	}
	var ko model.KlarnaOrder
	if err := json.Unmarshal(resp.body, &ko); err != nil {
		return nil, fmt.Errorf("parsing Klarna order: %w", err)
	}
	return &ko, nil
}

// Capture captures the order and returns the Klarna capture ID.
func (c *Client) Capture(ctx context.Context, order *model.Order, req *model.CaptureRequest) (string, error) {
	t, err := c.Target(order)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, t, OpCapture, http.MethodPost, "/captures", req)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", parseError(resp.status, resp.body)
	}
	return resp.header.Get("Capture-Id"), nil
}

// Cancel cancels the remaining authorization.
func (c *Client) Cancel(ctx context.Context, order *model.Order) error {
	t, err := c.Target(order)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, t, OpCancel, http.MethodPost, "/cancel", nil)
	if err != nil {
		return err
	}
	if resp.status != http.StatusNoContent {
		return parseError(resp.status, resp.body)
	}
	return nil
}

// UpdateOrderLines replaces the authorized order lines and amount.
func (c *Client) UpdateOrderLines(ctx context.Context, order *model.Order, lines model.OrderLines) error {
	t, err := c.Target(order)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, t, OpUpdate, http.MethodPatch, "/authorization", lines)
	if err != nil {
		return err
	}
	if resp.status != http.StatusNoContent {
		return parseError(resp.status, resp.body)
	}
	return nil
}

// Refund refunds part or all of the captured amount.
func (c *Client) Refund(ctx context.Context, order *model.Order, req model.RefundRequest) error {
	t, err := c.Target(order)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, t, OpRefund, http.MethodPost, "/refunds", req)
	if err != nil {
		return err
	}
	if resp.status < http.StatusOK || resp.status > http.StatusNoContent {
		return parseError(resp.status, resp.body)
	}
	return nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends one OM request. Transport failures become upstream errors; status
// handling is left to the caller.
func (c *Client) do(ctx context.Context, t *Target, op, method, suffix string, body any) (*response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s request: %w", op, err)
		}
	}

	endpoint := t.BaseURL + ordersPath + url.PathEscape(t.KlarnaOrderID) + suffix
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	req.SetBasicAuth(t.Credentials.MerchantID, t.Credentials.SharedSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if op == OpCapture || op == OpRefund {
		req.Header.Set(idempotencyHeader, idempotencyKeyFor(ctx))
	}

	log := c.logger.With(
		"operation", op,
		"klarna_order_id", t.KlarnaOrderID,
		"environment", string(t.Environment),
	)
	if c.debugLog && payload != nil {
		log.Info("klarna request body", "body", string(payload))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveKlarna(op, 0, elapsed)
		log.Error("klarna request failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return nil, model.NewUpstreamError("Klarna", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", op, err)
	}

	c.metrics.ObserveKlarna(op, resp.StatusCode, elapsed)
	log.Info("klarna request",
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
		"correlation_id", resp.Header.Get("Klarna-Correlation-Id"),
	)
	if c.debugLog && len(respBody) > 0 {
		log.Info("klarna response body", "body", string(respBody))
	}

	return &response{status: resp.StatusCode, header: resp.Header, body: respBody}, nil
}
