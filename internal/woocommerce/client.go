package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"kom-bridge/internal/adapter"
	"kom-bridge/internal/model"
	"kom-bridge/internal/transport"
)

// restAPIPath is the base path for WooCommerce REST API v3 endpoints.
// Must include /wp-json prefix for proper routing.
const restAPIPath = "/wp-json/wc/v3"

// userAgent identifies this client to upstream servers.
// Required: WooCommerce CDN/WAF rate-limits requests without User-Agent.
const userAgent = "kom-bridge/1.0"

// Config holds WooCommerce client configuration.
type Config struct {
	StoreURL       string
	ConsumerKey    string
	ConsumerSecret string

	// HTTPClient overrides the default client with the Chrome TLS transport.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements adapter.OrderStore for WooCommerce using REST API v3 with
// consumer key Basic auth.
type Client struct {
	httpClient     *http.Client
	storeURL       string
	consumerKey    string
	consumerSecret string
	logger         *slog.Logger
}

// New creates a WooCommerce client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("store URL is required")
	}
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, fmt.Errorf("API credentials are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// Chrome TLS fingerprint avoids JA3-based rate limiting on shop CDNs.
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport.NewChromeTransport(30 * time.Second),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:     httpClient,
		storeURL:       strings.TrimSuffix(cfg.StoreURL, "/"),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		logger:         logger,
	}, nil
}

// GetOrder loads the order, its refunds and a snapshot of every product it
// references. Deleted products are left out of the snapshot map.
func (c *Client) GetOrder(ctx context.Context, orderID int) (*model.Order, error) {
	var wo WooOrder
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, &wo, "order"); err != nil {
		return nil, err
	}

	var refunds []WooRefund
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d/refunds", orderID), nil, &refunds, "refunds"); err != nil {
		return nil, fmt.Errorf("fetching refunds: %w", err)
	}
	// Newest first, like WooCommerce returns them; do not depend on it.
	sort.SliceStable(refunds, func(i, j int) bool { return refunds[i].ID > refunds[j].ID })

	products := make(map[int]*model.Product)
	for _, id := range ProductIDs(&wo, refunds) {
		p, err := c.getProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			products[id] = p
		}
	}

	return OrderToModel(&wo, refunds, products), nil
}

// getProduct fetches a product or variation by ID. Returns nil, nil when the
// product no longer exists.
func (c *Client) getProduct(ctx context.Context, id int) (*model.Product, error) {
	var wp WooProduct
	err := c.do(ctx, http.MethodGet, "/products/"+strconv.Itoa(id), nil, &wp, "product")
	if errors.Is(err, model.ErrNotFound) {
		c.logger.Debug("product missing, using default line type", "product_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching product %d: %w", id, err)
	}
	return ProductToModel(&wp), nil
}

// AddOrderNote appends a private order note.
func (c *Client) AddOrderNote(ctx context.Context, orderID int, note string) error {
	body := WooNoteRequest{Note: note}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/notes", orderID), body, nil, "order")
}

// UpdateOrder applies a partial update to the order.
func (c *Client) UpdateOrder(ctx context.Context, orderID int, update *adapter.OrderUpdate) error {
	if update == nil || update.IsEmpty() {
		return nil
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", orderID), toWooUpdate(update), nil, "order")
}

func toWooUpdate(u *adapter.OrderUpdate) WooOrderUpdate {
	out := WooOrderUpdate{
		Status:        u.Status,
		TransactionID: u.TransactionID,
		Billing:       u.Billing,
		Shipping:      u.Shipping,
	}
	keys := make([]string, 0, len(u.Meta))
	for k := range u.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out.MetaData = append(out.MetaData, WooMetaWrite{Key: k, Value: u.Meta[k]})
	}
	return out
}

// do performs a REST request and decodes the response into out when non-nil.
// resource names the entity in not-found errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any, resource string) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.storeURL+restAPIPath+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewUpstreamError("WooCommerce", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return c.parseErrorResponse(resp.StatusCode, respBody, resource)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// parseErrorResponse converts WooCommerce error to APIError.
func (c *Client) parseErrorResponse(statusCode int, body []byte, resource string) error {
	var wcErr WooErrorResponse
	json.Unmarshal(body, &wcErr) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError(resource)
	case 401, 403:
		return model.NewUnauthorizedError("WooCommerce authentication failed")
	case 400:
		msg := wcErr.Message
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError("WooCommerce")
	default:
		return model.NewUpstreamError("WooCommerce",
			fmt.Errorf("status %d: %s - %s", statusCode, wcErr.Code, wcErr.Message))
	}
}

// Verify Client implements OrderStore interface at compile time.
var _ adapter.OrderStore = (*Client)(nil)
