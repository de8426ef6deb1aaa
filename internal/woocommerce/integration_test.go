//go:build integration
// +build integration

// Integration tests for WooCommerce client.
// Run with: go test -tags=integration ./internal/woocommerce/... -v
//
// Required environment variables:
//
//	WOOCOMMERCE_STORE_URL       - WooCommerce store URL (e.g., https://shop.example.com)
//	WOOCOMMERCE_CONSUMER_KEY    - REST API consumer key (read access is enough)
//	WOOCOMMERCE_CONSUMER_SECRET - REST API consumer secret
//	WOOCOMMERCE_ORDER_ID        - An order paid with a Klarna gateway
package woocommerce

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"kom-bridge/internal/model"
	"kom-bridge/internal/orderlines"
)

func integrationClient(t *testing.T) (*Client, int) {
	t.Helper()

	storeURL := os.Getenv("WOOCOMMERCE_STORE_URL")
	key := os.Getenv("WOOCOMMERCE_CONSUMER_KEY")
	secret := os.Getenv("WOOCOMMERCE_CONSUMER_SECRET")
	orderID, _ := strconv.Atoi(os.Getenv("WOOCOMMERCE_ORDER_ID"))

	if storeURL == "" || key == "" || secret == "" || orderID == 0 {
		t.Skip("Skipping integration test: WOOCOMMERCE_* env vars not set")
	}

	c, err := New(Config{StoreURL: storeURL, ConsumerKey: key, ConsumerSecret: secret})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, orderID
}

func TestIntegration_GetOrderAndTranslate(t *testing.T) {
	c, orderID := integrationClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	order, err := c.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	t.Logf("order %d: status=%s gateway=%s klarna_order_id=%s items=%d refunds=%d",
		order.ID, order.Status, order.PaymentMethod, order.KlarnaOrderID(), len(order.Items), len(order.Refunds))

	lines := orderlines.New(model.TransformConfig{StoreCountry: order.Billing.Country}).Translate(order)
	if len(lines.OrderLines) == 0 {
		t.Error("expected at least one order line")
	}
	t.Logf("order_amount=%d order_tax_amount=%d (WooCommerce total %s)",
		lines.OrderAmount, lines.OrderTaxAmount, order.Total.StringFixed(2))
}
