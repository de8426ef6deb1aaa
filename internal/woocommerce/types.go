// Package woocommerce implements the order store for WooCommerce shops using
// the REST API v3. All WooCommerce-specific types, transforms, and HTTP client
// logic live here.
package woocommerce

import (
	"encoding/json"
	"strings"

	"kom-bridge/internal/model"
)

// === WooCommerce REST v3 Response Types ===

// WooOrder represents a WooCommerce REST v3 order.
// Monetary fields are string decimals ("99.00").
type WooOrder struct {
	ID            int               `json:"id"`
	Status        string            `json:"status"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method"`
	TransactionID string            `json:"transaction_id"`
	Total         string            `json:"total"`
	TotalTax      string            `json:"total_tax"`
	CartTax       string            `json:"cart_tax"`
	ShippingTotal string            `json:"shipping_total"`
	ShippingTax   string            `json:"shipping_tax"`
	DiscountTotal string            `json:"discount_total"`
	Billing       model.Address     `json:"billing"`
	Shipping      model.Address     `json:"shipping"`
	LineItems     []WooLineItem     `json:"line_items"`
	TaxLines      []WooTaxLine      `json:"tax_lines"`
	ShippingLines []WooShippingLine `json:"shipping_lines"`
	FeeLines      []WooFeeLine      `json:"fee_lines"`
	CouponLines   []WooCouponLine   `json:"coupon_lines"`
	MetaData      []WooMeta         `json:"meta_data"`
}

// WooLineItem represents a product line on an order or refund.
// On refunds quantity and amounts are negative.
type WooLineItem struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	ProductID   int          `json:"product_id"`
	VariationID int          `json:"variation_id"`
	Quantity    int          `json:"quantity"`
	Subtotal    string       `json:"subtotal"`
	SubtotalTax string       `json:"subtotal_tax"`
	Total       string       `json:"total"`
	TotalTax    string       `json:"total_tax"`
	Taxes       []WooItemTax `json:"taxes"`
	SKU         string       `json:"sku"`
	MetaData    []WooMeta    `json:"meta_data"`
}

// WooItemTax is one tax rate's share of a line.
type WooItemTax struct {
	ID       int    `json:"id"`
	Total    string `json:"total"`
	Subtotal string `json:"subtotal"`
}

// WooTaxLine is an order-level tax rate summary.
type WooTaxLine struct {
	ID          int     `json:"id"`
	RateCode    string  `json:"rate_code"`
	RateID      int     `json:"rate_id"`
	Label       string  `json:"label"`
	TaxTotal    string  `json:"tax_total"`
	ShippingTax string  `json:"shipping_tax_total"`
	RatePercent float64 `json:"rate_percent"`
}

// WooShippingLine represents a shipping line.
type WooShippingLine struct {
	ID          int          `json:"id"`
	MethodTitle string       `json:"method_title"`
	MethodID    string       `json:"method_id"`
	InstanceID  string       `json:"instance_id"`
	Total       string       `json:"total"`
	TotalTax    string       `json:"total_tax"`
	Taxes       []WooItemTax `json:"taxes"`
	MetaData    []WooMeta    `json:"meta_data"`
}

// WooFeeLine represents a fee line.
type WooFeeLine struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Total    string `json:"total"`
	TotalTax string `json:"total_tax"`
}

// WooCouponLine represents an applied coupon.
// discount_type is only present on recent WooCommerce versions; older ones
// keep it in the coupon_data meta.
type WooCouponLine struct {
	ID           int       `json:"id"`
	Code         string    `json:"code"`
	Discount     string    `json:"discount"`
	DiscountTax  string    `json:"discount_tax"`
	DiscountType string    `json:"discount_type"`
	MetaData     []WooMeta `json:"meta_data"`
}

// WooRefund represents GET /orders/{id}/refunds entries.
type WooRefund struct {
	ID            int               `json:"id"`
	Amount        string            `json:"amount"`
	Reason        string            `json:"reason"`
	LineItems     []WooLineItem     `json:"line_items"`
	ShippingLines []WooShippingLine `json:"shipping_lines"`
}

// WooProduct is the subset of a product (or variation) the translator needs.
type WooProduct struct {
	ID           int        `json:"id"`
	Permalink    string     `json:"permalink"`
	Virtual      bool       `json:"virtual"`
	Downloadable bool       `json:"downloadable"`
	Images       []WooImage `json:"images"`
	Image        *WooImage  `json:"image"` // variations
}

// WooImage represents a product image.
type WooImage struct {
	ID  int    `json:"id"`
	Src string `json:"src"`
}

// WooMeta is a meta_data entry. Values may be any JSON type.
type WooMeta struct {
	ID           int             `json:"id,omitempty"`
	Key          string          `json:"key"`
	Value        json.RawMessage `json:"value"`
	DisplayKey   string          `json:"display_key,omitempty"`
	DisplayValue json.RawMessage `json:"display_value,omitempty"`
}

// StringValue returns the meta value as text. JSON strings are unquoted;
// other types are returned as raw JSON.
func (m WooMeta) StringValue() string {
	return rawString(m.Value)
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// hidden reports whether a meta key is internal (underscore prefixed).
func (m WooMeta) hidden() bool {
	return strings.HasPrefix(m.Key, "_")
}

// WooNoteRequest is the body of POST /orders/{id}/notes.
type WooNoteRequest struct {
	Note         string `json:"note"`
	CustomerNote bool   `json:"customer_note"`
}

// WooOrderUpdate is the body of PUT /orders/{id}.
type WooOrderUpdate struct {
	Status        string         `json:"status,omitempty"`
	TransactionID string         `json:"transaction_id,omitempty"`
	MetaData      []WooMetaWrite `json:"meta_data,omitempty"`
	Billing       *model.Address `json:"billing,omitempty"`
	Shipping      *model.Address `json:"shipping,omitempty"`
}

// WooMetaWrite is a meta_data entry in an update request.
type WooMetaWrite struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WooErrorResponse represents a WooCommerce REST error.
type WooErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}
