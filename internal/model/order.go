package model

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ItemKind tags the WooCommerce line item collection an OrderItem came from.
type ItemKind string

const (
	ItemProduct  ItemKind = "product"
	ItemShipping ItemKind = "shipping"
	ItemFee      ItemKind = "fee"
	ItemCoupon   ItemKind = "coupon"
)

// WooCommerce order statuses the bridge reacts to.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusOnHold     = "on-hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

// Order meta keys written by the Klarna payment gateways and by this bridge.
const (
	MetaKlarnaOrderID      = "_wc_klarna_order_id"
	MetaEnvironment        = "_wc_klarna_environment"
	MetaCountry            = "_wc_klarna_country"
	MetaMerchantID         = "_wc_klarna_merchant_id"
	MetaSharedSecret       = "_wc_klarna_shared_secret"
	MetaCaptureID          = "_wc_klarna_capture_id"
	MetaCancelled          = "_wc_klarna_cancelled"
	MetaPendingToCancelled = "_wc_klarna_pending_to_cancelled"
	MetaKSSData            = "_kco_kss_data"
	MetaKSSTrackingID      = "_kss_tracking_id"
	MetaKSSTrackingURL     = "_kss_tracking_url"
)

// Order is the platform-neutral view of a WooCommerce order.
// Amounts are decimals in major units exactly as WooCommerce stores them.
type Order struct {
	ID            int
	Status        string
	Currency      string
	PaymentMethod string
	TransactionID string

	Total         decimal.Decimal
	CartTax       decimal.Decimal
	ShippingTotal decimal.Decimal
	ShippingTax   decimal.Decimal

	Items   []OrderItem
	Refunds []Refund

	Billing  Address
	Shipping Address

	Meta map[string]string
}

// MetaValue returns the order meta value for key, or "" when unset.
func (o *Order) MetaValue(key string) string {
	if o.Meta == nil {
		return ""
	}
	return o.Meta[key]
}

// KlarnaOrderID returns the Klarna order ID. The gateway stores it as the
// transaction ID; older orders only carry the meta key.
func (o *Order) KlarnaOrderID() string {
	if o.TransactionID != "" {
		return o.TransactionID
	}
	return o.MetaValue(MetaKlarnaOrderID)
}

// CaptureID returns the stored Klarna capture ID, if the order was captured.
func (o *Order) CaptureID() string {
	return o.MetaValue(MetaCaptureID)
}

// ItemByID finds an item by its WooCommerce line item ID.
func (o *Order) ItemByID(id int) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == id {
			return it, true
		}
	}
	return OrderItem{}, false
}

// ItemsOf returns the items of the given kind, in order.
func (o *Order) ItemsOf(kind ItemKind) []OrderItem {
	var out []OrderItem
	for _, it := range o.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// OrderItem is one WooCommerce line item of any kind.
// Fields that do not apply to a kind are left zero.
type OrderItem struct {
	ID       int
	Kind     ItemKind
	Name     string
	Quantity int

	Subtotal    decimal.Decimal // pre-discount, excluding tax
	SubtotalTax decimal.Decimal
	Total       decimal.Decimal // post-discount, excluding tax
	TotalTax    decimal.Decimal

	// TaxRate is the percentage of the tax rate applied to the item (25 for 25%),
	// resolved from the order's tax lines. Nil when unknown.
	TaxRate *decimal.Decimal

	// Product lines
	SKU         string
	ProductID   int
	VariationID int
	Attributes  []Attribute
	Product     *Product // nil when the product no longer exists

	// Shipping lines
	MethodID   string
	InstanceID string

	// Coupon lines
	Code         string
	DiscountType string
	Discount     decimal.Decimal
	DiscountTax  decimal.Decimal

	// RefundedItemID links a refund line to the original order item.
	RefundedItemID int
}

// Attribute is a display attribute of a line item (variation meta).
type Attribute struct {
	Key   string
	Value string
}

// Product is the snapshot of a catalog product the translator needs.
type Product struct {
	ID           int
	Virtual      bool
	Downloadable bool
	Permalink    string
	ImageURL     string
}

// Refund is a WooCommerce refund with the line items it returns.
type Refund struct {
	ID     int
	Amount decimal.Decimal // positive
	Reason string
	Items  []OrderItem
}

// Address is a WooCommerce billing or shipping address.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ParseID parses a WooCommerce numeric ID from a path segment.
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, NewValidationError("order id", "must be a positive integer")
	}
	return id, nil
}
