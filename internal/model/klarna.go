package model

// Klarna order line types.
const (
	LineTypePhysical    = "physical"
	LineTypeDigital     = "digital"
	LineTypeShippingFee = "shipping_fee"
	LineTypeSurcharge   = "surcharge"
	LineTypeDiscount    = "discount"
	LineTypeSalesTax    = "sales_tax"
)

// Klarna OM order statuses.
const (
	KlarnaStatusAuthorized   = "AUTHORIZED"
	KlarnaStatusPartCaptured = "PART_CAPTURED"
	KlarnaStatusCaptured     = "CAPTURED"
	KlarnaStatusCancelled    = "CANCELLED"
	KlarnaStatusExpired      = "EXPIRED"
	KlarnaStatusClosed       = "CLOSED"
)

// Klarna fraud statuses.
const (
	FraudStatusAccepted = "ACCEPTED"
	FraudStatusPending  = "PENDING"
	FraudStatusRejected = "REJECTED"
)

// MaxReferenceLength is the longest reference Klarna accepts on an order line.
const MaxReferenceLength = 64

// OrderLine is one line in Klarna's order-line wire format.
// All amounts are integer minor units; TaxRate is in hundredths of a percent.
type OrderLine struct {
	Type                string `json:"type,omitempty"`
	Reference           string `json:"reference"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	UnitPrice           int64  `json:"unit_price"`
	TaxRate             int64  `json:"tax_rate"`
	TotalAmount         int64  `json:"total_amount"`
	TotalDiscountAmount int64  `json:"total_discount_amount"`
	TotalTaxAmount      int64  `json:"total_tax_amount"`
	ProductURL          string `json:"product_url,omitempty"`
	ImageURL            string `json:"image_url,omitempty"`
}

// OrderLines is the translator output and the body of an authorization update.
type OrderLines struct {
	OrderLines     []OrderLine `json:"order_lines"`
	OrderAmount    int64       `json:"order_amount"`
	OrderTaxAmount int64       `json:"order_tax_amount"`
}

// KlarnaAddress is an address as Klarna OM returns it.
type KlarnaAddress struct {
	GivenName      string `json:"given_name,omitempty"`
	FamilyName     string `json:"family_name,omitempty"`
	Organization   string `json:"organization_name,omitempty"`
	Title          string `json:"title,omitempty"`
	StreetAddress  string `json:"street_address,omitempty"`
	StreetAddress2 string `json:"street_address2,omitempty"`
	PostalCode     string `json:"postal_code,omitempty"`
	City           string `json:"city,omitempty"`
	Region         string `json:"region,omitempty"`
	Country        string `json:"country,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}

// KlarnaOrder is the subset of the OM order resource the bridge reads.
type KlarnaOrder struct {
	OrderID                   string          `json:"order_id"`
	Status                    string          `json:"status"`
	FraudStatus               string          `json:"fraud_status"`
	OrderAmount               int64           `json:"order_amount"`
	OriginalOrderAmount       int64           `json:"original_order_amount"`
	CapturedAmount            int64           `json:"captured_amount"`
	RefundedAmount            int64           `json:"refunded_amount"`
	RemainingAuthorizedAmount int64           `json:"remaining_authorized_amount"`
	PurchaseCurrency          string          `json:"purchase_currency"`
	PurchaseCountry           string          `json:"purchase_country"`
	MerchantReference1        string          `json:"merchant_reference1,omitempty"`
	ExpiresAt                 string          `json:"expires_at,omitempty"`
	BillingAddress            *KlarnaAddress  `json:"billing_address,omitempty"`
	ShippingAddress           *KlarnaAddress  `json:"shipping_address,omitempty"`
	OrderLines                []OrderLine     `json:"order_lines,omitempty"`
	Captures                  []KlarnaCapture `json:"captures,omitempty"`
}

// IsCaptured reports whether the order was fully or partially captured.
func (k *KlarnaOrder) IsCaptured() bool {
	return k.Status == KlarnaStatusCaptured || k.Status == KlarnaStatusPartCaptured
}

// IsCancelled reports whether the order was cancelled in Klarna.
func (k *KlarnaOrder) IsCancelled() bool {
	return k.Status == KlarnaStatusCancelled
}

// KlarnaCapture is one capture listed on a Klarna order.
type KlarnaCapture struct {
	CaptureID      string `json:"capture_id"`
	CapturedAmount int64  `json:"captured_amount"`
	CapturedAt     string `json:"captured_at,omitempty"`
}

// ShippingInfo carries shipment tracking details on a capture.
type ShippingInfo struct {
	ShippingCompany string `json:"shipping_company,omitempty"`
	ShippingMethod  string `json:"shipping_method,omitempty"`
	TrackingNumber  string `json:"tracking_number,omitempty"`
	TrackingURI     string `json:"tracking_uri,omitempty"`
}

// IsEmpty reports whether no tracking field is set.
func (s ShippingInfo) IsEmpty() bool {
	return s == ShippingInfo{}
}

// CaptureRequest is the body of POST /orders/{id}/captures.
type CaptureRequest struct {
	CapturedAmount int64          `json:"captured_amount"`
	OrderLines     []OrderLine    `json:"order_lines,omitempty"`
	ShippingInfo   []ShippingInfo `json:"shipping_info,omitempty"`
}

// RefundRequest is the body of POST /orders/{id}/refunds.
type RefundRequest struct {
	RefundedAmount int64       `json:"refunded_amount"`
	Description    string      `json:"description,omitempty"`
	OrderLines     []OrderLine `json:"order_lines,omitempty"`
}
