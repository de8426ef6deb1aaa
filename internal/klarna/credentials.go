package klarna

import (
	"errors"
	"fmt"
	"strings"

	"kom-bridge/internal/model"
)

// Gateway is the WooCommerce payment method ID of a Klarna gateway.
type Gateway string

const (
	GatewayPayments Gateway = "klarna_payments"
	GatewayCheckout Gateway = "kco"
)

// Title is the gateway's display name used in error messages.
func (g Gateway) Title() string {
	switch g {
	case GatewayPayments:
		return "Klarna Payments"
	case GatewayCheckout:
		return "Klarna Checkout"
	default:
		return string(g)
	}
}

// IsKlarnaGateway reports whether a payment method belongs to Klarna.
func IsKlarnaGateway(paymentMethod string) bool {
	g := Gateway(paymentMethod)
	return g == GatewayPayments || g == GatewayCheckout
}

// Environment selects playground or production endpoints and credentials.
type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

var (
	ErrUnsupportedGateway = errors.New("order was not paid with a Klarna gateway")
	ErrMissingCredentials = errors.New("klarna credentials are missing")
	ErrMissingOrderID     = errors.New("order has no Klarna order ID")
)

// Credentials authenticate against the OM API with HTTP Basic auth.
type Credentials struct {
	MerchantID   string `json:"merchant_id"`
	SharedSecret string `json:"shared_secret"`
}

func (c Credentials) complete() bool {
	return c.MerchantID != "" && c.SharedSecret != ""
}

// GatewayConfig holds one gateway's credentials keyed by region.
// Klarna Payments uses the lowercase purchase country as region, Klarna
// Checkout uses "us" or "eu".
type GatewayConfig struct {
	TestMode bool                   `json:"testmode"`
	Live     map[string]Credentials `json:"live,omitempty"`
	Test     map[string]Credentials `json:"test,omitempty"`
}

// Settings maps each gateway to its credentials.
type Settings map[Gateway]GatewayConfig

// Target is everything needed to address one order in the OM API.
type Target struct {
	Gateway       Gateway
	Environment   Environment
	Country       string // ISO alpha-2, upper case
	Region        string
	BaseURL       string
	Credentials   Credentials
	KlarnaOrderID string
}

// Resolve works out endpoint and credentials for an order. Merchant ID and
// shared secret stored on the order take precedence over configured ones.
func (s Settings) Resolve(order *model.Order) (*Target, error) {
	gateway := Gateway(order.PaymentMethod)
	if !IsKlarnaGateway(order.PaymentMethod) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, order.PaymentMethod)
	}
	gc, configured := s[gateway]

	t := &Target{
		Gateway:       gateway,
		Environment:   environmentFor(order, gc),
		Country:       countryFor(order),
		KlarnaOrderID: order.KlarnaOrderID(),
	}
	t.Region = regionFor(gateway, t.Country)
	t.BaseURL = BaseURL(t.Country, t.Environment)

	creds := Credentials{
		MerchantID:   order.MetaValue(model.MetaMerchantID),
		SharedSecret: order.MetaValue(model.MetaSharedSecret),
	}
	if configured {
		byRegion := gc.Live
		if t.Environment == EnvironmentTest {
			byRegion = gc.Test
		}
		fallback := byRegion[t.Region]
		if creds.MerchantID == "" {
			creds.MerchantID = fallback.MerchantID
		}
		if creds.SharedSecret == "" {
			creds.SharedSecret = fallback.SharedSecret
		}
	}
	if !creds.complete() {
		return nil, fmt.Errorf("%w: %s %s credentials for region %q", ErrMissingCredentials, gateway.Title(), t.Environment, t.Region)
	}
	t.Credentials = creds
	return t, nil
}

func environmentFor(order *model.Order, gc GatewayConfig) Environment {
	switch Environment(order.MetaValue(model.MetaEnvironment)) {
	case EnvironmentTest:
		return EnvironmentTest
	case EnvironmentLive:
		return EnvironmentLive
	}
	if gc.TestMode {
		return EnvironmentTest
	}
	return EnvironmentLive
}

func countryFor(order *model.Order) string {
	if c := order.MetaValue(model.MetaCountry); c != "" {
		return strings.ToUpper(c)
	}
	return strings.ToUpper(order.Billing.Country)
}

func regionFor(g Gateway, country string) string {
	if g == GatewayPayments {
		return strings.ToLower(country)
	}
	if country == "US" {
		return "us"
	}
	return "eu"
}

// BaseURL returns the OM API base for a purchase country and environment.
// North American orders use api-na, Oceania api-oc, everything else api.
func BaseURL(country string, env Environment) string {
	var region string
	switch strings.ToUpper(country) {
	case "US", "CA":
		region = "-na"
	case "AU", "NZ":
		region = "-oc"
	}
	if env == EnvironmentLive {
		return "https://api" + region + ".klarna.com"
	}
	return "https://api" + region + ".playground.klarna.com"
}
