package klarna

import (
	"errors"
	"testing"

	"kom-bridge/internal/model"
)

func testSettings() Settings {
	return Settings{
		GatewayPayments: {
			TestMode: true,
			Test: map[string]Credentials{
				"se": {MerchantID: "kp-test-se", SharedSecret: "s1"},
				"us": {MerchantID: "kp-test-us", SharedSecret: "s2"},
			},
			Live: map[string]Credentials{
				"se": {MerchantID: "kp-live-se", SharedSecret: "s3"},
			},
		},
		GatewayCheckout: {
			Live: map[string]Credentials{
				"eu": {MerchantID: "kco-live-eu", SharedSecret: "s4"},
				"us": {MerchantID: "kco-live-us", SharedSecret: "s5"},
			},
		},
	}
}

func TestSettingsResolve(t *testing.T) {
	tests := []struct {
		name     string
		order    model.Order
		merchant string
		baseURL  string
		env      Environment
	}{
		{
			name:     "payments test mode by lowercase country",
			order:    model.Order{PaymentMethod: "klarna_payments", TransactionID: "k1", Meta: map[string]string{model.MetaCountry: "se"}},
			merchant: "kp-test-se",
			baseURL:  "https://api.playground.klarna.com",
			env:      EnvironmentTest,
		},
		{
			name:     "order environment overrides gateway test mode",
			order:    model.Order{PaymentMethod: "klarna_payments", TransactionID: "k1", Meta: map[string]string{model.MetaCountry: "SE", model.MetaEnvironment: "live"}},
			merchant: "kp-live-se",
			baseURL:  "https://api.klarna.com",
			env:      EnvironmentLive,
		},
		{
			name:     "payments north america",
			order:    model.Order{PaymentMethod: "klarna_payments", TransactionID: "k1", Billing: model.Address{Country: "US"}},
			merchant: "kp-test-us",
			baseURL:  "https://api-na.playground.klarna.com",
			env:      EnvironmentTest,
		},
		{
			name:     "checkout european region",
			order:    model.Order{PaymentMethod: "kco", TransactionID: "k1", Meta: map[string]string{model.MetaCountry: "DE"}},
			merchant: "kco-live-eu",
			baseURL:  "https://api.klarna.com",
			env:      EnvironmentLive,
		},
		{
			name:     "checkout us region",
			order:    model.Order{PaymentMethod: "kco", TransactionID: "k1", Meta: map[string]string{model.MetaCountry: "US"}},
			merchant: "kco-live-us",
			baseURL:  "https://api-na.klarna.com",
			env:      EnvironmentLive,
		},
		{
			name: "per order credentials win",
			order: model.Order{PaymentMethod: "kco", TransactionID: "k1", Meta: map[string]string{
				model.MetaCountry: "AU", model.MetaMerchantID: "own", model.MetaSharedSecret: "secret",
			}},
			merchant: "own",
			baseURL:  "https://api-oc.klarna.com",
			env:      EnvironmentLive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := testSettings().Resolve(&tt.order)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if target.Credentials.MerchantID != tt.merchant {
				t.Errorf("MerchantID = %q, want %q", target.Credentials.MerchantID, tt.merchant)
			}
			if target.BaseURL != tt.baseURL {
				t.Errorf("BaseURL = %q, want %q", target.BaseURL, tt.baseURL)
			}
			if target.Environment != tt.env {
				t.Errorf("Environment = %q, want %q", target.Environment, tt.env)
			}
		})
	}
}

func TestSettingsResolve_Errors(t *testing.T) {
	tests := []struct {
		name  string
		order model.Order
		want  error
	}{
		{"not a klarna order", model.Order{PaymentMethod: "stripe"}, ErrUnsupportedGateway},
		{"no credentials for region", model.Order{PaymentMethod: "klarna_payments", Meta: map[string]string{model.MetaCountry: "FI"}}, ErrMissingCredentials},
		{"only merchant id override", model.Order{PaymentMethod: "kco", Meta: map[string]string{model.MetaCountry: "US", model.MetaMerchantID: "own"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testSettings().Resolve(&tt.order)
			if !errors.Is(err, tt.want) && !(tt.want == nil && err == nil) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSettingsResolve_NoGatewayConfig(t *testing.T) {
	_, err := Settings{}.Resolve(&model.Order{PaymentMethod: "kco"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Resolve() error = %v, want ErrMissingCredentials", err)
	}
}

func TestGatewayTitle(t *testing.T) {
	if GatewayPayments.Title() != "Klarna Payments" || GatewayCheckout.Title() != "Klarna Checkout" {
		t.Error("unexpected gateway titles")
	}
	if IsKlarnaGateway("bacs") {
		t.Error("bacs is not a Klarna gateway")
	}
}
