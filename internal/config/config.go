// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"kom-bridge/internal/klarna"
	"kom-bridge/internal/model"
	"kom-bridge/internal/ordermgmt"
	"kom-bridge/internal/transport"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	// ShopID names the Secret Manager secret holding the shop config.
	ShopID string

	// Transport used for WooCommerce calls ("standard" or "chrome").
	Transport transport.Kind

	// Shop-specific configuration (loaded from secrets)
	Shop ShopConfig
}

// ShopConfig contains the store and Klarna settings of one WooCommerce shop.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type ShopConfig struct {
	StoreURL       string `json:"store_url"`
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`

	// StoreCountry is the WooCommerce base country. "US" switches order
	// lines to a separate sales tax line.
	StoreCountry       string `json:"store_country"`
	SendProductURLs    bool   `json:"send_product_urls,omitempty"`
	DefaultProductType string `json:"default_product_type,omitempty"`

	// Klarna credentials per gateway, environment and region.
	Klarna klarna.Settings `json:"klarna"`
	// KlarnaBaseURL overrides the region endpoint, for mocks only.
	KlarnaBaseURL string `json:"klarna_base_url,omitempty"`

	// OrderManagement toggles automation. Nil means every default.
	OrderManagement *ordermgmt.Settings `json:"order_management,omitempty"`

	// AuthToken protects the API with a bearer token when set.
	AuthToken string `json:"auth_token,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		ShopID:      os.Getenv("SHOP_ID"),
		Transport:   transport.Kind(envOrDefault("TRANSPORT", string(transport.KindChrome))),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.ShopID == "" {
			return nil, fmt.Errorf("SHOP_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading shop config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string     `json:"port"`
		Environment string     `json:"environment"`
		LogLevel    string     `json:"log_level"`
		Transport   string     `json:"transport"`
		ShopID      string     `json:"shop_id"`
		Shop        ShopConfig `json:"shop"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		Transport:   transport.Kind(withDefault(fileConfig.Transport, string(transport.KindChrome))),
		ShopID:      fileConfig.ShopID,
		Shop:        fileConfig.Shop,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches shop config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{shop_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.ShopID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Shop); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads shop config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Shop = ShopConfig{
		StoreURL:           os.Getenv("WOOCOMMERCE_STORE_URL"),
		ConsumerKey:        os.Getenv("WOOCOMMERCE_CONSUMER_KEY"),
		ConsumerSecret:     os.Getenv("WOOCOMMERCE_CONSUMER_SECRET"),
		StoreCountry:       os.Getenv("STORE_COUNTRY"),
		DefaultProductType: os.Getenv("DEFAULT_PRODUCT_TYPE"),
		KlarnaBaseURL:      os.Getenv("KLARNA_BASE_URL"),
		AuthToken:          os.Getenv("AUTH_TOKEN"),
	}

	if v := os.Getenv("SEND_PRODUCT_URLS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing SEND_PRODUCT_URLS: %w", err)
		}
		c.Shop.SendProductURLs = b
	}

	// Klarna credentials are nested, so they come as one JSON document
	if settingsJSON := os.Getenv("KLARNA_SETTINGS"); settingsJSON != "" {
		if err := json.Unmarshal([]byte(settingsJSON), &c.Shop.Klarna); err != nil {
			return fmt.Errorf("parsing KLARNA_SETTINGS JSON: %w", err)
		}
	}

	if komJSON := os.Getenv("KOM_SETTINGS"); komJSON != "" {
		s := ordermgmt.DefaultSettings()
		if err := json.Unmarshal([]byte(komJSON), &s); err != nil {
			return fmt.Errorf("parsing KOM_SETTINGS JSON: %w", err)
		}
		c.Shop.OrderManagement = &s
	}

	return nil
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Shop.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if c.Shop.ConsumerKey == "" {
		return fmt.Errorf("consumer_key is required")
	}
	if c.Shop.ConsumerSecret == "" {
		return fmt.Errorf("consumer_secret is required")
	}

	u, err := url.Parse(c.Shop.StoreURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid store_url %q", c.Shop.StoreURL)
	}

	if len(c.Shop.Klarna) == 0 {
		return fmt.Errorf("klarna settings are required")
	}
	for g := range c.Shop.Klarna {
		if !klarna.IsKlarnaGateway(string(g)) {
			return fmt.Errorf("klarna settings: unknown gateway %q", g)
		}
	}

	switch c.Shop.DefaultProductType {
	case "", model.LineTypePhysical, model.LineTypeDigital:
	default:
		return fmt.Errorf("default_product_type must be %q or %q", model.LineTypePhysical, model.LineTypeDigital)
	}

	switch c.Transport {
	case transport.KindStandard, transport.KindChrome:
	default:
		return fmt.Errorf("transport must be %q or %q", transport.KindStandard, transport.KindChrome)
	}

	return nil
}

// BuildTransformConfig creates the order line translation settings.
func (c *Config) BuildTransformConfig() model.TransformConfig {
	return model.TransformConfig{
		StoreCountry:       strings.ToUpper(c.Shop.StoreCountry),
		SendProductURLs:    c.Shop.SendProductURLs,
		DefaultProductType: c.Shop.DefaultProductType,
	}
}

// OrderManagementSettings returns the configured automation settings, or
// the defaults when none are configured.
func (c *Config) OrderManagementSettings() ordermgmt.Settings {
	if c.Shop.OrderManagement == nil {
		return ordermgmt.DefaultSettings()
	}
	return *c.Shop.OrderManagement
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
