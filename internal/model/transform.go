package model

// TransformConfig holds the store-wide policy the order-line translator applies.
// Populated from config at startup, reused across requests.
type TransformConfig struct {
	// StoreCountry is the ISO 3166-1 alpha-2 base country of the shop.
	// "US" switches the translator into separate sales tax mode.
	StoreCountry string

	// SendProductURLs adds product_url and image_url to product lines.
	SendProductURLs bool

	// DefaultProductType is used when the product behind a line item no longer
	// exists. Empty means LineTypePhysical.
	DefaultProductType string
}

// SeparateSalesTax reports whether tax is sent as one aggregate sales_tax line
// instead of per line.
func (c TransformConfig) SeparateSalesTax() bool {
	return c.StoreCountry == "US"
}

// ProductTypeFallback returns the line type for items whose product is gone.
func (c TransformConfig) ProductTypeFallback() string {
	if c.DefaultProductType == "" {
		return LineTypePhysical
	}
	return c.DefaultProductType
}
