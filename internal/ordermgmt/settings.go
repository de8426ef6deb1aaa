package ordermgmt

// Settings toggles the automatic behaviour of the dispatcher.
type Settings struct {
	// AutoCapture captures the Klarna order when the WooCommerce order completes.
	AutoCapture bool `json:"auto_capture"`
	// AutoCancel cancels the Klarna order when the WooCommerce order is cancelled.
	AutoCancel bool `json:"auto_cancel"`
	// AutoUpdate sends changed order lines for on-hold orders.
	AutoUpdate bool `json:"auto_update"`
	// AutoOrderSync copies Klarna addresses onto newly created orders.
	AutoOrderSync bool `json:"auto_order_sync"`
	// ForceFullCapture captures the remaining authorized amount without lines.
	ForceFullCapture bool `json:"force_full_capture"`
	// DebugLog logs Klarna request and response bodies.
	DebugLog bool `json:"debug_log"`
}

// DefaultSettings returns every automation enabled and full capture off.
func DefaultSettings() Settings {
	return Settings{
		AutoCapture:   true,
		AutoCancel:    true,
		AutoUpdate:    true,
		AutoOrderSync: true,
		DebugLog:      true,
	}
}
