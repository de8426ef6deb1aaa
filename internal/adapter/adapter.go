// Package adapter defines the order store the bridge reads orders from and
// writes notes, meta and statuses back to.
package adapter

import (
	"context"

	"kom-bridge/internal/model"
)

// OrderStore abstracts the shop platform holding the orders.
// The WooCommerce REST client is the production implementation.
type OrderStore interface {
	// GetOrder loads an order with its items, refunds and product snapshots.
	// Products that no longer exist leave OrderItem.Product nil.
	GetOrder(ctx context.Context, orderID int) (*model.Order, error)

	// AddOrderNote appends a private note to the order.
	AddOrderNote(ctx context.Context, orderID int, note string) error

	// UpdateOrder applies the non-empty fields of update.
	UpdateOrder(ctx context.Context, orderID int, update *OrderUpdate) error
}

// OrderUpdate is a partial order update. Zero fields are left untouched.
type OrderUpdate struct {
	Status        string            `json:"status,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Meta          map[string]string `json:"meta,omitempty"`
	Billing       *model.Address    `json:"billing,omitempty"`
	Shipping      *model.Address    `json:"shipping,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *OrderUpdate) IsEmpty() bool {
	return u.Status == "" && u.TransactionID == "" && len(u.Meta) == 0 && u.Billing == nil && u.Shipping == nil
}

// MetaUpdate is shorthand for an update that only sets order meta.
func MetaUpdate(kv ...string) *OrderUpdate {
	meta := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		meta[kv[i]] = kv[i+1]
	}
	return &OrderUpdate{Meta: meta}
}
