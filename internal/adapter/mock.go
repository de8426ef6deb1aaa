package adapter

import (
	"context"
	"sync"

	"kom-bridge/internal/model"
)

// Mock implements OrderStore for testing.
// Each method can be configured via function fields. Notes and updates are
// recorded so tests can assert on what was written back.
type Mock struct {
	GetOrderFunc     func(ctx context.Context, orderID int) (*model.Order, error)
	AddOrderNoteFunc func(ctx context.Context, orderID int, note string) error
	UpdateOrderFunc  func(ctx context.Context, orderID int, update *OrderUpdate) error

	mu      sync.Mutex
	Notes   []string
	Updates []*OrderUpdate
}

// GetOrder calls the configured GetOrderFunc or returns not found.
func (m *Mock) GetOrder(ctx context.Context, orderID int) (*model.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID)
	}
	return nil, model.NewNotFoundError("order")
}

// AddOrderNote records the note and calls AddOrderNoteFunc if set.
func (m *Mock) AddOrderNote(ctx context.Context, orderID int, note string) error {
	m.mu.Lock()
	m.Notes = append(m.Notes, note)
	m.mu.Unlock()
	if m.AddOrderNoteFunc != nil {
		return m.AddOrderNoteFunc(ctx, orderID, note)
	}
	return nil
}

// UpdateOrder records the update and calls UpdateOrderFunc if set.
func (m *Mock) UpdateOrder(ctx context.Context, orderID int, update *OrderUpdate) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, update)
	m.mu.Unlock()
	if m.UpdateOrderFunc != nil {
		return m.UpdateOrderFunc(ctx, orderID, update)
	}
	return nil
}

// Verify Mock implements OrderStore interface at compile time.
var _ OrderStore = (*Mock)(nil)
