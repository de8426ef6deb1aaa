package klarna

import (
	"context"

	"kom-bridge/internal/model"
)

// Mock mirrors Client for testing.
// Each method can be configured via function fields.
type Mock struct {
	RetrieveFunc         func(ctx context.Context, order *model.Order) (*model.KlarnaOrder, error)
	CaptureFunc          func(ctx context.Context, order *model.Order, req *model.CaptureRequest) (string, error)
	CancelFunc           func(ctx context.Context, order *model.Order) error
	UpdateOrderLinesFunc func(ctx context.Context, order *model.Order, lines model.OrderLines) error
	RefundFunc           func(ctx context.Context, order *model.Order, req model.RefundRequest) error
}

// Retrieve calls RetrieveFunc or returns an authorized, accepted order.
func (m *Mock) Retrieve(ctx context.Context, order *model.Order) (*model.KlarnaOrder, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, order)
	}
	return &model.KlarnaOrder{
		OrderID:     order.KlarnaOrderID(),
		Status:      model.KlarnaStatusAuthorized,
		FraudStatus: model.FraudStatusAccepted,
	}, nil
}

// Capture calls CaptureFunc or returns a fixed capture ID.
func (m *Mock) Capture(ctx context.Context, order *model.Order, req *model.CaptureRequest) (string, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, order, req)
	}
	return "capture-1", nil
}

// Cancel calls CancelFunc or succeeds.
func (m *Mock) Cancel(ctx context.Context, order *model.Order) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, order)
	}
	return nil
}

// UpdateOrderLines calls UpdateOrderLinesFunc or succeeds.
func (m *Mock) UpdateOrderLines(ctx context.Context, order *model.Order, lines model.OrderLines) error {
	if m.UpdateOrderLinesFunc != nil {
		return m.UpdateOrderLinesFunc(ctx, order, lines)
	}
	return nil
}

// Refund calls RefundFunc or succeeds.
func (m *Mock) Refund(ctx context.Context, order *model.Order, req model.RefundRequest) error {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, order, req)
	}
	return nil
}
