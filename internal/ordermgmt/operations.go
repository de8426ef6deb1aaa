package ordermgmt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kom-bridge/internal/adapter"
	"kom-bridge/internal/klarna"
	"kom-bridge/internal/model"
	"kom-bridge/internal/reconcile"
)

// Capture captures the Klarna order behind a WooCommerce order.
func (s *Service) Capture(ctx context.Context, orderID int, trigger Trigger) (*Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !klarna.IsKlarnaGateway(order.PaymentMethod) {
		return s.skip(order, ActionCapture, "not a Klarna order")
	}
	if trigger == TriggerAutomatic && !s.settings.AutoCapture {
		return s.skip(order, ActionCapture, "auto capture disabled")
	}
	if id := order.CaptureID(); id != "" {
		return s.skip(order, ActionCapture, "already captured with capture ID "+id)
	}

	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, s.fail(ctx, order, ActionCapture, "capture Klarna order", err)
	}
	if ko.IsCaptured() || ko.IsCancelled() {
		return s.skip(order, ActionCapture, "Klarna order is "+ko.Status)
	}

	req := s.captureRequest(order, ko)
	captureID, err := s.klarna.Capture(ctx, order, req)
	if err != nil {
		return nil, s.fail(ctx, order, ActionCapture, "capture Klarna order", err)
	}

	s.note(ctx, order, "Klarna order captured. Capture ID: "+captureID)
	s.update(ctx, order, adapter.MetaUpdate(model.MetaCaptureID, captureID))

	res := s.done(order, ActionCapture, ko)
	res.CaptureID = captureID
	return res, nil
}

func (s *Service) captureRequest(order *model.Order, ko *model.KlarnaOrder) *model.CaptureRequest {
	req := &model.CaptureRequest{CapturedAmount: model.ToMinor(order.Total)}
	if s.settings.ForceFullCapture {
		req.CapturedAmount = ko.RemainingAuthorizedAmount
	} else {
		lines := s.translator.Translate(order)
		s.metrics.ObserveLines(len(lines.OrderLines))
		req.OrderLines = lines.OrderLines
	}
	if info := shippingInfo(order); !info.IsEmpty() {
		req.ShippingInfo = []model.ShippingInfo{info}
	}
	return req
}

// kssData is the part of the Klarna shipping service meta used for captures.
type kssData struct {
	DeliveryDetails struct {
		Carrier string `json:"carrier"`
	} `json:"delivery_details"`
}

// shippingInfo builds capture tracking details from the order's KSS meta.
func shippingInfo(order *model.Order) model.ShippingInfo {
	var info model.ShippingInfo
	if raw := order.MetaValue(model.MetaKSSData); raw != "" {
		var data kssData
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			info.ShippingCompany = data.DeliveryDetails.Carrier
			info.ShippingMethod = data.DeliveryDetails.Carrier
		}
	}
	info.TrackingNumber = order.MetaValue(model.MetaKSSTrackingID)
	info.TrackingURI = order.MetaValue(model.MetaKSSTrackingURL)
	return info
}

// Cancel cancels the Klarna order behind a WooCommerce order.
func (s *Service) Cancel(ctx context.Context, orderID int, trigger Trigger) (*Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !klarna.IsKlarnaGateway(order.PaymentMethod) {
		return s.skip(order, ActionCancel, "not a Klarna order")
	}
	if trigger == TriggerAutomatic && !s.settings.AutoCancel {
		return s.skip(order, ActionCancel, "auto cancel disabled")
	}
	if order.MetaValue(model.MetaPendingToCancelled) != "" {
		return s.skip(order, ActionCancel, "Klarna order was rejected")
	}
	if order.MetaValue(model.MetaCancelled) != "" {
		return s.skip(order, ActionCancel, "already cancelled")
	}

	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, s.fail(ctx, order, ActionCancel, "cancel Klarna order", err)
	}
	if ko.IsCaptured() || ko.IsCancelled() {
		return s.skip(order, ActionCancel, "Klarna order is "+ko.Status)
	}

	if err := s.klarna.Cancel(ctx, order); err != nil {
		return nil, s.fail(ctx, order, ActionCancel, "cancel Klarna order", err)
	}

	s.note(ctx, order, "Klarna order cancelled.")
	s.update(ctx, order, adapter.MetaUpdate(model.MetaCancelled, "yes"))
	return s.done(order, ActionCancel, ko), nil
}

// UpdateItems sends the current order lines of an on-hold order to Klarna.
func (s *Service) UpdateItems(ctx context.Context, orderID int) (*Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !klarna.IsKlarnaGateway(order.PaymentMethod) {
		return s.skip(order, ActionUpdate, "not a Klarna order")
	}
	if !s.settings.AutoUpdate {
		return s.skip(order, ActionUpdate, "auto update disabled")
	}
	if order.Status != model.StatusOnHold {
		return s.skip(order, ActionUpdate, "order status is "+order.Status)
	}

	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, s.fail(ctx, order, ActionUpdate, "update Klarna order lines", err)
	}
	if ko.IsCaptured() || ko.IsCancelled() {
		return s.skip(order, ActionUpdate, "Klarna order is "+ko.Status)
	}

	lines := s.translator.Translate(order)
	s.metrics.ObserveLines(len(lines.OrderLines))
	if reconcile.LinesMatch(ko, lines) {
		return s.skip(order, ActionUpdate, "order lines unchanged")
	}
	if err := s.klarna.UpdateOrderLines(ctx, order, lines); err != nil {
		return nil, s.fail(ctx, order, ActionUpdate, "update Klarna order lines", err)
	}

	s.note(ctx, order, "Klarna order updated.")
	return s.done(order, ActionUpdate, ko), nil
}

// RefundInput describes a refund to pass on to Klarna.
type RefundInput struct {
	Amount decimal.Decimal
	Reason string
	// RefundID selects the WooCommerce refund whose items become order lines.
	// Zero uses the latest refund when its amount matches Amount.
	RefundID int
}

// Refund refunds part or all of a captured Klarna order.
// Unlike the event operations, every precondition failure is an error.
func (s *Service) Refund(ctx context.Context, orderID int, in RefundInput) (*Result, error) {
	if !in.Amount.IsPositive() {
		return nil, model.NewValidationError("amount", "must be greater than zero")
	}
	order, err := s.klarnaOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CaptureID() == "" {
		return nil, model.NewConflictError(fmt.Sprintf("order %d has not been captured", orderID))
	}
	refund, err := pickRefund(order, in)
	if err != nil {
		return nil, err
	}

	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, s.fail(ctx, order, ActionRefund, "refund Klarna order", err)
	}
	if !ko.IsCaptured() {
		return nil, model.NewConflictError("Klarna order is " + ko.Status + ", only captured orders can be refunded")
	}

	req := s.translator.RefundRequest(order, refund, in.Amount, in.Reason)
	if err := s.klarna.Refund(ctx, order, req); err != nil {
		return nil, s.fail(ctx, order, ActionRefund, "refund Klarna order", err)
	}

	s.note(ctx, order, model.FormatMoney(in.Amount, order.Currency)+" refunded via Klarna.")
	return s.done(order, ActionRefund, ko), nil
}

// pickRefund returns the WooCommerce refund whose items describe the amount,
// or nil to send the amount without lines.
func pickRefund(order *model.Order, in RefundInput) (*model.Refund, error) {
	if in.RefundID != 0 {
		for i := range order.Refunds {
			if order.Refunds[i].ID == in.RefundID {
				return &order.Refunds[i], nil
			}
		}
		return nil, model.NewNotFoundError("refund")
	}
	if len(order.Refunds) > 0 && order.Refunds[0].Amount.Equal(in.Amount) {
		return &order.Refunds[0], nil
	}
	return nil, nil
}

// Sync copies the customer addresses from the Klarna order onto the
// WooCommerce order.
func (s *Service) Sync(ctx context.Context, orderID int, trigger Trigger) (*Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !klarna.IsKlarnaGateway(order.PaymentMethod) {
		return s.skip(order, ActionSync, "not a Klarna order")
	}
	if trigger == TriggerAutomatic && !s.settings.AutoOrderSync {
		return s.skip(order, ActionSync, "auto order sync disabled")
	}
	if order.KlarnaOrderID() == "" {
		return s.skip(order, ActionSync, "no Klarna order ID")
	}

	ko, err := s.klarna.Retrieve(ctx, order)
	if err != nil {
		return nil, s.fail(ctx, order, ActionSync, "sync Klarna order", err)
	}

	u := &adapter.OrderUpdate{
		Billing:  toAddress(ko.BillingAddress, true),
		Shipping: toAddress(ko.ShippingAddress, false),
		Meta:     map[string]string{model.MetaKlarnaOrderID: ko.OrderID},
	}
	if ko.PurchaseCountry != "" {
		u.Meta[model.MetaCountry] = strings.ToUpper(ko.PurchaseCountry)
	}
	if err := s.store.UpdateOrder(ctx, order.ID, u); err != nil {
		return nil, s.fail(ctx, order, ActionSync, "sync Klarna order", err)
	}

	s.note(ctx, order, "Order address updated by Klarna Order management.")
	return s.done(order, ActionSync, ko), nil
}

// toAddress maps a Klarna address onto WooCommerce fields. Shipping addresses
// carry no contact details.
func toAddress(a *model.KlarnaAddress, contact bool) *model.Address {
	if a == nil {
		return nil
	}
	addr := &model.Address{
		FirstName: a.GivenName,
		LastName:  a.FamilyName,
		Company:   a.Organization,
		Address1:  a.StreetAddress,
		Address2:  a.StreetAddress2,
		City:      a.City,
		State:     a.Region,
		Postcode:  a.PostalCode,
		Country:   strings.ToUpper(a.Country),
	}
	if contact {
		addr.Email = a.Email
		addr.Phone = a.Phone
	}
	return addr
}
