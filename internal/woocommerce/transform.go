package woocommerce

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"kom-bridge/internal/model"
)

// metaRefundedItemID links a refund line to the order line it returns.
const metaRefundedItemID = "_refunded_item_id"

// OrderToModel converts a REST order, its refunds and the product snapshots
// keyed by product or variation ID into the platform-neutral order.
// Items keep WooCommerce's order: products, shipping, fees, coupons.
func OrderToModel(wo *WooOrder, refunds []WooRefund, products map[int]*model.Product) *model.Order {
	rates := taxRates(wo.TaxLines)

	order := &model.Order{
		ID:            wo.ID,
		Status:        wo.Status,
		Currency:      wo.Currency,
		PaymentMethod: wo.PaymentMethod,
		TransactionID: wo.TransactionID,
		Total:         model.ParseAmount(wo.Total),
		CartTax:       model.ParseAmount(wo.CartTax),
		ShippingTotal: model.ParseAmount(wo.ShippingTotal),
		ShippingTax:   model.ParseAmount(wo.ShippingTax),
		Billing:       wo.Billing,
		Shipping:      wo.Shipping,
		Meta:          metaMap(wo.MetaData),
	}

	for _, li := range wo.LineItems {
		order.Items = append(order.Items, lineItemToModel(li, rates, products))
	}
	for _, sl := range wo.ShippingLines {
		order.Items = append(order.Items, shippingLineToModel(sl, rates))
	}
	for _, fl := range wo.FeeLines {
		order.Items = append(order.Items, model.OrderItem{
			ID:       fl.ID,
			Kind:     model.ItemFee,
			Name:     fl.Name,
			Quantity: 1,
			Total:    model.ParseAmount(fl.Total),
			TotalTax: model.ParseAmount(fl.TotalTax),
		})
	}
	for _, cl := range wo.CouponLines {
		order.Items = append(order.Items, model.OrderItem{
			ID:           cl.ID,
			Kind:         model.ItemCoupon,
			Name:         cl.Code,
			Code:         cl.Code,
			Quantity:     1,
			DiscountType: couponDiscountType(cl),
			Discount:     model.ParseAmount(cl.Discount),
			DiscountTax:  model.ParseAmount(cl.DiscountTax),
		})
	}

	for _, r := range refunds {
		order.Refunds = append(order.Refunds, RefundToModel(r, rates, products))
	}
	return order
}

// RefundToModel converts a REST refund. Refund amounts stay negative on the
// items as WooCommerce reports them; the refund amount is positive.
func RefundToModel(r WooRefund, rates map[int]decimal.Decimal, products map[int]*model.Product) model.Refund {
	refund := model.Refund{
		ID:     r.ID,
		Amount: model.ParseAmount(r.Amount).Abs(),
		Reason: r.Reason,
	}
	for _, li := range r.LineItems {
		refund.Items = append(refund.Items, lineItemToModel(li, rates, products))
	}
	for _, sl := range r.ShippingLines {
		refund.Items = append(refund.Items, shippingLineToModel(sl, rates))
	}
	return refund
}

func lineItemToModel(li WooLineItem, rates map[int]decimal.Decimal, products map[int]*model.Product) model.OrderItem {
	item := model.OrderItem{
		ID:             li.ID,
		Kind:           model.ItemProduct,
		Name:           li.Name,
		Quantity:       li.Quantity,
		Subtotal:       model.ParseAmount(li.Subtotal),
		SubtotalTax:    model.ParseAmount(li.SubtotalTax),
		Total:          model.ParseAmount(li.Total),
		TotalTax:       model.ParseAmount(li.TotalTax),
		TaxRate:        itemTaxRate(li.Taxes, rates),
		SKU:            li.SKU,
		ProductID:      li.ProductID,
		VariationID:    li.VariationID,
		Product:        products[productKey(li.ProductID, li.VariationID)],
		RefundedItemID: refundedItemID(li.MetaData),
	}
	for _, m := range li.MetaData {
		if m.hidden() {
			continue
		}
		key := m.DisplayKey
		if key == "" {
			key = m.Key
		}
		value := rawString(m.DisplayValue)
		if value == "" {
			value = m.StringValue()
		}
		item.Attributes = append(item.Attributes, model.Attribute{Key: key, Value: value})
	}
	return item
}

func shippingLineToModel(sl WooShippingLine, rates map[int]decimal.Decimal) model.OrderItem {
	return model.OrderItem{
		ID:             sl.ID,
		Kind:           model.ItemShipping,
		Name:           sl.MethodTitle,
		Quantity:       1,
		Total:          model.ParseAmount(sl.Total),
		TotalTax:       model.ParseAmount(sl.TotalTax),
		TaxRate:        itemTaxRate(sl.Taxes, rates),
		MethodID:       sl.MethodID,
		InstanceID:     sl.InstanceID,
		RefundedItemID: refundedItemID(sl.MetaData),
	}
}

// productKey is the ID a line's product snapshot is stored under.
func productKey(productID, variationID int) int {
	if variationID != 0 {
		return variationID
	}
	return productID
}

// ProductIDs lists the distinct product keys referenced by an order and its
// refunds, in first-seen order.
func ProductIDs(wo *WooOrder, refunds []WooRefund) []int {
	seen := map[int]bool{}
	var ids []int
	add := func(items []WooLineItem) {
		for _, li := range items {
			id := productKey(li.ProductID, li.VariationID)
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(wo.LineItems)
	for _, r := range refunds {
		add(r.LineItems)
	}
	return ids
}

// ProductToModel converts a REST product or variation.
func ProductToModel(p *WooProduct) *model.Product {
	out := &model.Product{
		ID:           p.ID,
		Virtual:      p.Virtual,
		Downloadable: p.Downloadable,
		Permalink:    p.Permalink,
	}
	switch {
	case p.Image != nil && p.Image.Src != "":
		out.ImageURL = p.Image.Src
	case len(p.Images) > 0:
		out.ImageURL = p.Images[0].Src
	}
	return out
}

// taxRates maps tax rate IDs to their percentage. Rates reported as zero are
// left out; older WooCommerce versions do not send rate_percent.
func taxRates(lines []WooTaxLine) map[int]decimal.Decimal {
	rates := make(map[int]decimal.Decimal, len(lines))
	for _, tl := range lines {
		if tl.RatePercent == 0 {
			continue
		}
		rates[tl.RateID] = decimal.NewFromFloat(tl.RatePercent)
	}
	return rates
}

// itemTaxRate returns the rate of the first tax actually charged on a line.
func itemTaxRate(taxes []WooItemTax, rates map[int]decimal.Decimal) *decimal.Decimal {
	for _, tax := range taxes {
		if model.ParseAmount(tax.Total).IsZero() {
			continue
		}
		if r, ok := rates[tax.ID]; ok {
			return &r
		}
	}
	return nil
}

func refundedItemID(meta []WooMeta) int {
	for _, m := range meta {
		if m.Key == metaRefundedItemID {
			id, _ := strconv.Atoi(m.StringValue())
			return id
		}
	}
	return 0
}

func metaMap(meta []WooMeta) map[string]string {
	out := make(map[string]string, len(meta))
	for _, m := range meta {
		out[m.Key] = m.StringValue()
	}
	return out
}

// couponDiscountType reads the coupon type from the line, falling back to the
// coupon_data meta (object) and the coupon_info meta ([id, code, type, amount]).
func couponDiscountType(cl WooCouponLine) string {
	if cl.DiscountType != "" {
		return cl.DiscountType
	}
	for _, m := range cl.MetaData {
		switch m.Key {
		case "coupon_data":
			var data struct {
				DiscountType string `json:"discount_type"`
			}
			if json.Unmarshal(m.Value, &data) == nil && data.DiscountType != "" {
				return data.DiscountType
			}
		case "coupon_info":
			var info []any
			if json.Unmarshal([]byte(m.StringValue()), &info) == nil && len(info) > 2 {
				if t, ok := info[2].(string); ok {
					return t
				}
			}
		}
	}
	return ""
}
