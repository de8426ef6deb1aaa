package orderlines

import (
	"github.com/shopspring/decimal"

	"kom-bridge/internal/model"
)

// RefundLines builds the order lines sent with a Klarna refund. Product and
// shipping items of the refund become lines with positive amounts. In
// separate sales tax mode refunded tax is sent as one trailing sales_tax line
// and zero-priced items are left out.
func (t *Translator) RefundLines(order *model.Order, refund *model.Refund) []model.OrderLine {
	separate := t.cfg.SeparateSalesTax()
	lines := []model.OrderLine{}
	refundedTax := decimal.Zero

	for _, item := range refund.Items {
		refundedTax = refundedTax.Add(item.TotalTax.Abs())

		switch item.Kind {
		case model.ItemProduct:
			if line, ok := t.refundProductLine(order, item); ok {
				lines = append(lines, line)
			}
		case model.ItemShipping:
			if line, ok := t.refundShippingLine(order, item); ok {
				lines = append(lines, line)
			}
		}
	}

	if separate && !refundedTax.IsZero() {
		lines = append(lines, salesTaxLine(model.ToMinor(refundedTax)))
	}
	return lines
}

// RefundRequest builds the refund body for amount with the lines of refund.
// A nil refund sends the amount alone.
func (t *Translator) RefundRequest(order *model.Order, refund *model.Refund, amount decimal.Decimal, reason string) model.RefundRequest {
	req := model.RefundRequest{
		RefundedAmount: model.ToMinor(amount),
		Description:    reason,
	}
	if refund != nil {
		req.OrderLines = t.RefundLines(order, refund)
	}
	return req
}

func (t *Translator) refundProductLine(order *model.Order, item model.OrderItem) (model.OrderLine, bool) {
	separate := t.cfg.SeparateSalesTax()
	orig, found := originalItem(order, item)

	price := model.ToMinor(item.Subtotal.Abs())
	if separate && price == 0 {
		return model.OrderLine{}, false
	}
	var tax int64
	if !separate {
		tax = model.ToMinor(item.TotalTax.Abs())
	}

	product := item.Product
	if product == nil && found {
		product = orig.Product
	}

	qty := quantity(item.Quantity)
	unit := divRound(price+tax, qty)
	line := model.OrderLine{
		Type:           t.productType(product),
		Reference:      truncateReference(productReference(item)),
		Name:           t.itemName(item),
		Quantity:       qty,
		UnitPrice:      unit,
		TotalAmount:    unit * int64(qty),
		TotalTaxAmount: tax,
	}
	if !separate {
		if found {
			line.TaxRate = taxRate(orig)
		} else {
			line.TaxRate = taxRate(absItem(item))
		}
	}
	return line, true
}

func (t *Translator) refundShippingLine(order *model.Order, item model.OrderItem) (model.OrderLine, bool) {
	separate := t.cfg.SeparateSalesTax()
	price := model.ToMinor(item.Total.Abs())
	if separate && price == 0 {
		return model.OrderLine{}, false
	}
	line := model.OrderLine{
		Type:      model.LineTypeShippingFee,
		Reference: truncateReference(shippingReference(item)),
		Name:      t.stripTags(item.Name),
		Quantity:  1,
	}
	if !separate {
		line.TotalTaxAmount = model.ToMinor(item.TotalTax.Abs())
		line.TaxRate = model.BasisPoints(order.ShippingTax, order.ShippingTotal)
	}
	line.UnitPrice = price + line.TotalTaxAmount
	line.TotalAmount = line.UnitPrice
	return line, true
}

// originalItem finds the order item a refund item returns, by the refunded
// item link first and the product otherwise.
func originalItem(order *model.Order, item model.OrderItem) (model.OrderItem, bool) {
	if item.RefundedItemID != 0 {
		if it, ok := order.ItemByID(item.RefundedItemID); ok {
			return it, true
		}
	}
	for _, it := range order.Items {
		if it.Kind == model.ItemProduct && it.ProductID == item.ProductID && it.VariationID == item.VariationID {
			return it, true
		}
	}
	return model.OrderItem{}, false
}

func absItem(item model.OrderItem) model.OrderItem {
	item.Subtotal = item.Subtotal.Abs()
	item.SubtotalTax = item.SubtotalTax.Abs()
	item.Total = item.Total.Abs()
	item.TotalTax = item.TotalTax.Abs()
	return item
}

func divRound(amount int64, n int) int64 {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(int64(n))).Round(0).IntPart()
}
