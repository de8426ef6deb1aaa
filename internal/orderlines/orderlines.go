// Package orderlines translates WooCommerce orders into Klarna order lines.
//
// Every amount is computed from the unrounded decimal source and rounded once,
// half away from zero, at the line level. Translation never fails: missing
// products and zero quantities degrade to defaults.
package orderlines

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"kom-bridge/internal/model"
)

const (
	referenceFee      = "Fee"
	referenceDiscount = "Discount"
	nameSalesTax      = "Sales Tax"
	couponSmart       = "smart_coupon"
)

// Translator converts orders using a fixed store policy.
// Safe for concurrent use.
type Translator struct {
	cfg    model.TransformConfig
	strict *bluemonday.Policy
}

// New creates a Translator for the given policy.
func New(cfg model.TransformConfig) *Translator {
	return &Translator{
		cfg:    cfg,
		strict: bluemonday.StrictPolicy(),
	}
}

// Config returns the policy the translator applies.
func (t *Translator) Config() model.TransformConfig {
	return t.cfg
}

// Translate builds the Klarna order lines and totals for an order.
func (t *Translator) Translate(order *model.Order) model.OrderLines {
	separate := t.cfg.SeparateSalesTax()
	out := model.OrderLines{OrderLines: []model.OrderLine{}}

	for _, item := range order.Items {
		var (
			line model.OrderLine
			ok   = true
		)
		switch item.Kind {
		case model.ItemProduct:
			line = t.productLine(item)
		case model.ItemShipping:
			line = t.shippingLine(item)
		case model.ItemFee:
			line = t.feeLine(item)
		case model.ItemCoupon:
			line, ok = t.couponLine(item)
		default:
			ok = false
		}
		if !ok {
			continue
		}
		out.OrderLines = append(out.OrderLines, line)
		out.OrderAmount += line.TotalAmount
		if !separate {
			out.OrderTaxAmount += line.TotalTaxAmount
		}
	}

	if separate {
		tax := salesTaxLine(model.ToMinor(order.CartTax.Add(order.ShippingTax)))
		out.OrderLines = append(out.OrderLines, tax)
		out.OrderAmount += tax.TotalAmount
		out.OrderTaxAmount = tax.TotalAmount
	}

	return out
}

func (t *Translator) productLine(item model.OrderItem) model.OrderLine {
	separate := t.cfg.SeparateSalesTax()
	qty := quantity(item.Quantity)

	gross := item.Subtotal
	total := item.Total
	if !separate {
		gross = gross.Add(item.SubtotalTax)
		total = total.Add(item.TotalTax)
	}

	line := model.OrderLine{
		Type:        t.productType(item.Product),
		Reference:   truncateReference(productReference(item)),
		Name:        t.itemName(item),
		Quantity:    qty,
		UnitPrice:   model.DivMinor(gross, qty),
		TotalAmount: model.ToMinor(total),
	}
	if item.Subtotal.GreaterThan(item.Total) {
		line.TotalDiscountAmount = model.ToMinor(gross.Sub(total))
	}
	balance(&line, model.ToMinor(gross))
	if !separate {
		line.TaxRate = taxRate(item)
		line.TotalTaxAmount = model.ToMinor(item.TotalTax)
	}
	if t.cfg.SendProductURLs && item.Product != nil {
		line.ProductURL = item.Product.Permalink
		line.ImageURL = item.Product.ImageURL
	}
	return line
}

// balance makes quantity * unit_price - total_discount_amount equal
// total_amount exactly, which Klarna validates. When the gross amount does not
// split evenly over the quantity the unit price is rounded up and the
// surplus, at most quantity-1 minor units, moves into the discount.
func balance(line *model.OrderLine, gross int64) {
	qty := int64(line.Quantity)
	if gross > 0 && gross%qty != 0 {
		line.UnitPrice = (gross + qty - 1) / qty
	}
	discount := qty*line.UnitPrice - line.TotalAmount
	if discount >= 0 {
		line.TotalDiscountAmount = discount
	}
}

func (t *Translator) shippingLine(item model.OrderItem) model.OrderLine {
	separate := t.cfg.SeparateSalesTax()
	amount := item.Total
	if !separate {
		amount = amount.Add(item.TotalTax)
	}
	line := model.OrderLine{
		Type:        model.LineTypeShippingFee,
		Reference:   truncateReference(shippingReference(item)),
		Name:        t.stripTags(item.Name),
		Quantity:    1,
		UnitPrice:   model.ToMinor(amount),
		TotalAmount: model.ToMinor(amount),
	}
	if !separate {
		line.TaxRate = taxRate(item)
		line.TotalTaxAmount = model.ToMinor(item.TotalTax)
	}
	return line
}

func (t *Translator) feeLine(item model.OrderItem) model.OrderLine {
	amount := model.ToMinor(item.Total)
	return model.OrderLine{
		Type:        model.LineTypeSurcharge,
		Reference:   referenceFee,
		Name:        t.stripTags(item.Name),
		Quantity:    1,
		UnitPrice:   amount,
		TotalAmount: amount,
	}
}

// couponLine emits smart coupons as negative discount lines. In separate sales
// tax mode every other coupon becomes a zero-amount line describing the
// discount already folded into the product lines. Remaining coupons are dropped.
func (t *Translator) couponLine(item model.OrderItem) (model.OrderLine, bool) {
	separate := t.cfg.SeparateSalesTax()
	line := model.OrderLine{
		Type:     model.LineTypeDiscount,
		Name:     t.stripTags(couponName(item)),
		Quantity: 1,
	}

	switch {
	case item.DiscountType == couponSmart:
		amount := -model.ToMinor(item.Discount)
		line.Reference = referenceDiscount
		line.UnitPrice = amount
		line.TotalAmount = amount
		if !separate {
			line.TotalTaxAmount = -model.ToMinor(item.DiscountTax)
		}
	case separate:
		line.Reference = truncateReference(couponDescription(item))
	default:
		return model.OrderLine{}, false
	}
	return line, true
}

func salesTaxLine(amount int64) model.OrderLine {
	return model.OrderLine{
		Type:        model.LineTypeSalesTax,
		Reference:   nameSalesTax,
		Name:        nameSalesTax,
		Quantity:    1,
		UnitPrice:   amount,
		TotalAmount: amount,
	}
}

func (t *Translator) productType(p *model.Product) string {
	if p == nil {
		return t.cfg.ProductTypeFallback()
	}
	if p.Virtual || p.Downloadable {
		return model.LineTypeDigital
	}
	return model.LineTypePhysical
}

// itemName appends display attributes as " [key: value, key: value]" and
// strips markup.
func (t *Translator) itemName(item model.OrderItem) string {
	name := item.Name
	if len(item.Attributes) > 0 {
		parts := make([]string, 0, len(item.Attributes))
		for _, a := range item.Attributes {
			parts = append(parts, a.Key+": "+a.Value)
		}
		name += " [" + strings.Join(parts, ", ") + "]"
	}
	return t.stripTags(name)
}

// stripTags removes all markup. bluemonday escapes entities on output, so the
// result is unescaped back to plain text.
func (t *Translator) stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(t.strict.Sanitize(s)))
}

// taxRate returns the item's tax rate in hundredths of a percent. The rate
// from the order's tax lines wins; otherwise it is derived from the amounts.
func taxRate(item model.OrderItem) int64 {
	if item.TaxRate != nil {
		return item.TaxRate.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	if !item.Subtotal.IsZero() && !item.SubtotalTax.IsZero() {
		return model.BasisPoints(item.SubtotalTax, item.Subtotal)
	}
	return model.BasisPoints(item.TotalTax, item.Total)
}

func quantity(q int) int {
	if q < 0 {
		q = -q
	}
	if q == 0 {
		return 1
	}
	return q
}

func productReference(item model.OrderItem) string {
	switch {
	case item.SKU != "":
		return item.SKU
	case item.VariationID != 0:
		return strconv.Itoa(item.VariationID)
	case item.ProductID != 0:
		return strconv.Itoa(item.ProductID)
	default:
		return item.Name
	}
}

func shippingReference(item model.OrderItem) string {
	switch {
	case item.MethodID == "":
		return item.Name
	case item.InstanceID != "":
		return item.MethodID + ":" + item.InstanceID
	default:
		return item.MethodID
	}
}

func couponName(item model.OrderItem) string {
	if item.Code != "" {
		return item.Code
	}
	return item.Name
}

func couponDescription(item model.OrderItem) string {
	var kind string
	switch item.DiscountType {
	case "fixed_cart", "percent":
		kind = "Cart discount"
	case "fixed_product", "percent_product":
		kind = "Product discount"
	default:
		kind = "Discount"
	}
	return kind + " (amount: " + item.Discount.StringFixed(2) + ", tax amount: " + item.DiscountTax.StringFixed(2) + ")"
}

// truncateReference cuts s to Klarna's reference limit without splitting a rune.
func truncateReference(s string) string {
	r := []rune(s)
	if len(r) <= model.MaxReferenceLength {
		return s
	}
	return string(r[:model.MaxReferenceLength])
}
