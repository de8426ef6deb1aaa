package orderlines

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kom-bridge/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rate(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var (
	usStore = model.TransformConfig{StoreCountry: "US"}
	seStore = model.TransformConfig{StoreCountry: "SE"}
)

func shirt() model.OrderItem {
	return model.OrderItem{
		ID:          10,
		Kind:        model.ItemProduct,
		Name:        "T-Shirt",
		Quantity:    2,
		Subtotal:    d("39.98"),
		SubtotalTax: d("2.00"),
		Total:       d("39.98"),
		TotalTax:    d("2.00"),
		TaxRate:     rate("10"),
		SKU:         "SHIRT",
		ProductID:   7,
		Product:     &model.Product{ID: 7},
	}
}

func TestTranslate_SeparateSalesTax(t *testing.T) {
	order := &model.Order{Items: []model.OrderItem{shirt()}, CartTax: d("2.00")}

	got := New(usStore).Translate(order)

	require.Len(t, got.OrderLines, 2)
	assert.Equal(t, model.OrderLine{
		Type:        model.LineTypePhysical,
		Reference:   "SHIRT",
		Name:        "T-Shirt",
		Quantity:    2,
		UnitPrice:   1999,
		TotalAmount: 3998,
	}, got.OrderLines[0])
	assert.Equal(t, model.OrderLine{
		Type:        model.LineTypeSalesTax,
		Reference:   "Sales Tax",
		Name:        "Sales Tax",
		Quantity:    1,
		UnitPrice:   200,
		TotalAmount: 200,
	}, got.OrderLines[1])
	assert.Equal(t, int64(4198), got.OrderAmount)
	assert.Equal(t, int64(200), got.OrderTaxAmount)
}

func TestTranslate_TaxInclusive(t *testing.T) {
	order := &model.Order{Items: []model.OrderItem{shirt()}, CartTax: d("2.00")}

	got := New(seStore).Translate(order)

	require.Len(t, got.OrderLines, 1)
	line := got.OrderLines[0]
	assert.Equal(t, int64(1000), line.TaxRate)
	assert.Equal(t, int64(200), line.TotalTaxAmount)
	assert.Equal(t, int64(4198), line.TotalAmount)
	assert.Equal(t, int64(2099), line.UnitPrice)
	assert.Equal(t, int64(4198), got.OrderAmount)
	assert.Equal(t, int64(200), got.OrderTaxAmount)
}

func TestTranslate_ProductAmounts(t *testing.T) {
	discounted := model.OrderItem{
		Kind:        model.ItemProduct,
		Name:        "Jacket",
		Quantity:    1,
		Subtotal:    d("100"),
		SubtotalTax: d("25"),
		Total:       d("80"),
		TotalTax:    d("20"),
		SKU:         "JACKET",
		Product:     &model.Product{},
	}

	tests := []struct {
		name string
		cfg  model.TransformConfig
		item model.OrderItem
		want model.OrderLine
	}{
		{
			name: "discount tax inclusive",
			cfg:  seStore,
			item: discounted,
			want: model.OrderLine{
				Type: "physical", Reference: "JACKET", Name: "Jacket", Quantity: 1,
				UnitPrice: 12500, TaxRate: 2500, TotalAmount: 10000,
				TotalDiscountAmount: 2500, TotalTaxAmount: 2000,
			},
		},
		{
			name: "discount separate sales tax",
			cfg:  usStore,
			item: discounted,
			want: model.OrderLine{
				Type: "physical", Reference: "JACKET", Name: "Jacket", Quantity: 1,
				UnitPrice: 10000, TotalAmount: 8000, TotalDiscountAmount: 2000,
			},
		},
		{
			name: "zero quantity defaults to one",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Gift", Subtotal: d("5"), Total: d("5"), ProductID: 3, Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "3", Name: "Gift", Quantity: 1,
				UnitPrice: 500, TotalAmount: 500,
			},
		},
		{
			name: "negative quantity is absolute",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Cup", Quantity: -3, Subtotal: d("3"), Total: d("3"), VariationID: 44, ProductID: 4, Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "44", Name: "Cup", Quantity: 3,
				UnitPrice: 100, TotalAmount: 300,
			},
		},
		{
			name: "half cent unit price rounds away from zero",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Pen", Quantity: 2, Subtotal: d("0.05"), Total: d("0.05"), SKU: "PEN", Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "PEN", Name: "Pen", Quantity: 2,
				UnitPrice: 3, TotalAmount: 5, TotalDiscountAmount: 1,
			},
		},
		{
			name: "uneven split moves surplus into discount",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Mug", Quantity: 3, Subtotal: d("10.00"), Total: d("10.00"), SKU: "MUG", Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "MUG", Name: "Mug", Quantity: 3,
				UnitPrice: 334, TotalAmount: 1000, TotalDiscountAmount: 2,
			},
		},
		{
			name: "uneven split over large quantity",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Clip", Quantity: 7, Subtotal: d("1.00"), Total: d("1.00"), SKU: "CLIP", Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "CLIP", Name: "Clip", Quantity: 7,
				UnitPrice: 15, TotalAmount: 100, TotalDiscountAmount: 5,
			},
		},
		{
			name: "uneven split keeps coupon discount",
			cfg:  seStore,
			item: model.OrderItem{Kind: model.ItemProduct, Name: "Mug", Quantity: 3, Subtotal: d("10.00"), Total: d("9.00"), SKU: "MUG", Product: &model.Product{}},
			want: model.OrderLine{
				Type: "physical", Reference: "MUG", Name: "Mug", Quantity: 3,
				UnitPrice: 334, TotalAmount: 900, TotalDiscountAmount: 102,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.cfg).Translate(&model.Order{Items: []model.OrderItem{tt.item}})
			require.NotEmpty(t, got.OrderLines)
			assert.Equal(t, tt.want, got.OrderLines[0])
		})
	}
}

func TestTranslate_TaxRateDerivation(t *testing.T) {
	tests := []struct {
		name string
		item model.OrderItem
		want int64
	}{
		{"rate from tax lines", model.OrderItem{Subtotal: d("40"), SubtotalTax: d("4"), Total: d("40"), TotalTax: d("4"), TaxRate: rate("12.5")}, 1250},
		{"derived from subtotal", model.OrderItem{Subtotal: d("40"), SubtotalTax: d("10"), Total: d("40"), TotalTax: d("10")}, 2500},
		{"derived from total", model.OrderItem{Total: d("10"), TotalTax: d("0.60")}, 600},
		{"untaxed", model.OrderItem{Subtotal: d("10"), Total: d("10")}, 0},
		{"free item", model.OrderItem{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, taxRate(tt.item))
		})
	}
}

func TestTranslate_ProductType(t *testing.T) {
	tests := []struct {
		name    string
		cfg     model.TransformConfig
		product *model.Product
		want    string
	}{
		{"physical", seStore, &model.Product{}, model.LineTypePhysical},
		{"virtual", seStore, &model.Product{Virtual: true}, model.LineTypeDigital},
		{"downloadable", seStore, &model.Product{Downloadable: true}, model.LineTypeDigital},
		{"deleted product uses physical", seStore, nil, model.LineTypePhysical},
		{"deleted product uses configured default", model.TransformConfig{DefaultProductType: model.LineTypeDigital}, nil, model.LineTypeDigital},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := model.OrderItem{Kind: model.ItemProduct, Name: "x", Quantity: 1, Product: tt.product}
			got := New(tt.cfg).Translate(&model.Order{Items: []model.OrderItem{item}})
			assert.Equal(t, tt.want, got.OrderLines[0].Type)
		})
	}
}

func TestTranslate_ReferenceAndName(t *testing.T) {
	long := strings.Repeat("é", 70)
	item := model.OrderItem{
		Kind:     model.ItemProduct,
		Name:     "<b>Hoodie</b> & Co",
		Quantity: 1,
		SKU:      long,
		Attributes: []model.Attribute{
			{Key: "Size", Value: "L"},
			{Key: "Color", Value: "<i>Blue</i>"},
		},
	}

	got := New(seStore).Translate(&model.Order{Items: []model.OrderItem{item}})

	line := got.OrderLines[0]
	assert.Equal(t, strings.Repeat("é", 64), line.Reference)
	assert.Equal(t, "Hoodie & Co [Size: L, Color: Blue]", line.Name)
}

func TestTranslate_ProductURLs(t *testing.T) {
	item := shirt()
	item.Product = &model.Product{Permalink: "https://shop.example/p/shirt", ImageURL: "https://shop.example/img/shirt.jpg"}
	order := &model.Order{Items: []model.OrderItem{item}}

	cfg := seStore
	cfg.SendProductURLs = true
	line := New(cfg).Translate(order).OrderLines[0]
	assert.Equal(t, "https://shop.example/p/shirt", line.ProductURL)
	assert.Equal(t, "https://shop.example/img/shirt.jpg", line.ImageURL)

	line = New(seStore).Translate(order).OrderLines[0]
	assert.Empty(t, line.ProductURL)
	assert.Empty(t, line.ImageURL)

	item.Product = nil
	line = New(cfg).Translate(&model.Order{Items: []model.OrderItem{item}}).OrderLines[0]
	assert.Empty(t, line.ProductURL)
}

func TestTranslate_Shipping(t *testing.T) {
	flat := model.OrderItem{
		Kind: model.ItemShipping, Name: "Flat rate", MethodID: "flat_rate", InstanceID: "3",
		Total: d("10.00"), TotalTax: d("2.50"),
	}
	free := model.OrderItem{Kind: model.ItemShipping, Name: "Free shipping", MethodID: "free_shipping"}

	got := New(seStore).Translate(&model.Order{Items: []model.OrderItem{flat, free}})
	require.Len(t, got.OrderLines, 2)
	assert.Equal(t, model.OrderLine{
		Type: model.LineTypeShippingFee, Reference: "flat_rate:3", Name: "Flat rate", Quantity: 1,
		UnitPrice: 1250, TaxRate: 2500, TotalAmount: 1250, TotalTaxAmount: 250,
	}, got.OrderLines[0])
	assert.Equal(t, "free_shipping", got.OrderLines[1].Reference)
	assert.Zero(t, got.OrderLines[1].TotalAmount)

	got = New(usStore).Translate(&model.Order{Items: []model.OrderItem{flat}, ShippingTax: d("2.50")})
	require.Len(t, got.OrderLines, 2)
	assert.Equal(t, int64(1000), got.OrderLines[0].TotalAmount)
	assert.Zero(t, got.OrderLines[0].TaxRate)
	assert.Zero(t, got.OrderLines[0].TotalTaxAmount)
	assert.Equal(t, int64(250), got.OrderLines[1].TotalAmount)
}

func TestTranslate_Fee(t *testing.T) {
	fee := model.OrderItem{Kind: model.ItemFee, Name: "Gift wrap", Total: d("4.99"), TotalTax: d("1.25")}

	got := New(seStore).Translate(&model.Order{Items: []model.OrderItem{fee}})

	assert.Equal(t, []model.OrderLine{{
		Type: model.LineTypeSurcharge, Reference: "Fee", Name: "Gift wrap", Quantity: 1,
		UnitPrice: 499, TotalAmount: 499,
	}}, got.OrderLines)
	assert.Zero(t, got.OrderTaxAmount)
}

func TestTranslate_Coupons(t *testing.T) {
	coupon := func(discountType string) model.OrderItem {
		return model.OrderItem{
			Kind: model.ItemCoupon, Code: "spring", DiscountType: discountType,
			Discount: d("10"), DiscountTax: d("2.5"),
		}
	}

	tests := []struct {
		name   string
		cfg    model.TransformConfig
		item   model.OrderItem
		want   *model.OrderLine
		amount int64
	}{
		{
			name: "smart coupon tax inclusive",
			cfg:  seStore,
			item: coupon("smart_coupon"),
			want: &model.OrderLine{
				Type: "discount", Reference: "Discount", Name: "spring", Quantity: 1,
				UnitPrice: -1000, TotalAmount: -1000, TotalTaxAmount: -250,
			},
		},
		{
			name: "smart coupon separate sales tax",
			cfg:  usStore,
			item: coupon("smart_coupon"),
			want: &model.OrderLine{
				Type: "discount", Reference: "Discount", Name: "spring", Quantity: 1,
				UnitPrice: -1000, TotalAmount: -1000,
			},
		},
		{
			name: "cart coupon separate sales tax is informational",
			cfg:  usStore,
			item: coupon("fixed_cart"),
			want: &model.OrderLine{
				Type: "discount", Reference: "Cart discount (amount: 10.00, tax amount: 2.50)",
				Name: "spring", Quantity: 1,
			},
		},
		{
			name: "product coupon separate sales tax is informational",
			cfg:  usStore,
			item: coupon("percent_product"),
			want: &model.OrderLine{
				Type: "discount", Reference: "Product discount (amount: 10.00, tax amount: 2.50)",
				Name: "spring", Quantity: 1,
			},
		},
		{
			name: "unknown coupon type separate sales tax",
			cfg:  usStore,
			item: coupon("bogo"),
			want: &model.OrderLine{
				Type: "discount", Reference: "Discount (amount: 10.00, tax amount: 2.50)",
				Name: "spring", Quantity: 1,
			},
		},
		{
			name: "regular coupon tax inclusive is dropped",
			cfg:  seStore,
			item: coupon("percent"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.cfg).Translate(&model.Order{Items: []model.OrderItem{tt.item}})
			lines := got.OrderLines
			if tt.cfg.SeparateSalesTax() {
				require.NotEmpty(t, lines)
				lines = lines[:len(lines)-1]
			}
			if tt.want == nil {
				assert.Empty(t, lines)
				return
			}
			require.Len(t, lines, 1)
			assert.Equal(t, *tt.want, lines[0])
		})
	}
}

func TestTranslate_SalesTaxLineAlwaysAppended(t *testing.T) {
	got := New(usStore).Translate(&model.Order{})

	require.Len(t, got.OrderLines, 1)
	assert.Equal(t, model.LineTypeSalesTax, got.OrderLines[0].Type)
	assert.Zero(t, got.OrderLines[0].TotalAmount)
	assert.Zero(t, got.OrderAmount)
}

func TestTranslate_EmptyOrderTaxInclusive(t *testing.T) {
	got := New(seStore).Translate(&model.Order{})

	assert.NotNil(t, got.OrderLines)
	assert.Empty(t, got.OrderLines)
	assert.Zero(t, got.OrderAmount)
}

func TestTranslate_Deterministic(t *testing.T) {
	order := randomOrder(rand.New(rand.NewSource(7)))
	tr := New(seStore)

	first, err := json.Marshal(tr.Translate(order))
	require.NoError(t, err)
	second, err := json.Marshal(tr.Translate(order))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

// TestTranslate_Invariants checks the rounding and totals contract on
// generated orders in both tax modes.
func TestTranslate_Invariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		order := randomOrder(rnd)

		inclusive := New(seStore).Translate(order)
		var sum, taxSum int64
		for _, line := range inclusive.OrderLines {
			sum += line.TotalAmount
			taxSum += line.TotalTaxAmount
			if line.Type == model.LineTypePhysical || line.Type == model.LineTypeDigital {
				assert.Equal(t, line.TotalAmount, int64(line.Quantity)*line.UnitPrice-line.TotalDiscountAmount, "line %+v", line)
				assert.GreaterOrEqual(t, line.TotalDiscountAmount, int64(0), "line %+v", line)
			}
		}
		assert.Equal(t, inclusive.OrderAmount, sum)
		assert.Equal(t, inclusive.OrderTaxAmount, taxSum)

		separate := New(usStore).Translate(order)
		salesTax := 0
		for _, line := range separate.OrderLines {
			if line.Type == model.LineTypeSalesTax {
				salesTax++
				assert.Equal(t, model.ToMinor(order.CartTax.Add(order.ShippingTax)), line.TotalAmount)
				continue
			}
			assert.Zero(t, line.TaxRate, "line %+v", line)
			assert.Zero(t, line.TotalTaxAmount, "line %+v", line)
		}
		assert.Equal(t, 1, salesTax)
	}
}

func randomOrder(rnd *rand.Rand) *model.Order {
	rates := []string{"0", "6", "12.5", "20", "25"}
	discounts := []string{"0", "0.1", "0.15"}

	order := &model.Order{}
	n := 1 + rnd.Intn(4)
	for i := 0; i < n; i++ {
		r := d(rates[rnd.Intn(len(rates))])
		pct := d(discounts[rnd.Intn(len(discounts))])
		subtotal := decimal.New(int64(1+rnd.Intn(100000)), -2)
		total := subtotal.Mul(decimal.NewFromInt(1).Sub(pct))
		subtotalTax := subtotal.Mul(r).Div(decimal.NewFromInt(100))
		totalTax := total.Mul(r).Div(decimal.NewFromInt(100))
		order.Items = append(order.Items, model.OrderItem{
			ID:          i + 1,
			Kind:        model.ItemProduct,
			Name:        "item",
			Quantity:    1 + rnd.Intn(5),
			Subtotal:    subtotal,
			SubtotalTax: subtotalTax,
			Total:       total,
			TotalTax:    totalTax,
			ProductID:   100 + i,
			Product:     &model.Product{Virtual: rnd.Intn(2) == 0},
		})
		order.CartTax = order.CartTax.Add(totalTax)
	}
	shipTax := decimal.New(int64(rnd.Intn(300)), -2)
	order.Items = append(order.Items, model.OrderItem{
		Kind: model.ItemShipping, Name: "Flat rate", MethodID: "flat_rate",
		Total: decimal.New(int64(rnd.Intn(2000)), -2), TotalTax: shipTax,
	})
	order.ShippingTax = shipTax
	return order
}
