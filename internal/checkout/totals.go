package checkout

import (
	"github.com/angelmondragon/localdrop/internal/gateway"
	"github.com/shopspring/decimal"
)

// Quote is the staged cart priced for checkout.
type Quote struct {
	Lines     []gateway.CartLine
	ItemTotal decimal.Decimal
	Delivery  decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
	TaxName   string
	Currency  string
}

func quoteFromSummary(lines []gateway.CartLine, s gateway.CartSummary) Quote {
	return Quote{
		Lines:     lines,
		ItemTotal: s.ItemTotal.Decimal,
		Delivery:  s.DeliveryCharge.Decimal,
		Discount:  s.Discount.Decimal,
		Tax:       s.TaxValue.Decimal,
		TaxName:   s.TaxName,
		Currency:  s.Currency,
	}
}

// Total never goes below zero.
func (q Quote) Total() decimal.Decimal {
	total := q.ItemTotal.Add(q.Delivery).Add(q.Tax).Sub(q.Discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// storeTax is round(itemTotal * rate / 100).
func storeTax(itemTotal, rate decimal.Decimal) decimal.Decimal {
	return itemTotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(0)
}

// Totals is what the checkout view displays.
type Totals struct {
	Total         decimal.Decimal
	Payable       decimal.Decimal
	ECash         decimal.Decimal
	WalletDisplay decimal.Decimal
	ECashEnabled  bool
}

// offset applies up to the whole total from the wallet when enabled.
func offset(total, wallet decimal.Decimal, enabled bool) Totals {
	t := Totals{Total: total, Payable: total, WalletDisplay: wallet, ECash: decimal.Zero, ECashEnabled: enabled}
	if !enabled || !wallet.IsPositive() {
		return t
	}
	applied := decimal.Min(total, wallet)
	t.ECash = applied
	t.Payable = total.Sub(applied)
	t.WalletDisplay = wallet.Sub(applied)
	return t
}
