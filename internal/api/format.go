package api

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// dashboard amounts are shown in whole dollars
var wholeDollars = money.NewFormatter(0, ".", ",", "$", "$1")

// FormatCurrency renders an amount as whole US dollars, e.g. "$1,550" or "-$145"
func FormatCurrency(amount decimal.Decimal) string {
	return wholeDollars.Format(amount.Round(0).IntPart())
}

// FormatPrice renders a per-share price with cents, e.g. "$65.12"
func FormatPrice(price float64) string {
	cents := decimal.NewFromFloat(price).Shift(2).Round(0).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatPercentage renders a percentage with one decimal, e.g. "3.3%"
func FormatPercentage(pct decimal.Decimal) string {
	return pct.StringFixed(1) + "%"
}
