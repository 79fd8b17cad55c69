// Package money holds the fee, conversion and display rules for transfers.
// Everything here is pure and works on shopspring decimals.
package money

import (
	"strings"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// FlatFee is charged on every transfer, in source-currency units.
	FlatFee = decimal.NewFromInt(2)
	// PercentageFee is charged on the sent amount.
	PercentageFee = decimal.RequireFromString("0.01")
)

// RateDecimals is the precision used to display an implied exchange rate.
const RateDecimals = 4

var printer = message.NewPrinter(language.AmericanEnglish)

// Fee returns FlatFee + amount*PercentageFee.
func Fee(amount decimal.Decimal) decimal.Decimal {
	return FlatFee.Add(amount.Mul(PercentageFee))
}

// Total is the amount debited from the sender: amount plus fee.
func Total(amount decimal.Decimal) decimal.Decimal {
	return amount.Add(Fee(amount))
}

// rateOf reads code from the table. Missing and non-positive rates count as 1.
func rateOf(table domain.ExchangeRateTable, code string) decimal.Decimal {
	r, ok := table[code]
	if !ok || r <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(r)
}

// Convert converts amount from src to dst through the table's base unit:
// amount / rate(src) * rate(dst).
func Convert(amount decimal.Decimal, src, dst string, table domain.ExchangeRateTable) decimal.Decimal {
	if src == dst {
		return amount
	}
	// Multiplying first keeps the result exact whenever it is representable.
	return amount.Mul(rateOf(table, dst)).Div(rateOf(table, src))
}

// ImpliedRate is the number of dst units one src unit buys.
func ImpliedRate(src, dst string, table domain.ExchangeRateTable) decimal.Decimal {
	if src == dst {
		return decimal.NewFromInt(1)
	}
	return rateOf(table, dst).Div(rateOf(table, src))
}

// FormatRate renders a rate with RateDecimals places.
func FormatRate(rate decimal.Decimal) string {
	return rate.StringFixed(RateDecimals)
}

// DisplayPlaces is the number of decimals shown for ccy.
func DisplayPlaces(ccy string) int32 {
	switch ccy {
	case "JPY", "NGN":
		return 0
	default:
		return 2
	}
}

// Round rounds amount to the display precision of ccy.
func Round(amount decimal.Decimal, ccy string) decimal.Decimal {
	return amount.Round(DisplayPlaces(ccy))
}

// FormatAmount renders amount with the currency symbol and en-US grouping,
// e.g. "$1,234.50" or "¥1,500".
func FormatAmount(amount decimal.Decimal, ccy string) string {
	info := domain.LookupCurrency(ccy)
	places := DisplayPlaces(ccy)
	v := amount.Round(places).InexactFloat64()
	if places == 0 {
		return info.Symbol + printer.Sprintf("%.0f", v)
	}
	return info.Symbol + printer.Sprintf("%.2f", v)
}

// FormatDate renders a nanosecond epoch timestamp as "Jan 2, 2006" (UTC).
func FormatDate(nanos int64) string {
	return time.Unix(0, nanos).UTC().Format("Jan 2, 2006")
}

// MaskAccount hides all but the last four characters of an account number.
func MaskAccount(account string) string {
	r := []rune(account)
	if len(r) > 4 {
		r = r[len(r)-4:]
	}
	return strings.Repeat("•", 4) + string(r)
}
