package money

import (
	"github.com/boddenberg/globalsend-bfa-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Quote is the fee breakdown and conversion for a draft amount.
type Quote struct {
	Amount         decimal.Decimal `json:"amount"`
	SourceCurrency string          `json:"sourceCurrency"`
	DestCurrency   string          `json:"destCurrency"`
	Fee            decimal.Decimal `json:"fee"`
	Total          decimal.Decimal `json:"total"`
	Converted      decimal.Decimal `json:"converted"`
	Rate           decimal.Decimal `json:"rate"`
	RatesReady     bool            `json:"ratesReady"`
	Display        QuoteDisplay    `json:"display"`
}

// QuoteDisplay holds the formatted strings shown on the amount and review steps.
type QuoteDisplay struct {
	Send    string `json:"send"`
	Fee     string `json:"fee"`
	Total   string `json:"total"`
	Receive string `json:"receive"`
	Rate    string `json:"rate"`
}

// NewQuote derives a quote from an amount and a rate table snapshot.
// ratesReady is false while no table has been loaded; the converted amount and
// rate are then zero and the rate reads "Loading rate...".
func NewQuote(amount decimal.Decimal, src, dst string, table domain.ExchangeRateTable, ratesReady bool) Quote {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	q := Quote{
		Amount:         amount,
		SourceCurrency: src,
		DestCurrency:   dst,
		Fee:            Fee(amount),
		Total:          Total(amount),
		Converted:      decimal.Zero,
		Rate:           decimal.Zero,
		RatesReady:     ratesReady,
	}
	if ratesReady {
		q.Rate = ImpliedRate(src, dst, table)
		if amount.IsPositive() {
			q.Converted = Convert(amount, src, dst, table)
		}
	}

	q.Display = QuoteDisplay{
		Send:  FormatAmount(q.Amount, src),
		Fee:   FormatAmount(q.Fee, src),
		Total: FormatAmount(q.Total, src),
	}
	if q.Converted.IsPositive() {
		q.Display.Receive = "≈ " + FormatAmount(q.Converted, dst)
	} else {
		q.Display.Receive = "—"
	}
	if q.Rate.IsPositive() {
		q.Display.Rate = "1 " + src + " = " + FormatRate(q.Rate) + " " + dst
	} else {
		q.Display.Rate = "Loading rate..."
	}
	return q
}
