package service

import (
	"context"
	"strings"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/money"

	"github.com/shopspring/decimal"
)

// Quote prices an amount outside of any draft, from cached rates only.
// An empty amount quotes zero.
func (r *Reader) Quote(ctx context.Context, amount, src, dst string) (money.Quote, error) {
	value := decimal.Zero
	if strings.TrimSpace(amount) != "" {
		v, ok := domain.ParseAmount(amount)
		if !ok {
			return money.Quote{}, &domain.ErrValidation{Field: "amount", Message: "must be a number greater than 0"}
		}
		value = v
	}

	src = strings.ToUpper(strings.TrimSpace(src))
	dst = strings.ToUpper(strings.TrimSpace(dst))
	if src == "" {
		src = domain.DefaultSourceCurrency
	}
	if dst == "" {
		dst = domain.DefaultDestCurrency
	}

	rates := r.PeekExchangeRates(ctx)
	return money.NewQuote(value, src, dst, rates.Value, rates.Loaded), nil
}
