package service

import (
	"context"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/money"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// RecentTransferLimit is how many transfers the dashboard lists.
const RecentTransferLimit = 5

// Dashboard is the landing view of a session. Each part becomes ready on its
// own; none waits for the others.
type Dashboard struct {
	Profile              View[*domain.UserProfile] `json:"profile"`
	ProfileSetupRequired bool                      `json:"profileSetupRequired"`
	Balance              View[float64]             `json:"balance"`
	RecentTransfers      View[[]TransferRow]       `json:"recentTransfers"`
}

// TransferRow is a transfer with its display strings.
type TransferRow struct {
	domain.Transfer
	Sent          string `json:"sent"`
	Received      string `json:"received"`
	Date          string `json:"date"`
	StatusLabel   string `json:"statusLabel"`
	MaskedAccount string `json:"maskedAccount"`
}

func rowOf(t domain.Transfer) TransferRow {
	return TransferRow{
		Transfer:      t,
		Sent:          money.FormatAmount(decimal.NewFromFloat(t.Amount), t.SourceCurrency),
		Received:      money.FormatAmount(decimal.NewFromFloat(t.ReceivedAmount()), t.DestinationCurrency),
		Date:          money.FormatDate(t.Timestamp),
		StatusLabel:   t.StatusLabel(),
		MaskedAccount: money.MaskAccount(t.Recipient.AccountNumber),
	}
}

// HistoryRows returns the transfer history newest first, ready for display.
func (r *Reader) HistoryRows(ctx context.Context) View[[]TransferRow] {
	return rowsOf(r.History(ctx), -1)
}

func rowsOf(v View[[]domain.Transfer], limit int) View[[]TransferRow] {
	src := v.Value
	if limit >= 0 && len(src) > limit {
		src = src[:limit]
	}
	rows := make([]TransferRow, 0, len(src))
	for _, t := range src {
		rows = append(rows, rowOf(t))
	}
	return View[[]TransferRow]{
		Value:     rows,
		Loading:   v.Loading,
		Loaded:    v.Loaded,
		State:     v.State,
		FetchedAt: v.FetchedAt,
	}
}

// Dashboard loads profile, balance and recent transfers concurrently.
func (r *Reader) Dashboard(ctx context.Context) Dashboard {
	ctx, span := tracer.Start(ctx, "Reader.Dashboard")
	defer span.End()

	var (
		d       Dashboard
		history View[[]domain.Transfer]
	)

	var g errgroup.Group
	g.Go(func() error {
		d.Profile = r.Profile(ctx)
		return nil
	})
	g.Go(func() error {
		d.Balance = r.Balance(ctx)
		return nil
	})
	g.Go(func() error {
		history = r.History(ctx)
		return nil
	})
	_ = g.Wait()

	d.ProfileSetupRequired = d.Profile.Loaded && !d.Profile.Loading && d.Profile.Value == nil
	d.RecentTransfers = rowsOf(history, RecentTransferLimit)
	return d
}
