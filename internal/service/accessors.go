package service

import (
	"context"
	"slices"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/cache"
	"github.com/boddenberg/globalsend-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service")

// Cache keys of the ledger entities. They carry no parameters: every session
// owns its own store.
const (
	KeyProfile         cache.Key = "currentUserProfile"
	KeyBalance         cache.Key = "balance"
	KeyExchangeRates   cache.Key = "exchangeRates"
	KeyRecipients      cache.Key = "recipients"
	KeyTransferHistory cache.Key = "transferHistory"
)

// CacheKeys lists every entity key.
var CacheKeys = []cache.Key{KeyProfile, KeyBalance, KeyExchangeRates, KeyRecipients, KeyTransferHistory}

// CachePolicies returns the freshness windows of the volatile entities.
func CachePolicies(balanceMaxAge, ratesMaxAge time.Duration) []cache.Option {
	return []cache.Option{
		cache.WithMaxAge(KeyBalance, balanceMaxAge),
		cache.WithMaxAge(KeyExchangeRates, ratesMaxAge),
	}
}

// View is what an accessor hands to its caller: a displayable value that is
// never missing, plus the freshness of the entry behind it.
type View[T any] struct {
	Value     T           `json:"value"`
	Loading   bool        `json:"loading"`
	Loaded    bool        `json:"loaded"`
	State     cache.State `json:"state"`
	FetchedAt time.Time   `json:"fetchedAt"`
}

// Reader is the read side of a session: one accessor per ledger entity, all
// going through the session's cache.
type Reader struct {
	ledger port.Ledger
	store  *cache.Store
	logger *zap.Logger
}

// NewReader creates a Reader over store.
func NewReader(ledger port.Ledger, store *cache.Store, logger *zap.Logger) *Reader {
	return &Reader{ledger: ledger, store: store, logger: logger}
}

// Profile returns the caller's profile, nil until one is saved.
func (r *Reader) Profile(ctx context.Context) View[*domain.UserProfile] {
	return read(ctx, r, KeyProfile, r.ledger.GetCallerUserProfile, nil)
}

// Balance returns the caller's balance, 0 while unknown.
func (r *Reader) Balance(ctx context.Context) View[float64] {
	return read(ctx, r, KeyBalance, r.ledger.GetBalance, 0)
}

// RefreshBalance refetches the balance even when the cached one is fresh and
// waits for the answer.
func (r *Reader) RefreshBalance(ctx context.Context) View[float64] {
	if _, ok := domain.PrincipalFrom(ctx); ok {
		r.store.Invalidate(KeyBalance)
	}
	return r.Balance(ctx)
}

// Recipients returns the saved recipients in ledger order.
func (r *Reader) Recipients(ctx context.Context) View[[]domain.Recipient] {
	return read(ctx, r, KeyRecipients, r.ledger.GetRecipients, []domain.Recipient{})
}

// ExchangeRates returns the rate table. Missing currencies are left to the
// consumer, which treats them as rate 1.
func (r *Reader) ExchangeRates(ctx context.Context) View[domain.ExchangeRateTable] {
	return read(ctx, r, KeyExchangeRates, r.ledger.GetExchangeRates, domain.ExchangeRateTable{})
}

// TransferHistory returns the transfers in ledger order.
func (r *Reader) TransferHistory(ctx context.Context) View[[]domain.Transfer] {
	return read(ctx, r, KeyTransferHistory, r.ledger.GetTransferHistory, []domain.Transfer{})
}

// PeekProfile is the non-blocking form of Profile.
func (r *Reader) PeekProfile(ctx context.Context) View[*domain.UserProfile] {
	return peek(ctx, r, KeyProfile, r.ledger.GetCallerUserProfile, nil)
}

// PeekBalance is the non-blocking form of Balance.
func (r *Reader) PeekBalance(ctx context.Context) View[float64] {
	return peek(ctx, r, KeyBalance, r.ledger.GetBalance, 0)
}

// PeekRecipients is the non-blocking form of Recipients.
func (r *Reader) PeekRecipients(ctx context.Context) View[[]domain.Recipient] {
	return peek(ctx, r, KeyRecipients, r.ledger.GetRecipients, []domain.Recipient{})
}

// PeekExchangeRates is the non-blocking form of ExchangeRates.
func (r *Reader) PeekExchangeRates(ctx context.Context) View[domain.ExchangeRateTable] {
	return peek(ctx, r, KeyExchangeRates, r.ledger.GetExchangeRates, domain.ExchangeRateTable{})
}

// PeekTransferHistory is the non-blocking form of TransferHistory.
func (r *Reader) PeekTransferHistory(ctx context.Context) View[[]domain.Transfer] {
	return peek(ctx, r, KeyTransferHistory, r.ledger.GetTransferHistory, []domain.Transfer{})
}

// Role returns the caller's ledger role. It is not cached and nothing in the
// transfer flow depends on it.
func (r *Reader) Role(ctx context.Context) (domain.UserRole, error) {
	if err := requirePrincipal(ctx, "getCallerUserRole"); err != nil {
		return "", err
	}
	return r.ledger.GetCallerUserRole(ctx)
}

// History returns the transfers newest first.
func (r *Reader) History(ctx context.Context) View[[]domain.Transfer] {
	v := r.TransferHistory(ctx)
	v.Value = newestFirst(v.Value)
	return v
}

// ProfileSetupRequired reports whether the ledger confirmed that the caller
// has no profile. It is false while the profile is still unknown.
func (r *Reader) ProfileSetupRequired(ctx context.Context) bool {
	v := r.Profile(ctx)
	return v.Loaded && !v.Loading && v.Value == nil
}

func newestFirst(in []domain.Transfer) []domain.Transfer {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b domain.Transfer) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return out
}

// read is the blocking read-through used by every accessor. Failures are
// logged and degrade to the last known value or def.
func read[T any](ctx context.Context, r *Reader, key cache.Key, load func(context.Context) (T, error), def T) View[T] {
	ctx, span := tracer.Start(ctx, "Reader."+string(key))
	defer span.End()

	if _, ok := domain.PrincipalFrom(ctx); !ok {
		return View[T]{Value: def, State: cache.StateEmpty}
	}

	e, err := cache.Fetch(ctx, r.store, key, load)
	if err != nil {
		r.logger.Warn("ledger read degraded",
			zap.String("key", string(key)),
			zap.Bool("has_previous", e.HasValue),
			zap.Error(err),
		)
	}
	return viewOf(e, def)
}

// peek serves the cached value at once and revalidates in the background.
func peek[T any](ctx context.Context, r *Reader, key cache.Key, load func(context.Context) (T, error), def T) View[T] {
	if _, ok := domain.PrincipalFrom(ctx); !ok {
		return View[T]{Value: def, State: cache.StateEmpty}
	}
	return viewOf(cache.Refresh(ctx, r.store, key, load), def)
}

func viewOf[T any](e cache.Entry[T], def T) View[T] {
	v := View[T]{
		Value:     def,
		Loading:   e.State == cache.StateLoading,
		Loaded:    e.HasValue,
		State:     e.State,
		FetchedAt: e.FetchedAt,
	}
	if e.HasValue {
		v.Value = e.Value
	}
	return v
}
