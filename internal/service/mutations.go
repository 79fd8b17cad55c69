package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/cache"
	"github.com/boddenberg/globalsend-bfa-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EffectKind is the action an Effect performs on the cache.
type EffectKind int

const (
	EffectInvalidate EffectKind = iota
	EffectSet
)

// Effect is one cache change requested by a successful mutation.
type Effect struct {
	Kind  EffectKind
	Key   cache.Key
	Value any
}

// Effects is the ordered list of cache changes of a mutation.
type Effects []Effect

// Invalidate asks for key to be refetched on its next read.
func Invalidate(key cache.Key) Effect {
	return Effect{Kind: EffectInvalidate, Key: key}
}

// Set patches key with value without a round trip.
func Set(key cache.Key, value any) Effect {
	return Effect{Kind: EffectSet, Key: key, Value: value}
}

// ApplyEffects is the only place where mutations touch the cache.
func ApplyEffects(store *cache.Store, effects Effects) {
	for _, e := range effects {
		switch e.Kind {
		case EffectInvalidate:
			store.Invalidate(e.Key)
		case EffectSet:
			store.Set(e.Key, e.Value)
		}
	}
}

func requirePrincipal(ctx context.Context, op string) error {
	if _, ok := domain.PrincipalFrom(ctx); !ok {
		return &domain.ErrRemoteUnavailable{Operation: op}
	}
	return nil
}

// SaveProfile stores the caller's profile and patches the cached copy.
func SaveProfile(ctx context.Context, ledger port.Ledger, profile domain.UserProfile) (Effects, error) {
	if err := requirePrincipal(ctx, "saveCallerUserProfile"); err != nil {
		return nil, err
	}
	if err := ledger.SaveCallerUserProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	saved := profile
	return Effects{Set(KeyProfile, &saved)}, nil
}

// AddRecipient saves a recipient. The list is refetched rather than patched
// since the ledger may normalize or deduplicate it.
func AddRecipient(ctx context.Context, ledger port.Ledger, recipient domain.Recipient) (Effects, error) {
	if err := requirePrincipal(ctx, "addRecipient"); err != nil {
		return nil, err
	}
	if err := ledger.AddRecipient(ctx, recipient); err != nil {
		return nil, fmt.Errorf("add recipient: %w", err)
	}
	return Effects{Invalidate(KeyRecipients)}, nil
}

// SubmitTransfer submits a transfer and returns the ledger's transfer id.
func SubmitTransfer(ctx context.Context, ledger port.Ledger, req domain.TransferRequest) (uint64, Effects, error) {
	if err := requirePrincipal(ctx, "transferMoney"); err != nil {
		return 0, nil, err
	}
	id, err := ledger.TransferMoney(ctx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("submit transfer: %w", err)
	}
	return id, Effects{Invalidate(KeyTransferHistory), Invalidate(KeyBalance)}, nil
}

// MutationRecorder counts mutation outcomes.
type MutationRecorder interface {
	RecordMutation(operation string, err error)
}

// Mutator runs mutations for one session and applies their effects.
type Mutator struct {
	ledger  port.Ledger
	store   *cache.Store
	metrics MutationRecorder
	logger  *zap.Logger
}

// NewMutator creates a Mutator. metrics may be nil.
func NewMutator(ledger port.Ledger, store *cache.Store, metrics MutationRecorder, logger *zap.Logger) *Mutator {
	return &Mutator{ledger: ledger, store: store, metrics: metrics, logger: logger}
}

// SaveProfile runs SaveProfile and applies its effects.
func (m *Mutator) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	ctx, span := tracer.Start(ctx, "Mutator.SaveProfile")
	defer span.End()

	effects, err := SaveProfile(ctx, m.ledger, profile)
	m.finish("saveProfile", effects, err)
	return err
}

// AddRecipient runs AddRecipient and applies its effects.
func (m *Mutator) AddRecipient(ctx context.Context, recipient domain.Recipient) error {
	ctx, span := tracer.Start(ctx, "Mutator.AddRecipient")
	defer span.End()

	effects, err := AddRecipient(ctx, m.ledger, recipient)
	m.finish("addRecipient", effects, err)
	return err
}

// SubmitTransfer runs SubmitTransfer and applies its effects.
func (m *Mutator) SubmitTransfer(ctx context.Context, req domain.TransferRequest) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Mutator.SubmitTransfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer.source_currency", req.SourceCurrency),
		attribute.String("transfer.dest_currency", req.DestCurrency),
	)

	id, effects, err := SubmitTransfer(ctx, m.ledger, req)
	m.finish("submitTransfer", effects, err)
	return id, err
}

func (m *Mutator) finish(op string, effects Effects, err error) {
	if m.metrics != nil {
		m.metrics.RecordMutation(op, err)
	}
	if err != nil {
		m.logger.Warn("mutation failed", zap.String("operation", op), zap.Error(err))
		return
	}
	ApplyEffects(m.store, effects)
	m.logger.Debug("mutation applied",
		zap.String("operation", op),
		zap.Int("effects", len(effects)),
	)
}
