// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
)

// Ledger is the remote ledger service as seen by one authenticated caller.
// The caller's identity travels in ctx (see domain.WithPrincipal); calls made
// without one fail with *domain.ErrRemoteUnavailable.
type Ledger interface {
	// GetCallerUserProfile returns nil when the caller has not saved a profile yet.
	GetCallerUserProfile(ctx context.Context) (*domain.UserProfile, error)
	SaveCallerUserProfile(ctx context.Context, profile domain.UserProfile) error
	GetCallerUserRole(ctx context.Context) (domain.UserRole, error)

	GetBalance(ctx context.Context) (float64, error)
	GetExchangeRates(ctx context.Context) (domain.ExchangeRateTable, error)

	GetRecipients(ctx context.Context) ([]domain.Recipient, error)
	AddRecipient(ctx context.Context, recipient domain.Recipient) error

	GetTransferHistory(ctx context.Context) ([]domain.Transfer, error)
	TransferMoney(ctx context.Context, req domain.TransferRequest) (uint64, error)
}

// CacheRecorder receives entity-cache events for instrumentation.
type CacheRecorder interface {
	IncrCacheHit(key string)
	IncrCacheMiss(key string)
	RecordCacheLoad(key string, d time.Duration, err error)
}
