package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("client")

// CallRecorder receives per-call ledger metrics.
type CallRecorder interface {
	RecordRequestDuration(operation string, d time.Duration)
	IncrExternalError(operation string)
}

// LedgerClient talks to the remote ledger over JSON/HTTP on behalf of the
// principal carried in the request context.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	metrics    CallRecorder
}

// NewLedgerClient creates a new LedgerClient. metrics may be nil.
func NewLedgerClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics CallRecorder) *LedgerClient {
	return &LedgerClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		metrics:    metrics,
	}
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

type roleResponse struct {
	Role domain.UserRole `json:"role"`
}

type transferResponse struct {
	TransferID uint64 `json:"transferId"`
}

// ratePairs decodes the ledger's [["USD",1],["EUR",0.92]] representation.
type ratePairs domain.ExchangeRateTable

func (r *ratePairs) UnmarshalJSON(b []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(b, &pairs); err != nil {
		return fmt.Errorf("decode rate pairs: %w", err)
	}
	table := make(ratePairs, len(pairs))
	for _, p := range pairs {
		var code string
		var rate float64
		if err := json.Unmarshal(p[0], &code); err != nil {
			return fmt.Errorf("decode currency code: %w", err)
		}
		if err := json.Unmarshal(p[1], &rate); err != nil {
			return fmt.Errorf("decode rate for %s: %w", code, err)
		}
		table[code] = rate
	}
	*r = table
	return nil
}

// GetCallerUserProfile returns nil when the caller has no profile yet.
func (c *LedgerClient) GetCallerUserProfile(ctx context.Context) (*domain.UserProfile, error) {
	var profile *domain.UserProfile
	err := c.read(ctx, "getCallerUserProfile", "/v1/profile", &profile)
	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// SaveCallerUserProfile stores the caller's profile.
func (c *LedgerClient) SaveCallerUserProfile(ctx context.Context, profile domain.UserProfile) error {
	return c.write(ctx, "saveCallerUserProfile", http.MethodPut, "/v1/profile", profile, nil)
}

// GetCallerUserRole returns the caller's ledger role.
func (c *LedgerClient) GetCallerUserRole(ctx context.Context) (domain.UserRole, error) {
	var resp roleResponse
	if err := c.read(ctx, "getCallerUserRole", "/v1/role", &resp); err != nil {
		return "", err
	}
	return resp.Role, nil
}

// GetBalance returns the caller's balance in the base unit.
func (c *LedgerClient) GetBalance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := c.read(ctx, "getBalance", "/v1/balance", &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// GetExchangeRates returns the current rate table.
func (c *LedgerClient) GetExchangeRates(ctx context.Context) (domain.ExchangeRateTable, error) {
	var pairs ratePairs
	if err := c.read(ctx, "getExchangeRates", "/v1/exchange-rates", &pairs); err != nil {
		return nil, err
	}
	if pairs == nil {
		return domain.ExchangeRateTable{}, nil
	}
	return domain.ExchangeRateTable(pairs), nil
}

// GetRecipients returns the caller's saved recipients.
func (c *LedgerClient) GetRecipients(ctx context.Context) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	if err := c.read(ctx, "getRecipients", "/v1/recipients", &recipients); err != nil {
		return nil, err
	}
	if recipients == nil {
		recipients = []domain.Recipient{}
	}
	return recipients, nil
}

// AddRecipient saves a new recipient for the caller.
func (c *LedgerClient) AddRecipient(ctx context.Context, recipient domain.Recipient) error {
	return c.write(ctx, "addRecipient", http.MethodPost, "/v1/recipients", recipient, nil)
}

// GetTransferHistory returns the caller's transfers in ledger order.
func (c *LedgerClient) GetTransferHistory(ctx context.Context) ([]domain.Transfer, error) {
	var transfers []domain.Transfer
	if err := c.read(ctx, "getTransferHistory", "/v1/transfers", &transfers); err != nil {
		return nil, err
	}
	if transfers == nil {
		transfers = []domain.Transfer{}
	}
	return transfers, nil
}

// TransferMoney submits a transfer and returns the id the ledger assigned.
func (c *LedgerClient) TransferMoney(ctx context.Context, req domain.TransferRequest) (uint64, error) {
	var resp transferResponse
	if err := c.write(ctx, "transferMoney", http.MethodPost, "/v1/transfers", req, &resp); err != nil {
		return 0, err
	}
	return resp.TransferID, nil
}

// read performs an idempotent GET with retry, circuit breaker, and tracing.
func (c *LedgerClient) read(ctx context.Context, op, path string, out any) error {
	return c.call(ctx, op, func(p domain.Principal) error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.do(ctx, p, op, http.MethodGet, path, nil, out)
		})
	})
}

// write performs a single attempt; mutations are never retried.
func (c *LedgerClient) write(ctx context.Context, op, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	return c.call(ctx, op, func(p domain.Principal) error {
		return c.do(ctx, p, op, method, path, payload, out)
	})
}

func (c *LedgerClient) call(ctx context.Context, op string, fn func(domain.Principal) error) error {
	ctx, span := tracer.Start(ctx, "LedgerClient."+op)
	defer span.End()
	span.SetAttributes(attribute.String("ledger.operation", op))

	p, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return &domain.ErrRemoteUnavailable{Operation: op}
	}
	span.SetAttributes(attribute.String("principal.id", p.ID))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrExternalService{Service: "ledger", Err: err}
	}
	defer c.bulkhead.Release()

	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn(p)
	})
	if c.metrics != nil {
		c.metrics.RecordRequestDuration(op, time.Since(start))
	}

	if err == nil {
		return nil
	}

	var nf *domain.ErrNotFound
	if errors.As(err, &nf) {
		return err
	}
	if c.metrics != nil {
		c.metrics.IncrExternalError(op)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrExternalService{Service: "ledger", Err: &domain.ErrCircuitOpen{Service: "ledger"}}
	}
	return &domain.ErrExternalService{Service: "ledger", Err: err}
}

func (c *LedgerClient) do(ctx context.Context, p domain.Principal, op, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return &domain.ErrNotFound{Resource: op, ID: p.ID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.ErrRemoteStatus{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    string(bytes.TrimSpace(msg)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
