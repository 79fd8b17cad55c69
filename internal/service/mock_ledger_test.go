package service_test

import (
	"context"
	"sync"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
)

// --- Mocks ---

type mockLedger struct {
	mu sync.Mutex

	profile    *domain.UserProfile
	balance    float64
	rates      domain.ExchangeRateTable
	recipients []domain.Recipient
	history    []domain.Transfer
	nextID     uint64

	readErr     error
	writeErr    error
	transferErr error

	// transferGate, when set, holds TransferMoney until closed.
	transferGate    chan struct{}
	transferStarted chan struct{}

	// addGate, when set, holds AddRecipient until closed.
	addGate    chan struct{}
	addStarted chan struct{}

	calls map[string]int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		rates:  domain.ExchangeRateTable{"USD": 1, "EUR": 0.9, "GBP": 0.79},
		nextID: 100,
		calls:  make(map[string]int),
	}
}

func (m *mockLedger) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockLedger) hit(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
}

func (m *mockLedger) setReadErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *mockLedger) GetCallerUserProfile(_ context.Context) (*domain.UserProfile, error) {
	m.hit("getCallerUserProfile")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.profile == nil {
		return nil, nil
	}
	p := *m.profile
	return &p, nil
}

func (m *mockLedger) SaveCallerUserProfile(_ context.Context, p domain.UserProfile) error {
	m.hit("saveCallerUserProfile")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.profile = &p
	return nil
}

func (m *mockLedger) GetCallerUserRole(_ context.Context) (domain.UserRole, error) {
	m.hit("getCallerUserRole")
	return domain.UserRole("user"), nil
}

func (m *mockLedger) GetBalance(_ context.Context) (float64, error) {
	m.hit("getBalance")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.balance, nil
}

func (m *mockLedger) GetExchangeRates(_ context.Context) (domain.ExchangeRateTable, error) {
	m.hit("getExchangeRates")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make(domain.ExchangeRateTable, len(m.rates))
	for k, v := range m.rates {
		out[k] = v
	}
	return out, nil
}

func (m *mockLedger) GetRecipients(_ context.Context) ([]domain.Recipient, error) {
	m.hit("getRecipients")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]domain.Recipient{}, m.recipients...), nil
}

func (m *mockLedger) AddRecipient(_ context.Context, r domain.Recipient) error {
	m.hit("addRecipient")
	m.mu.Lock()
	gate, started := m.addGate, m.addStarted
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.recipients = append(m.recipients, r)
	return nil
}

func (m *mockLedger) GetTransferHistory(_ context.Context) ([]domain.Transfer, error) {
	m.hit("getTransferHistory")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]domain.Transfer{}, m.history...), nil
}

func (m *mockLedger) TransferMoney(_ context.Context, req domain.TransferRequest) (uint64, error) {
	m.hit("transferMoney")
	m.mu.Lock()
	gate, started := m.transferGate, m.transferStarted
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transferErr != nil {
		return 0, m.transferErr
	}
	m.nextID++
	m.history = append(m.history, domain.Transfer{
		ID:                  m.nextID,
		Amount:              req.Amount,
		SourceCurrency:      req.SourceCurrency,
		DestinationCurrency: req.DestCurrency,
		Recipient:           req.Recipient,
	})
	m.balance -= req.Amount
	return m.nextID, nil
}
