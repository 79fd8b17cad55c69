package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/cache"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/observability"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"

	"go.uber.org/zap"
)

var alice = domain.Principal{ID: "alice", Token: "tok"}

func newManager(ledger *mockLedger, cfg service.SessionConfig) *service.SessionManager {
	return service.NewSessionManager(ledger, cfg, observability.NewMetrics(), zap.NewNop())
}

func TestSessionManager_OpenIsIdempotent(t *testing.T) {
	m := newManager(newMockLedger(), service.SessionConfig{})
	defer m.CloseAll()

	s1 := m.Open(alice)
	s2 := m.Open(alice)
	if s1 != s2 {
		t.Error("expected the same session for the same principal")
	}
	m.Open(domain.Principal{ID: "bob"})
	if m.Len() != 2 {
		t.Errorf("expected 2 sessions, got %d", m.Len())
	}
}

func TestSessionManager_CloseTearsDownCache(t *testing.T) {
	ledger := newMockLedger()
	ledger.balance = 42
	m := newManager(ledger, service.SessionConfig{})

	s := m.Open(alice)
	ctx := s.Context(context.Background())
	if v := s.Reader.Balance(ctx); v.Value != 42 {
		t.Fatalf("expected 42, got %v", v.Value)
	}
	w := s.NewDraft()

	if !m.Close(alice.ID) {
		t.Fatal("expected session to exist")
	}
	if st := s.Store.Get(service.KeyBalance).State; st != cache.StateEmpty {
		t.Errorf("expected empty cache after logout, got %s", st)
	}
	if _, ok := s.Draft(w.Draft().ID); ok {
		t.Error("expected drafts discarded on logout")
	}
	if m.Close(alice.ID) {
		t.Error("second close should report no session")
	}

	// A new login starts from an empty cache.
	s2 := m.Open(alice)
	defer m.CloseAll()
	s2.Reader.Balance(s2.Context(context.Background()))
	if ledger.count("getBalance") != 2 {
		t.Errorf("expected a fresh fetch after re-login, got %d", ledger.count("getBalance"))
	}
}

func TestSession_SessionsAreIsolated(t *testing.T) {
	ledger := newMockLedger()
	m := newManager(ledger, service.SessionConfig{})
	defer m.CloseAll()

	a := m.Open(alice)
	b := m.Open(domain.Principal{ID: "bob", Token: "tok-b"})

	a.Reader.Recipients(a.Context(context.Background()))
	if st := b.Store.Get(service.KeyRecipients).State; st != cache.StateEmpty {
		t.Errorf("expected bob's cache untouched, got %s", st)
	}
}

func TestSession_DraftLifecycle(t *testing.T) {
	m := newManager(newMockLedger(), service.SessionConfig{})
	defer m.CloseAll()
	s := m.Open(alice)
	ctx := s.Context(context.Background())

	w := s.NewDraft()
	id := w.Draft().ID
	if got, ok := s.Draft(id); !ok || got != w {
		t.Fatal("expected draft to be registered")
	}

	var rej *domain.Rejection
	if err := s.FinishDraft(id); !errors.As(err, &rej) {
		t.Fatalf("expected rejection before result, got %v", err)
	}

	toReview(t, w)
	if _, err := w.Confirm(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.FinishDraft(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DraftCount() != 0 {
		t.Errorf("expected draft discarded, got %d open", s.DraftCount())
	}

	var nf *domain.ErrNotFound
	if err := s.FinishDraft(id); !errors.As(err, &nf) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSessionManager_EvictIdle(t *testing.T) {
	m := newManager(newMockLedger(), service.SessionConfig{IdleTTL: time.Millisecond})
	m.Open(alice)

	time.Sleep(10 * time.Millisecond)
	if n := m.EvictIdle(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if m.Len() != 0 {
		t.Errorf("expected no sessions, got %d", m.Len())
	}
}

func TestSession_PollsBalance(t *testing.T) {
	ledger := newMockLedger()
	m := newManager(ledger, service.SessionConfig{BalanceRefresh: 5 * time.Millisecond})
	defer m.CloseAll()

	s := m.Open(alice)
	s.Reader.Balance(s.Context(context.Background()))

	deadline := time.Now().Add(2 * time.Second)
	for ledger.count("getBalance") < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected background refreshes, got %d fetches", ledger.count("getBalance"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDashboard_RecentTransfersNewestFirst(t *testing.T) {
	ledger := newMockLedger()
	ledger.balance = 300
	for i := 1; i <= 7; i++ {
		ledger.history = append(ledger.history, domain.Transfer{
			ID:                  uint64(i),
			Amount:              10,
			ExchangeRate:        0.9,
			SourceCurrency:      "USD",
			DestinationCurrency: "EUR",
			Timestamp:           int64(i) * int64(time.Hour),
			Recipient:           janeSmith,
		})
	}
	m := newManager(ledger, service.SessionConfig{})
	defer m.CloseAll()
	s := m.Open(alice)

	d := s.Reader.Dashboard(s.Context(context.Background()))
	if !d.ProfileSetupRequired {
		t.Error("expected profile setup required")
	}
	if d.Balance.Value != 300 {
		t.Errorf("expected balance 300, got %v", d.Balance.Value)
	}
	rows := d.RecentTransfers.Value
	if len(rows) != service.RecentTransferLimit {
		t.Fatalf("expected %d rows, got %d", service.RecentTransferLimit, len(rows))
	}
	if rows[0].ID != 7 || rows[4].ID != 3 {
		t.Errorf("expected ids 7..3, got first %d last %d", rows[0].ID, rows[4].ID)
	}
	if rows[0].Sent != "$10.00" || rows[0].Received != "€9.00" {
		t.Errorf("unexpected display amounts %q %q", rows[0].Sent, rows[0].Received)
	}
	if rows[0].MaskedAccount != "••••6819" || rows[0].StatusLabel != "Pending" {
		t.Errorf("unexpected row %+v", rows[0])
	}
}
