package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/globalsend-bfa-go/internal/domain"
	"github.com/boddenberg/globalsend-bfa-go/internal/infra/cache"
	"github.com/boddenberg/globalsend-bfa-go/internal/service"
)

func TestSubmitTransfer_DeclaresEffects(t *testing.T) {
	ledger := newMockLedger()

	id, effects, err := service.SubmitTransfer(authed(), ledger, domain.TransferRequest{Recipient: janeSmith, Amount: 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 101 {
		t.Errorf("expected id 101, got %d", id)
	}
	want := service.Effects{
		service.Invalidate(service.KeyTransferHistory),
		service.Invalidate(service.KeyBalance),
	}
	if len(effects) != len(want) {
		t.Fatalf("expected %d effects, got %d", len(want), len(effects))
	}
	for i := range want {
		if effects[i].Kind != want[i].Kind || effects[i].Key != want[i].Key {
			t.Errorf("effect %d: expected %+v, got %+v", i, want[i], effects[i])
		}
	}
}

func TestSaveProfile_DeclaresSet(t *testing.T) {
	effects, err := service.SaveProfile(authed(), newMockLedger(), domain.UserProfile{Name: "Alice", Country: "US"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(effects) != 1 || effects[0].Kind != service.EffectSet || effects[0].Key != service.KeyProfile {
		t.Fatalf("unexpected effects: %+v", effects)
	}
	if p, ok := effects[0].Value.(*domain.UserProfile); !ok || p.Name != "Alice" {
		t.Errorf("expected profile value, got %#v", effects[0].Value)
	}
}

func TestMutations_NoPrincipal(t *testing.T) {
	ledger := newMockLedger()
	ctx := context.Background()
	var unavailable *domain.ErrRemoteUnavailable

	if _, err := service.AddRecipient(ctx, ledger, janeSmith); !errors.As(err, &unavailable) {
		t.Errorf("expected ErrRemoteUnavailable, got %v", err)
	}
	if _, err := service.SaveProfile(ctx, ledger, domain.UserProfile{Name: "Alice"}); !errors.As(err, &unavailable) {
		t.Errorf("expected ErrRemoteUnavailable, got %v", err)
	}
	if _, _, err := service.SubmitTransfer(ctx, ledger, domain.TransferRequest{}); !errors.As(err, &unavailable) {
		t.Errorf("expected ErrRemoteUnavailable, got %v", err)
	}
	if ledger.count("addRecipient")+ledger.count("saveCallerUserProfile")+ledger.count("transferMoney") != 0 {
		t.Error("expected no remote calls")
	}
}

func TestAddRecipient_InvalidatesAndRefetchesOnce(t *testing.T) {
	ledger := newMockLedger()
	r, m, store := newReader(ledger)
	ctx := authed()

	if v := r.Recipients(ctx); len(v.Value) != 0 {
		t.Fatalf("expected no recipients, got %d", len(v.Value))
	}

	if err := m.AddRecipient(ctx, janeSmith); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st := store.Get(service.KeyRecipients).State; st != cache.StateStale {
		t.Errorf("expected stale recipients, got %s", st)
	}

	v := r.Recipients(ctx)
	if len(v.Value) != 1 || !v.Value[0].SameAs(janeSmith) {
		t.Errorf("expected the new recipient, got %+v", v.Value)
	}
	r.Recipients(ctx)
	if ledger.count("getRecipients") != 2 {
		t.Errorf("expected exactly one refetch, got %d fetches", ledger.count("getRecipients"))
	}
	if ledger.count("addRecipient") != 1 {
		t.Errorf("expected a single add call, got %d", ledger.count("addRecipient"))
	}
}

func TestMutation_FailureLeavesCacheUntouched(t *testing.T) {
	ledger := newMockLedger()
	ledger.balance = 80
	r, m, store := newReader(ledger)
	ctx := authed()

	r.Recipients(ctx)
	r.Balance(ctx)

	ledger.writeErr = errors.New("rejected")
	if err := m.AddRecipient(ctx, janeSmith); err == nil {
		t.Fatal("expected error")
	}
	ledger.transferErr = errors.New("insufficient funds")
	if _, err := m.SubmitTransfer(ctx, domain.TransferRequest{Recipient: janeSmith, Amount: 100}); err == nil {
		t.Fatal("expected error")
	}

	for _, k := range []cache.Key{service.KeyRecipients, service.KeyBalance} {
		if st := store.Get(k).State; st != cache.StateReady {
			t.Errorf("%s: expected ready, got %s", k, st)
		}
	}
	if ledger.count("addRecipient") != 1 || ledger.count("transferMoney") != 1 {
		t.Error("expected single attempts, no retry")
	}
}

func TestSaveProfile_PatchesWithoutRefetch(t *testing.T) {
	ledger := newMockLedger()
	r, m, _ := newReader(ledger)
	ctx := authed()

	r.Profile(ctx)
	if err := m.SaveProfile(ctx, domain.UserProfile{Name: "Alice", Country: "US"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := r.Profile(ctx)
	if v.Value == nil || v.Value.Name != "Alice" {
		t.Fatalf("expected patched profile, got %+v", v.Value)
	}
	if ledger.count("getCallerUserProfile") != 1 {
		t.Errorf("expected no refetch, got %d fetches", ledger.count("getCallerUserProfile"))
	}
}
